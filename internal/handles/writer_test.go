package handles_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/GreedyKomodoDragon/handle-exporter/internal/handles"
)

var _ = Describe("Writer", func() {
	var path string

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "handles.csv")
	})

	It("writes one bare line per record", func() {
		w, err := handles.Create(path)
		Expect(err).NotTo(HaveOccurred())

		Expect(w.Write(handles.Record{Handle: "x/y", Identifier: "11"})).To(Succeed())
		Expect(w.Write(handles.Record{Handle: "p/q", Identifier: "22"})).To(Succeed())
		Expect(w.Written()).To(Equal(2))
		Expect(w.Close()).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("x/y,11\np/q,22\n"))
	})

	It("makes each line visible before the writer is closed", func() {
		w, err := handles.Create(path)
		Expect(err).NotTo(HaveOccurred())
		defer w.Close()

		Expect(w.Write(handles.Record{Handle: "a/b", Identifier: "1"})).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("a/b,1\n"))
	})

	It("truncates an existing file", func() {
		Expect(os.WriteFile(path, []byte("stale,line\nmore,lines\n"), 0o644)).To(Succeed())

		w, err := handles.Create(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Write(handles.Record{Handle: "a/b", Identifier: "1"})).To(Succeed())
		Expect(w.Close()).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("a/b,1\n"))
	})

	It("quotes a field holding a comma", func() {
		rec := handles.Record{Handle: "a,b/c", Identifier: "1"}
		Expect(handles.NeedsQuoting(rec)).To(BeTrue())

		w, err := handles.Create(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Write(rec)).To(Succeed())
		Expect(w.Close()).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("\"a,b/c\",1\n"))
	})

	It("flags every field encoding/csv would quote", func() {
		for _, field := range []string{`\.`, "\u00a0x/y", " x/y", "x\"y", "x\ny"} {
			rec := handles.Record{Handle: field, Identifier: "1"}
			Expect(handles.NeedsQuoting(rec)).To(BeTrue(), "field %q", field)

			w, err := handles.Create(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(w.Write(rec)).To(Succeed())
			Expect(w.Close()).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).NotTo(Equal(field + ",1\n"))
		}
	})

	It("does not flag ordinary records", func() {
		Expect(handles.NeedsQuoting(handles.Record{Handle: "11250/2683076", Identifier: "456"})).To(BeFalse())
	})

	It("fails when the directory does not exist", func() {
		_, err := handles.Create(filepath.Join(path, "missing", "handles.csv"))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ReadHandles", func() {
	It("returns handle URIs from the first column", func() {
		input := strings.Join([]string{
			"11250/2759567,1",
			"11250/2738884,2",
			"11250/2738802,3",
		}, "\n")

		uris, err := handles.ReadHandles(strings.NewReader(input))
		Expect(err).NotTo(HaveOccurred())
		Expect(uris).To(Equal([]string{
			"https://hdl.handle.net/11250/2759567",
			"https://hdl.handle.net/11250/2738884",
			"https://hdl.handle.net/11250/2738802",
		}))
	})

	It("reads back what the writer wrote", func() {
		path := filepath.Join(GinkgoT().TempDir(), "handles.csv")
		w, err := handles.Create(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Write(handles.Record{Handle: "x/y", Identifier: "11"})).To(Succeed())
		Expect(w.Write(handles.Record{Handle: "a,b/c", Identifier: "12"})).To(Succeed())
		Expect(w.Close()).To(Succeed())

		uris, err := handles.ReadHandlesFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(uris).To(Equal([]string{
			"https://hdl.handle.net/x/y",
			"https://hdl.handle.net/a,b/c",
		}))
	})

	It("returns nothing for an empty file", func() {
		uris, err := handles.ReadHandles(strings.NewReader(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(uris).To(BeEmpty())
	})

	It("fails for a missing file", func() {
		_, err := handles.ReadHandlesFile(filepath.Join(GinkgoT().TempDir(), "nope.csv"))
		Expect(err).To(HaveOccurred())
	})
})
