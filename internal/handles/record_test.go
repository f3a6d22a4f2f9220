package handles_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/GreedyKomodoDragon/handle-exporter/internal/handles"
)

var _ = Describe("Parse", func() {
	It("takes the last two body segments as the handle", func() {
		rec, err := handles.Parse("HANDLE_REPORTS/2024-01-01/123/456", []byte("urn:uuid/abc/def"))
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Handle).To(Equal("abc/def"))
	})

	It("takes the last key segment as the identifier", func() {
		rec, err := handles.Parse("HANDLE_REPORTS/2024-01-01/123/456", []byte("urn:uuid/abc/def"))
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Identifier).To(Equal("456"))
	})

	It("parses a handle resolver URL", func() {
		rec, err := handles.Parse("HANDLE_REPORTS/T1/a/11", []byte("https://hdl.handle.net/11250/2683076"))
		Expect(err).NotTo(HaveOccurred())
		Expect(rec).To(Equal(handles.Record{Handle: "11250/2683076", Identifier: "11"}))
		Expect(rec.URI()).To(Equal("https://hdl.handle.net/11250/2683076"))
	})

	It("accepts a body with exactly two segments", func() {
		rec, err := handles.Parse("k/1", []byte("a/b"))
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Handle).To(Equal("a/b"))
	})

	It("keeps empty segments the way a plain split does", func() {
		rec, err := handles.Parse("k/1", []byte("x/"))
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Handle).To(Equal("x/"))
	})

	It("uses the whole key when it has no slash", func() {
		rec, err := handles.Parse("flat-key", []byte("a/b"))
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Identifier).To(Equal("flat-key"))
	})

	It("yields an empty identifier for a key ending in a slash", func() {
		Expect(handles.Identifier("HANDLE_REPORTS/T1/")).To(BeEmpty())
	})

	It("rejects a body without a slash", func() {
		_, err := handles.Parse("k/1", []byte("no-slash-here"))
		Expect(err).To(MatchError(handles.ErrTooFewSegments))
	})

	It("rejects an empty body", func() {
		_, err := handles.Parse("k/1", nil)
		Expect(err).To(MatchError(handles.ErrTooFewSegments))
	})

	It("rejects a body that is not UTF-8", func() {
		_, err := handles.Parse("k/1", []byte{0xff, 0xfe, '/', 0xfd})
		Expect(err).To(MatchError(handles.ErrInvalidUTF8))
	})
})
