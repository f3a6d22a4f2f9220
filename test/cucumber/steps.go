package cucumber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cucumber/godog"

	"github.com/GreedyKomodoDragon/handle-exporter/internal/exporter"
	"github.com/GreedyKomodoDragon/handle-exporter/internal/handles"
	"github.com/GreedyKomodoDragon/handle-exporter/internal/objectstore"
)

// TestContext holds the state of one scenario
type TestContext struct {
	store       *objectstore.MemoryStore
	workDir     string
	outputPath  string
	onMalformed exporter.MalformedPolicy

	summary   *exporter.Summary
	exportErr error
	outputs   []string
}

const (
	defaultBucket = "handle-reports"

	errNoExportRun = "no export has been run"
)

// NewTestContext creates a new test context
func NewTestContext() *TestContext {
	return &TestContext{
		store:       objectstore.NewMemoryStore(defaultBucket),
		onMalformed: exporter.Abort,
	}
}

// InitializeTestSuite initializes the cucumber test suite
func InitializeTestSuite(ctx *godog.TestSuiteContext) {
	ctx.BeforeSuite(func() {
		fmt.Println("Starting handle exporter feature tests")
	})

	ctx.AfterSuite(func() {
		fmt.Println("Finished handle exporter feature tests")
	})
}

// InitializeScenario initializes each cucumber scenario
func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := NewTestContext()

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		dir, err := os.MkdirTemp("", "handle-exporter-*")
		if err != nil {
			return ctx, err
		}
		tc.workDir = dir
		tc.outputPath = filepath.Join(dir, exporter.DefaultOutputPath)
		return ctx, nil
	})

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if tc.workDir != "" {
			_ = os.RemoveAll(tc.workDir)
		}
		return ctx, nil
	})

	// Setup steps
	ctx.Step(`^a report bucket named "([^"]*)"$`, tc.reportBucketNamed)
	ctx.Step(`^the bucket contains a report "([^"]*)" with body "([^"]*)"$`, tc.bucketContainsReport)
	ctx.Step(`^the bucket contains the reports:$`, tc.bucketContainsReports)
	ctx.Step(`^the bucket lists (\d+) keys? per page$`, tc.bucketListsKeysPerPage)
	ctx.Step(`^malformed reports are (aborted|skipped)$`, tc.malformedReportsAre)
	ctx.Step(`^the output file already contains "([^"]*)"$`, tc.outputFileAlreadyContains)

	// Action steps
	ctx.Step(`^I export handles for "([^"]*)"(?: again)?$`, tc.exportHandlesFor)

	// Verification steps
	ctx.Step(`^the export succeeds$`, tc.exportSucceeds)
	ctx.Step(`^the export fails with an? (access|decode|index|output) error$`, tc.exportFailsWith)
	ctx.Step(`^the output file contains exactly:$`, tc.outputFileContainsExactly)
	ctx.Step(`^the output file is empty$`, tc.outputFileIsEmpty)
	ctx.Step(`^the output file has (\d+) lines?$`, tc.outputFileHasLines)
	ctx.Step(`^(\d+) reports? (?:was|were) skipped$`, tc.reportsWereSkipped)
	ctx.Step(`^both exports produced identical files$`, tc.bothExportsIdentical)
	ctx.Step(`^the handle list read back from the output file is:$`, tc.handleListReadBack)
}

func (tc *TestContext) reportBucketNamed(name string) error {
	tc.store = objectstore.NewMemoryStore(name)
	return nil
}

func (tc *TestContext) bucketContainsReport(key, body string) error {
	tc.store.PutObject(key, []byte(body))
	return nil
}

func (tc *TestContext) bucketContainsReports(table *godog.Table) error {
	for i, row := range table.Rows {
		if len(row.Cells) < 2 {
			return fmt.Errorf("row %d: expected key and body columns", i)
		}
		key, body := row.Cells[0].Value, row.Cells[1].Value
		if i == 0 && key == "key" {
			continue
		}
		tc.store.PutObject(key, []byte(body))
	}
	return nil
}

func (tc *TestContext) bucketListsKeysPerPage(size int) error {
	tc.store.SetPageSize(size)
	return nil
}

func (tc *TestContext) malformedReportsAre(policy string) error {
	switch policy {
	case "aborted":
		tc.onMalformed = exporter.Abort
	case "skipped":
		tc.onMalformed = exporter.Skip
	default:
		return fmt.Errorf("unknown policy %q", policy)
	}
	return nil
}

func (tc *TestContext) outputFileAlreadyContains(content string) error {
	return os.WriteFile(tc.outputPath, []byte(content+"\n"), 0o644)
}

func (tc *TestContext) exportHandlesFor(ctx context.Context, reportTime string) error {
	exp, err := exporter.NewExporter(tc.store, exporter.Config{
		OutputPath:  tc.outputPath,
		OnMalformed: tc.onMalformed,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return err
	}

	tc.summary, tc.exportErr = exp.Export(ctx, reportTime)

	content, err := os.ReadFile(tc.outputPath)
	if err != nil {
		return fmt.Errorf("failed to read output file: %v", err)
	}
	tc.outputs = append(tc.outputs, string(content))
	return nil
}

func (tc *TestContext) exportSucceeds() error {
	if tc.summary == nil {
		return errors.New(errNoExportRun)
	}
	if tc.exportErr != nil {
		return fmt.Errorf("expected export to succeed, got: %v", tc.exportErr)
	}
	if tc.summary.Written+tc.summary.Skipped != tc.summary.Listed {
		return fmt.Errorf("listed %d objects but wrote %d and skipped %d",
			tc.summary.Listed, tc.summary.Written, tc.summary.Skipped)
	}
	return nil
}

func (tc *TestContext) exportFailsWith(kind string) error {
	if tc.summary == nil {
		return errors.New(errNoExportRun)
	}
	if tc.exportErr == nil {
		return errors.New("expected export to fail")
	}
	if got := exporter.KindOf(tc.exportErr).String(); got != kind {
		return fmt.Errorf("expected %s error, got %s: %v", kind, got, tc.exportErr)
	}
	return nil
}

func (tc *TestContext) lastOutput() (string, error) {
	if len(tc.outputs) == 0 {
		return "", errors.New(errNoExportRun)
	}
	return tc.outputs[len(tc.outputs)-1], nil
}

func (tc *TestContext) outputFileContainsExactly(doc *godog.DocString) error {
	content, err := tc.lastOutput()
	if err != nil {
		return err
	}

	want := doc.Content + "\n"
	if content != want {
		return fmt.Errorf("output mismatch:\nwant %q\ngot  %q", want, content)
	}
	return nil
}

func (tc *TestContext) outputFileIsEmpty() error {
	content, err := tc.lastOutput()
	if err != nil {
		return err
	}
	if content != "" {
		return fmt.Errorf("expected empty output file, got %q", content)
	}
	return nil
}

func (tc *TestContext) outputFileHasLines(n int) error {
	content, err := tc.lastOutput()
	if err != nil {
		return err
	}
	if got := strings.Count(content, "\n"); got != n {
		return fmt.Errorf("expected %d lines, got %d", n, got)
	}
	return nil
}

func (tc *TestContext) reportsWereSkipped(n int) error {
	if tc.summary == nil {
		return errors.New(errNoExportRun)
	}
	if tc.summary.Skipped != n {
		return fmt.Errorf("expected %d skipped reports, got %d", n, tc.summary.Skipped)
	}
	if n > 0 && tc.summary.SkipErrors == nil {
		return errors.New("skipped reports have no recorded errors")
	}
	if tc.summary.SkipErrors != nil && len(tc.summary.SkipErrors.Errors()) != n {
		return fmt.Errorf("expected %d skip errors, got %d", n, len(tc.summary.SkipErrors.Errors()))
	}
	return nil
}

func (tc *TestContext) bothExportsIdentical() error {
	if len(tc.outputs) < 2 {
		return fmt.Errorf("expected two exports, got %d", len(tc.outputs))
	}
	first, last := tc.outputs[len(tc.outputs)-2], tc.outputs[len(tc.outputs)-1]
	if first != last {
		return fmt.Errorf("outputs differ:\nfirst %q\nlast  %q", first, last)
	}
	return nil
}

func (tc *TestContext) handleListReadBack(doc *godog.DocString) error {
	uris, err := handles.ReadHandlesFile(tc.outputPath)
	if err != nil {
		return err
	}

	var want []string
	if doc.Content != "" {
		want = strings.Split(doc.Content, "\n")
	}
	if len(uris) != len(want) {
		return fmt.Errorf("expected %d handles, got %d: %v", len(want), len(uris), uris)
	}
	for i := range want {
		if uris[i] != want[i] {
			return fmt.Errorf("handle %d: expected %q, got %q", i, want[i], uris[i])
		}
	}
	return nil
}
