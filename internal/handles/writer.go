package handles

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Writer appends records as "handle,identifier" lines. Every record is flushed
// to the underlying file before Write returns.
type Writer struct {
	file    *os.File
	csv     *csv.Writer
	written int
}

// Create creates or truncates the file at path and returns a Writer for it
func Create(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	return &Writer{
		file: file,
		csv:  csv.NewWriter(file),
	}, nil
}

// Write appends one line for rec
func (w *Writer) Write(rec Record) error {
	if err := w.csv.Write([]string{rec.Handle, rec.Identifier}); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("failed to flush record: %w", err)
	}

	w.written++
	return nil
}

// Written returns the number of records written so far
func (w *Writer) Written() int {
	return w.written
}

// Path returns the output file name
func (w *Writer) Path() string {
	return w.file.Name()
}

// Close closes the output file
func (w *Writer) Close() error {
	return w.file.Close()
}

// NeedsQuoting reports whether rec cannot be written as a bare
// "handle,identifier" line
func NeedsQuoting(rec Record) bool {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{rec.Handle, rec.Identifier}); err != nil {
		return true
	}
	w.Flush()

	return buf.String() != rec.Handle+","+rec.Identifier+"\n"
}

var _ io.Closer = (*Writer)(nil)
