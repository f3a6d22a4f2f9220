package handles

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// ReadHandles reads an exported handle list and returns the full handle URI
// of every line, in file order. Only the first column is used.
func ReadHandles(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var uris []string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read handle list: %w", err)
		}
		if len(row) == 0 || row[0] == "" {
			continue
		}

		uris = append(uris, Record{Handle: row[0]}.URI())
	}

	return uris, nil
}

// ReadHandlesFile is ReadHandles for a file on disk
func ReadHandlesFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open handle list: %w", err)
	}
	defer file.Close()

	return ReadHandles(file)
}
