// Package handles derives handle records from handle report objects and
// reads and writes the exported handle list.
package handles

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// HandleDomain is the resolver every exported handle lives under
const HandleDomain = "https://hdl.handle.net"

var (
	// ErrInvalidUTF8 is returned when a report body is not UTF-8 text
	ErrInvalidUTF8 = errors.New("body is not valid UTF-8")

	// ErrTooFewSegments is returned when a report body has no "/" to split a
	// handle prefix from its suffix
	ErrTooFewSegments = errors.New("body has fewer than two '/' segments")
)

// Record is one exported line: the handle taken from a report body and the
// identifier taken from the report's key
type Record struct {
	Handle     string
	Identifier string
}

// URI returns the resolvable handle URL
func (r Record) URI() string {
	return HandleDomain + "/" + r.Handle
}

// Parse derives a Record from an object key and its body.
//
// The handle is the last two "/" segments of the body re-joined with "/",
// so "https://hdl.handle.net/11250/2683076" yields "11250/2683076". The
// identifier is the last "/" segment of the key.
func Parse(key string, body []byte) (Record, error) {
	if !utf8.Valid(body) {
		return Record{}, fmt.Errorf("%w (detected %s)", ErrInvalidUTF8, mimetype.Detect(body).String())
	}

	segments := strings.Split(string(body), "/")
	if len(segments) < 2 {
		return Record{}, fmt.Errorf("%w: %q", ErrTooFewSegments, truncate(string(body), 64))
	}

	return Record{
		Handle:     strings.Join(segments[len(segments)-2:], "/"),
		Identifier: Identifier(key),
	}, nil
}

// Identifier returns the last "/" segment of an object key
func Identifier(key string) string {
	return key[strings.LastIndex(key, "/")+1:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
