package exporter

import (
	"errors"
	"fmt"

	"github.com/GreedyKomodoDragon/handle-exporter/internal/handles"
)

// ErrorKind classifies why an export stopped or skipped a report
type ErrorKind int

const (
	// KindAccess covers listing and fetch failures: credentials, missing
	// bucket, network, cancellation
	KindAccess ErrorKind = iota + 1
	// KindDecode means a report body was not UTF-8 text
	KindDecode
	// KindIndex means a report body had fewer than two "/" segments
	KindIndex
	// KindOutput covers the local output file and the handle index
	KindOutput
)

func (k ErrorKind) String() string {
	switch k {
	case KindAccess:
		return "access"
	case KindDecode:
		return "decode"
	case KindIndex:
		return "index"
	case KindOutput:
		return "output"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is returned by Export. Key names the object being processed, empty
// when the failure is not tied to one object.
type Error struct {
	Kind ErrorKind
	Key  string
	Err  error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error for %q: %v", e.Kind, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or 0
func KindOf(err error) ErrorKind {
	var exportErr *Error
	if errors.As(err, &exportErr) {
		return exportErr.Kind
	}
	return 0
}

// IsMalformed reports whether err is a per-record data problem rather than
// an access or output failure
func IsMalformed(err error) bool {
	kind := KindOf(err)
	return kind == KindDecode || kind == KindIndex
}

func parseErrorKind(err error) ErrorKind {
	if errors.Is(err, handles.ErrInvalidUTF8) {
		return KindDecode
	}
	return KindIndex
}
