package epub

import (
	"errors"
	"fmt"
)

// Extraction failure kinds. Match them with errors.Is on an *ExtractionError.
var (
	ErrNotAnEpub           = errors.New("not an epub archive")
	ErrCorruptArchive      = errors.New("corrupt archive")
	ErrMissingManifest     = errors.New("missing package manifest")
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
	ErrEmptyBook           = errors.New("book has no chapters")
)

// ExtractionError is returned by Extract. Kind is one of the Err* values above
// and Err carries the underlying cause, if any.
type ExtractionError struct {
	Kind error
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("epub: extract %s: %v", e.Path, e.Kind)
	}
	return fmt.Sprintf("epub: extract %s: %v: %v", e.Path, e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, path string, err error) *ExtractionError {
	return &ExtractionError{Kind: kind, Path: path, Err: err}
}
