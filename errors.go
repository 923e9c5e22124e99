package ppeprep

// Error kinds and per-item error reporting.

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies a failure by how the pipeline recovers from it.
type ErrorKind int

// The known error kinds.
const (
	ConfigurationError      ErrorKind = iota // Fatal, aborts the run before per-item work.
	ItemParseError                           // A label file or line is skipped.
	DegenerateGeometryError                  // An anchor or dependent box is dropped.
	IOError                                  // An image or output file is skipped.
)

func (k ErrorKind) String() string {
	switch k {
	case ConfigurationError:
		return "configuration"
	case ItemParseError:
		return "parse"
	case DegenerateGeometryError:
		return "degenerate-geometry"
	case IOError:
		return "io"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

var (
	// ErrDegenerateGeometry is returned for boxes with zero or negative area after clipping.
	ErrDegenerateGeometry = errors.New("degenerate box after clipping")
	// ErrZeroSize is returned when normalizing against an image with a zero dimension.
	ErrZeroSize = errors.New("image size has a zero dimension")
	// ErrMissingVocabulary is returned when no class vocabulary is available.
	ErrMissingVocabulary = errors.New("missing class vocabulary")
)

// ItemError is a recovered error for a single item (file, line or anchor) of a pass.
type ItemError struct {
	Kind ErrorKind
	Path string // The file the error relates to.
	Line int    // 1-based line number for parse errors, 1-based anchor index for geometry errors.
	Err  error
}

func (e *ItemError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s error in %q:%d: %v", e.Kind, e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s error in %q: %v", e.Kind, e.Path, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

func newItemError(kind ErrorKind, path string, line int, err error) *ItemError {
	return &ItemError{Kind: kind, Path: path, Line: line, Err: err}
}

// configError marks err as a fatal ConfigurationError.
func configError(err error, format string, args ...interface{}) *ItemError {
	return &ItemError{Kind: ConfigurationError, Err: errors.Wrapf(err, format, args...)}
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	var itemErr *ItemError
	return errors.As(err, &itemErr) && itemErr.Kind == ConfigurationError
}

// NewConfigurationError marks err as a ConfigurationError, adding the context message. err must not
// be nil.
func NewConfigurationError(err error, format string, args ...interface{}) error {
	return configError(err, format, args...)
}
