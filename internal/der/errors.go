package der

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the DER engine and the models built on it.
// Callers match them with errors.Is.
var (
	// ErrMalformedEncoding reports bytes that are not valid DER: truncated
	// buffers, indefinite lengths, lengths running past the buffer.
	ErrMalformedEncoding = errors.New("der: malformed encoding")

	// ErrUnsupportedStructure reports well-formed DER whose shape does not
	// match the expected schema.
	ErrUnsupportedStructure = errors.New("der: unsupported structure")
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedEncoding, fmt.Sprintf(format, args...))
}

// Unsupported returns an ErrUnsupportedStructure error with a formatted
// description of the mismatch.
func Unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedStructure, fmt.Sprintf(format, args...))
}
