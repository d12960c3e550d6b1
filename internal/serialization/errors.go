package serialization

import (
	"fmt"

	"github.com/pkg/errors"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: record may be corrupted")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrPayloadTooLarge    = errors.New("payload exceeds maximum size")
	ErrTruncated          = errors.New("unexpected end of data")
	ErrInvalidNodeName    = errors.New("invalid node name")
)

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Type    string // Type of error (e.g., "name_too_long", "invalid_name")
	Node    string // Node name involved
	Details string // Additional details
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s: node %q: %s", e.Type, e.Node, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}

// Unwrap lets errors.Is match ErrInvalidNodeName.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidNodeName
}
