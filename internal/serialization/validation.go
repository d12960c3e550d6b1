package serialization

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize  = 1 << 20  // 1MB - maximum JSON header size
	MaxPayloadSize = 64 << 20 // 64MB - maximum node payload size
	MaxNodeNameLen = 4096     // Maximum node name length
)

// ValidateNodeName rejects names a graph could not hold: empty, too long,
// or carrying control characters.
func ValidateNodeName(name string) error {
	if name == "" {
		return &ValidationError{Type: "invalid_name", Details: "empty node name"}
	}
	if len(name) > MaxNodeNameLen {
		return &ValidationError{
			Type:    "name_too_long",
			Node:    name[:32] + "...",
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxNodeNameLen),
		}
	}

	// Null bytes can bypass length checks in some contexts.
	if strings.ContainsAny(name, "\x00\n\r") {
		return &ValidationError{
			Type:    "invalid_name",
			Node:    name,
			Details: "contains a control character",
		}
	}
	return nil
}

// ValidateHeader checks a decoded header.
func ValidateHeader(h *Header) error {
	if h.FormatVersion != FormatVersion {
		return errors.Wrapf(ErrUnsupportedVersion, "header says %d", h.FormatVersion)
	}
	if h.OperationName == "" {
		return errors.Errorf("node %q: operation name is empty", h.NodeName)
	}
	return ValidateNodeName(h.NodeName)
}
