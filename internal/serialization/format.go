package serialization

import "time"

// Format constants.
const (
	MagicBytes    = "CRIT"
	FormatVersion = 1
	ChecksumSize  = 32 // SHA-256 checksum size (32 bytes)

	prefixSize = 4 + 4 + 8 // magic, version, header size
)

// Header represents the JSON header of a checkpoint record.
type Header struct {
	FormatVersion int               `json:"format_version"`     // Version of the record format
	OperationName string            `json:"operation_name"`     // Criterion type, e.g. "CRF"
	NodeName      string            `json:"node_name"`          // Node name within its graph
	CreatedAt     time.Time         `json:"created_at"`         // When the record was written
	Metadata      map[string]string `json:"metadata,omitempty"` // Custom metadata
}
