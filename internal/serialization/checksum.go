package serialization

import (
	"crypto/sha256"
)

// ComputeChecksum computes the SHA-256 checksum of data.
func ComputeChecksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}

// ValidateChecksum compares the checksum of body against the trailing
// ChecksumSize bytes it was stored with.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(body []byte, stored []byte) error {
	if len(stored) != ChecksumSize {
		return ErrTruncated
	}
	computed := ComputeChecksum(body)
	if string(computed[:]) != string(stored) {
		return ErrChecksumMismatch
	}
	return nil
}
