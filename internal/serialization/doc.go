// Package serialization provides the binary encoding of criterion checkpoints.
//
// A checkpoint record stores one criterion node: its operation name, node
// name and the node's own payload (settings such as an evaluation mode).
// Input nodes are not stored; they belong to the graph that reloads the node.
//
//	Record Structure:
//	  [4 bytes: Magic "CRIT"]
//	  [4 bytes: Version (uint32 LE)]
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON metadata]
//	  [8 bytes: Payload Size (uint64 LE)]
//	  [Payload: node-specific little-endian fields]
//	  [32 bytes: SHA-256 of everything above]
//
// Payload fields are written with Writer and read back with Reader. Reader
// keeps an explicit position so a caller can rewind over a field it decides
// not to consume, which is how forward-compatible tags are skipped.
//
// Example usage:
//
//	w := serialization.NewWriter()
//	w.WriteInt32(int32(mode))
//	err := serialization.WriteRecord(file, serialization.Header{
//	    OperationName: "NCEBasedCrossEntropyWithSoftmax",
//	    NodeName:      "nce",
//	}, w.Bytes())
//
//	header, payload, err := serialization.ReadRecord(file)
//	r := serialization.NewReader(payload)
//	tag, err := r.ReadInt32()
package serialization
