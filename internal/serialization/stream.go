package serialization

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Writer appends little-endian fields to an in-memory payload.
type Writer struct {
	buf []byte
}

// NewWriter creates an empty payload writer.
func NewWriter() *Writer {
	return &Writer{}
}

// WriteInt32 appends v as 4 bytes.
func (w *Writer) WriteInt32(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

// WriteFloat64 appends v as 8 bytes (IEEE 754).
func (w *Writer) WriteFloat64(v float64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// WriteBool appends v as a single byte.
func (w *Writer) WriteBool(v bool) {
	var b byte
	if v {
		b = 1
	}
	w.buf = append(w.buf, b)
}

// Bytes returns the payload written so far.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the payload size in bytes.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Reader decodes little-endian fields from a payload. Its position can be
// moved back to re-read a field.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Position returns the offset of the next unread byte.
func (r *Reader) Position() int {
	return r.pos
}

// SetPosition moves the read offset to pos.
func (r *Reader) SetPosition(pos int) error {
	if pos < 0 || pos > len(r.data) {
		return errors.Errorf("position %d outside payload of %d bytes", pos, len(r.data))
	}
	r.pos = pos
	return nil
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

func (r *Reader) next(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, errors.Wrapf(ErrTruncated, "need %d bytes at offset %d, have %d", n, r.pos, r.Remaining())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadInt32 reads 4 bytes.
func (r *Reader) ReadInt32() (int32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// ReadFloat64 reads 8 bytes.
func (r *Reader) ReadFloat64() (float64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// ReadBool reads a single byte; any non-zero value is true.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.next(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}
