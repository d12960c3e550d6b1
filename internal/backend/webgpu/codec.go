package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// ErrUnavailable is returned when no WebGPU device can be opened.
var ErrUnavailable = errors.New("webgpu: not available")

// bytesPerElement is the mirror element size. WGSL has no f64 storage, so
// mirrors hold float32.
const bytesPerElement = 4

// bufferSize returns the byte size of an n-element mirror, rounded up to the
// 4-byte copy alignment and never zero.
func bufferSize(n int) uint64 {
	return uint64(max(n, 1)) * bytesPerElement
}

// encode packs data as little-endian float32 into dst, which must hold
// len(data)*4 bytes.
func encode(dst []byte, data []float64) {
	for i, v := range data {
		binary.LittleEndian.PutUint32(dst[i*bytesPerElement:], math.Float32bits(float32(v)))
	}
}

// decode unpacks little-endian float32 from src into dst.
func decode(dst []float64, src []byte) error {
	if len(src) < len(dst)*bytesPerElement {
		return errors.Errorf("webgpu: %d bytes cannot hold %d elements", len(src), len(dst))
	}
	for i := range dst {
		dst[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(src[i*bytesPerElement:])))
	}
	return nil
}

// PoolStats reports buffer reuse in a Store.
type PoolStats struct {
	Allocated uint64 // buffers created on the device
	Released  uint64 // buffers handed back to the pool
	Hits      uint64
	Misses    uint64
	Pooled    int // buffers waiting for reuse

	LiveBytes uint64
	PeakBytes uint64
}

// String formats the stats for logs.
func (s PoolStats) String() string {
	return fmt.Sprintf("%s live (peak %s), %s buffers allocated, %d/%d pool hits, %d pooled",
		humanize.IBytes(s.LiveBytes), humanize.IBytes(s.PeakBytes), humanize.Comma(int64(s.Allocated)),
		s.Hits, s.Hits+s.Misses, s.Pooled)
}
