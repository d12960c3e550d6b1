package webgpu

import (
	"testing"

	"github.com/born-ml/criterion/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuffer struct {
	size     uint64
	released *int
}

func (b *fakeBuffer) Release() { *b.released++ }

func newFakePool() (*bufferPool[*fakeBuffer], *int) {
	released := new(int)
	return newBufferPool(func(size uint64) *fakeBuffer {
		return &fakeBuffer{size: size, released: released}
	}), released
}

func TestClassify(t *testing.T) {
	assert.Equal(t, smallClass, classify(4))
	assert.Equal(t, mediumClass, classify(smallThreshold))
	assert.Equal(t, largeClass, classify(mediumThreshold))
}

func TestPoolReuse(t *testing.T) {
	pool, _ := newFakePool()

	b1, size := pool.acquire(1024)
	assert.Equal(t, uint64(1024), size)
	pool.release(b1, size)

	// A smaller request in the same class reuses the larger buffer.
	b2, size := pool.acquire(512)
	assert.Same(t, b1, b2)
	assert.Equal(t, uint64(1024), size)

	stats := pool.snapshot()
	assert.Equal(t, uint64(1), stats.Allocated)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1024), stats.LiveBytes)
	assert.Zero(t, stats.Pooled)
}

func TestPoolDoesNotCrossClasses(t *testing.T) {
	pool, _ := newFakePool()
	big, size := pool.acquire(2 * mediumThreshold)
	pool.release(big, size)

	small, _ := pool.acquire(16)
	assert.NotSame(t, big, small)
	assert.Equal(t, 1, pool.snapshot().Pooled)
}

func TestPoolOverflowAndClear(t *testing.T) {
	pool, released := newFakePool()
	buffers := make([]*fakeBuffer, maxPoolSize+3)
	for i := range buffers {
		buffers[i], _ = pool.acquire(64)
	}
	assert.Equal(t, uint64(len(buffers)*64), pool.snapshot().PeakBytes)
	for _, b := range buffers {
		pool.release(b, 64)
	}
	assert.Equal(t, 3, *released)
	assert.Equal(t, maxPoolSize, pool.snapshot().Pooled)
	assert.Zero(t, pool.snapshot().LiveBytes)

	pool.clear()
	assert.Equal(t, maxPoolSize+3, *released)
	assert.Zero(t, pool.snapshot().Pooled)
}

func TestCodecRoundTrip(t *testing.T) {
	data := []float64{0, 1.5, -2.25, 1e-3, 3e38}
	buf := make([]byte, bufferSize(len(data)))
	encode(buf, data)

	got := make([]float64, len(data))
	require.NoError(t, decode(got, buf))
	for i := range data {
		assert.Equal(t, float64(float32(data[i])), got[i], "element %d", i)
	}

	assert.Error(t, decode(make([]float64, 10), buf))
}

func TestBufferSize(t *testing.T) {
	assert.Equal(t, uint64(4), bufferSize(0))
	assert.Equal(t, uint64(12), bufferSize(3))
}

func TestPoolStatsString(t *testing.T) {
	s := PoolStats{Allocated: 1200, Hits: 3, Misses: 1, Pooled: 2, LiveBytes: 2048, PeakBytes: 1 << 20}
	assert.Equal(t, "2.0 KiB live (peak 1.0 MiB), 1,200 buffers allocated, 3/4 pool hits, 2 pooled", s.String())
}

func TestRegister(t *testing.T) {
	s, err := Register()
	if err != nil {
		assert.ErrorIs(t, err, ErrUnavailable)
		assert.False(t, IsAvailable())
		t.Skipf("webgpu unavailable: %v", err)
	}
	defer s.Close()
	defer tensor.UnregisterStore(tensor.WebGPU)

	m := tensor.FromRows([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, m.MoveTo(tensor.WebGPU))
	got, err := m.MirrorData()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, got)
	require.NoError(t, m.MoveTo(tensor.CPU))
}
