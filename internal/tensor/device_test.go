package tensor

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	device    Device
	allocated int
	released  int
	failAlloc bool
}

type memoryMirror struct {
	store *memoryStore
	buf   []float64
	freed bool
}

func (s *memoryStore) Device() Device { return s.device }

func (s *memoryStore) Allocate(n int) (Mirror, error) {
	if s.failAlloc {
		return nil, errors.New("out of device memory")
	}
	s.allocated++
	return &memoryMirror{store: s, buf: make([]float64, n)}, nil
}

func (m *memoryMirror) Upload(data []float64) error {
	copy(m.buf, data)
	return nil
}

func (m *memoryMirror) Download(dst []float64) error {
	copy(dst, m.buf)
	return nil
}

func (m *memoryMirror) Release() {
	if !m.freed {
		m.freed = true
		m.store.released++
	}
}

func TestDeviceString(t *testing.T) {
	assert.Equal(t, "CPU", CPU.String())
	assert.Equal(t, "WebGPU", WebGPU.String())
	assert.Equal(t, "Unknown", Device(42).String())
	assert.True(t, CPU.IsHost())
	assert.False(t, Metal.IsHost())
}

func TestMoveToWithoutStore(t *testing.T) {
	m := FromRows([][]float64{{1, 2}})
	err := m.MoveTo(Vulkan)
	require.Error(t, err)
	assert.Equal(t, CPU, m.Device())
}

func TestMoveToRoundTrip(t *testing.T) {
	store := &memoryStore{device: Metal}
	require.NoError(t, RegisterStore(store))
	defer UnregisterStore(Metal)

	m := FromRows([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, m.MoveTo(Metal))
	require.NoError(t, m.MoveTo(Metal), "idempotent")
	assert.Equal(t, Metal, m.Device())
	assert.Equal(t, 1, store.allocated)

	// Clone keeps placement in its own mirror.
	c := m.Clone()
	assert.Equal(t, Metal, c.Device())
	assert.Equal(t, 2, store.allocated)

	// A reshape re-allocates on the same device.
	c.Resize(3, 3)
	assert.Equal(t, Metal, c.Device())
	assert.Equal(t, 1, store.released)

	require.NoError(t, m.MoveTo(CPU))
	assert.Equal(t, CPU, m.Device())
	assert.Equal(t, 4.0, m.At(1, 1))
	assert.Equal(t, 2, store.released)
}

func TestMoveToAllocationFailure(t *testing.T) {
	store := &memoryStore{device: CUDA, failAlloc: true}
	require.NoError(t, RegisterStore(store))
	defer UnregisterStore(CUDA)

	m := New(2, 2)
	err := m.MoveTo(CUDA)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of device memory")
	assert.Equal(t, CPU, m.Device())
}

func TestRegisterStoreRejectsCPU(t *testing.T) {
	assert.Error(t, RegisterStore(&memoryStore{device: CPU}))
}

func TestViewsCannotMove(t *testing.T) {
	m := New(2, 2)
	assert.Error(t, m.ColumnSlice(0, 1).MoveTo(WebGPU))
}

func TestMirrorData(t *testing.T) {
	store := &memoryStore{device: Vulkan}
	require.NoError(t, RegisterStore(store))
	defer UnregisterStore(Vulkan)

	m := FromRows([][]float64{{1, 2}, {3, 4}})
	data, err := m.MirrorData()
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, m.MoveTo(Vulkan))
	m.Set(0, 0, 9)
	data, err = m.MirrorData()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, data, "stale until Sync")

	require.NoError(t, m.Sync())
	data, err = m.MirrorData()
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 2, 3, 4}, data)
}
