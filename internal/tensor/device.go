package tensor

import (
	"sync"

	"github.com/pkg/errors"
)

// Device represents the compute device a matrix is placed on.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	CUDA
	Vulkan
	Metal
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case Vulkan:
		return "Vulkan"
	case Metal:
		return "Metal"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// IsHost reports whether the device is host (CPU) memory.
func (d Device) IsHost() bool {
	return d == CPU
}

// Mirror is an accelerator-resident copy of a matrix buffer.
//
// Host memory stays authoritative for the float64 kernels in this package.
// The mirror is written on every transfer to its device and on Sync; moving
// back to the host only releases it.
type Mirror interface {
	// Upload copies data (row-major, float64) into the device buffer.
	Upload(data []float64) error

	// Download copies the device buffer into dst.
	Download(dst []float64) error

	// Release frees the device buffer. Safe to call more than once.
	Release()
}

// MirrorStore allocates mirrors on one accelerator device.
type MirrorStore interface {
	Device() Device
	Allocate(numElements int) (Mirror, error)
}

var (
	storesMu sync.RWMutex
	stores   = make(map[Device]MirrorStore)
)

// RegisterStore makes store the allocator for store.Device().
// Registering a store for CPU is an error.
func RegisterStore(store MirrorStore) error {
	if store.Device() == CPU {
		return errors.New("tensor: CPU does not take a mirror store")
	}
	storesMu.Lock()
	defer storesMu.Unlock()
	stores[store.Device()] = store
	return nil
}

// UnregisterStore removes the store registered for device, if any.
func UnregisterStore(device Device) {
	storesMu.Lock()
	defer storesMu.Unlock()
	delete(stores, device)
}

func storeFor(device Device) (MirrorStore, error) {
	storesMu.RLock()
	defer storesMu.RUnlock()
	s, ok := stores[device]
	if !ok {
		return nil, errors.Errorf("tensor: no mirror store registered for device %s", device)
	}
	return s, nil
}
