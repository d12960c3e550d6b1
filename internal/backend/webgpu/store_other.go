//go:build !windows

package webgpu

import (
	"runtime"

	"github.com/born-ml/criterion/internal/tensor"
	"github.com/pkg/errors"
)

// Store is not available on this platform.
type Store struct{}

// NewStore always fails with ErrUnavailable on this platform.
func NewStore() (*Store, error) {
	return nil, errors.Wrapf(ErrUnavailable, "no bindings for %s", runtime.GOOS)
}

// Name describes the adapter.
func (s *Store) Name() string { return "WebGPU (unavailable)" }

// Device implements tensor.MirrorStore.
func (s *Store) Device() tensor.Device { return tensor.WebGPU }

// Allocate implements tensor.MirrorStore.
func (s *Store) Allocate(int) (tensor.Mirror, error) {
	return nil, errors.WithStack(ErrUnavailable)
}

// Stats returns the buffer pool counters.
func (s *Store) Stats() PoolStats { return PoolStats{} }

// Close is a no-op.
func (s *Store) Close() {}
