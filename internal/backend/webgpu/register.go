package webgpu

import (
	"github.com/born-ml/criterion/internal/tensor"
	"k8s.io/klog/v2"
)

// Register opens a Store and installs it as the tensor.WebGPU mirror store.
// The caller closes the store after unregistering it.
func Register() (*Store, error) {
	s, err := NewStore()
	if err != nil {
		klog.V(1).Infof("webgpu: %v", err)
		return nil, err
	}
	if err := tensor.RegisterStore(s); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// IsAvailable reports whether a WebGPU device can be opened.
func IsAvailable() bool {
	s, err := NewStore()
	if err != nil {
		return false
	}
	s.Close()
	return true
}
