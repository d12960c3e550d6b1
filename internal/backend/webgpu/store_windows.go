//go:build windows

package webgpu

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/born-ml/criterion/internal/tensor"
	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const mirrorUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// Store allocates mirrors in WebGPU storage buffers.
type Store struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	info     wgpu.AdapterInfo

	pool *bufferPool[*wgpu.Buffer]

	// queueMu serializes submissions and buffer mapping.
	queueMu sync.Mutex
}

// NewStore opens the default high-performance adapter. It fails with
// ErrUnavailable when the native library or an adapter is missing.
func NewStore() (store *Store, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			store = nil
			err = errors.Wrapf(ErrUnavailable, "native library: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, errors.Wrapf(ErrUnavailable, "request adapter: %v", err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrapf(ErrUnavailable, "request device: %v", err)
	}
	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(ErrUnavailable, "no device queue")
	}

	s := &Store{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    queue,
		info:     adapter.GetInfo(),
	}
	s.pool = newBufferPool(func(size uint64) *wgpu.Buffer {
		return s.device.CreateBuffer(&wgpu.BufferDescriptor{Usage: mirrorUsage, Size: size})
	})
	klog.V(1).Infof("webgpu: opened %s", s.Name())
	return s, nil
}

// Name describes the adapter.
func (s *Store) Name() string {
	return fmt.Sprintf("WebGPU (%s %s)", s.info.Name, s.info.VendorName)
}

// Device implements tensor.MirrorStore.
func (s *Store) Device() tensor.Device { return tensor.WebGPU }

// Allocate implements tensor.MirrorStore.
func (s *Store) Allocate(numElements int) (tensor.Mirror, error) {
	buffer, size := s.pool.acquire(bufferSize(numElements))
	return &mirror{store: s, buffer: buffer, size: size, n: numElements}, nil
}

// Stats returns the buffer pool counters.
func (s *Store) Stats() PoolStats { return s.pool.snapshot() }

// Close frees pooled buffers and the device. Mirrors still alive must not be
// used afterwards.
func (s *Store) Close() {
	klog.V(1).Infof("webgpu: closing, %s", s.Stats())
	s.pool.clear()
	s.queue.Release()
	s.device.Release()
	s.adapter.Release()
	s.instance.Release()
}

// upload writes data through a mapped staging buffer.
func (s *Store) upload(dst *wgpu.Buffer, data []float64) {
	size := bufferSize(len(data))
	staging := s.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageCopySrc,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	defer staging.Release()

	mapped := unsafe.Slice((*byte)(staging.GetMappedRange(0, size)), size)
	encode(mapped, data)
	staging.Unmap()

	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	encoder := s.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(staging, 0, dst, 0, size)
	s.queue.Submit(encoder.Finish(nil))
}

// download reads src back through a MapRead staging buffer.
func (s *Store) download(src *wgpu.Buffer, dst []float64) error {
	size := bufferSize(len(dst))
	staging := s.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	encoder := s.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	s.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(s.device, wgpu.MapModeRead, 0, size); err != nil {
		return errors.Wrap(err, "webgpu: map staging buffer")
	}
	defer staging.Unmap()
	return decode(dst, unsafe.Slice((*byte)(staging.GetMappedRange(0, size)), size))
}

type mirror struct {
	store  *Store
	buffer *wgpu.Buffer
	size   uint64
	n      int
}

func (m *mirror) Upload(data []float64) error {
	if m.buffer == nil {
		return errors.New("webgpu: upload to a released mirror")
	}
	if len(data) != m.n {
		return errors.Errorf("webgpu: upload of %d elements into a %d-element mirror", len(data), m.n)
	}
	if m.n > 0 {
		m.store.upload(m.buffer, data)
	}
	return nil
}

func (m *mirror) Download(dst []float64) error {
	if m.buffer == nil {
		return errors.New("webgpu: download from a released mirror")
	}
	if len(dst) != m.n {
		return errors.Errorf("webgpu: download of a %d-element mirror into %d elements", m.n, len(dst))
	}
	if m.n == 0 {
		return nil
	}
	return m.store.download(m.buffer, dst)
}

func (m *mirror) Release() {
	if m.buffer == nil {
		return
	}
	m.store.pool.release(m.buffer, m.size)
	m.buffer = nil
}
