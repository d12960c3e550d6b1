// Package webgpu provides a tensor.MirrorStore that keeps float32 mirrors of
// criterion scratch buffers in WebGPU storage buffers.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
package webgpu

import "sync"

// sizeClass groups buffers for reuse.
type sizeClass int

const (
	smallClass sizeClass = iota // < 4KB
	mediumClass                 // 4KB-1MB
	largeClass                  // > 1MB
	numClasses
)

const (
	smallThreshold  = 4 * 1024    // 4KB
	mediumThreshold = 1024 * 1024 // 1MB
	maxPoolSize     = 100         // Max buffers per class
)

func classify(size uint64) sizeClass {
	if size < smallThreshold {
		return smallClass
	}
	if size < mediumThreshold {
		return mediumClass
	}
	return largeClass
}

type releaser interface {
	Release()
}

type pooled[B releaser] struct {
	buffer B
	size   uint64
}

// bufferPool recycles device buffers by size class. A pooled buffer is reused
// for any request it is at least as large as.
type bufferPool[B releaser] struct {
	create func(size uint64) B

	mu      sync.Mutex
	classes [numClasses][]pooled[B]
	stats   PoolStats
}

func newBufferPool[B releaser](create func(size uint64) B) *bufferPool[B] {
	return &bufferPool[B]{create: create}
}

// acquire returns a pooled buffer of at least size bytes, or a new one, with
// the buffer's actual size.
func (p *bufferPool[B]) acquire(size uint64) (B, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := classify(size)
	for i, pb := range p.classes[c] {
		if pb.size >= size {
			p.classes[c] = append(p.classes[c][:i], p.classes[c][i+1:]...)
			p.stats.Hits++
			p.track(pb.size)
			return pb.buffer, pb.size
		}
	}
	p.stats.Misses++
	p.stats.Allocated++
	p.track(size)
	return p.create(size), size
}

func (p *bufferPool[B]) track(size uint64) {
	p.stats.LiveBytes += size
	p.stats.PeakBytes = max(p.stats.PeakBytes, p.stats.LiveBytes)
}

// release returns a buffer to its class, or frees it if the class is full.
// size is the one acquire reported.
func (p *bufferPool[B]) release(buffer B, size uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Released++
	p.stats.LiveBytes -= size
	c := classify(size)
	if len(p.classes[c]) >= maxPoolSize {
		buffer.Release()
		return
	}
	p.classes[c] = append(p.classes[c], pooled[B]{buffer: buffer, size: size})
}

// clear frees every pooled buffer.
func (p *bufferPool[B]) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for c := range p.classes {
		for _, pb := range p.classes[c] {
			pb.buffer.Release()
		}
		p.classes[c] = nil
	}
}

func (p *bufferPool[B]) snapshot() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	for c := range p.classes {
		s.Pooled += len(p.classes[c])
	}
	return s
}
