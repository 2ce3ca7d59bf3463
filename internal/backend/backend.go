// Package backend provides the one numeric surface every kernel and
// estimator is written against. Two concrete implementations exist: the
// CPU backend in backend/cpu (always available) and an accelerator
// backend registered by backend/accel when that package is imported. A
// runtime flag (Backend.Name) exposes which one is active; callers never
// branch on it.
package backend

import (
	"sync"
	"sync/atomic"

	"github.com/secondsight/rfengine/internal/apperr"
)

// Backend is the abstract numeric surface. Every method accepts and
// returns host-owned Go slices; no implementation retains device-side
// state between calls (per the contract in spec §4.1).
type Backend interface {
	Name() string
	Available() bool

	FFT(in []complex128) []complex128
	BatchFFT(in [][]complex128) [][]complex128
	FFTShift(in []complex128) []complex128
	FFTShiftReal(in []float32) []float32

	Magnitude(in []complex128) []float32
	Angle(in []complex128) []float32
	Conj(in []complex128) []complex128
	Unwrap(phase []float32) []float32

	Sum(in []float32) float64
	Mean(in []float32) float64
	Max(in []float32) float32
	Var(in []float32) float64

	Convolve(a []complex64, taps []complex64) []complex64
	Gather(src []complex64, outer []int, stride, inner int) [][]complex64

	Window(name string, length int) ([]float32, error)

	Streams() *StreamPool
	Memory() *MemoryPool
}

// NewAccelBackendFunc is populated by backend/accel's init() when that
// package is imported, mirroring the teacher's NewLatencyModelFunc
// registration-by-blank-import pattern. Left nil means no accelerator
// package was linked in.
var NewAccelBackendFunc func(numStreams int) (Backend, error)

// Select picks a backend according to the caller's preference. If
// preferGPU is true and an accelerator backend is registered and
// available, it is returned. If preferGPU is true, no accelerator is
// available, and allowFallback is false, an apperr error of kind Backend
// is returned (BackendUnavailable per spec §4.1/§7). Otherwise the CPU
// backend is returned.
func Select(preferGPU bool, allowFallback bool, numStreams int, cpuFactory func(int) Backend) (Backend, error) {
	if preferGPU && NewAccelBackendFunc != nil {
		accel, err := NewAccelBackendFunc(numStreams)
		if err == nil && accel.Available() {
			return accel, nil
		}
		if !allowFallback {
			return nil, apperr.Backendf("GPU backend unavailable and fallback disabled")
		}
	} else if preferGPU && !allowFallback {
		return nil, apperr.Backendf("GPU backend requested but no accelerator is registered")
	}
	return cpuFactory(numStreams), nil
}

// StreamPool hands out a fixed number of stream handles round-robin under
// a lock, matching spec §4.1's CUDAStreamPool.
type StreamPool struct {
	n    int
	mu   sync.Mutex
	next int
}

// StreamHandle is an opaque reference to one of the pool's streams.
type StreamHandle int

func NewStreamPool(n int) *StreamPool {
	if n <= 0 {
		n = 1
	}
	return &StreamPool{n: n}
}

// Borrow returns the next stream handle, round-robin.
func (p *StreamPool) Borrow() StreamHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := StreamHandle(p.next)
	p.next = (p.next + 1) % p.n
	return h
}

// WithStream borrows a stream for the duration of fn, yielding it
// implicitly on return — the Go equivalent of stream_context.
func (p *StreamPool) WithStream(fn func(StreamHandle)) {
	fn(p.Borrow())
}

// Size reports the pool's stream count.
func (p *StreamPool) Size() int { return p.n }

// MemoryPool accounts host-side allocations reported through Note so the
// 80%-utilization auto-cleanup rule in spec §3/§4.1 can be enforced
// without a real device allocator underneath it. The kernels in this
// module do not call Note, so usage grows only when a caller records it.
type MemoryPool struct {
	used     int64
	capacity int64
	onEvict  func()
}

func NewMemoryPool(capacity int64, onEvict func()) *MemoryPool {
	if capacity <= 0 {
		capacity = 1 << 30 // 1 GiB default budget
	}
	return &MemoryPool{capacity: capacity, onEvict: onEvict}
}

// Note records bytes allocated by a kernel and triggers Cleanup if usage
// crosses the 80% threshold.
func (m *MemoryPool) Note(bytes int64) {
	used := atomic.AddInt64(&m.used, bytes)
	if float64(used) > 0.8*float64(m.capacity) {
		m.Cleanup()
	}
}

// Cleanup releases all accounted usage and clears the window cache via
// onEvict, matching the GPU processor's cleanup() contract.
func (m *MemoryPool) Cleanup() {
	atomic.StoreInt64(&m.used, 0)
	if m.onEvict != nil {
		m.onEvict()
	}
}

// Used and Capacity report current accounting, consumed by the "memory"
// command.
func (m *MemoryPool) Used() int64     { return atomic.LoadInt64(&m.used) }
func (m *MemoryPool) Capacity() int64 { return m.capacity }

// WindowCache caches window taps per (name, length), created on first
// demand and living for the backend's process lifetime.
type WindowCache struct {
	mu    sync.Mutex
	taps  map[windowKey][]float32
	build func(name string, length int) ([]float32, error)
}

type windowKey struct {
	name   string
	length int
}

func NewWindowCache(build func(name string, length int) ([]float32, error)) *WindowCache {
	return &WindowCache{taps: make(map[windowKey][]float32), build: build}
}

func (c *WindowCache) Get(name string, length int) ([]float32, error) {
	key := windowKey{name, length}
	c.mu.Lock()
	defer c.mu.Unlock()
	if taps, ok := c.taps[key]; ok {
		return taps, nil
	}
	taps, err := c.build(name, length)
	if err != nil {
		return nil, err
	}
	c.taps[key] = taps
	return taps, nil
}

// Clear drops every cached window, used by MemoryPool.Cleanup.
func (c *WindowCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taps = make(map[windowKey][]float32)
}
