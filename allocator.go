package mqttiot

import (
	"errors"
	"sync"
)

// ErrAllocatorExhausted is returned by a bounded Allocator when it has no
// free buffer of the requested size.
var ErrAllocatorExhausted = errors.New("allocator: no buffer available")

// Allocator supplies the byte buffers a connection holds its encoded
// outgoing packets in; inbound bytes are buffered separately and do not
// come from it. The default is a thin wrapper over
// make(); a StaticPoolAllocator lets a constrained deployment (a gateway
// juggling many connections on fixed memory) bound total buffer memory
// instead of leaving it to the garbage collector.
type Allocator interface {
	// Alloc returns a buffer of at least size bytes.
	Alloc(size int) ([]byte, error)

	// Free returns a buffer obtained from Alloc. Implementations that do
	// not pool buffers may treat this as a no-op.
	Free(buf []byte)
}

// HeapAllocator allocates directly from the Go heap. It is the Runtime
// default and the right choice unless a process needs a hard ceiling on
// buffer memory.
type HeapAllocator struct{}

// NewHeapAllocator returns a HeapAllocator.
func NewHeapAllocator() *HeapAllocator { return &HeapAllocator{} }

// Alloc returns a freshly made slice of the requested size.
func (h *HeapAllocator) Alloc(size int) ([]byte, error) {
	return make([]byte, size), nil
}

// Free is a no-op; the garbage collector reclaims the slice.
func (h *HeapAllocator) Free(_ []byte) {}

// StaticPoolAllocator serves buffers from a fixed-count pool of equal-size
// slots, sized up front. Alloc fails with ErrAllocatorExhausted once every
// slot is checked out rather than growing — the point is a hard ceiling,
// matching the static-pool allocator option of the C SDK this module's
// wire behavior is modeled on.
type StaticPoolAllocator struct {
	mu       sync.Mutex
	slotSize int
	slots    [][]byte
	inUse    []bool
}

// NewStaticPoolAllocator creates a pool of count buffers, each slotSize
// bytes. Alloc requests larger than slotSize always fail.
func NewStaticPoolAllocator(count, slotSize int) *StaticPoolAllocator {
	slots := make([][]byte, count)
	for i := range slots {
		slots[i] = make([]byte, slotSize)
	}
	return &StaticPoolAllocator{
		slotSize: slotSize,
		slots:    slots,
		inUse:    make([]bool, count),
	}
}

// Alloc returns the first free slot, sliced down to size. It fails if no
// slot is free or size exceeds the pool's slot size.
func (p *StaticPoolAllocator) Alloc(size int) ([]byte, error) {
	if size > p.slotSize {
		return nil, ErrAllocatorExhausted
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i, used := range p.inUse {
		if !used {
			p.inUse[i] = true
			return p.slots[i][:size], nil
		}
	}
	return nil, ErrAllocatorExhausted
}

// Free returns buf's backing slot to the pool. buf must be a slice
// previously returned by Alloc on this pool; passing anything else is a
// programming error and is silently ignored.
func (p *StaticPoolAllocator) Free(buf []byte) {
	if buf == nil {
		return
	}

	if cap(buf) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	bufPtr := &buf[:cap(buf)][0]
	for i, slot := range p.slots {
		if cap(slot) == 0 {
			continue
		}
		if &slot[:cap(slot)][0] == bufPtr {
			clear(p.slots[i])
			p.inUse[i] = false
			return
		}
	}
}
