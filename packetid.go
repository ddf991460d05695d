package mqttiot

import (
	"errors"
	"sync"
)

var (
	ErrPacketIDExhausted = errors.New("no available packet identifiers")
	ErrPacketIDNotFound  = errors.New("packet identifier not found")
)

// PacketIdentifierAllocator manages allocation and release of the packet
// identifiers (1-65535) a connection stamps on PUBLISH (QoS>0), SUBSCRIBE
// and UNSUBSCRIBE packets. Zero is never allocated — it is reserved by
// the protocol to mean "no packet identifier".
type PacketIdentifierAllocator struct {
	mu     sync.Mutex
	used   map[uint16]struct{}
	next   uint16
	maxIDs int
}

// NewPacketIdentifierAllocator creates a new allocator.
func NewPacketIdentifierAllocator() *PacketIdentifierAllocator {
	return &PacketIdentifierAllocator{
		used:   make(map[uint16]struct{}),
		next:   1,
		maxIDs: 65535,
	}
}

// Allocate returns the next available packet identifier.
func (m *PacketIdentifierAllocator) Allocate() (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.used) >= m.maxIDs {
		return 0, ErrPacketIDExhausted
	}

	start := m.next
	for {
		if _, ok := m.used[m.next]; !ok {
			id := m.next
			m.used[id] = struct{}{}
			m.next++
			if m.next == 0 {
				m.next = 1
			}
			return id, nil
		}
		m.next++
		if m.next == 0 {
			m.next = 1
		}
		if m.next == start {
			return 0, ErrPacketIDExhausted
		}
	}
}

// Release releases a packet identifier for reuse.
func (m *PacketIdentifierAllocator) Release(id uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.used[id]; !ok {
		return ErrPacketIDNotFound
	}
	delete(m.used, id)
	return nil
}

// IsUsed returns true if the packet identifier is currently in use.
func (m *PacketIdentifierAllocator) IsUsed(id uint16) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.used[id]
	return ok
}

// InUse returns the count of packet identifiers currently in use.
func (m *PacketIdentifierAllocator) InUse() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.used)
}
