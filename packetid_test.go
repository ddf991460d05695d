package mqttiot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketIdentifierAllocatorAllocatesSequentially(t *testing.T) {
	a := NewPacketIdentifierAllocator()

	first, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), first)

	second, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), second)
}

func TestPacketIdentifierAllocatorSkipsInUseIDs(t *testing.T) {
	a := NewPacketIdentifierAllocator()

	first, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), first)

	second, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), second)

	require.NoError(t, a.Release(first))

	third, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint16(3), third, "allocation continues past the freed slot rather than reusing it immediately")

	assert.True(t, a.IsUsed(second))
	assert.False(t, a.IsUsed(first))
}

func TestPacketIdentifierAllocatorWrapsAroundSkippingZero(t *testing.T) {
	a := NewPacketIdentifierAllocator()
	a.next = 65535

	id, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint16(65535), id)

	// next wrapped past zero (reserved by the protocol) straight to 1.
	next, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), next)
}

func TestPacketIdentifierAllocatorExhausted(t *testing.T) {
	a := NewPacketIdentifierAllocator()
	a.maxIDs = 2
	a.used[1] = struct{}{}
	a.used[2] = struct{}{}

	_, err := a.Allocate()
	assert.ErrorIs(t, err, ErrPacketIDExhausted)
}

func TestPacketIdentifierAllocatorReleaseUnknown(t *testing.T) {
	a := NewPacketIdentifierAllocator()
	err := a.Release(42)
	assert.ErrorIs(t, err, ErrPacketIDNotFound)
}

func TestPacketIdentifierAllocatorInUseCount(t *testing.T) {
	a := NewPacketIdentifierAllocator()
	assert.Equal(t, 0, a.InUse())

	id, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, 1, a.InUse())

	require.NoError(t, a.Release(id))
	assert.Equal(t, 0, a.InUse())
}
