package alligator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFabric(t *testing.T) *Fabric {
	t.Helper()
	cfg := DefaultFabricConfig()
	cfg.GCIntervalMS = 1
	f := NewFabric(cfg)
	t.Cleanup(f.Shutdown)
	return f
}

func TestFabric_AllocateAndGetBuffer(t *testing.T) {
	f := testFabric(t)
	buf, err := f.AllocateHeap(128)
	require.NoError(t, err)
	require.NotZero(t, buf.ID())

	got := f.GetBuffer(buf.ID())
	require.NotNil(t, got)
	assert.Equal(t, buf.ID(), got.ID())
}

func TestFabric_GetBuffer_UnknownID(t *testing.T) {
	f := testFabric(t)
	assert.Nil(t, f.GetBuffer(0xDEADBEEF))
}

func TestFabric_ClearBuffer_ThenReclaimed(t *testing.T) {
	f := testFabric(t)
	buf, err := f.AllocateHeap(64)
	require.NoError(t, err)

	require.NoError(t, f.ClearBuffer(buf.ID()))
	assert.Eventually(t, func() bool {
		return f.GetBuffer(buf.ID()) == nil || f.Metrics().Snapshot().Deallocations > 0
	}, defaultEventuallyTimeout, defaultEventuallyTick)
}

func TestFabric_ClearBuffer_UnknownID(t *testing.T) {
	f := testFabric(t)
	err := f.ClearBuffer(0xDEADBEEF)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindNotFound))
}

func TestFabric_PinDefersReclamation(t *testing.T) {
	f := testFabric(t)
	buf, err := f.AllocateHeap(64)
	require.NoError(t, err)

	pin := buf.Pin()
	require.NoError(t, f.ClearBuffer(buf.ID()))

	// Give the reclaimer a few cycles to (incorrectly) collect it.
	assert.Never(t, func() bool {
		return f.GetBuffer(buf.ID()) == nil
	}, 20*defaultEventuallyTick, defaultEventuallyTick)

	pin.Release()
	assert.Eventually(t, func() bool {
		return f.GetBuffer(buf.ID()) == nil
	}, defaultEventuallyTimeout, defaultEventuallyTick)
}

func TestFabric_GrowsBeyondInitialSize(t *testing.T) {
	cfg := DefaultFabricConfig()
	cfg.GCIntervalMS = 50
	f := NewFabric(cfg)
	t.Cleanup(f.Shutdown)

	for i := 0; i < InitialRegistrySize+8; i++ {
		_, err := f.AllocateHeap(1)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, f.Metrics().Snapshot().Growths, uint64(1))
}

func TestFabric_Register_RejectsAtMaxSize(t *testing.T) {
	cfg := DefaultFabricConfig()
	cfg.MaxBufferBit = MinMaxBufferBit
	cfg.GCIntervalMS = 50
	f := NewFabric(cfg)
	t.Cleanup(f.Shutdown)

	maxSize := uint32(1) << uint(MinMaxBufferBit)
	for i := uint32(0); i < maxSize; i++ {
		_, err := f.AllocateHeap(1)
		require.NoError(t, err)
	}

	_, err := f.AllocateHeap(1)
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrKindOutOfMemory))
}

func TestFabric_Shutdown_DeallocatesLiveBuffers(t *testing.T) {
	cfg := DefaultFabricConfig()
	cfg.GCIntervalMS = 50
	f := NewFabric(cfg)

	_, err := f.AllocateHeap(32)
	require.NoError(t, err)
	before := f.Metrics().Snapshot().Deallocations

	f.Shutdown()
	assert.Greater(t, f.Metrics().Snapshot().Deallocations, before)
}
