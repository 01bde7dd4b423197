package alligator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFabricMetrics_Snapshot(t *testing.T) {
	m := NewFabricMetrics()
	snap := m.Snapshot()
	assert.Zero(t, snap.Allocations)
	assert.Zero(t, snap.LiveBuffers)

	m.allocations.Add(3)
	m.deallocations.Add(1)
	m.RecordChainLink()
	m.growths.Add(2)

	snap = m.Snapshot()
	assert.Equal(t, uint64(3), snap.Allocations)
	assert.Equal(t, uint64(1), snap.Deallocations)
	assert.Equal(t, uint64(2), snap.LiveBuffers)
	assert.Equal(t, uint64(1), snap.ChainLinks)
	assert.Equal(t, uint64(2), snap.Growths)
}

func TestNetworkCounters_Snapshot(t *testing.T) {
	var c networkCounters
	c.bytesSent.Add(100)
	c.bytesReceived.Add(50)
	c.packetsSent.Add(2)
	c.packetsReceived.Add(1)
	c.errors.Add(1)
	c.drops.Add(1)

	snap := c.snapshot()
	assert.Equal(t, NetworkStats{
		BytesSent:       100,
		BytesReceived:   50,
		PacketsSent:     2,
		PacketsReceived: 1,
		Errors:          1,
		Drops:           1,
	}, snap)
}

func TestNoOpObserver_DoesNotPanic(t *testing.T) {
	o := NoOpObserver{}
	o.ObserveAllocate(Heap, 1024)
	o.ObserveDeallocate(Heap, 1)
	o.ObserveChainLink(Heap, 1, 2)
	o.ObserveNetworkSend(1, 10, nil)
	o.ObserveNetworkReceive(1, 10, nil)
}

func TestMetricsObserver_ForwardsLifecycleEvents(t *testing.T) {
	m := NewFabricMetrics()
	o := NewMetricsObserver(m)

	o.ObserveAllocate(Heap, 1024)
	o.ObserveAllocate(Heap, 1024)
	o.ObserveDeallocate(Heap, 1)
	o.ObserveChainLink(Heap, 1, 2)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.Allocations)
	assert.Equal(t, uint64(1), snap.Deallocations)
	assert.Equal(t, uint64(1), snap.ChainLinks)
}
