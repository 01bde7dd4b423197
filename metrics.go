package alligator

import "sync/atomic"

// FabricMetrics tracks process-wide allocator lifecycle counters.
type FabricMetrics struct {
	allocations   atomic.Uint64
	deallocations atomic.Uint64
	growths       atomic.Uint64
	chainLinks    atomic.Uint64
}

// NewFabricMetrics creates a zeroed metrics instance.
func NewFabricMetrics() *FabricMetrics { return &FabricMetrics{} }

// RecordChainLink is called by the Chain Protocol whenever a successor is
// successfully installed (not on CAS losers).
func (m *FabricMetrics) RecordChainLink() { m.chainLinks.Add(1) }

// FabricMetricsSnapshot is a point-in-time copy of FabricMetrics, safe to
// retain and compare across time.
type FabricMetricsSnapshot struct {
	Allocations   uint64
	Deallocations uint64
	Growths       uint64
	ChainLinks    uint64
	LiveBuffers   uint64
}

// Snapshot returns the current counter values. LiveBuffers is derived
// (Allocations - Deallocations) rather than tracked separately.
func (m *FabricMetrics) Snapshot() FabricMetricsSnapshot {
	allocs := m.allocations.Load()
	deallocs := m.deallocations.Load()
	live := uint64(0)
	if allocs > deallocs {
		live = allocs - deallocs
	}
	return FabricMetricsSnapshot{
		Allocations:   allocs,
		Deallocations: deallocs,
		Growths:       m.growths.Load(),
		ChainLinks:    m.chainLinks.Load(),
		LiveBuffers:   live,
	}
}

// NetworkStats is the read-only snapshot every network buffer exposes
//: six monotonic u64 counters, reset only on deallocation.
type NetworkStats struct {
	BytesSent        uint64
	BytesReceived    uint64
	PacketsSent      uint64
	PacketsReceived  uint64
	Errors           uint64
	Drops            uint64
}

// networkCounters is the live atomic backing for NetworkStats, embedded
// in every network buffer variant.
type networkCounters struct {
	bytesSent       atomic.Uint64
	bytesReceived   atomic.Uint64
	packetsSent     atomic.Uint64
	packetsReceived atomic.Uint64
	errors          atomic.Uint64
	drops           atomic.Uint64
}

func (c *networkCounters) snapshot() NetworkStats {
	return NetworkStats{
		BytesSent:       c.bytesSent.Load(),
		BytesReceived:   c.bytesReceived.Load(),
		PacketsSent:     c.packetsSent.Load(),
		PacketsReceived: c.packetsReceived.Load(),
		Errors:          c.errors.Load(),
		Drops:           c.drops.Load(),
	}
}

// Observer allows pluggable collection of fabric-wide events: an
// Observer/NoOpObserver split so callers can wire metrics into Prometheus
// or any other sink without the core depending on one.
type Observer interface {
	ObserveAllocate(kind Kind, capacity int64)
	ObserveDeallocate(kind Kind, id uint32)
	ObserveChainLink(kind Kind, predecessor, successor uint32)
	ObserveNetworkSend(id uint32, bytes int, err error)
	ObserveNetworkReceive(id uint32, bytes int, err error)
}

// NoOpObserver discards every event. The Fabric itself holds no Observer
// and does not call one.
type NoOpObserver struct{}

func (NoOpObserver) ObserveAllocate(Kind, int64)                {}
func (NoOpObserver) ObserveDeallocate(Kind, uint32)              {}
func (NoOpObserver) ObserveChainLink(Kind, uint32, uint32)       {}
func (NoOpObserver) ObserveNetworkSend(uint32, int, error)       {}
func (NoOpObserver) ObserveNetworkReceive(uint32, int, error)    {}

// MetricsObserver forwards allocate/deallocate/chain events into a
// FabricMetrics. Network send/receive events are already counted
// per-buffer in networkCounters, so this observer only aggregates the
// fabric-wide lifecycle counters.
type MetricsObserver struct {
	metrics *FabricMetrics
}

// NewMetricsObserver wraps m as an Observer.
func NewMetricsObserver(m *FabricMetrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveAllocate(Kind, int64)   { o.metrics.allocations.Add(1) }
func (o *MetricsObserver) ObserveDeallocate(Kind, uint32) { o.metrics.deallocations.Add(1) }
func (o *MetricsObserver) ObserveChainLink(Kind, uint32, uint32) {
	o.metrics.RecordChainLink()
}
func (o *MetricsObserver) ObserveNetworkSend(uint32, int, error)    {}
func (o *MetricsObserver) ObserveNetworkReceive(uint32, int, error) {}

var (
	_ Observer = (*NoOpObserver)(nil)
	_ Observer = (*MetricsObserver)(nil)
)
