package alligator

// ThunderboltBuffer is behaviourally identical to TCPBuffer: it reuses the TCP state machine and socket
// plumbing wholesale. Its only distinguishing contract is a fixed
// optimisation profile and a preferred network interface hint a caller
// can use to bind to the right NIC on a multi-homed host; Go's net
// package has no portable interface-affinity dial option, so the hint is
// recorded for the caller/dialer to honour rather than enforced here.
type ThunderboltBuffer struct {
	*TCPBuffer
	preferredInterface string
}

// AllocateThunderbolt constructs and registers a ThunderboltBuffer with
// the fixed throughput optimisation profile Thunderbolt links are tuned
// for, and the given preferred interface name (e.g. "en5"), which may be
// empty to mean "no preference".
func (f *Fabric) AllocateThunderbolt(capacity int64, preferredInterface string) (*ThunderboltBuffer, error) {
	if capacity <= 0 {
		return nil, NewError("allocate", ErrKindInvalidArgument, "network capacity must be > 0")
	}
	cfg := DefaultNetworkConfig(Thunderbolt)
	cfg.Optimisation = ProfileThroughput
	tb := &ThunderboltBuffer{
		TCPBuffer:          &TCPBuffer{networkBase: newNetworkBase(f, Thunderbolt, capacity, cfg)},
		preferredInterface: preferredInterface,
	}
	if _, err := f.register(tb); err != nil {
		return nil, err
	}
	return tb, nil
}

// PreferredInterface returns the interface-type hint supplied at
// construction.
func (tb *ThunderboltBuffer) PreferredInterface() string { return tb.preferredInterface }

var _ Buffer = (*ThunderboltBuffer)(nil)
