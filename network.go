package alligator

import (
	"sync"
	"sync/atomic"

	"github.com/joshmorgan1000/alligator/internal/constants"
)

// OptimisationProfile selects the socket-option tuning an Endpoint
// prefers. TCP (and Thunderbolt) Connect applies it through
// applyTCPProfile: the latency, GPU-pipeline and neural-engine profiles
// enable TCP_NODELAY and the throughput profile disables it. No OS buffer
// sizes are set, and UDP and QUIC do not apply the profile.
type OptimisationProfile int

const (
	ProfileThroughput OptimisationProfile = iota
	ProfileLatency
	ProfileGPUPipeline
	ProfileNeuralEngine
)

func (p OptimisationProfile) String() string {
	switch p {
	case ProfileThroughput:
		return "throughput"
	case ProfileLatency:
		return "latency"
	case ProfileGPUPipeline:
		return "gpu-pipeline"
	case ProfileNeuralEngine:
		return "neural-engine"
	default:
		return "unknown"
	}
}

// Endpoint identifies a network peer or bind address.
// Immutable after connection start.
type Endpoint struct {
	Host      string
	Port      int
	Transport Kind
	Profile   OptimisationProfile
}

// NetState is the network buffer's connection state.
type NetState int32

const (
	StateIdle NetState = iota
	StateBinding
	StateListening
	StateConnecting
	StateReady
	StateClosing
	StateClosed
	StateFailed
)

func (s NetState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBinding:
		return "binding"
	case StateListening:
		return "listening"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RxDescriptor records one ingress event on a network buffer's receive
// queue: an offset/size into the buffer's own storage plus
// the sender, when known (UDP reports one; TCP/Thunderbolt and QUIC
// streams don't).
type RxDescriptor struct {
	Offset int64
	Size   int64
	Sender *Endpoint
}

// NetworkConfig carries the per-buffer transport tunables consumed by the
// core.
type NetworkConfig struct {
	Transport          Kind
	Optimisation       OptimisationProfile
	ZeroRTTEnabled     bool
	CongestionControl  string
	ReceiveQueueDepth  int
}

// DefaultNetworkConfig returns a throughput-profile configuration with the
// default receive queue depth.
func DefaultNetworkConfig(transport Kind) NetworkConfig {
	return NetworkConfig{
		Transport:         transport,
		Optimisation:      ProfileThroughput,
		ReceiveQueueDepth: constants.DefaultReceiveQueueDepth,
	}
}

// rxQueue is the mutex-guarded FIFO every network buffer owns. Overflow
// policy is drop-newest with a drop counter.
type rxQueue struct {
	mu    sync.Mutex
	items []RxDescriptor
	depth int
}

func newRxQueue(depth int) *rxQueue {
	if depth <= 0 {
		depth = constants.DefaultReceiveQueueDepth
	}
	return &rxQueue{depth: depth}
}

func (q *rxQueue) push(d RxDescriptor, drops *atomic.Uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.depth {
		drops.Add(1)
		return
	}
	q.items = append(q.items, d)
}

func (q *rxQueue) pop() (RxDescriptor, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return RxDescriptor{}, false
	}
	d := q.items[0]
	q.items = q.items[1:]
	return d, true
}

// networkBase is the common behaviour shared by TCP/UDP/QUIC/Thunderbolt
// buffers: the state machine, receive queue,
// statistics counters and the buffer's own storage that send()/receive()
// stage through. Each concrete variant embeds *networkBase and supplies
// its own Bind/Connect/Send/Receive/Poll built on a real net.Conn,
// net.PacketConn or quic.Connection.
type networkBase struct {
	*base
	cfg      NetworkConfig
	state    atomic.Int32
	counters networkCounters
	rx       *rxQueue
	storage  []byte
}

func newNetworkBase(f *Fabric, kind Kind, capacity int64, cfg NetworkConfig) *networkBase {
	cfg.Transport = kind
	nb := &networkBase{
		base:    newBase(f, kind, capacity, Flags{Local: true}),
		cfg:     cfg,
		rx:      newRxQueue(cfg.ReceiveQueueDepth),
		storage: make([]byte, capacity),
	}
	return nb
}

// State returns the current connection state.
func (nb *networkBase) State() NetState { return NetState(nb.state.Load()) }

func (nb *networkBase) setState(s NetState) { nb.state.Store(int32(s)) }

// transition performs the state change only if the current state is one
// of allowedFrom.
func (nb *networkBase) transition(to NetState, allowedFrom ...NetState) bool {
	cur := NetState(nb.state.Load())
	for _, from := range allowedFrom {
		if cur == from {
			return nb.state.CompareAndSwap(int32(from), int32(to))
		}
	}
	return false
}

// fail transitions to Failed from any state except Closed.
func (nb *networkBase) fail() {
	for {
		cur := NetState(nb.state.Load())
		if cur == StateClosed {
			return
		}
		if nb.state.CompareAndSwap(int32(cur), int32(StateFailed)) {
			if nb.fabric != nil {
				nb.fabric.logger.Warn("network buffer failed", "id", nb.ID(), "kind", nb.Kind().String(), "from", cur.String())
			}
			return
		}
	}
}

// Data returns the buffer's own local staging storage.
func (nb *networkBase) Data() ([]byte, error) { return nb.storage, nil }

// Span returns a bounded view over the buffer's own storage.
func (nb *networkBase) Span(offset, length int64) (Span, error) {
	return nb.span(nb.storage, offset, length)
}

// Clear fills the buffer's own storage with fill. Must not be called
// while pinned.
func (nb *networkBase) Clear(fill byte) error {
	if nb.pin.IsPinned() {
		return NewBufferError("clear", nb.ID(), ErrKindInvalidState, "buffer is pinned")
	}
	for i := range nb.storage {
		nb.storage[i] = fill
	}
	return nil
}

// GetRx dequeues the next receive descriptor without blocking. The bool return is false when the queue is empty.
func (nb *networkBase) GetRx() (RxDescriptor, bool) { return nb.rx.pop() }

// Stats returns a snapshot of the six monotonic counters.
func (nb *networkBase) Stats() NetworkStats { return nb.counters.snapshot() }

// enqueueRx appends a receive descriptor, applying the drop-newest
// overflow policy.
func (nb *networkBase) enqueueRx(offset, size int64, sender *Endpoint) {
	nb.rx.push(RxDescriptor{Offset: offset, Size: size, Sender: sender}, &nb.counters.drops)
}

// requireReady returns an InvalidState error unless the buffer is Ready
// (used by send/send_from on the client path).
func (nb *networkBase) requireReady(op string) error {
	if nb.State() != StateReady {
		return NewBufferError(op, nb.ID(), ErrKindInvalidState, "buffer is not ready")
	}
	return nil
}

// requireReadyOrListening returns an InvalidState error unless the buffer
// is Ready or Listening (used by receive/receive_into/poll on either
// path).
func (nb *networkBase) requireReadyOrListening(op string) error {
	switch nb.State() {
	case StateReady, StateListening:
		return nil
	default:
		return NewBufferError(op, nb.ID(), ErrKindInvalidState, "buffer is not ready or listening")
	}
}
