package alligator

import "github.com/joshmorgan1000/alligator/internal/constants"

// Re-exported registry and reclaimer defaults.
const (
	DefaultMaxBufferBit     = constants.DefaultMaxBufferBit
	MinMaxBufferBit         = constants.MinMaxBufferBit
	MaxMaxBufferBit         = constants.MaxMaxBufferBit
	InitialRegistrySize     = constants.InitialRegistrySize
	DefaultGCIntervalMS     = constants.DefaultGCIntervalMS
	DefaultCapacityClass    = constants.DefaultCapacityClass
	DefaultConnectTimeout   = constants.DefaultConnectTimeout
	DefaultReceiveQueueDepth = constants.DefaultReceiveQueueDepth
)

// Kind identifies which backend allocate() should construct.
type Kind int

const (
	Heap Kind = iota
	FileBacked
	Shared
	GPU
	TCP
	UDP
	QUIC
	Thunderbolt

	// AutoGPU resolves to a concrete memory type at allocation time
	// following the priority order documented on ResolveAutoGPU.
	AutoGPU
)

func (k Kind) String() string {
	switch k {
	case Heap:
		return "heap"
	case FileBacked:
		return "file-backed"
	case Shared:
		return "shared"
	case GPU:
		return "gpu"
	case TCP:
		return "tcp"
	case UDP:
		return "udp"
	case QUIC:
		return "quic"
	case Thunderbolt:
		return "thunderbolt"
	case AutoGPU:
		return "gpu-auto"
	default:
		return "unknown"
	}
}

// isNetwork reports whether k names one of the network transport kinds.
func (k Kind) isNetwork() bool {
	switch k {
	case TCP, UDP, QUIC, Thunderbolt:
		return true
	default:
		return false
	}
}
