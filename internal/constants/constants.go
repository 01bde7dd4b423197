// Package constants holds the fabric's build-time and runtime defaults.
package constants

import "time"

// Registry sizing. MAX_BUFFER_BIT must be in [10, 30] and governs how large
// the slot array is allowed to grow. The wire id format is narrower: bit 31
// is the valid flag and only bits 0-21 carry the slot index (IDIndexBits),
// so the registry's effective ceiling is min(2^MaxBufferBit, 2^IDIndexBits)
// regardless of how high MaxBufferBit is configured.
const (
	// DefaultMaxBufferBit is the default MAX_BUFFER_BIT (2^22 ≈ 4.2M slots).
	DefaultMaxBufferBit = 22

	// MinMaxBufferBit and MaxMaxBufferBit bound the configurable range.
	MinMaxBufferBit = 10
	MaxMaxBufferBit = 30

	// IDIndexBits is the number of low bits of a buffer id that carry the
	// registry slot index.
	IDIndexBits = 22

	// InitialRegistrySize is the number of slots the registry starts with
	// before any doubling growth.
	InitialRegistrySize = 1024
)

// Reclaimer defaults.
const (
	// DefaultGCIntervalMS is the default Reclaimer cycle interval.
	DefaultGCIntervalMS = 5

	// DefaultGCInterval is DefaultGCIntervalMS as a time.Duration.
	DefaultGCInterval = DefaultGCIntervalMS * time.Millisecond
)

// Buffer sizing defaults.
const (
	// DefaultCapacityClass is the chain successor capacity used when the
	// caller's reservation doesn't dictate a larger one.
	DefaultCapacityClass = 64 * 1024

	// SharedHeaderSize is the fixed size of the shared-memory segment
	// header (ref_count u32, total_size u64, version u32, create_time u64,
	// creator_name [256]byte) per
	SharedHeaderSize = 4 + 8 + 4 + 8 + 256

	// SharedCreatorNameSize is the size of the creator_name field within
	// the shared-memory header.
	SharedCreatorNameSize = 256

	// SharedSegmentVersion is the header layout version this build writes.
	SharedSegmentVersion = 1
)

// Network defaults.
const (
	// DefaultConnectTimeout bounds connect() when the caller supplies none.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultReceiveQueueDepth is the default capacity of a network
	// buffer's receive descriptor FIFO before drop-newest kicks in.
	DefaultReceiveQueueDepth = 256
)
