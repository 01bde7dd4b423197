// Package interfaces provides internal contracts shared between the
// alligator package and its backend implementations. Kept separate from
// the public API to avoid an import cycle between the root package and
// the backend package that supplies concrete device implementations.
package interfaces

// MemoryType identifies where a GPU buffer's bytes actually live.
type MemoryType int

const (
	// DeviceLocal memory is only reachable by the device; the host must
	// map, upload or download to touch it.
	DeviceLocal MemoryType = iota
	// HostVisible memory can be mapped into host address space but isn't
	// guaranteed to be cache-coherent without an explicit sync.
	HostVisible
	// HostCoherent memory is host-visible and kept coherent with the
	// device automatically.
	HostCoherent
	// HostCached memory is host-visible, cached, and requires an explicit
	// flush/invalidate around device access.
	HostCached
	// Unified memory is addressable identically by host and device.
	Unified
)

// IsLocal reports whether the host may directly dereference memory of this
// type without an explicit map.
func (t MemoryType) IsLocal() bool {
	switch t {
	case HostVisible, HostCoherent, HostCached, Unified:
		return true
	default:
		return false
	}
}

// IsShared reports whether the memory type implies host/device visibility
// without any copy — only true unified memory qualifies.
func (t MemoryType) IsShared() bool {
	return t == Unified
}

func (t MemoryType) String() string {
	switch t {
	case DeviceLocal:
		return "device-local"
	case HostVisible:
		return "host-visible"
	case HostCoherent:
		return "host-coherent"
	case HostCached:
		return "host-cached"
	case Unified:
		return "unified"
	default:
		return "unknown"
	}
}

// AsyncCallback is invoked when an UploadAsync/DownloadAsync completes.
// It may run on a driver-internal goroutine, never the caller's.
type AsyncCallback func(success bool)

// Device is the contract every GPU backend variant (Metal, CUDA, Vulkan,
// or a host-memory simulation) must satisfy. The alligator GPU buffer is a
// thin adapter around one of these; concrete command encoding and device
// enumeration are out of scope for the fabric and live entirely
// behind this interface.
type Device interface {
	// MemoryType reports how this device's memory is addressed.
	MemoryType() MemoryType

	// Map establishes a host-visible view of [offset, offset+size) and
	// returns it. Calling Map again before Unmap returns the same slice.
	Map(offset, size int64) ([]byte, error)

	// Unmap releases the mapping established by Map. Dereferencing the
	// slice returned by Map after Unmap is undefined.
	Unmap() error

	// Upload copies src into the device at offset.
	Upload(src []byte, offset int64) error

	// Download copies len(dst) bytes starting at offset into dst.
	Download(dst []byte, offset int64) error

	// CopyFrom copies size bytes from other (same device context) at
	// srcOffset into this device at dstOffset.
	CopyFrom(other Device, size, srcOffset, dstOffset int64) error

	// Sync blocks until every operation previously issued on this device
	// has completed.
	Sync() error

	// Clear fills the whole device-side region with fill.
	Clear(fill byte) error

	// UploadAsync and DownloadAsync behave like their synchronous
	// counterparts but signal completion via cb, invoked from a
	// driver-internal goroutine. Ordering between concurrent async ops on
	// the same device is unspecified unless the caller calls Sync.
	UploadAsync(src []byte, offset int64, cb AsyncCallback)
	DownloadAsync(dst []byte, offset int64, cb AsyncCallback)

	// NativeHandle is an escape hatch for callers that need the
	// underlying device API object directly. Its lifetime equals the
	// Device's.
	NativeHandle() uintptr

	// Close releases the device-side allocation.
	Close() error
}
