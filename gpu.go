package alligator

import (
	"sync"

	"github.com/joshmorgan1000/alligator/internal/interfaces"
)

// GPUConfig selects the device a GPU buffer maps onto.
type GPUConfig struct {
	DeviceID         int
	MemoryType       interfaces.MemoryType
	PrefetchOnAllocate bool
}

// DefaultGPUConfig returns a device-local configuration with no prefetch.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{DeviceID: 0, MemoryType: interfaces.DeviceLocal}
}

// gpuMemoryTypePriority is the deterministic resolution order for
// Kind.AutoGPU: prefer memory the device uses natively
// (device-local, then unified), then fall back toward host-visible types.
var gpuMemoryTypePriority = []interfaces.MemoryType{
	interfaces.DeviceLocal,
	interfaces.Unified,
	interfaces.HostCoherent,
	interfaces.HostVisible,
	interfaces.HostCached,
}

// ResolveAutoGPU picks a concrete memory type from the set a platform
// reports as available, following gpuMemoryTypePriority. Returns false if
// available is empty.
func ResolveAutoGPU(available []interfaces.MemoryType) (interfaces.MemoryType, bool) {
	set := make(map[interfaces.MemoryType]bool, len(available))
	for _, t := range available {
		set[t] = true
	}
	for _, t := range gpuMemoryTypePriority {
		if set[t] {
			return t, true
		}
	}
	return 0, false
}

// GPUBuffer is the uniform mapping/upload/download/copy/sync contract
// every concrete GPU variant satisfies, implemented here
// against a interfaces.Device. Concrete command encoding (Metal/CUDA/
// Vulkan) is out of scope; production code supplies a Device
// that talks to the real API, tests and this module's default use
// SimulatedDevice.
type GPUBuffer struct {
	*base
	device interfaces.Device
	mapped []byte
	mu     sync.Mutex
}

// AllocateGPU constructs and registers a GPUBuffer of the given capacity
// backed by device. If device is nil, a SimulatedDevice is created.
func (f *Fabric) AllocateGPU(capacity int64, cfg GPUConfig, device interfaces.Device) (*GPUBuffer, error) {
	if capacity <= 0 {
		return nil, NewError("allocate", ErrKindInvalidArgument, "gpu capacity must be > 0")
	}
	if device == nil {
		device = NewSimulatedDevice(cfg.MemoryType, capacity)
	}
	mt := device.MemoryType()
	flags := Flags{Local: mt.IsLocal(), Shared: mt.IsShared()}

	gb := &GPUBuffer{
		base:   newBase(f, GPU, capacity, flags),
		device: device,
	}
	if cfg.PrefetchOnAllocate {
		if _, err := gb.Map(0, capacity); err != nil {
			device.Close()
			return nil, err
		}
	}
	if _, err := f.register(gb); err != nil {
		device.Close()
		return nil, err
	}
	f.logger.WithBuffer(gb.ID(), gb.Kind().String()).Debug("gpu buffer allocated", "memory_type", mt.String())
	return gb, nil
}

// Data returns the last mapping established by Map, or an error if the
// buffer isn't local or hasn't been mapped.
func (gb *GPUBuffer) Data() ([]byte, error) {
	gb.mu.Lock()
	defer gb.mu.Unlock()
	if !gb.flags.Local {
		return nil, NewBufferError("data", gb.ID(), ErrKindInvalidState, "gpu buffer is not host-local")
	}
	if gb.mapped == nil {
		return nil, NewBufferError("data", gb.ID(), ErrKindInvalidState, "buffer not mapped")
	}
	return gb.mapped, nil
}

// Span returns a bounded view over the currently mapped region.
func (gb *GPUBuffer) Span(offset, length int64) (Span, error) {
	data, err := gb.Data()
	if err != nil {
		return Span{}, err
	}
	return gb.span(data, offset, length)
}

// Map establishes a host-visible view of [offset, offset+size). Repeated
// calls before Unmap return the same slice.
func (gb *GPUBuffer) Map(offset, size int64) ([]byte, error) {
	gb.mu.Lock()
	defer gb.mu.Unlock()
	if gb.mapped != nil {
		return gb.mapped, nil
	}
	data, err := gb.device.Map(offset, size)
	if err != nil {
		return nil, WrapError("map", err)
	}
	gb.mapped = data
	return data, nil
}

// Unmap releases the mapping established by Map.
func (gb *GPUBuffer) Unmap() error {
	gb.mu.Lock()
	defer gb.mu.Unlock()
	if gb.mapped == nil {
		return nil
	}
	if err := gb.device.Unmap(); err != nil {
		return WrapError("unmap", err)
	}
	gb.mapped = nil
	return nil
}

// Upload copies src to the device at offset.
func (gb *GPUBuffer) Upload(src []byte, offset int64) error {
	if err := gb.device.Upload(src, offset); err != nil {
		return WrapError("upload", err)
	}
	gb.advanceFrontierTo(offset + int64(len(src)))
	return nil
}

// Download copies len(dst) bytes from the device at offset into dst.
func (gb *GPUBuffer) Download(dst []byte, offset int64) error {
	if err := gb.device.Download(dst, offset); err != nil {
		return WrapError("download", err)
	}
	return nil
}

// CopyFrom copies size bytes from other's device (same context) at
// srcOffset into this buffer's device at dstOffset.
func (gb *GPUBuffer) CopyFrom(other *GPUBuffer, size, srcOffset, dstOffset int64) error {
	if err := gb.device.CopyFrom(other.device, size, srcOffset, dstOffset); err != nil {
		return WrapError("copy_from", err)
	}
	gb.advanceFrontierTo(dstOffset + size)
	return nil
}

// Sync blocks until all prior device operations on this buffer complete.
func (gb *GPUBuffer) Sync() error {
	if err := gb.device.Sync(); err != nil {
		return WrapError("sync", err)
	}
	return nil
}

// Clear conceptually performs a device-side fill.
func (gb *GPUBuffer) Clear(fill byte) error {
	if gb.pin.IsPinned() {
		return NewBufferError("clear", gb.ID(), ErrKindInvalidState, "buffer is pinned")
	}
	if err := gb.device.Clear(fill); err != nil {
		return WrapError("clear", err)
	}
	return nil
}

// UploadAsync behaves like Upload but signals completion via cb from a
// driver-internal goroutine.
func (gb *GPUBuffer) UploadAsync(src []byte, offset int64, cb interfaces.AsyncCallback) {
	gb.device.UploadAsync(src, offset, func(ok bool) {
		if ok {
			gb.advanceFrontierTo(offset + int64(len(src)))
		}
		cb(ok)
	})
}

// DownloadAsync behaves like Download but signals completion via cb.
func (gb *GPUBuffer) DownloadAsync(dst []byte, offset int64, cb interfaces.AsyncCallback) {
	gb.device.DownloadAsync(dst, offset, cb)
}

// NativeHandle is an escape hatch for callers that must interact with the
// underlying device API directly.
func (gb *GPUBuffer) NativeHandle() uintptr { return gb.device.NativeHandle() }

func (gb *GPUBuffer) deallocate() error {
	if err := gb.device.Close(); err != nil {
		gb.fabric.logger.WithBuffer(gb.ID(), gb.Kind().String()).Warn("gpu: deallocate failed", "error", err)
		return WrapError("deallocate", err)
	}
	return nil
}

var _ Buffer = (*GPUBuffer)(nil)
