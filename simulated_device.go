package alligator

import (
	"sync"

	"github.com/joshmorgan1000/alligator/internal/interfaces"
)

// SimulatedDevice implements interfaces.Device against plain host memory.
// It exists because concrete GPU API bindings (Metal/CUDA/Vulkan command
// encoding, device enumeration) are explicitly out of scope —
// this is the reference device the core's mapping/upload/download/sync
// *contract* is tested against, and the default when AllocateGPU is given
// no device.
type SimulatedDevice struct {
	mu         sync.Mutex
	memType    interfaces.MemoryType
	storage    []byte
	mappedFrom int64
	mapped     bool
}

// NewSimulatedDevice allocates capacity bytes of host memory presented as
// memType.
func NewSimulatedDevice(memType interfaces.MemoryType, capacity int64) *SimulatedDevice {
	return &SimulatedDevice{memType: memType, storage: make([]byte, capacity)}
}

func (d *SimulatedDevice) MemoryType() interfaces.MemoryType { return d.memType }

func (d *SimulatedDevice) Map(offset, size int64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mapped {
		return d.storage[d.mappedFrom : d.mappedFrom+size], nil
	}
	if offset < 0 || size < 0 || offset+size > int64(len(d.storage)) {
		return nil, NewError("map", ErrKindOutOfRange, "map range exceeds device storage")
	}
	d.mapped = true
	d.mappedFrom = offset
	return d.storage[offset : offset+size], nil
}

func (d *SimulatedDevice) Unmap() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mapped = false
	return nil
}

func (d *SimulatedDevice) Upload(src []byte, offset int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if offset < 0 || offset+int64(len(src)) > int64(len(d.storage)) {
		return NewError("upload", ErrKindOutOfRange, "upload range exceeds device storage")
	}
	copy(d.storage[offset:], src)
	return nil
}

func (d *SimulatedDevice) Download(dst []byte, offset int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if offset < 0 || offset+int64(len(dst)) > int64(len(d.storage)) {
		return NewError("download", ErrKindOutOfRange, "download range exceeds device storage")
	}
	copy(dst, d.storage[offset:offset+int64(len(dst))])
	return nil
}

func (d *SimulatedDevice) CopyFrom(other interfaces.Device, size, srcOffset, dstOffset int64) error {
	src, ok := other.(*SimulatedDevice)
	if !ok {
		return NewError("copy_from", ErrKindNotSupported, "cross-device-type copy not supported by SimulatedDevice")
	}
	buf := make([]byte, size)
	if err := src.Download(buf, srcOffset); err != nil {
		return err
	}
	return d.Upload(buf, dstOffset)
}

func (d *SimulatedDevice) Sync() error { return nil }

func (d *SimulatedDevice) Clear(fill byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.storage {
		d.storage[i] = fill
	}
	return nil
}

func (d *SimulatedDevice) UploadAsync(src []byte, offset int64, cb interfaces.AsyncCallback) {
	go func() {
		err := d.Upload(src, offset)
		cb(err == nil)
	}()
}

func (d *SimulatedDevice) DownloadAsync(dst []byte, offset int64, cb interfaces.AsyncCallback) {
	go func() {
		err := d.Download(dst, offset)
		cb(err == nil)
	}()
}

func (d *SimulatedDevice) NativeHandle() uintptr { return 0 }

func (d *SimulatedDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.storage = nil
	return nil
}

var _ interfaces.Device = (*SimulatedDevice)(nil)
