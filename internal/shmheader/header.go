// Package shmheader marshals the fixed header that precedes every shared
// memory segment's user region. The layout is native-endian
// and packed, field by field, matching exactly what a peer process mapping
// the same segment expects to find at offset 0.
package shmheader

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"

	"github.com/joshmorgan1000/alligator/internal/constants"
)

// Size is the total on-wire size of the header: ref_count(4) +
// total_size(8) + version(4) + create_time(8) + creator_name(256).
const Size = constants.SharedHeaderSize

// NameSize is the fixed width of the creator_name field.
const NameSize = constants.SharedCreatorNameSize

// Header is the fixed-layout region at offset 0 of every shared memory
// segment. The user region begins immediately after it, at offset Size.
type Header struct {
	RefCount    uint32
	TotalSize   uint64
	Version     uint32
	CreateTime  uint64
	CreatorName [NameSize]byte
}

// Marshal encodes h into a Size-byte native-endian buffer.
func Marshal(h *Header) []byte {
	buf := make([]byte, Size)
	order := binary.NativeEndian
	order.PutUint32(buf[0:4], h.RefCount)
	order.PutUint64(buf[4:12], h.TotalSize)
	order.PutUint32(buf[12:16], h.Version)
	order.PutUint64(buf[16:24], h.CreateTime)
	copy(buf[24:24+NameSize], h.CreatorName[:])
	return buf
}

// Unmarshal decodes a Size-byte native-endian buffer into h.
func Unmarshal(buf []byte, h *Header) error {
	if len(buf) < Size {
		return ErrShortHeader
	}
	order := binary.NativeEndian
	h.RefCount = order.Uint32(buf[0:4])
	h.TotalSize = order.Uint64(buf[4:12])
	h.Version = order.Uint32(buf[12:16])
	h.CreateTime = order.Uint64(buf[16:24])
	copy(h.CreatorName[:], buf[24:24+NameSize])
	return nil
}

// ErrShortHeader is returned by Unmarshal when the supplied buffer is
// smaller than Size.
var ErrShortHeader = shortHeaderError{}

type shortHeaderError struct{}

func (shortHeaderError) Error() string { return "shmheader: buffer shorter than header size" }

// AddRefCount atomically adds delta to the ref_count field in-place within
// buf (which must be at least Size bytes, backed by the mapped segment so
// the update is visible cross-process) and returns the new value.
func AddRefCount(buf []byte, delta int32) uint32 {
	ptr := (*uint32)(unsafe.Pointer(&buf[0]))
	if delta >= 0 {
		return atomic.AddUint32(ptr, uint32(delta))
	}
	return atomic.AddUint32(ptr, ^uint32(-delta-1)) // two's-complement subtraction
}

// LoadRefCount atomically reads the ref_count field from buf.
func LoadRefCount(buf []byte) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&buf[0])))
}
