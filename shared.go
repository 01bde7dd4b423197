package alligator

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"

	"github.com/joshmorgan1000/alligator/internal/constants"
	"github.com/joshmorgan1000/alligator/internal/shmheader"
)

// sharedSegmentCounter disambiguates auto-generated segment names created
// within the same process in the same millisecond.
var sharedSegmentCounter atomic.Uint64

// segmentPath resolves a segment name to a backing file path. OS-specific
// shared-memory naming (POSIX shm_open, Windows named mappings) is out of
// scope; a temp-directory-backed file that any process which
// knows the name can open serves the same purpose portably.
func segmentPath(name string) string {
	return filepath.Join(os.TempDir(), "alligator-shm-"+name)
}

// GenerateSegmentName builds a name unique to (process, wall-clock,
// counter), used when the caller supplies none.
func GenerateSegmentName() string {
	return fmt.Sprintf("%d-%d-%d", os.Getpid(), time.Now().UnixNano(), sharedSegmentCounter.Add(1))
}

// SharedBuffer backs a named cross-process segment with a fixed header:
// local = true, shared = true. Lifetime of the named
// segment is governed by the header's ref_count, not by any single
// process's local destruction.
type SharedBuffer struct {
	*base
	file   *os.File
	mm     mmap.MMap
	name   string
	region []byte // user region, mm[shmheader.Size:]
}

// AllocateShared creates a new named segment of capacity bytes and
// initialises its header with ref_count = 1. If name is empty, one is
// generated.
func (f *Fabric) AllocateShared(name string, capacity int64) (*SharedBuffer, error) {
	if capacity <= 0 {
		return nil, NewError("allocate", ErrKindInvalidArgument, "shared capacity must be > 0")
	}
	if name == "" {
		name = GenerateSegmentName()
	}
	path := segmentPath(name)
	total := shmheader.Size + int(capacity)

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, WrapError("allocate", err)
	}
	// Hold an exclusive advisory lock while truncating and writing the
	// header so a concurrent creator racing on the same generated name
	// can't observe a partially initialised segment.
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err != nil {
		file.Close()
		return nil, WrapError("allocate", err)
	}
	defer unix.Flock(int(file.Fd()), unix.LOCK_UN)

	if err := file.Truncate(int64(total)); err != nil {
		file.Close()
		return nil, WrapError("allocate", err)
	}
	mm, err := mmap.MapRegion(file, total, mmap.RDWR, 0, 0)
	if err != nil {
		file.Close()
		return nil, WrapError("allocate", err)
	}

	hdr := shmheader.Header{
		RefCount:   1,
		TotalSize:  uint64(capacity),
		Version:    constants.SharedSegmentVersion,
		CreateTime: uint64(time.Now().Unix()),
	}
	copy(hdr.CreatorName[:], name)
	copy(mm[:shmheader.Size], shmheader.Marshal(&hdr))

	sb := &SharedBuffer{
		base:   newBase(f, Shared, capacity, Flags{Local: true, Shared: true}),
		file:   file,
		mm:     mm,
		name:   name,
		region: mm[shmheader.Size:],
	}
	if _, err := f.register(sb); err != nil {
		mm.Unmap()
		file.Close()
		f.logger.Warn("shared: allocate failed", "name", name, "error", err)
		return nil, err
	}
	return sb, nil
}

// AttachShared opens an existing named segment. It validates total_size
// against capacity and atomically increments ref_count; a mismatch fails
// with InvalidState.
func (f *Fabric) AttachShared(name string, capacity int64) (*SharedBuffer, error) {
	path := segmentPath(name)
	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, WrapError("attach", err)
	}
	total := shmheader.Size + int(capacity)
	mm, err := mmap.MapRegion(file, total, mmap.RDWR, 0, 0)
	if err != nil {
		file.Close()
		return nil, WrapError("attach", err)
	}

	var hdr shmheader.Header
	if err := shmheader.Unmarshal(mm[:shmheader.Size], &hdr); err != nil {
		mm.Unmap()
		file.Close()
		return nil, WrapError("attach", err)
	}
	if hdr.TotalSize != uint64(capacity) {
		mm.Unmap()
		file.Close()
		f.logger.Warn("shared: attach rejected, size mismatch", "name", name, "header_size", hdr.TotalSize, "requested", capacity)
		return nil, NewError("attach", ErrKindInvalidState, "total_size mismatch")
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err == nil {
		shmheader.AddRefCount(mm[:shmheader.Size], 1)
		unix.Flock(int(file.Fd()), unix.LOCK_UN)
	} else {
		shmheader.AddRefCount(mm[:shmheader.Size], 1)
	}

	sb := &SharedBuffer{
		base:   newBase(f, Shared, capacity, Flags{Local: true, Shared: true}),
		file:   file,
		mm:     mm,
		name:   name,
		region: mm[shmheader.Size:],
	}
	if _, err := f.register(sb); err != nil {
		shmheader.AddRefCount(mm[:shmheader.Size], -1)
		mm.Unmap()
		file.Close()
		f.logger.Warn("shared: attach failed", "name", name, "error", err)
		return nil, err
	}
	return sb, nil
}

// Name returns the segment's name, usable by another process to Attach.
func (sb *SharedBuffer) Name() string { return sb.name }

// RefCount reads the live cross-process refcount from the shared header.
func (sb *SharedBuffer) RefCount() uint32 {
	return shmheader.LoadRefCount(sb.mm[:shmheader.Size])
}

// Data returns the user region (after the header).
func (sb *SharedBuffer) Data() ([]byte, error) { return sb.region, nil }

// Span returns a bounded view over the user region.
func (sb *SharedBuffer) Span(offset, length int64) (Span, error) {
	return sb.span(sb.region, offset, length)
}

// Clear fills the user region with fill. Must not be called while
// pinned.
func (sb *SharedBuffer) Clear(fill byte) error {
	if sb.pin.IsPinned() {
		sb.fabric.logger.WithBuffer(sb.ID(), sb.Kind().String()).Warn("shared: clear rejected, buffer is pinned")
		return NewBufferError("clear", sb.ID(), ErrKindInvalidState, "buffer is pinned")
	}
	for i := range sb.region {
		sb.region[i] = fill
	}
	return nil
}

// Reserve reserves n bytes, chaining into a new shared segment (a fresh
// generated name) if this link is full.
func (sb *SharedBuffer) Reserve(n int64) (Buffer, int64, error) {
	return reserveChained(sb, n, func(capacity int64) (Buffer, error) {
		return sb.fabric.AllocateShared("", capacity)
	})
}

// deallocate decrements ref_count; when it reaches zero it destroys the
// named segment. Local destruction
// always releases the local mapping regardless of the resulting
// refcount.
func (sb *SharedBuffer) deallocate() error {
	remaining := shmheader.AddRefCount(sb.mm[:shmheader.Size], -1)
	if err := sb.mm.Unmap(); err != nil {
		sb.file.Close()
		sb.fabric.logger.WithBuffer(sb.ID(), sb.Kind().String()).Warn("shared: deallocate failed", "name", sb.name, "error", err)
		return WrapError("deallocate", err)
	}
	if remaining == 0 {
		path := sb.file.Name()
		sb.file.Close()
		os.Remove(path)
		return nil
	}
	sb.file.Close()
	return nil
}

var _ Buffer = (*SharedBuffer)(nil)
