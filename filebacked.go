package alligator

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/edsrzf/mmap-go"
)

// fileChainCounter gives each file-backed chain successor a distinct path
// suffix so repeated growth of the same head never reopens (and
// truncates) a sibling link that is still live.
var fileChainCounter atomic.Uint64

// FileBuffer maps a file region into the address space:
// local = true, file_backed = true. Contents survive process exit iff the
// backing file does; deallocate unmaps without deleting the file.
type FileBuffer struct {
	*base
	file *os.File
	mm   mmap.MMap
	path string
	own  bool // true if this buffer opened path itself and should close it
}

// AllocateFile constructs and registers a FileBuffer over path, truncating
// (or creating) the file to capacity bytes first. capacity must be > 0.
func (f *Fabric) AllocateFile(path string, capacity int64) (*FileBuffer, error) {
	if capacity <= 0 {
		return nil, NewError("allocate", ErrKindInvalidArgument, "file capacity must be > 0")
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, WrapError("allocate", err)
	}
	if err := file.Truncate(capacity); err != nil {
		file.Close()
		return nil, WrapError("allocate", err)
	}
	mm, err := mmap.MapRegion(file, int(capacity), mmap.RDWR, 0, 0)
	if err != nil {
		file.Close()
		f.logger.Warn("file: allocate failed", "path", path, "error", err)
		return nil, WrapError("allocate", err)
	}

	fb := &FileBuffer{
		base: newBase(f, FileBacked, capacity, Flags{Local: true, FileBacked: true}),
		file: file,
		mm:   mm,
		path: path,
		own:  true,
	}
	if _, err := f.register(fb); err != nil {
		mm.Unmap()
		file.Close()
		f.logger.Warn("file: allocate failed", "path", path, "error", err)
		return nil, err
	}
	return fb, nil
}

// Data returns the whole mapped region.
func (fb *FileBuffer) Data() ([]byte, error) { return []byte(fb.mm), nil }

// Span returns a bounded view over [offset, offset+length).
func (fb *FileBuffer) Span(offset, length int64) (Span, error) {
	return fb.span([]byte(fb.mm), offset, length)
}

// Clear fills the whole mapped region with fill. Must not be called
// while pinned.
func (fb *FileBuffer) Clear(fill byte) error {
	if fb.pin.IsPinned() {
		fb.fabric.logger.WithBuffer(fb.ID(), fb.Kind().String()).Warn("file: clear rejected, buffer is pinned")
		return NewBufferError("clear", fb.ID(), ErrKindInvalidState, "buffer is pinned")
	}
	for i := range fb.mm {
		fb.mm[i] = fill
	}
	return nil
}

// Reserve reserves n bytes, chaining into a new file-backed successor
// (named path + a monotonic suffix) if this link is full.
func (fb *FileBuffer) Reserve(n int64) (Buffer, int64, error) {
	return reserveChained(fb, n, func(capacity int64) (Buffer, error) {
		suffix := fileChainCounter.Add(1)
		return fb.fabric.AllocateFile(fmt.Sprintf("%s.next%d", fb.path, suffix), capacity)
	})
}

// Sync flushes the mapped region back to the underlying file.
func (fb *FileBuffer) Sync() error {
	if err := fb.mm.Flush(); err != nil {
		return WrapError("sync", err)
	}
	return nil
}

func (fb *FileBuffer) deallocate() error {
	var err error
	if e := fb.mm.Unmap(); e != nil {
		err = WrapError("deallocate", e)
		fb.fabric.logger.WithBuffer(fb.ID(), fb.Kind().String()).Warn("file: deallocate failed", "path", fb.path, "error", err)
	}
	if fb.own {
		fb.file.Close()
	}
	return err
}

var _ Buffer = (*FileBuffer)(nil)
