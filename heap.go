package alligator

// HeapBuffer is the plain contiguous process-heap backend:
// local = true, file_backed = false, shared = false.
type HeapBuffer struct {
	*base
	data []byte
}

// AllocateHeap constructs and registers a HeapBuffer of the given
// capacity. capacity must be > 0.
func (f *Fabric) AllocateHeap(capacity int64) (*HeapBuffer, error) {
	if capacity <= 0 {
		return nil, NewError("allocate", ErrKindInvalidArgument, "heap capacity must be > 0")
	}
	h := &HeapBuffer{
		base: newBase(f, Heap, capacity, Flags{Local: true}),
		data: make([]byte, capacity),
	}
	if _, err := f.register(h); err != nil {
		f.logger.Warn("heap: allocate failed", "capacity", capacity, "error", err)
		return nil, err
	}
	return h, nil
}

// Data returns the whole capacity as a directly dereferenceable slice.
func (h *HeapBuffer) Data() ([]byte, error) { return h.data, nil }

// Span returns a bounded view over [offset, offset+length).
func (h *HeapBuffer) Span(offset, length int64) (Span, error) {
	return h.span(h.data, offset, length)
}

// Clear fills the whole capacity with fill. Must not be called while
// pinned.
func (h *HeapBuffer) Clear(fill byte) error {
	if h.pin.IsPinned() {
		h.fabric.logger.WithBuffer(h.ID(), h.Kind().String()).Warn("heap: clear rejected, buffer is pinned")
		return NewBufferError("clear", h.ID(), ErrKindInvalidState, "buffer is pinned")
	}
	for i := range h.data {
		h.data[i] = fill
	}
	return nil
}

// Reserve reserves n bytes from the writer frontier, installing a heap
// chain successor via the Chain Protocol if the current link is full. It
// returns the link the bytes landed on and the offset within it.
func (h *HeapBuffer) Reserve(n int64) (Buffer, int64, error) {
	return reserveChained(h, n, func(capacity int64) (Buffer, error) {
		return h.fabric.AllocateHeap(capacity)
	})
}

// Write reserves and copies p into the buffer (or a chain successor),
// returning the link written to and its offset, for callers that want a
// single call instead of Reserve+Span.
func (h *HeapBuffer) Write(p []byte) (Buffer, int64, error) {
	link, offset, err := h.Reserve(int64(len(p)))
	if err != nil {
		return nil, 0, err
	}
	hb := link.(*HeapBuffer)
	copy(hb.data[offset:offset+int64(len(p))], p)
	return link, offset, nil
}

func (h *HeapBuffer) deallocate() error {
	h.data = nil
	return nil
}

var _ Buffer = (*HeapBuffer)(nil)
