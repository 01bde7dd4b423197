package alligator

import "unsafe"

// Span is a bounded byte-range view into a Buffer's storage.
// It never copies; it borrows the backing slice for as long as the caller
// holds it, so a Span taken without a Pin is only valid until the next
// mapping operation or deallocation of the owning buffer.
type Span struct {
	bytes []byte
}

// Len returns the number of bytes the span covers.
func (s Span) Len() int { return len(s.bytes) }

// Bytes returns the raw byte slice. Callers must not retain it beyond the
// lifetime documented on the operation that produced the span.
func (s Span) Bytes() []byte { return s.bytes }

// TypedElement returns a copy of the trivially-copyable value of type T at
// index i within span s. Bounds are checked against the span's byte
// length, not the buffer's writer frontier: reading past what has been
// written yields whatever bytes are there, not an error.
func TypedElement[T any](s Span, i int) (T, error) {
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if elemSize == 0 {
		return zero, NewError("typed_element", ErrKindInvalidArgument, "zero-sized type")
	}
	start := i * elemSize
	end := start + elemSize
	if i < 0 || end > len(s.bytes) {
		return zero, NewError("typed_element", ErrKindOutOfRange, "index out of bounds")
	}
	return *(*T)(unsafe.Pointer(&s.bytes[start])), nil
}

// PutTypedElement writes value at index i within span s, following the
// same bounds rule as TypedElement.
func PutTypedElement[T any](s Span, i int, value T) error {
	elemSize := int(unsafe.Sizeof(value))
	if elemSize == 0 {
		return NewError("typed_element", ErrKindInvalidArgument, "zero-sized type")
	}
	start := i * elemSize
	end := start + elemSize
	if i < 0 || end > len(s.bytes) {
		return NewError("typed_element", ErrKindOutOfRange, "index out of bounds")
	}
	*(*T)(unsafe.Pointer(&s.bytes[start])) = value
	return nil
}
