package alligator

import (
	"errors"
	"fmt"
	"syscall"
)

// ErrorKind is the high-level error category every fabric and backend
// operation reports through. It exists independently of the
// wrapped error so callers can branch on category without caring which
// backend produced it.
type ErrorKind string

const (
	ErrKindOutOfMemory      ErrorKind = "out of memory"
	ErrKindInvalidArgument  ErrorKind = "invalid argument"
	ErrKindOutOfRange       ErrorKind = "out of range"
	ErrKindInvalidState     ErrorKind = "invalid state"
	ErrKindNotFound         ErrorKind = "not found"
	ErrKindOperationFailed  ErrorKind = "operation failed"
	ErrKindTimeout          ErrorKind = "timeout"
	ErrKindNotSupported     ErrorKind = "not supported"
	ErrKindBufferOverflow   ErrorKind = "buffer overflow"
)

// Error is the structured error type returned by every fabric and backend
// operation. It carries enough context (Op, BufferID, Kind) to log and
// branch on without string matching.
type Error struct {
	Op       string // operation that failed, e.g. "allocate", "send"
	BufferID uint32 // buffer id involved, 0 if not applicable
	Kind     ErrorKind
	Errno    syscall.Errno
	Msg      string
	Inner    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.BufferID != 0 {
		return fmt.Sprintf("alligator: %s: %s (buffer=%#x)", e.Op, msg, e.BufferID)
	}
	if e.Op != "" {
		return fmt.Sprintf("alligator: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("alligator: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is comparison against another *Error by Kind, so
// callers can write errors.Is(err, &Error{Kind: ErrKindNotFound}).
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// NewError creates a structured error for the named operation.
func NewError(op string, kind ErrorKind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// NewBufferError creates a structured error scoped to a specific buffer id.
func NewBufferError(op string, bufferID uint32, kind ErrorKind, msg string) *Error {
	return &Error{Op: op, BufferID: bufferID, Kind: kind, Msg: msg}
}

// NewErrnoError wraps a raw syscall errno, mapping it to an ErrorKind.
func NewErrnoError(op string, errno syscall.Errno) *Error {
	return &Error{Op: op, Kind: mapErrnoToKind(errno), Errno: errno, Msg: errno.Error()}
}

// WrapError wraps inner with operation context, mapping syscall errnos to
// an ErrorKind the same way the underlying mmap/socket syscalls surface
// them.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	var ae *Error
	if errors.As(inner, &ae) {
		return &Error{Op: op, BufferID: ae.BufferID, Kind: ae.Kind, Errno: ae.Errno, Msg: ae.Msg, Inner: ae.Inner}
	}
	var errno syscall.Errno
	if errors.As(inner, &errno) {
		return &Error{Op: op, Kind: mapErrnoToKind(errno), Errno: errno, Msg: errno.Error(), Inner: inner}
	}
	return &Error{Op: op, Kind: ErrKindOperationFailed, Msg: inner.Error(), Inner: inner}
}

func mapErrnoToKind(errno syscall.Errno) ErrorKind {
	switch errno {
	case syscall.ENOENT:
		return ErrKindNotFound
	case syscall.EINVAL, syscall.E2BIG:
		return ErrKindInvalidArgument
	case syscall.ENOSYS, syscall.EOPNOTSUPP:
		return ErrKindNotSupported
	case syscall.ENOMEM, syscall.ENOSPC:
		return ErrKindOutOfMemory
	case syscall.ETIMEDOUT:
		return ErrKindTimeout
	case syscall.EBUSY:
		return ErrKindInvalidState
	default:
		return ErrKindOperationFailed
	}
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind ErrorKind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}
