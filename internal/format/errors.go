package format

import "errors"

var (
	// ErrTruncated indicates the buffer lacked the bytes required for a header.
	ErrTruncated = errors.New("format: truncated header")
	// ErrCountUnderflow indicates a decrement of a header whose count is already zero.
	ErrCountUnderflow = errors.New("format: reference count underflow")
	// ErrCountOverflow indicates an increment that would wrap the reference count.
	ErrCountOverflow = errors.New("format: reference count overflow")
)
