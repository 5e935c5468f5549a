package alloc

import "errors"

var (
	// ErrInvalidSize indicates a request for a zero or negative block size.
	ErrInvalidSize = errors.New("alloc: invalid block size")

	// ErrLimit indicates the request would exceed a Limit backend's budget.
	ErrLimit = errors.New("alloc: byte limit exceeded")

	// ErrForeignBlock indicates Free was called with a block this backend did not
	// hand out, or one that was already freed.
	ErrForeignBlock = errors.New("alloc: block not owned by this backend")

	// ErrClosed indicates the backend was used after Close.
	ErrClosed = errors.New("alloc: backend closed")

	// ErrUnknownBackend indicates ByName was given a name it does not know.
	ErrUnknownBackend = errors.New("alloc: unknown backend")
)
