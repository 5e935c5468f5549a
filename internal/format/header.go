package format

import (
	"fmt"
	"math"

	"github.com/joshuapare/arckit/internal/buf"
)

// Header is the decoded form of an allocation header.
type Header struct {
	RefCount    uint64
	PayloadSize uint64
}

// ReadHeader decodes the header at the start of block.
func ReadHeader(block []byte) (Header, error) {
	if len(block) < HeaderSize {
		return Header{}, fmt.Errorf("header: %w", ErrTruncated)
	}
	return Header{
		RefCount:    buf.U64LE(block[RefCountOffset:]),
		PayloadSize: buf.U64LE(block[PayloadSizeOffset:]),
	}, nil
}

// PutHeader encodes h at the start of block.
func PutHeader(block []byte, h Header) error {
	if len(block) < HeaderSize {
		return fmt.Errorf("header: %w", ErrTruncated)
	}
	buf.PutU64LE(block[RefCountOffset:], h.RefCount)
	buf.PutU64LE(block[PayloadSizeOffset:], h.PayloadSize)
	return nil
}

// RefCount reads only the reference count. Returns 0 for a truncated block.
func RefCount(block []byte) uint64 {
	return buf.U64LE(block[min(RefCountOffset, len(block)):])
}

// PayloadSize reads only the payload size. Returns 0 for a truncated block.
func PayloadSize(block []byte) uint64 {
	return buf.U64LE(block[min(PayloadSizeOffset, len(block)):])
}

// IncRef increments the reference count in place and returns the new value.
func IncRef(block []byte) (uint64, error) {
	if len(block) < HeaderSize {
		return 0, fmt.Errorf("header: %w", ErrTruncated)
	}
	n := buf.U64LE(block[RefCountOffset:])
	if n == math.MaxUint64 {
		return n, ErrCountOverflow
	}
	n++
	buf.PutU64LE(block[RefCountOffset:], n)
	return n, nil
}

// DecRef decrements the reference count in place and returns the new value.
// A zero count is left untouched and reported as ErrCountUnderflow.
func DecRef(block []byte) (uint64, error) {
	if len(block) < HeaderSize {
		return 0, fmt.Errorf("header: %w", ErrTruncated)
	}
	n := buf.U64LE(block[RefCountOffset:])
	if n == 0 {
		return 0, ErrCountUnderflow
	}
	n--
	buf.PutU64LE(block[RefCountOffset:], n)
	return n, nil
}

// Payload returns the user-visible region of block as recorded in its header.
func Payload(block []byte) ([]byte, error) {
	h, err := ReadHeader(block)
	if err != nil {
		return nil, err
	}
	if h.PayloadSize > uint64(math.MaxInt) {
		return nil, fmt.Errorf("payload: %w", ErrTruncated)
	}
	p, ok := buf.Slice(block, HeaderSize, int(h.PayloadSize))
	if !ok {
		return nil, fmt.Errorf("payload: %w", ErrTruncated)
	}
	return p, nil
}
