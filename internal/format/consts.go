// Package format describes the byte layout of the allocation header that
// precedes every registry-managed payload. Higher-level packages never touch
// header bytes directly; they go through the accessors here.
package format

const (
	// HeaderSize is the size of the allocation header in bytes.
	//
	// Header layout (little-endian):
	//
	//	Offset  Size  Description
	//	0x00    8     Reference count. 1 at allocation, 0 only while being freed.
	//	0x08    8     Payload size requested by the caller.
	//	0x10    ...   Payload. The user pointer addresses this byte.
	HeaderSize = 16

	// RefCountOffset is the offset of the reference count within the header.
	RefCountOffset = 0x00

	// PayloadSizeOffset is the offset of the payload size within the header.
	PayloadSizeOffset = 0x08

	// BlockAlignment is the alignment of every backend block. Keeping the
	// header a multiple of it keeps the payload aligned as well.
	BlockAlignment = 16

	// blockAlignmentMask is BlockAlignment - 1, for round-up arithmetic.
	blockAlignmentMask = BlockAlignment - 1
)
