package format

// Align16 returns n aligned up to the next 16-byte boundary.
// Backend blocks are always sized with it so the payload after the header
// stays 16-byte aligned.
//
// Example:
//
//	Align16(0)  = 0
//	Align16(1)  = 16
//	Align16(16) = 16
//	Align16(17) = 32
func Align16(n int) int {
	return (n + blockAlignmentMask) & ^blockAlignmentMask
}

// BlockSize returns the total backend block size needed for a payload of n bytes.
func BlockSize(n int) int {
	return Align16(HeaderSize + n)
}
