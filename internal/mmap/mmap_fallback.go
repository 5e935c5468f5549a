//go:build !unix

package mmap

import (
	"fmt"
	"os"
)

// Anon allocates size bytes from the Go heap when anonymous mappings are not available.
func Anon(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("mmap: invalid size %d", size)
	}
	return make([]byte, RoundToPage(size)), func() error { return nil }, nil
}

// PageSize returns the system page size.
func PageSize() int {
	return os.Getpagesize()
}
