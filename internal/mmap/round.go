package mmap

// RoundToPage returns n rounded up to a whole number of pages.
func RoundToPage(n int) int {
	ps := PageSize()
	return (n + ps - 1) / ps * ps
}
