//go:build !unix

package mmap

// Without mmap support the mapping falls back to the Go heap.
func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	return make([]byte, size), nil, nil
}
