// Package mmap provides anonymous memory mappings used as off-heap backing
// buffers for regions.
//
// Memory obtained here is not managed by the Go garbage collector and is
// returned to the operating system only by Close.
package mmap
