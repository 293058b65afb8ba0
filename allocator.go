package region

// Allocator is the contract every region implementation satisfies.
// Consumers should depend on it rather than on *Region.
type Allocator interface {
	// Malloc returns n bytes of uninitialized memory.
	Malloc(n int) ([]byte, error)
	// Calloc returns n*count bytes of zeroed memory.
	Calloc(n, count int) ([]byte, error)
	// Clone returns a copy of src.
	Clone(src []byte) ([]byte, error)
	// Realloc returns a new block of n bytes holding a prefix of orig.
	Realloc(orig []byte, n int) ([]byte, error)
	// OnFree registers fn to run when the allocator is freed.
	OnFree(fn func() error) (OnFreeJob, error)
	// Free runs the registered finalizers and reclaims all memory.
	Free() error
}

// OnFreeJob is the handle returned by OnFree.
type OnFreeJob interface {
	Cancel() error
}

// Hierarchy is reserved for allocators arranged in a tree, where freeing a
// parent frees its children. Buffer-backed regions do not support it.
type Hierarchy interface {
	Child() (Allocator, error)
	Adopt(child Allocator) error
}

var (
	_ Allocator = (*Region)(nil)
	_ Hierarchy = (*Region)(nil)
)

// Child always returns ErrUnimplemented.
func (r *Region) Child() (Allocator, error) {
	r.guard()
	return nil, ErrUnimplemented
}

// Adopt always returns ErrUnimplemented.
func (r *Region) Adopt(Allocator) error {
	r.guard()
	return ErrUnimplemented
}
