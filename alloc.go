package region

import (
	"fmt"
	"math"
	"reflect"
	"runtime"
	"unsafe"
)

// Region memory is not scanned by the garbage collector, so the typed
// helpers only accept types without Go pointers (no strings, slices, maps,
// pointers, interfaces, channels or funcs). They panic on any other type.

// Alloc returns a pointer to a zeroed T stored inside the allocator.
// The returned pointer is valid until the allocator is freed.
func Alloc[T any](a Allocator) (*T, error) {
	size := sizeOf[T]()
	if size == 0 {
		return new(T), nil
	}
	b, err := a.Calloc(size, 1)
	if err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(&b[0])), nil
}

// AllocUninitialized returns a *T located in the allocator without zeroing
// memory. This is faster than Alloc but the memory contents are undefined.
func AllocUninitialized[T any](a Allocator) (*T, error) {
	size := sizeOf[T]()
	if size == 0 {
		return new(T), nil
	}
	b, err := a.Malloc(size)
	if err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(&b[0])), nil
}

// AllocSlice allocates a slice of n elements of type T inside the allocator.
// The slice elements are not initialized.
// Returns nil if n <= 0.
func AllocSlice[T any](a Allocator, n int) ([]T, error) {
	if n <= 0 {
		return nil, nil
	}
	size := sizeOf[T]()
	if size == 0 {
		return make([]T, n), nil
	}
	var b []byte
	var err error
	if n > math.MaxInt/size {
		// Calloc reports the overflow through the OOM path.
		b, err = a.Calloc(size, n)
	} else {
		b, err = a.Malloc(size * n)
	}
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n), nil
}

// AllocSliceZeroed allocates a slice of n elements of type T with zeroed
// memory. Returns nil if n <= 0.
func AllocSliceZeroed[T any](a Allocator, n int) ([]T, error) {
	if n <= 0 {
		return nil, nil
	}
	size := sizeOf[T]()
	if size == 0 {
		return make([]T, n), nil
	}
	b, err := a.Calloc(size, n)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n), nil
}

// PtrAndKeepAlive returns t and calls runtime.KeepAlive on the allocator,
// keeping its backing buffer reachable while t is used from unsafe code.
func PtrAndKeepAlive[T any](a Allocator, t *T) *T {
	runtime.KeepAlive(a)
	return t
}

func sizeOf[T any]() int {
	typ := reflect.TypeFor[T]()
	if hasPointers(typ) {
		panic(fmt.Sprintf("region: cannot allocate %s: type contains pointers", typ))
	}
	if uintptr(typ.Align()) > Alignment {
		panic(fmt.Sprintf("region: cannot allocate %s: alignment %d exceeds %d", typ, typ.Align(), Alignment))
	}
	return int(typ.Size())
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.String, reflect.Slice,
		reflect.Map, reflect.Chan, reflect.Func, reflect.Interface:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}
