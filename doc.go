// Package region implements a bump allocator (memory region) over a single
// caller-supplied buffer.
//
// # Overview
//
// A region hands out consecutive, pointer-aligned pieces of one buffer and
// reclaims them all at once. There is no per-object free. This suits:
//
//   - Parsers that build many small nodes and discard them together
//   - Packet-processing paths with a fixed per-packet scratch buffer
//   - Short-lived nested computations with a known memory budget
//
// # Basic Usage
//
//	buf := make([]byte, 64<<10)
//	r, err := region.New(buf, region.WithOOMHandler(region.PanicOnOOM))
//	if err != nil {
//		return err
//	}
//
//	err = region.Catch(func() {
//		b, _ := r.Malloc(128)           // raw bytes
//		p, _ := region.Alloc[Header](r) // zeroed typed value
//		_, _ = b, p
//	})
//
//	_ = r.Free() // run finalizers, rewind for reuse
//
// # Memory Layout
//
// The control block (identity tag and cursor offsets) sits at the aligned
// start of the buffer; allocations follow it. Free rewinds the cursor to the
// first byte after the control block, so the region can be reused without
// being constructed again. The buffer itself belongs to the caller.
//
// # Failures
//
// Construction failures are ordinary errors (ErrBufferTooSmall,
// ErrAddressOverflow). Allocation failures (*AllocError with CodeExhausted or
// CodeOverflow) go to the installed OOMHandler, which is expected not to
// return; PanicOnOOM together with Catch gives a non-local exit to a point
// of the caller's choosing. A handler that returns, or no handler at all,
// makes the allocating call return the error. A corrupted control block or a
// region not built by New panics.
//
// # Finalizers
//
// OnFree registers a callback that runs on the next Free, in registration
// order. Registrations consume region space. A finalizer is unregistered
// once it succeeds. The first failing finalizer aborts Free before any memory
// is reclaimed; calling Free again resumes with that finalizer.
//
// # Thread Safety
//
// Regions are not safe for concurrent use. Callers must serialize access.
//
// # Important Notes
//
//   - Slices returned by a region are only valid until the next Free
//   - Realloc always copies; it cannot grow a block in place
//   - Typed helpers reject types containing Go pointers, because region
//     memory is invisible to the garbage collector
package region
