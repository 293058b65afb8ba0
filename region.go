package region

import (
	"fmt"
	"math"
	"math/bits"
	"path/filepath"
	"runtime"
	"strings"
	"unsafe"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Alignment is the boundary every allocation starts on (pointer size).
const Alignment = unsafe.Sizeof(uintptr(0))

// identityTag marks a control block written by New ("REGION" + version).
const identityTag uint64 = 0x5245_4749_4f4e_0001

// header is the part of the control block stored at the front of the
// managed buffer. It holds no Go pointers; offsets are relative to buf[0].
type header struct {
	tag     uint64
	base    uintptr
	current uintptr
	end     uintptr
}

// HeaderSize is the number of bytes the control block occupies at the
// aligned start of every buffer.
const HeaderSize = int(unsafe.Sizeof(header{}))

// Region is a bump allocator over a single buffer. Not goroutine-safe.
//
// The region never frees its buffer; whoever supplied it owns it.
type Region struct {
	buf   []byte
	start uintptr // address of buf[0]
	hdr   *header

	jobs  *FreeJob
	tail  *FreeJob
	njobs int

	onOOM   OOMHandler
	logger  log.Logger
	metrics *Metrics
	site    string
}

// New constructs a region managing buf. The first allocatable byte follows
// the control block, which is written at the pointer-aligned start of buf.
// It fails with ErrBufferTooSmall if buf cannot hold the control block.
func New(buf []byte, opts ...Option) (*Region, error) {
	if len(buf) == 0 {
		return nil, errors.Wrap(ErrBufferTooSmall, "empty buffer")
	}
	start := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	if err := checkBounds(start, uintptr(len(buf))); err != nil {
		return nil, err
	}
	return newRegion(buf, start, opts), nil
}

// NewAt constructs a region over length bytes starting at p, typically
// memory obtained outside the Go heap. It fails with ErrAddressOverflow if
// the range wraps the address space and ErrBufferTooSmall if it cannot hold
// the control block.
func NewAt(p unsafe.Pointer, length uintptr, opts ...Option) (*Region, error) {
	if p == nil {
		return nil, errors.Wrap(ErrBufferTooSmall, "nil buffer")
	}
	start := uintptr(p)
	if err := checkBounds(start, length); err != nil {
		return nil, err
	}
	if length > math.MaxInt {
		return nil, errors.Wrapf(ErrAddressOverflow, "length %d", length)
	}
	return newRegion(unsafe.Slice((*byte)(p), length), start, opts), nil
}

func checkBounds(start, length uintptr) error {
	aligned := alignAddr(start)
	end := start + length
	if end < start || aligned < start {
		return errors.Wrapf(ErrAddressOverflow, "start %#x length %d", start, length)
	}
	if end < aligned+uintptr(HeaderSize) {
		return errors.Wrapf(ErrBufferTooSmall, "have %d bytes, need %d", length, aligned-start+uintptr(HeaderSize))
	}
	return nil
}

func newRegion(buf []byte, start uintptr, opts []Option) *Region {
	off := alignAddr(start) - start
	h := (*header)(unsafe.Pointer(&buf[off]))
	*h = header{
		tag:     identityTag,
		base:    off + uintptr(HeaderSize),
		current: off + uintptr(HeaderSize),
		end:     uintptr(len(buf)),
	}

	r := &Region{
		buf:    buf,
		start:  start,
		hdr:    h,
		logger: log.NewNopLogger(),
		site:   callSite(),
	}
	for _, opt := range opts {
		opt(r)
	}
	level.Debug(r.logger).Log("msg", "region created", "site", r.site, "capacity", r.Capacity())
	return r
}

// SetOOMHandler installs h as the target of allocation failures.
func (r *Region) SetOOMHandler(h OOMHandler) {
	r.guard()
	r.onOOM = h
}

// Malloc returns n bytes of uninitialized memory aligned to Alignment.
// A negative n fails with CodeOverflow. Otherwise the request fails with
// CodeExhausted unless it ends strictly before the end of the buffer, and
// with CodeOverflow if the end address wraps.
func (r *Region) Malloc(n int) ([]byte, error) {
	return r.malloc(r.guard(), n)
}

func (r *Region) malloc(h *header, n int) ([]byte, error) {
	if n < 0 {
		return nil, r.fail(h, CodeOverflow, n)
	}
	p := alignAddr(r.start + h.current)
	end := p + uintptr(n)

	if end >= r.start+h.end {
		return nil, r.fail(h, CodeExhausted, n)
	}
	if end < p {
		return nil, r.fail(h, CodeOverflow, n)
	}

	off := p - r.start
	h.current = end - r.start
	r.metrics.allocated(n)
	return r.buf[off : h.current : h.current], nil
}

// Calloc returns n*count zeroed bytes. A product that does not fit in an
// int is reported as CodeOverflow.
func (r *Region) Calloc(n, count int) ([]byte, error) {
	h := r.guard()
	if n < 0 || count < 0 {
		return nil, r.fail(h, CodeOverflow, -1)
	}
	hi, lo := bits.Mul(uint(n), uint(count))
	if hi != 0 || lo > math.MaxInt {
		return nil, r.fail(h, CodeOverflow, -1)
	}
	b, err := r.malloc(h, int(lo))
	if err != nil {
		return nil, err
	}
	clear(b)
	return b, nil
}

// Clone returns a copy of src carved from the region.
func (r *Region) Clone(src []byte) ([]byte, error) {
	b, err := r.malloc(r.guard(), len(src))
	if err != nil {
		return nil, err
	}
	copy(b, src)
	return b, nil
}

// Realloc returns a fresh block of n bytes. A nil orig behaves as Malloc.
//
// The region keeps no per-allocation sizes, so the number of bytes copied is
// min(n, current-orig): everything from the start of orig up to the bump
// cursor. That is exactly orig's contents only when orig was the most recent
// allocation; otherwise later allocations are copied too. The old block is
// not reclaimed until Free.
func (r *Region) Realloc(orig []byte, n int) ([]byte, error) {
	h := r.guard()
	if orig == nil {
		return r.malloc(h, n)
	}

	var from, amount uintptr
	if cap(orig) > 0 {
		p := uintptr(unsafe.Pointer(unsafe.SliceData(orig)))
		cur := r.start + h.current
		if p < r.start+h.base || p >= cur {
			return nil, errors.Wrapf(ErrForeignSlice, "address %#x", p)
		}
		from = p - r.start
		amount = min(uintptr(n), cur-p)
	}

	b, err := r.malloc(h, n)
	if err != nil {
		return nil, err
	}
	copy(b, r.buf[from:from+amount])
	return b, nil
}

// Free runs every registered finalizer in registration order, then rewinds
// the cursor to the base so the region can be reused. Each finalizer is
// unregistered once it succeeds. The first one that fails aborts Free: it and
// the finalizers after it stay registered, and no memory is reclaimed, so a
// later Free resumes with the failed finalizer. After a successful Free every
// slice previously returned by the region is invalid.
func (r *Region) Free() error {
	h := r.guard()

	ran := 0
	for r.jobs != nil {
		j := r.jobs
		if err := j.fn(); err != nil {
			return errors.Wrapf(err, "region: finalizer %d", ran)
		}
		r.jobs = j.next
		j.next = nil
		if r.jobs == nil {
			r.tail = nil
		}
		r.njobs--
		ran++
		r.metrics.finalizerRan()
	}

	reclaimed := h.current - h.base
	h.current = h.base
	r.metrics.released()
	level.Debug(r.logger).Log("msg", "region released", "finalizers", ran, "reclaimed", reclaimed)
	return nil
}

// Contains reports whether b lies within the allocated part of the region.
func (r *Region) Contains(b []byte) bool {
	h := r.guard()
	if cap(b) == 0 {
		return false
	}
	p := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	return p >= r.start+h.base && p+uintptr(len(b)) <= r.start+h.current
}

// Base returns the address the first allocation after construction or Free
// is placed at.
func (r *Region) Base() uintptr {
	return r.start + r.guard().base
}

func (r *Region) fail(h *header, code Code, n int) error {
	avail := 0
	if p := alignAddr(r.start + h.current); p < r.start+h.end {
		avail = int(r.start + h.end - p)
	}
	err := &AllocError{Code: code, Site: callSite(), Size: n, Available: avail}
	r.metrics.oom(code)
	level.Warn(r.logger).Log("msg", "allocation failed", "code", code, "size", n, "available", avail, "site", err.Site)
	if r.onOOM != nil {
		r.onOOM.HandleOOM(err)
	}
	return err
}

// guard verifies the identity tag and the cursor invariant of the control
// block. A failure means the region was not built by New or its buffer was
// overwritten; there is no way to continue safely.
func (r *Region) guard() *header {
	if r == nil || r.hdr == nil || r.hdr.tag != identityTag {
		panic("region: identity check failed: control block corrupted or region not constructed with New")
	}
	h := r.hdr
	if h.base > h.current || h.current > h.end || h.end != uintptr(len(r.buf)) {
		panic(fmt.Sprintf("region: control block corrupted: base=%d current=%d end=%d", h.base, h.current, h.end))
	}
	return h
}

// alignAddr rounds addr up to Alignment.
func alignAddr(addr uintptr) uintptr {
	const mask = Alignment - 1
	return (addr + mask) &^ mask
}

var pkgDir = func() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Dir(file)
}()

// callSite returns file:line of the first caller outside this package.
func callSite() string {
	var pcs [16]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if filepath.Dir(f.File) != pkgDir || strings.HasSuffix(f.File, "_test.go") {
			return fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
		}
		if !more {
			return "unknown"
		}
	}
}
