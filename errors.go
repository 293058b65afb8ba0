package region

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrBufferTooSmall is returned by New when the buffer cannot hold the
	// aligned control block.
	ErrBufferTooSmall = errors.New("region: buffer too small for control block")
	// ErrAddressOverflow is returned by NewAt when start+length wraps the
	// address space.
	ErrAddressOverflow = errors.New("region: buffer length overflows address space")
	// ErrJobNotFound is returned when cancelling a finalizer that is no longer
	// registered.
	ErrJobNotFound = errors.New("region: finalizer not registered")
	// ErrForeignSlice is returned by Realloc for a slice that was not carved
	// from the live part of the region.
	ErrForeignSlice = errors.New("region: slice not allocated from this region")
	// ErrUnimplemented is returned by the hierarchical operations.
	ErrUnimplemented = errors.New("region: operation not implemented by buffer-backed regions")
	// ErrNilFinalizer is returned by OnFree when given a nil callback.
	ErrNilFinalizer = errors.New("region: nil finalizer")

	// ErrExhausted matches any *AllocError with CodeExhausted via errors.Is.
	ErrExhausted = errors.New("region: exhausted")
	// ErrOverflow matches any *AllocError with CodeOverflow via errors.Is.
	ErrOverflow = errors.New("region: size overflow")
)

// Code classifies an allocation failure.
type Code int

const (
	// CodeExhausted means the region has no room left for the request.
	CodeExhausted Code = -1
	// CodeOverflow means the size computation wrapped around.
	CodeOverflow Code = -2
)

func (c Code) String() string {
	switch c {
	case CodeExhausted:
		return "exhausted"
	case CodeOverflow:
		return "overflow"
	default:
		return fmt.Sprintf("code(%d)", int(c))
	}
}

// AllocError describes an allocation that could not be satisfied. It is
// handed to the region's OOMHandler and, if the handler returns, to the
// caller.
type AllocError struct {
	Code      Code
	Site      string // file:line of the allocating call
	Size      int    // requested size in bytes; negative if not representable
	Available int    // bytes left between the aligned cursor and the end
}

func (e *AllocError) Error() string {
	if e.Code == CodeOverflow {
		return fmt.Sprintf("region integer overflow [%s]", e.Site)
	}
	return fmt.Sprintf("region ran out of memory [%s]", e.Site)
}

// Is lets errors.Is match an *AllocError against ErrExhausted or ErrOverflow.
func (e *AllocError) Is(target error) bool {
	switch target {
	case ErrExhausted:
		return e.Code == CodeExhausted
	case ErrOverflow:
		return e.Code == CodeOverflow
	}
	return false
}

// OOMHandler receives allocation failures. Implementations are expected not
// to return: they panic, exit, or otherwise unwind to a point of the caller's
// choosing. If one does return, the allocating call returns the error.
type OOMHandler interface {
	HandleOOM(err *AllocError)
}

// OOMHandlerFunc adapts a function to the OOMHandler interface.
type OOMHandlerFunc func(err *AllocError)

// HandleOOM calls f(err).
func (f OOMHandlerFunc) HandleOOM(err *AllocError) { f(err) }

// PanicOnOOM panics with the *AllocError. Pair it with Catch.
var PanicOnOOM OOMHandler = OOMHandlerFunc(func(err *AllocError) {
	panic(err)
})

// Catch runs fn and converts a panic raised by PanicOnOOM back into an
// error. Any other panic is re-raised.
func Catch(fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			ae, ok := rec.(*AllocError)
			if !ok {
				panic(rec)
			}
			err = ae
		}
	}()
	fn()
	return nil
}
