package region

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatch_PanicOnOOM(t *testing.T) {
	r := newRegion4K(t, WithOOMHandler(PanicOnOOM))

	reached := false
	err := Catch(func() {
		_, _ = r.Malloc(100)
		_, _ = r.Malloc(8000)
		reached = true
	})

	var ae *AllocError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, CodeExhausted, ae.Code)
	assert.False(t, reached, "the handler must not return to the allocating call")
	assert.Contains(t, ae.Site, "errors_test.go:")
}

func TestCatch_RepanicsOtherValues(t *testing.T) {
	assert.PanicsWithValue(t, "unrelated", func() {
		_ = Catch(func() { panic("unrelated") })
	})
	assert.NoError(t, Catch(func() {}))
}

func TestSetOOMHandler(t *testing.T) {
	r := newRegion4K(t)

	var got []*AllocError
	r.SetOOMHandler(OOMHandlerFunc(func(err *AllocError) {
		got = append(got, err)
	}))

	// A handler that returns still does not let the call succeed.
	b, err := r.Malloc(-1)
	assert.Nil(t, b)
	require.Len(t, got, 1)
	assert.Same(t, got[0], err)
	assert.Equal(t, CodeOverflow, got[0].Code)

	_, err = r.Malloc(1 << 20)
	require.Len(t, got, 2)
	assert.Equal(t, CodeExhausted, got[1].Code)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestConstructionFailuresBypassHandler(t *testing.T) {
	called := false
	h := OOMHandlerFunc(func(*AllocError) { called = true })

	_, err := New(make([]byte, 4), WithOOMHandler(h))
	assert.ErrorIs(t, err, ErrBufferTooSmall)
	assert.False(t, called)
}

func TestAllocError(t *testing.T) {
	tests := []struct {
		err  *AllocError
		msg  string
		is   error
		isnt error
	}{
		{&AllocError{Code: CodeExhausted, Site: "parser.go:42"}, "region ran out of memory [parser.go:42]", ErrExhausted, ErrOverflow},
		{&AllocError{Code: CodeOverflow, Site: "parser.go:43"}, "region integer overflow [parser.go:43]", ErrOverflow, ErrExhausted},
	}

	for _, tt := range tests {
		assert.EqualError(t, tt.err, tt.msg)
		assert.True(t, errors.Is(errors.Wrap(tt.err, "wrapped"), tt.is))
		assert.False(t, errors.Is(tt.err, tt.isnt))
	}

	assert.Equal(t, "exhausted", CodeExhausted.String())
	assert.Equal(t, "overflow", CodeOverflow.String())
	assert.Equal(t, "code(7)", Code(7).String())
	assert.Equal(t, -1, int(CodeExhausted))
	assert.Equal(t, -2, int(CodeOverflow))
}
