//go:build darwin || freebsd || linux

package dynlib

import (
	"runtime"
	"testing"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func libc() string {
	switch runtime.GOOS {
	case "darwin":
		return "/usr/lib/libSystem.B.dylib"
	case "freebsd":
		return "libc.so.7"
	default:
		return "libc.so.6"
	}
}

func openLibc(t *testing.T, cached bool) *Library {
	t.Helper()
	l, err := Open(libc(), cached)
	if err != nil {
		t.Skipf("libc not loadable here: %v", err)
	}
	return l
}

func TestOpen_SharedHandle(t *testing.T) {
	a := openLibc(t, true)
	b := openLibc(t, true)
	assert.Same(t, a, b)

	var strlen func(string) int
	require.NoError(t, a.Func(&strlen, "strlen"))
	assert.Equal(t, 5, strlen("hello"))

	a.Release()
	assert.False(t, b.Destroyed())
	b.Release()
	assert.True(t, b.Destroyed())
}

func TestOpen_Uncached(t *testing.T) {
	a := openLibc(t, false)
	defer a.Release()
	b := openLibc(t, false)
	defer b.Release()
	assert.NotSame(t, a, b)
	assert.False(t, a.Cached())
}

func TestSymbol_Missing(t *testing.T) {
	l := openLibc(t, true)
	defer l.Release()

	_, err := l.Symbol("definitely_not_a_libc_symbol")
	assert.Error(t, err)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open("./no/such/library.so", true)
	require.Error(t, err)
	assert.NotEqual(t, platformerrors.CodeInvalidInput, platformerrors.GetCode(err))

	_, err = Open("", true)
	assert.Equal(t, platformerrors.CodeInvalidInput, platformerrors.GetCode(err))
}
