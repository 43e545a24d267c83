//go:build darwin || freebsd || linux

package dynlib

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ebitengine/purego"

	"github.com/IvanBrykalov/objcache/cache"
	"github.com/IvanBrykalov/objcache/internal/oserr"
)

// Library is an open dynamic library.
type Library struct {
	cache.Stored[string]
	path   string
	handle uintptr
}

var libraries = sync.OnceValue(func() *cache.Cache[string, *Library] {
	return cache.New[string, *Library](cache.Options[string, *Library]{})
})

// Open loads the library at path. A bare name ("libc.so.6") is resolved by
// the system loader; anything with a separator is made absolute first. With
// cached set, all requests share one handle. The caller owns one reference
// and must Release it.
func Open(path string, cached bool) (*Library, error) {
	if path == "" {
		return nil, oserr.Invalid("dynlib: empty path", path)
	}
	key := path
	if strings.ContainsRune(path, filepath.Separator) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, oserr.Wrap(err, "dynlib: resolve path", path)
		}
		key = abs
	}

	create := func() (*Library, error) {
		h, err := purego.Dlopen(key, purego.RTLD_NOW|purego.RTLD_LOCAL)
		if err != nil {
			slog.Warn("dynlib: could not load library", slog.String("path", key), slog.Any("err", err))
			return nil, oserr.Wrap(err, "dynlib: load", key)
		}
		return &Library{path: key, handle: h}, nil
	}
	if !cached {
		l, err := create()
		if err != nil {
			return nil, err
		}
		return cache.Detached[string](l), nil
	}
	return libraries().GetOrCreate(key, create)
}

// Destroy unloads the library.
func (l *Library) Destroy() {
	if err := purego.Dlclose(l.handle); err != nil {
		slog.Warn("dynlib: unload failed", slog.String("path", l.path), slog.Any("err", err))
	}
}

// Path returns the path the library was opened with.
func (l *Library) Path() string { return l.path }

// Symbol returns the address of the named symbol.
func (l *Library) Symbol(name string) (uintptr, error) {
	sym, err := purego.Dlsym(l.handle, name)
	if err != nil {
		return 0, oserr.Wrap(err, "dynlib: symbol "+name, l.path)
	}
	return sym, nil
}

// Func binds fptr, a pointer to a Go func variable, to the named C function.
// The library must stay retained while the function is used.
func (l *Library) Func(fptr any, name string) error {
	sym, err := l.Symbol(name)
	if err != nil {
		return err
	}
	purego.RegisterFunc(fptr, sym)
	return nil
}
