package cache

import "errors"

// Storable is satisfied by any pointer type that embeds Stored[K]:
//
//	type Texture struct {
//	    cache.Stored[string]
//	    ...
//	}
//
// The method is unexported so the mixin is the only way to implement it.
type Storable[K comparable] interface {
	stored() *Stored[K]
}

// Destroyer is implemented by objects that own something to release (a file
// mapping, an OS watcher, a library handle). Destroy runs exactly once, after
// the object's last reference was released and it was removed from its cache,
// and never while a cache lock is held.
type Destroyer interface {
	Destroy()
}

// Factory creates a fresh object for a missing key. It runs without any cache
// lock held, so it may be slow and may itself use caches. Returning an error
// or a nil object signals creation failure; nothing is inserted.
//
// The returned object must be new: no references, not stored anywhere.
type Factory[V any] func() (V, error)

var (
	// ErrNilObject is returned when a factory reports success but returns nil.
	ErrNilObject = errors.New("cache: factory returned a nil object")
	// ErrNoFactory is returned by GetOrCreate when factory is nil.
	ErrNoFactory = errors.New("cache: no factory provided")
	// ErrClosed is returned by operations on a closed cache.
	ErrClosed = errors.New("cache: closed")
)
