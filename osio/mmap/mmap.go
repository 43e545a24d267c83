// Package mmap shares read-only memory mappings of files: every request for
// the same file gets the same mapping, which is unmapped when the last holder
// releases it.
package mmap

import (
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/exp/mmap"

	"github.com/IvanBrykalov/objcache/cache"
	"github.com/IvanBrykalov/objcache/internal/oserr"
)

// File is a read-only memory-mapped file.
type File struct {
	cache.Stored[string]
	path string
	r    *mmap.ReaderAt
}

// mappings is keyed by cleaned absolute path.
var mappings = sync.OnceValue(func() *cache.Cache[string, *File] {
	return cache.New[string, *File](cache.Options[string, *File]{})
})

// Open maps the file at path. With cached set, concurrent and repeated opens
// of the same file share one mapping; otherwise the mapping is private to
// the caller. Either way the caller owns one reference and must Release it.
func Open(path string, cached bool) (*File, error) {
	if path == "" {
		return nil, oserr.Invalid("mmap: empty path", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, oserr.Wrap(err, "mmap: resolve path", path)
	}

	create := func() (*File, error) {
		r, err := mmap.Open(abs)
		if err != nil {
			slog.Warn("mmap: could not map file", slog.String("path", abs), slog.Any("err", err))
			return nil, oserr.Wrap(err, "mmap: open", abs)
		}
		return &File{path: abs, r: r}, nil
	}
	if !cached {
		f, err := create()
		if err != nil {
			return nil, err
		}
		return cache.Detached[string](f), nil
	}
	return mappings().GetOrCreate(abs, create)
}

// Destroy unmaps the file.
func (f *File) Destroy() {
	if err := f.r.Close(); err != nil {
		slog.Warn("mmap: unmap failed", slog.String("path", f.path), slog.Any("err", err))
	}
}

// Path returns the absolute path of the mapped file.
func (f *File) Path() string { return f.path }

// Len returns the mapped size in bytes.
func (f *File) Len() int { return f.r.Len() }

// At returns the byte at index i.
func (f *File) At(i int) byte { return f.r.At(i) }

// ReadAt implements io.ReaderAt.
func (f *File) ReadAt(p []byte, off int64) (int, error) { return f.r.ReadAt(p, off) }

// Reader returns a reader over the whole mapping.
func (f *File) Reader() *io.SectionReader { return io.NewSectionReader(f.r, 0, int64(f.r.Len())) }

// Bytes copies the mapped contents.
func (f *File) Bytes() []byte {
	b := make([]byte, f.r.Len())
	n, _ := f.r.ReadAt(b, 0)
	return b[:n]
}
