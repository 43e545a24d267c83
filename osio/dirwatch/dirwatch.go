// Package dirwatch shares directory watchers: one OS watcher per directory,
// however many subsystems listen to it, closed when the last one releases it.
package dirwatch

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/IvanBrykalov/objcache/cache"
	"github.com/IvanBrykalov/objcache/event"
	"github.com/IvanBrykalov/objcache/internal/oserr"
)

// Op is the set of operations a change reports.
type Op = fsnotify.Op

// Operations, as reported by the OS watcher.
const (
	Create = fsnotify.Create
	Write  = fsnotify.Write
	Remove = fsnotify.Remove
	Rename = fsnotify.Rename
	Chmod  = fsnotify.Chmod
)

// Change describes one file system change inside the watched directory.
type Change struct {
	Path string
	Op   Op
}

// Watcher reports changes to the files of one directory.
type Watcher struct {
	cache.Stored[string]
	dir string
	w   *fsnotify.Watcher

	onChanged event.Event[Change]
	done      chan struct{}
}

var watchers = sync.OnceValue(func() *cache.Cache[string, *Watcher] {
	return cache.New[string, *Watcher](cache.Options[string, *Watcher]{})
})

// Open starts watching dir. With cached set, all requests for the same
// directory share one watcher; otherwise the watcher is private. The caller
// owns one reference and must Release it.
func Open(dir string, cached bool) (*Watcher, error) {
	if dir == "" {
		return nil, oserr.Invalid("dirwatch: empty path", dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, oserr.Wrap(err, "dirwatch: resolve path", dir)
	}

	create := func() (*Watcher, error) { return newWatcher(abs) }
	if !cached {
		w, err := create()
		if err != nil {
			return nil, err
		}
		return cache.Detached[string](w), nil
	}
	return watchers().GetOrCreate(abs, create)
}

func newWatcher(dir string) (*Watcher, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, oserr.Wrap(err, "dirwatch: stat", dir)
	}
	if !st.IsDir() {
		return nil, oserr.Invalid("dirwatch: not a directory", dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("dirwatch: error creating file watcher: " + err.Error())
		return nil, oserr.Wrap(err, "dirwatch: create watcher", dir)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, oserr.Wrap(err, "dirwatch: add directory", dir)
	}

	w := &Watcher{dir: dir, w: fw, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			w.onChanged.Emit(Change{Path: ev.Name, Op: ev.Op})
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			slog.Warn("dirwatch: watcher error", slog.String("dir", w.dir), slog.Any("err", err))
		}
	}
}

// Destroy closes the OS watcher. Handlers may still be running when it
// returns.
func (w *Watcher) Destroy() {
	if err := w.w.Close(); err != nil {
		slog.Warn("dirwatch: close failed", slog.String("dir", w.dir), slog.Any("err", err))
	}
}

// Dir returns the absolute path of the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// OnFileChanged fires from the watcher goroutine for every change.
func (w *Watcher) OnFileChanged() *event.Event[Change] { return &w.onChanged }

// Done is closed once the watcher has stopped delivering changes.
func (w *Watcher) Done() <-chan struct{} { return w.done }
