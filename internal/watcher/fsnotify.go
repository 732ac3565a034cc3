package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DirWatcher watches a directory tree using fsnotify. Directories created
// under the root after the watch starts are added automatically, so an
// extension directory dropped into the root is covered without a restart.
type DirWatcher struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool

	events   chan Event
	errors   chan error
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// New creates a watcher covering root and all of its subdirectories.
func New(root string) (*DirWatcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPathNotExist
		}
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &DirWatcher{
		watcher: fsw,
		events:  make(chan Event, 100),
		errors:  make(chan error, 100),
		closeCh: make(chan struct{}),
	}

	if info.IsDir() {
		if err := w.watchTree(root); err != nil {
			fsw.Close()
			return nil, err
		}
	} else if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, err
	}

	w.closedWg.Add(1)
	go w.processLoop()
	return w, nil
}

// Events returns the event channel. It is closed by Close.
func (w *DirWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel. It is closed by Close.
func (w *DirWatcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher and closes its channels.
func (w *DirWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	err := w.watcher.Close()
	w.closedWg.Wait()
	close(w.events)
	close(w.errors)
	return err
}

// watchTree adds root and every subdirectory to the watch set.
func (w *DirWatcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries, keep walking
		}
		if d.IsDir() {
			if addErr := w.watcher.Add(p); addErr != nil {
				select {
				case w.errors <- addErr:
				default:
				}
			}
		}
		return nil
	})
}

// processLoop converts fsnotify events and auto-watches new directories.
func (w *DirWatcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case fsEvent, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			op := convertOp(fsEvent.Op)
			if op == 0 {
				continue
			}
			select {
			case w.events <- Event{Path: fsEvent.Name, Op: op, Timestamp: time.Now()}:
			default:
				// Channel full; the debouncer only needs one event per
				// burst, so dropping is safe.
			}
			if op.Has(OpCreate) {
				if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() {
					_ = w.watcher.Add(fsEvent.Name)
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

// convertOp converts fsnotify.Op to watcher.Op.
func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if fsOp.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	return op
}
