// Package watcher provides file system change notification for the
// installed-extensions directory. A DirWatcher wraps fsnotify and watches
// a directory tree; a Debouncer coalesces bursts of events (an install
// touches many files) into a single change signal.
package watcher

import (
	"errors"
	"strings"
	"time"
)

// Op is a bitmask of file operations.
type Op uint32

// File operations.
const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

// Has reports whether op contains o.
func (op Op) Has(o Op) bool { return op&o != 0 }

// String returns a pipe-separated representation of the operations.
func (op Op) String() string {
	var parts []string
	if op.Has(OpCreate) {
		parts = append(parts, "create")
	}
	if op.Has(OpWrite) {
		parts = append(parts, "write")
	}
	if op.Has(OpRemove) {
		parts = append(parts, "remove")
	}
	if op.Has(OpRename) {
		parts = append(parts, "rename")
	}
	if op.Has(OpChmod) {
		parts = append(parts, "chmod")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Event is one observed file system change.
type Event struct {
	Path      string
	Op        Op
	Timestamp time.Time
}

// ErrPathNotExist is returned when the watched root does not exist.
var ErrPathNotExist = errors.New("watched path does not exist")
