// Package vfs provides the file system abstraction used by the extension
// store. Swapping the backend allows the store to run against the real OS
// file system in production and an in-memory tree in tests, and the
// counting wrapper makes the store's cache contract (bounded metadata
// calls, no directory listings on a warm start) directly assertable.
package vfs

import (
	"fmt"
	"io/fs"
	"time"
)

// VFS is the file system surface the extension store depends on.
// Implementations must be safe for concurrent use.
type VFS interface {
	// ReadFile reads the entire file content.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating it if necessary.
	WriteFile(path string, data []byte, perm fs.FileMode) error

	// Stat returns file information.
	Stat(path string) (FileInfo, error)

	// ReadDir reads a directory and returns its entries sorted by name.
	ReadDir(path string) ([]FileInfo, error)

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm fs.FileMode) error

	// Remove removes a file or empty directory.
	Remove(path string) error

	// RemoveAll removes a path and all its contents.
	RemoveAll(path string) error

	// Rename renames (moves) a file or directory.
	Rename(oldPath, newPath string) error

	// Exists returns true if the path exists.
	Exists(path string) bool

	// IsDir returns true if the path is a directory.
	IsDir(path string) bool

	// Join joins path elements using the backend's separator.
	Join(elem ...string) string

	// Dir returns the directory portion of a path.
	Dir(path string) string

	// Base returns the last element of a path.
	Base(path string) string

	// Ext returns the file extension.
	Ext(path string) string
}

// FileInfo describes a file or directory.
type FileInfo struct {
	path    string
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

// NewFileInfo creates a FileInfo from the given parameters.
func NewFileInfo(path, name string, size int64, mode fs.FileMode, modTime time.Time, isDir bool) FileInfo {
	return FileInfo{
		path:    path,
		name:    name,
		size:    size,
		mode:    mode,
		modTime: modTime,
		isDir:   isDir,
	}
}

// Path returns the full path.
func (fi FileInfo) Path() string { return fi.path }

// Name returns the base name.
func (fi FileInfo) Name() string { return fi.name }

// Size returns the file size in bytes.
func (fi FileInfo) Size() int64 { return fi.size }

// Mode returns the file mode.
func (fi FileInfo) Mode() fs.FileMode { return fi.mode }

// ModTime returns the modification time.
func (fi FileInfo) ModTime() time.Time { return fi.modTime }

// IsDir returns true if this is a directory.
func (fi FileInfo) IsDir() bool { return fi.isDir }

// CopyAll recursively copies the tree rooted at src to dst.
// dst and any needed parents are created. Files are copied with 0644,
// directories with 0755.
func CopyAll(fsys VFS, src, dst string) error {
	info, err := fsys.Stat(src)
	if err != nil {
		return fmt.Errorf("copy source %s: %w", src, err)
	}

	if !info.IsDir() {
		data, err := fsys.ReadFile(src)
		if err != nil {
			return fmt.Errorf("copy %s: %w", src, err)
		}
		if err := fsys.MkdirAll(fsys.Dir(dst), 0o755); err != nil {
			return err
		}
		return fsys.WriteFile(dst, data, 0o644)
	}

	if err := fsys.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := fsys.ReadDir(src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	for _, entry := range entries {
		srcPath := fsys.Join(src, entry.Name())
		dstPath := fsys.Join(dst, entry.Name())
		if err := CopyAll(fsys, srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}
