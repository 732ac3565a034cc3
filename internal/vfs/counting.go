package vfs

import (
	"io/fs"
	"sync/atomic"
)

// CountingFS wraps another VFS and counts metadata probes (Stat, Exists,
// IsDir) and directory listings (ReadDir). The extension store's manifest
// cache promises a warm start with a bounded number of metadata calls and
// zero directory listings; tests assert that promise through this wrapper.
type CountingFS struct {
	inner VFS

	metadataCalls atomic.Int64
	readDirCalls  atomic.Int64
}

// NewCountingFS wraps inner with call counters.
func NewCountingFS(inner VFS) *CountingFS {
	return &CountingFS{inner: inner}
}

// Ensure CountingFS implements VFS.
var _ VFS = (*CountingFS)(nil)

// MetadataCalls returns the number of Stat, Exists, and IsDir calls made.
func (c *CountingFS) MetadataCalls() int64 {
	return c.metadataCalls.Load()
}

// ReadDirCalls returns the number of ReadDir calls made.
func (c *CountingFS) ReadDirCalls() int64 {
	return c.readDirCalls.Load()
}

// ResetCounts zeroes both counters.
func (c *CountingFS) ResetCounts() {
	c.metadataCalls.Store(0)
	c.readDirCalls.Store(0)
}

func (c *CountingFS) ReadFile(path string) ([]byte, error) {
	return c.inner.ReadFile(path)
}

func (c *CountingFS) WriteFile(path string, data []byte, perm fs.FileMode) error {
	return c.inner.WriteFile(path, data, perm)
}

func (c *CountingFS) Stat(path string) (FileInfo, error) {
	c.metadataCalls.Add(1)
	return c.inner.Stat(path)
}

func (c *CountingFS) ReadDir(path string) ([]FileInfo, error) {
	c.readDirCalls.Add(1)
	return c.inner.ReadDir(path)
}

func (c *CountingFS) MkdirAll(path string, perm fs.FileMode) error {
	return c.inner.MkdirAll(path, perm)
}

func (c *CountingFS) Remove(path string) error {
	return c.inner.Remove(path)
}

func (c *CountingFS) RemoveAll(path string) error {
	return c.inner.RemoveAll(path)
}

func (c *CountingFS) Rename(oldPath, newPath string) error {
	return c.inner.Rename(oldPath, newPath)
}

func (c *CountingFS) Exists(path string) bool {
	c.metadataCalls.Add(1)
	return c.inner.Exists(path)
}

func (c *CountingFS) IsDir(path string) bool {
	c.metadataCalls.Add(1)
	return c.inner.IsDir(path)
}

func (c *CountingFS) Join(elem ...string) string  { return c.inner.Join(elem...) }
func (c *CountingFS) Dir(path string) string      { return c.inner.Dir(path) }
func (c *CountingFS) Base(path string) string     { return c.inner.Base(path) }
func (c *CountingFS) Ext(path string) string      { return c.inner.Ext(path) }
