package vfs

import (
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"
)

// MemFS implements VFS with an in-memory tree. It is primarily used for
// testing. Unlike a throwaway fake, it tracks directory modification
// times: creating, removing, or renaming a direct child bumps the parent
// directory's mtime, matching the POSIX behavior the manifest cache's
// validity check relies on.
//
// MemFS is safe for concurrent use. Paths are slash-separated and rooted
// at "/".
type MemFS struct {
	mu    sync.RWMutex
	files map[string]*memFile
	dirs  map[string]time.Time
	now   time.Time
}

type memFile struct {
	content []byte
	mode    fs.FileMode
	modTime time.Time
}

// NewMemFS creates a new in-memory file system containing only "/".
func NewMemFS() *MemFS {
	m := &MemFS{
		files: make(map[string]*memFile),
		dirs:  make(map[string]time.Time),
		now:   time.Unix(1700000000, 0),
	}
	m.dirs["/"] = m.now
	return m
}

// Ensure MemFS implements VFS.
var _ VFS = (*MemFS)(nil)

// tick returns a strictly increasing timestamp. Must be called with mu held.
func (m *MemFS) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

// touchParent bumps the parent directory's mtime. Must be called with mu held.
func (m *MemFS) touchParent(p string) {
	parent := path.Dir(p)
	if _, ok := m.dirs[parent]; ok {
		m.dirs[parent] = m.tick()
	}
}

// ReadFile reads the entire file content.
func (m *MemFS) ReadFile(filePath string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = cleanPath(filePath)
	f, ok := m.files[filePath]
	if !ok {
		if _, isDir := m.dirs[filePath]; isDir {
			return nil, &fs.PathError{Op: "read", Path: filePath, Err: syscall.EISDIR}
		}
		return nil, &fs.PathError{Op: "read", Path: filePath, Err: fs.ErrNotExist}
	}

	content := make([]byte, len(f.content))
	copy(content, f.content)
	return content, nil
}

// WriteFile writes data to a file, creating it if necessary.
func (m *MemFS) WriteFile(filePath string, data []byte, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePath = cleanPath(filePath)
	if _, isDir := m.dirs[filePath]; isDir {
		return &fs.PathError{Op: "write", Path: filePath, Err: syscall.EISDIR}
	}

	dir := path.Dir(filePath)
	if _, ok := m.dirs[dir]; !ok {
		return &fs.PathError{Op: "write", Path: filePath, Err: fs.ErrNotExist}
	}

	content := make([]byte, len(data))
	copy(content, data)

	_, existed := m.files[filePath]
	m.files[filePath] = &memFile{content: content, mode: perm, modTime: m.tick()}
	if !existed {
		m.touchParent(filePath)
	}
	return nil
}

// Stat returns file information.
func (m *MemFS) Stat(filePath string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = cleanPath(filePath)
	if f, ok := m.files[filePath]; ok {
		return NewFileInfo(filePath, path.Base(filePath), int64(len(f.content)), f.mode, f.modTime, false), nil
	}
	if mt, ok := m.dirs[filePath]; ok {
		return NewFileInfo(filePath, path.Base(filePath), 0, fs.ModeDir|0o755, mt, true), nil
	}
	return FileInfo{}, &fs.PathError{Op: "stat", Path: filePath, Err: fs.ErrNotExist}
}

// ReadDir reads a directory and returns its entries sorted by name.
func (m *MemFS) ReadDir(dirPath string) ([]FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dirPath = cleanPath(dirPath)
	if _, ok := m.dirs[dirPath]; !ok {
		if _, isFile := m.files[dirPath]; isFile {
			return nil, &fs.PathError{Op: "readdir", Path: dirPath, Err: syscall.ENOTDIR}
		}
		return nil, &fs.PathError{Op: "readdir", Path: dirPath, Err: fs.ErrNotExist}
	}

	prefix := dirPath
	if prefix != "/" {
		prefix += "/"
	}

	var entries []FileInfo
	for filePath, f := range m.files {
		rest, ok := directChild(filePath, prefix)
		if !ok {
			continue
		}
		entries = append(entries, NewFileInfo(filePath, rest, int64(len(f.content)), f.mode, f.modTime, false))
	}
	for d, mt := range m.dirs {
		rest, ok := directChild(d, prefix)
		if !ok {
			continue
		}
		entries = append(entries, NewFileInfo(d, rest, 0, fs.ModeDir|0o755, mt, true))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

// MkdirAll creates a directory and all parent directories.
func (m *MemFS) MkdirAll(dirPath string, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dirPath = cleanPath(dirPath)
	if _, ok := m.files[dirPath]; ok {
		return &fs.PathError{Op: "mkdir", Path: dirPath, Err: syscall.ENOTDIR}
	}

	parts := strings.Split(strings.Trim(dirPath, "/"), "/")
	current := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		current += "/" + part
		if _, ok := m.files[current]; ok {
			return &fs.PathError{Op: "mkdir", Path: current, Err: syscall.ENOTDIR}
		}
		if _, ok := m.dirs[current]; !ok {
			m.dirs[current] = m.tick()
			m.touchParent(current)
		}
	}
	return nil
}

// Remove removes a file or empty directory.
func (m *MemFS) Remove(filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePath = cleanPath(filePath)
	if _, ok := m.files[filePath]; ok {
		delete(m.files, filePath)
		m.touchParent(filePath)
		return nil
	}

	if _, ok := m.dirs[filePath]; !ok {
		return &fs.PathError{Op: "remove", Path: filePath, Err: fs.ErrNotExist}
	}

	prefix := filePath + "/"
	for f := range m.files {
		if strings.HasPrefix(f, prefix) {
			return &fs.PathError{Op: "remove", Path: filePath, Err: syscall.ENOTEMPTY}
		}
	}
	for d := range m.dirs {
		if strings.HasPrefix(d, prefix) {
			return &fs.PathError{Op: "remove", Path: filePath, Err: syscall.ENOTEMPTY}
		}
	}

	delete(m.dirs, filePath)
	m.touchParent(filePath)
	return nil
}

// RemoveAll removes a path and all its contents.
// It succeeds if the path does not exist.
func (m *MemFS) RemoveAll(filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	filePath = cleanPath(filePath)
	if _, ok := m.files[filePath]; ok {
		delete(m.files, filePath)
		m.touchParent(filePath)
		return nil
	}
	if _, ok := m.dirs[filePath]; !ok {
		return nil
	}

	prefix := filePath + "/"
	for f := range m.files {
		if strings.HasPrefix(f, prefix) {
			delete(m.files, f)
		}
	}
	for d := range m.dirs {
		if d == filePath || strings.HasPrefix(d, prefix) {
			delete(m.dirs, d)
		}
	}
	m.touchParent(filePath)
	return nil
}

// Rename renames (moves) a file or directory.
func (m *MemFS) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldPath = cleanPath(oldPath)
	newPath = cleanPath(newPath)

	f, isFile := m.files[oldPath]
	_, isDir := m.dirs[oldPath]
	if !isFile && !isDir {
		return &fs.PathError{Op: "rename", Path: oldPath, Err: fs.ErrNotExist}
	}

	newParent := path.Dir(newPath)
	if _, ok := m.dirs[newParent]; !ok {
		return &fs.PathError{Op: "rename", Path: newPath, Err: fs.ErrNotExist}
	}

	if isFile {
		m.files[newPath] = f
		delete(m.files, oldPath)
		m.touchParent(oldPath)
		m.touchParent(newPath)
		return nil
	}

	oldPrefix := oldPath + "/"
	for filePath, content := range m.files {
		if strings.HasPrefix(filePath, oldPrefix) {
			m.files[path.Join(newPath, strings.TrimPrefix(filePath, oldPrefix))] = content
			delete(m.files, filePath)
		}
	}
	for d, mt := range m.dirs {
		if d == oldPath || strings.HasPrefix(d, oldPrefix) {
			rel := strings.TrimPrefix(d, oldPath)
			if rel == "" {
				m.dirs[newPath] = mt
			} else {
				m.dirs[path.Join(newPath, rel)] = mt
			}
			delete(m.dirs, d)
		}
	}
	m.touchParent(oldPath)
	m.touchParent(newPath)
	return nil
}

// Exists returns true if the path exists.
func (m *MemFS) Exists(filePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	filePath = cleanPath(filePath)
	if _, ok := m.files[filePath]; ok {
		return true
	}
	_, ok := m.dirs[filePath]
	return ok
}

// IsDir returns true if the path is a directory.
func (m *MemFS) IsDir(filePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.dirs[cleanPath(filePath)]
	return ok
}

// Join joins path elements.
func (m *MemFS) Join(elem ...string) string {
	return path.Join(elem...)
}

// Dir returns the directory portion of a path.
func (m *MemFS) Dir(filePath string) string {
	return path.Dir(cleanPath(filePath))
}

// Base returns the last element of a path.
func (m *MemFS) Base(filePath string) string {
	return path.Base(filePath)
}

// Ext returns the file extension.
func (m *MemFS) Ext(filePath string) string {
	return path.Ext(filePath)
}

// AddFile writes a file, creating parent directories as needed.
// Convenience for test setup.
func (m *MemFS) AddFile(filePath, content string) error {
	filePath = cleanPath(filePath)
	if dir := path.Dir(filePath); dir != "/" {
		if err := m.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return m.WriteFile(filePath, []byte(content), 0o644)
}

// Files returns all file paths, sorted. Useful for testing and debugging.
func (m *MemFS) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]string, 0, len(m.files))
	for f := range m.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// directChild reports whether p is a direct child of the slash-terminated
// prefix, returning the child name.
func directChild(p, prefix string) (string, bool) {
	if !strings.HasPrefix(p, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(p, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// cleanPath normalizes a path to an absolute slash-separated form.
func cleanPath(p string) string {
	p = path.Clean(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
