package extension

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/extstore/internal/vfs"
)

// cacheFileName is the persisted manifest's name under the extensions root.
const cacheFileName = "manifest.json"

// cacheFile wraps the persisted manifest with the validity key: the
// modification time of the installed directory captured at save time.
// Installing or uninstalling an extension changes that mtime, which
// invalidates the cache and forces a full scan.
type cacheFile struct {
	InstalledModTime time.Time `json:"installed_mod_time"`
	Manifest         *Manifest `json:"manifest"`
}

// Cache persists the manifest between restarts so a warm start can skip
// the directory walk entirely. A valid load costs one Stat of the
// installed directory plus one file read; it never lists a directory.
// The cache is only an optimization: missing, stale, or corrupt cache
// files silently degrade to a full scan.
type Cache struct {
	fs     vfs.VFS
	root   string
	logger *zap.Logger
}

// NewCache creates a cache rooted at the extensions root directory.
func NewCache(fsys vfs.VFS, root string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{fs: fsys, root: root, logger: logger}
}

// path returns the cache file location.
func (c *Cache) path() string {
	return c.fs.Join(c.root, cacheFileName)
}

// Load returns the cached manifest if it is still valid for the current
// state of the installed directory. Invalid for any reason returns
// (nil, false); corruption is never surfaced to the caller.
func (c *Cache) Load() (*Manifest, bool) {
	installed, err := c.fs.Stat(c.fs.Join(c.root, installedDirName))
	if err != nil {
		return nil, false
	}

	data, err := c.fs.ReadFile(c.path())
	if err != nil {
		return nil, false
	}

	var cached cacheFile
	if err := json.Unmarshal(data, &cached); err != nil {
		c.logger.Debug("discarding corrupt manifest cache", zap.Error(err))
		return nil, false
	}
	if cached.Manifest == nil || !cached.InstalledModTime.Equal(installed.ModTime()) {
		c.logger.Debug("manifest cache is stale",
			zap.Time("cached", cached.InstalledModTime),
			zap.Time("current", installed.ModTime()))
		return nil, false
	}

	// Old caches may predate a category; keep the invariant that all
	// maps are non-nil.
	normalizeManifest(cached.Manifest)
	return cached.Manifest, true
}

// Save persists the manifest atomically: the payload is written to a
// uniquely named temp file and renamed over the cache path.
func (c *Cache) Save(m *Manifest) error {
	installed, err := c.fs.Stat(c.fs.Join(c.root, installedDirName))
	if err != nil {
		return fmt.Errorf("saving manifest cache: %w", err)
	}

	data, err := json.MarshalIndent(cacheFile{
		InstalledModTime: installed.ModTime(),
		Manifest:         m,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest cache: %w", err)
	}

	tmpPath := c.path() + ".tmp-" + uuid.NewString()
	if err := c.fs.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest cache: %w", err)
	}
	if err := c.fs.Rename(tmpPath, c.path()); err != nil {
		_ = c.fs.Remove(tmpPath)
		return fmt.Errorf("committing manifest cache: %w", err)
	}
	return nil
}

// normalizeManifest allocates any nil category map.
func normalizeManifest(m *Manifest) {
	if m.Extensions == nil {
		m.Extensions = make(map[string]string)
	}
	if m.Grammars == nil {
		m.Grammars = make(map[string]GrammarEntry)
	}
	if m.Languages == nil {
		m.Languages = make(map[string]LanguageEntry)
	}
	if m.Themes == nil {
		m.Themes = make(map[string]ThemeEntry)
	}
	if m.LanguageServers == nil {
		m.LanguageServers = make(map[string]LanguageServerEntry)
	}
}
