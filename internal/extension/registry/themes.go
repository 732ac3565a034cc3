package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/extstore/internal/extension"
	"github.com/dshills/extstore/internal/vfs"
)

// DefaultTheme is the built-in theme variant that is always present.
const DefaultTheme = "One Dark"

// themeVariant is one registered theme variant.
type themeVariant struct {
	extension  string
	family     string
	appearance string
	path       string
	hidden     bool
	builtin    bool
}

// Themes is an in-memory theme registry. Variants are inserted in bulk
// from theme family files and removed per owning extension. The built-in
// default theme is always present.
//
// Themes is safe for concurrent use.
type Themes struct {
	fs vfs.VFS

	mu       sync.RWMutex
	variants map[string]themeVariant
}

// NewThemes creates a theme registry reading family files through fsys.
func NewThemes(fsys vfs.VFS) *Themes {
	t := &Themes{
		fs:       fsys,
		variants: make(map[string]themeVariant),
	}
	t.variants[DefaultTheme] = themeVariant{
		family:     DefaultTheme,
		appearance: "dark",
		builtin:    true,
	}
	return t
}

// Ensure Themes implements the store's contract.
var _ extension.ThemeRegistry = (*Themes)(nil)

// InsertFromFile parses the theme family file at path and inserts one
// variant per declaration, all owned by extensionID.
func (t *Themes) InsertFromFile(extensionID, path string) error {
	data, err := t.fs.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading theme family %s: %w", path, err)
	}
	family, err := extension.ParseThemeFamily(data)
	if err != nil {
		return fmt.Errorf("theme family %s: %w", path, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, variant := range family.Variants {
		if existing, ok := t.variants[variant.Name]; ok && existing.builtin {
			continue
		}
		t.variants[variant.Name] = themeVariant{
			extension:  extensionID,
			family:     family.Name,
			appearance: variant.Appearance,
			path:       path,
			hidden:     variant.Hidden,
		}
	}
	return nil
}

// RemoveByExtension removes every variant owned by the extension.
func (t *Themes) RemoveByExtension(extensionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for name, variant := range t.variants {
		if variant.extension == extensionID && !variant.builtin {
			delete(t.variants, name)
		}
	}
}

// ListNames returns variant names sorted. Hidden variants are included
// only when includeHidden is set.
func (t *Themes) ListNames(includeHidden bool) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.variants))
	for name, variant := range t.variants {
		if variant.hidden && !includeHidden {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Owner returns the owning extension of a variant. Built-ins report an
// empty owner.
func (t *Themes) Owner(name string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	variant, ok := t.variants[name]
	return variant.extension, ok
}

// Path returns the family file path of a variant.
func (t *Themes) Path(name string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	variant, ok := t.variants[name]
	return variant.path, ok
}
