package extension

import "sort"

// Manifest is the aggregate index of everything the installed extensions
// provide. It is built privately by a scan cycle and swapped into the
// Store wholesale; nothing outside the Store holds a mutable reference to
// a published Manifest. It is always reconstructible from the file system;
// the persisted copy is only a warm-start optimization.
type Manifest struct {
	// Extensions maps extension id to version, one entry per
	// successfully parsed extension.
	Extensions map[string]string `json:"extensions"`

	// Grammars maps grammar name to its entry.
	Grammars map[string]GrammarEntry `json:"grammars"`

	// Languages maps language display name to its entry.
	Languages map[string]LanguageEntry `json:"languages"`

	// Themes maps theme-variant display name to its entry. A family file
	// declaring several variants yields one entry per variant, all
	// sharing the family file path.
	Themes map[string]ThemeEntry `json:"themes"`

	// LanguageServers maps server id to its entry. The store only tracks
	// these; it never executes them.
	LanguageServers map[string]LanguageServerEntry `json:"language_servers"`
}

// GrammarEntry describes one compiled grammar.
type GrammarEntry struct {
	// Extension is the owning extension id.
	Extension string `json:"extension"`

	// Path is the compiled grammar path relative to the extension root.
	Path string `json:"path"`
}

// Matcher associates files with a language.
type Matcher struct {
	// PathSuffixes are file suffixes, in declaration order.
	PathSuffixes []string `json:"path_suffixes"`

	// FirstLinePattern optionally matches the first line of a file.
	FirstLinePattern string `json:"first_line_pattern,omitempty"`
}

// LanguageEntry describes one language contributed by an extension.
type LanguageEntry struct {
	// Extension is the owning extension id.
	Extension string `json:"extension"`

	// Path is the language directory relative to the extension root.
	Path string `json:"path"`

	// Grammar optionally names a grammar. The reference may dangle; a
	// missing grammar only disables highlighting for the language.
	Grammar string `json:"grammar,omitempty"`

	// Matcher associates files with this language.
	Matcher Matcher `json:"matcher"`
}

// ThemeEntry describes one theme variant.
type ThemeEntry struct {
	// Extension is the owning extension id.
	Extension string `json:"extension"`

	// Path is the theme family file relative to the extension root.
	Path string `json:"path"`
}

// LanguageServerEntry describes one language server contributed by an
// extension. The script is opaque configuration handed off to an external
// runtime.
type LanguageServerEntry struct {
	// Extension is the owning extension id.
	Extension string `json:"extension"`

	// Language is the language the server targets.
	Language string `json:"language"`

	// Name is the server's declared name.
	Name string `json:"name"`

	// Path is the server's config directory relative to the extension root.
	Path string `json:"path"`

	// Script is the server script path relative to the extension root.
	Script string `json:"script,omitempty"`
}

// NewManifest creates an empty manifest with all maps allocated.
func NewManifest() *Manifest {
	return &Manifest{
		Extensions:      make(map[string]string),
		Grammars:        make(map[string]GrammarEntry),
		Languages:       make(map[string]LanguageEntry),
		Themes:          make(map[string]ThemeEntry),
		LanguageServers: make(map[string]LanguageServerEntry),
	}
}

// Clone creates a deep copy of the manifest.
func (m *Manifest) Clone() *Manifest {
	clone := NewManifest()
	for k, v := range m.Extensions {
		clone.Extensions[k] = v
	}
	for k, v := range m.Grammars {
		clone.Grammars[k] = v
	}
	for k, v := range m.Languages {
		entry := v
		if v.Matcher.PathSuffixes != nil {
			entry.Matcher.PathSuffixes = make([]string, len(v.Matcher.PathSuffixes))
			copy(entry.Matcher.PathSuffixes, v.Matcher.PathSuffixes)
		}
		clone.Languages[k] = entry
	}
	for k, v := range m.Themes {
		clone.Themes[k] = v
	}
	for k, v := range m.LanguageServers {
		clone.LanguageServers[k] = v
	}
	return clone
}

// RemoveExtension drops the extension and every entry it owns from all
// content categories. Entries owned by other extensions are untouched.
func (m *Manifest) RemoveExtension(id string) {
	delete(m.Extensions, id)
	for name, entry := range m.Grammars {
		if entry.Extension == id {
			delete(m.Grammars, name)
		}
	}
	for name, entry := range m.Languages {
		if entry.Extension == id {
			delete(m.Languages, name)
		}
	}
	for name, entry := range m.Themes {
		if entry.Extension == id {
			delete(m.Themes, name)
		}
	}
	for name, entry := range m.LanguageServers {
		if entry.Extension == id {
			delete(m.LanguageServers, name)
		}
	}
}

// ExtensionIDs returns the installed extension ids, sorted.
func (m *Manifest) ExtensionIDs() []string {
	return sortedKeys(m.Extensions)
}

// GrammarNames returns the grammar names, sorted.
func (m *Manifest) GrammarNames() []string {
	return sortedKeys(m.Grammars)
}

// LanguageNames returns the language display names, sorted.
func (m *Manifest) LanguageNames() []string {
	return sortedKeys(m.Languages)
}

// ThemeNames returns the theme-variant display names, sorted.
func (m *Manifest) ThemeNames() []string {
	return sortedKeys(m.Themes)
}

// LanguageServerIDs returns the language server ids, sorted.
func (m *Manifest) LanguageServerIDs() []string {
	return sortedKeys(m.LanguageServers)
}

// sortedKeys returns the map's keys in sorted order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
