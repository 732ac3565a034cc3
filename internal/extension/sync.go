package extension

import (
	"go.uber.org/zap"

	"github.com/dshills/extstore/internal/vfs"
)

// LanguageRegistry is the external language registry the store keeps in
// sync with the manifest. The store owns a reference to it; it is never
// reached through a global.
type LanguageRegistry interface {
	// Register adds or replaces a language. grammar may be empty or name
	// a grammar that is not (yet) registered.
	Register(name string, matcher Matcher, grammar string)

	// Remove unregisters a language by display name.
	Remove(name string)

	// AddGrammar adds or replaces a compiled grammar by name. The path
	// is absolute; the registry hands it to the grammar runtime.
	AddGrammar(name, wasmPath string)

	// RemoveGrammar unregisters a grammar by name.
	RemoveGrammar(name string)

	// LanguageNames returns all registered language names, sorted.
	LanguageNames() []string

	// GrammarNames returns all registered grammar names, sorted.
	GrammarNames() []string
}

// ThemeRegistry is the external theme registry. Variants are inserted in
// bulk from a family file and removed per owning extension.
type ThemeRegistry interface {
	// InsertFromFile parses the theme family file at the absolute path
	// and inserts one variant per declaration, owned by extensionID.
	InsertFromFile(extensionID, path string) error

	// RemoveByExtension removes every variant owned by the extension.
	RemoveByExtension(extensionID string)

	// ListNames returns variant names, sorted. Hidden variants are
	// included only when includeHidden is set.
	ListNames(includeHidden bool) []string
}

// LanguageServerTracker consumes language-server entries as they appear
// and disappear. The store only forwards entries; detecting versions,
// downloading, and launching servers belongs to the tracker's consumer.
type LanguageServerTracker interface {
	// LanguageServerAdded is called for each tracked server entry.
	LanguageServerAdded(id string, entry LanguageServerEntry)

	// LanguageServerRemoved is called when a server entry disappears.
	LanguageServerRemoved(id string)
}

// Syncer applies a manifest diff to the external registries in
// dependency-safe order: removals before additions within a category,
// languages unregistered before the grammars they reference, and grammars
// registered before the languages that reference them. A language whose
// grammar reference dangles is still registered; the miss is logged.
type Syncer struct {
	fs           vfs.VFS
	installedDir string
	languages    LanguageRegistry
	themes       ThemeRegistry
	servers      LanguageServerTracker
	logger       *zap.Logger
}

// NewSyncer creates a syncer driving the given collaborators. servers may
// be nil when no language-server consumer is attached.
func NewSyncer(fsys vfs.VFS, installedDir string, languages LanguageRegistry, themes ThemeRegistry, servers LanguageServerTracker, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		fs:           fsys,
		installedDir: installedDir,
		languages:    languages,
		themes:       themes,
		servers:      servers,
		logger:       logger,
	}
}

// Apply drives the registries from prev to next according to diff. It is
// called only with a completed diff against a fully built manifest, so a
// cycle either applies in full or not at all.
func (s *Syncer) Apply(diff *Diff, prev, next *Manifest) {
	if prev == nil {
		prev = NewManifest()
	}

	// Removals. Languages go first so no registered language ever
	// references a grammar that was already unregistered.
	for _, name := range diff.LanguagesRemoved {
		s.languages.Remove(name)
	}
	for _, name := range diff.GrammarsRemoved {
		s.languages.RemoveGrammar(name)
	}
	for _, id := range diff.ServersRemoved {
		if s.servers != nil {
			s.servers.LanguageServerRemoved(id)
		}
	}
	s.syncThemes(diff, prev, next)

	// Additions. Grammars go first so languages can resolve their
	// references immediately.
	for _, name := range diff.GrammarsAdded {
		entry := next.Grammars[name]
		s.languages.AddGrammar(name, s.entryPath(entry.Extension, entry.Path))
	}
	for _, name := range diff.LanguagesAdded {
		entry := next.Languages[name]
		if entry.Grammar != "" {
			if _, ok := next.Grammars[entry.Grammar]; !ok {
				s.logger.Warn("language references a missing grammar; highlighting disabled",
					zap.String("language", name),
					zap.String("grammar", entry.Grammar),
					zap.String("extension", entry.Extension))
			}
		}
		s.languages.Register(name, entry.Matcher, entry.Grammar)
	}
	for _, id := range diff.ServersAdded {
		if s.servers != nil {
			s.servers.LanguageServerAdded(id, next.LanguageServers[id])
		}
	}
}

// syncThemes reconciles the theme registry. The registry's removal
// granularity is per extension, so every extension that lost a variant is
// cleared and its surviving family files re-inserted; remaining additions
// are inserted once per family file.
func (s *Syncer) syncThemes(diff *Diff, prev, next *Manifest) {
	cleared := make(map[string]bool)
	for _, name := range diff.ThemesRemoved {
		entry, ok := prev.Themes[name]
		if !ok {
			continue
		}
		cleared[entry.Extension] = true
	}

	inserted := make(map[string]bool)
	insert := func(extensionID, relPath string) {
		key := extensionID + "\x00" + relPath
		if inserted[key] {
			return
		}
		inserted[key] = true
		absPath := s.entryPath(extensionID, relPath)
		if err := s.themes.InsertFromFile(extensionID, absPath); err != nil {
			s.logger.Warn("loading theme family",
				zap.String("extension", extensionID),
				zap.String("path", absPath), zap.Error(err))
		}
	}

	for _, extensionID := range sortedKeys(cleared) {
		s.themes.RemoveByExtension(extensionID)
		for _, name := range next.ThemeNames() {
			if entry := next.Themes[name]; entry.Extension == extensionID {
				insert(entry.Extension, entry.Path)
			}
		}
	}
	for _, name := range diff.ThemesAdded {
		entry := next.Themes[name]
		if cleared[entry.Extension] {
			continue // already re-inserted above
		}
		insert(entry.Extension, entry.Path)
	}
}

// entryPath resolves an extension-relative path to an absolute one.
func (s *Syncer) entryPath(extensionID, relPath string) string {
	return s.fs.Join(s.installedDir, extensionID, relPath)
}
