package extension

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/extstore/internal/vfs"
)

// On-disk layout under the extensions root.
const (
	installedDirName   = "installed"
	descriptorFileName = "extension.json"
	themesDirName      = "themes"
	languagesDirName   = "languages"
	grammarsDirName    = "grammars"
	serversDirName     = "language_servers"
	configFileName     = "config.toml"
	grammarFileExt     = ".wasm"
	themeFileExt       = ".json"
)

// Scanner walks the installed-extensions tree and produces one Descriptor
// per extension directory. Failures are isolated per extension: a
// malformed or unreadable extension yields a Descriptor carrying the
// error, and the scan continues.
//
// The scanner touches no shared state; descriptors are private until the
// builder merges them.
type Scanner struct {
	fs     vfs.VFS
	root   string
	logger *zap.Logger
}

// NewScanner creates a scanner for the extensions root directory.
func NewScanner(fsys vfs.VFS, root string, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{fs: fsys, root: root, logger: logger}
}

// InstalledDir returns the directory holding installed extensions.
func (s *Scanner) InstalledDir() string {
	return s.fs.Join(s.root, installedDirName)
}

// Scan walks every child of the installed directory and returns the
// resulting descriptors sorted by extension id. A missing installed
// directory is an empty installation, not an error.
func (s *Scanner) Scan() []*Descriptor {
	entries, err := s.fs.ReadDir(s.InstalledDir())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("reading installed extensions directory",
				zap.String("dir", s.InstalledDir()), zap.Error(err))
		}
		return nil
	}

	var descriptors []*Descriptor
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		desc := s.scanExtensionDir(entry.Name())
		if desc.Err != nil {
			s.logger.Warn("skipping extension",
				zap.String("extension", entry.Name()), zap.Error(desc.Err))
		}
		descriptors = append(descriptors, desc)
	}

	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].ID < descriptors[j].ID
	})
	return descriptors
}

// ScanExtension scans a single extension subtree. Used by install and
// uninstall to merge one extension without re-scanning the rest.
func (s *Scanner) ScanExtension(id string) *Descriptor {
	dir := s.fs.Join(s.InstalledDir(), id)
	if !s.fs.IsDir(dir) {
		desc := newDescriptor(id, dir)
		desc.Err = fmt.Errorf("%s: %w", id, ErrNotInstalled)
		return desc
	}
	return s.scanExtensionDir(id)
}

// scanExtensionDir parses one extension directory into a descriptor. Any
// parse or IO failure inside the directory marks the whole extension
// unusable; the invariant that every manifest entry's owner exists in
// Extensions holds by construction.
func (s *Scanner) scanExtensionDir(dirName string) *Descriptor {
	dir := s.fs.Join(s.InstalledDir(), dirName)
	desc := newDescriptor(dirName, dir)

	data, err := s.fs.ReadFile(s.fs.Join(dir, descriptorFileName))
	if err != nil {
		desc.Err = fmt.Errorf("reading %s: %w", descriptorFileName, err)
		return desc
	}
	df, err := parseDescriptorFile(data)
	if err != nil {
		desc.Err = err
		return desc
	}
	// The directory name is the authoritative id: every entry path and
	// removal resolves through it. A mismatching declared id is ignored.
	if df.ID != dirName {
		s.logger.Warn("extension declares an id different from its directory name; using the directory name",
			zap.String("dir", dirName), zap.String("id", df.ID))
	}
	desc.Name = df.Name
	desc.Version = df.Version

	if err := s.scanThemes(dir, desc); err != nil {
		desc.Err = err
		return desc
	}
	if err := s.scanLanguages(dir, desc); err != nil {
		desc.Err = err
		return desc
	}
	if err := s.scanGrammars(dir, desc); err != nil {
		desc.Err = err
		return desc
	}
	if err := s.scanLanguageServers(dir, desc); err != nil {
		desc.Err = err
		return desc
	}
	return desc
}

// scanThemes fans each theme family file out into one entry per variant.
func (s *Scanner) scanThemes(dir string, desc *Descriptor) error {
	entries, err := s.readDirIfExists(s.fs.Join(dir, themesDirName))
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || s.fs.Ext(entry.Name()) != themeFileExt {
			continue
		}
		relPath := path.Join(themesDirName, entry.Name())
		data, err := s.fs.ReadFile(s.fs.Join(dir, relPath))
		if err != nil {
			return fmt.Errorf("reading theme %s: %w", relPath, err)
		}
		family, err := ParseThemeFamily(data)
		if err != nil {
			return fmt.Errorf("theme %s: %w", relPath, err)
		}
		for _, variant := range family.Variants {
			desc.Themes[variant.Name] = ThemeEntry{
				Extension: desc.ID,
				Path:      relPath,
			}
		}
	}
	return nil
}

// scanLanguages reads each language directory's config.toml.
func (s *Scanner) scanLanguages(dir string, desc *Descriptor) error {
	entries, err := s.readDirIfExists(s.fs.Join(dir, languagesDirName))
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		relPath := path.Join(languagesDirName, entry.Name())
		data, err := s.fs.ReadFile(s.fs.Join(dir, relPath, configFileName))
		if err != nil {
			return fmt.Errorf("reading language %s: %w", relPath, err)
		}
		config, err := parseLanguageConfig(data)
		if err != nil {
			return fmt.Errorf("language %s: %w", relPath, err)
		}
		desc.Languages[config.Name] = LanguageEntry{
			Extension: desc.ID,
			Path:      relPath,
			Grammar:   config.Grammar,
			Matcher: Matcher{
				PathSuffixes:     config.PathSuffixes,
				FirstLinePattern: config.FirstLinePattern,
			},
		}
	}
	return nil
}

// scanGrammars indexes compiled grammar binaries by file name.
func (s *Scanner) scanGrammars(dir string, desc *Descriptor) error {
	entries, err := s.readDirIfExists(s.fs.Join(dir, grammarsDirName))
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || s.fs.Ext(entry.Name()) != grammarFileExt {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), grammarFileExt)
		desc.Grammars[name] = GrammarEntry{
			Extension: desc.ID,
			Path:      path.Join(grammarsDirName, entry.Name()),
		}
	}
	return nil
}

// scanLanguageServers reads each server directory's config.toml and
// records its sibling script. The script is never executed here.
func (s *Scanner) scanLanguageServers(dir string, desc *Descriptor) error {
	entries, err := s.readDirIfExists(s.fs.Join(dir, serversDirName))
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		relPath := path.Join(serversDirName, entry.Name())
		data, err := s.fs.ReadFile(s.fs.Join(dir, relPath, configFileName))
		if err != nil {
			return fmt.Errorf("reading language server %s: %w", relPath, err)
		}
		config, err := parseServerConfig(data)
		if err != nil {
			return fmt.Errorf("language server %s: %w", relPath, err)
		}

		script, err := s.findServerScript(s.fs.Join(dir, relPath))
		if err != nil {
			return fmt.Errorf("language server %s: %w", relPath, err)
		}
		if script != "" {
			script = path.Join(relPath, script)
		}

		desc.LanguageServers[entry.Name()] = LanguageServerEntry{
			Extension: desc.ID,
			Language:  config.Language,
			Name:      config.Name,
			Path:      relPath,
			Script:    script,
		}
	}
	return nil
}

// findServerScript returns the first non-config file in a server
// directory, or "" if the server ships no script.
func (s *Scanner) findServerScript(dir string) (string, error) {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == configFileName {
			continue
		}
		return entry.Name(), nil
	}
	return "", nil
}

// readDirIfExists lists a directory, treating absence as empty.
func (s *Scanner) readDirIfExists(dir string) ([]vfs.FileInfo, error) {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return entries, nil
}
