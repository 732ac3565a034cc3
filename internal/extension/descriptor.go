package extension

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/gjson"
)

// Descriptor is the raw, per-extension output of a scan. Content maps are
// keyed by display name with paths relative to the extension root, ready
// for the builder to merge. A descriptor with a non-nil Err carries no
// usable content and is skipped by the builder.
type Descriptor struct {
	// ID is the extension id. It is always the installed directory name;
	// an id declared in extension.json that disagrees is ignored, since
	// paths and removals resolve through the directory.
	ID string

	// Name is the human-readable extension name.
	Name string

	// Version is the declared version string.
	Version string

	// Path is the extension's root directory.
	Path string

	// Grammars maps grammar name to compiled grammar path.
	Grammars map[string]GrammarEntry

	// Languages maps language display name to its entry.
	Languages map[string]LanguageEntry

	// Themes maps theme-variant display name to its entry.
	Themes map[string]ThemeEntry

	// LanguageServers maps server id to its entry.
	LanguageServers map[string]LanguageServerEntry

	// Err is the failure that made this extension unusable, if any.
	Err error
}

// newDescriptor creates an empty descriptor for the given directory.
func newDescriptor(id, path string) *Descriptor {
	return &Descriptor{
		ID:              id,
		Path:            path,
		Grammars:        make(map[string]GrammarEntry),
		Languages:       make(map[string]LanguageEntry),
		Themes:          make(map[string]ThemeEntry),
		LanguageServers: make(map[string]LanguageServerEntry),
	}
}

// descriptorFile is the shape of extension.json.
type descriptorFile struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Authors     []string `json:"authors"`
}

// parseDescriptorFile parses and validates an extension.json payload.
func parseDescriptorFile(data []byte) (*descriptorFile, error) {
	var d descriptorFile
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	if d.ID == "" {
		return nil, ErrMissingID
	}
	if d.Name == "" {
		return nil, ErrMissingName
	}
	if d.Version == "" {
		return nil, ErrMissingVersion
	}
	return &d, nil
}

// languageConfig is the shape of languages/<dir>/config.toml.
type languageConfig struct {
	Name             string   `toml:"name"`
	Grammar          string   `toml:"grammar"`
	PathSuffixes     []string `toml:"path_suffixes"`
	FirstLinePattern string   `toml:"first_line_pattern"`
}

// parseLanguageConfig parses and validates a language config payload.
func parseLanguageConfig(data []byte) (*languageConfig, error) {
	var c languageConfig
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLanguageConfig, err)
	}
	if c.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidLanguageConfig)
	}
	return &c, nil
}

// serverConfig is the shape of language_servers/<id>/config.toml.
type serverConfig struct {
	Language string `toml:"language"`
	Name     string `toml:"name"`
}

// parseServerConfig parses and validates a language server config payload.
func parseServerConfig(data []byte) (*serverConfig, error) {
	var c serverConfig
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServerConfig, err)
	}
	if c.Language == "" {
		return nil, fmt.Errorf("%w: language is required", ErrInvalidServerConfig)
	}
	return &c, nil
}

// ThemeFamily is the parsed header of a theme family file: the family
// name, author, and the declared variants. Variant styles stay on disk;
// the store only indexes names.
type ThemeFamily struct {
	Name     string
	Author   string
	Variants []ThemeVariant
}

// ThemeVariant is one named appearance within a theme family file.
type ThemeVariant struct {
	Name       string
	Appearance string
	Hidden     bool
}

// ParseThemeFamily probes a theme family file. Theme files in the wild
// carry arbitrarily deep style tables, so the probe is tolerant: only the
// family name and each variant's name and appearance are required.
func ParseThemeFamily(data []byte) (*ThemeFamily, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidThemeFile)
	}

	name := gjson.GetBytes(data, "name")
	if !name.Exists() || name.String() == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidThemeFile)
	}
	variants := gjson.GetBytes(data, "themes")
	if !variants.IsArray() {
		return nil, fmt.Errorf("%w: themes array is required", ErrInvalidThemeFile)
	}

	family := &ThemeFamily{
		Name:   name.String(),
		Author: gjson.GetBytes(data, "author").String(),
	}
	var badVariant error
	variants.ForEach(func(_, v gjson.Result) bool {
		variantName := v.Get("name").String()
		if variantName == "" {
			badVariant = fmt.Errorf("%w: variant name is required", ErrInvalidThemeFile)
			return false
		}
		family.Variants = append(family.Variants, ThemeVariant{
			Name:       variantName,
			Appearance: v.Get("appearance").String(),
			Hidden:     v.Get("style.hidden").Bool(),
		})
		return true
	})
	if badVariant != nil {
		return nil, badVariant
	}
	return family, nil
}
