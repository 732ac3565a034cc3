package extension_test

import (
	"testing"

	"github.com/dshills/extstore/internal/vfs"
)

// Fixture extensions used across the scanner and store tests.

const rubyDescriptor = `{
	"id": "acme-ruby",
	"name": "Acme Ruby",
	"version": "1.0.0"
}`

const monokaiDescriptor = `{
	"id": "acme-monokai",
	"name": "Acme Monokai",
	"version": "2.0.0"
}`

const gruvboxDescriptor = `{
	"id": "acme-gruvbox",
	"name": "Acme Gruvbox",
	"version": "1.0.0"
}`

const lspDescriptor = `{
	"id": "the-lsp-extension",
	"name": "The LSP Extension",
	"version": "1.0.0"
}`

const rubyLanguageConfig = `
name = "Ruby"
grammar = "ruby"
path_suffixes = ["rb"]
`

const erbLanguageConfig = `
name = "ERB"
grammar = "embedded_template"
path_suffixes = ["erb"]
`

const monokaiThemeFamily = `{
	"name": "Monokai",
	"author": "Someone",
	"themes": [
		{"name": "Monokai Dark", "appearance": "dark", "style": {}},
		{"name": "Monokai Light", "appearance": "light", "style": {}}
	]
}`

const monokaiProThemeFamily = `{
	"name": "Monokai Pro",
	"author": "Someone",
	"themes": [
		{"name": "Monokai Pro Dark", "appearance": "dark", "style": {}},
		{"name": "Monokai Pro Light", "appearance": "light", "style": {}}
	]
}`

const gruvboxThemeFamily = `{
	"name": "Gruvbox",
	"author": "Someone Else",
	"themes": [
		{"name": "Gruvbox", "appearance": "dark", "style": {}}
	]
}`

const lspServerConfig = `
language = "TypeScript"
name = "the server"
`

const lspServerScript = `export function commandForLanguageServer(version, directory) {
	return {command: '', args: []}
}`

// addFiles writes each path/content pair, failing the test on error.
func addFiles(t *testing.T, fsys *vfs.MemFS, files map[string]string) {
	t.Helper()
	for path, content := range files {
		if err := fsys.AddFile(path, content); err != nil {
			t.Fatalf("AddFile(%q) error = %v", path, err)
		}
	}
}

// writeRubyExtension lays out the acme-ruby fixture under dir.
func writeRubyExtension(t *testing.T, fsys *vfs.MemFS, dir string) {
	t.Helper()
	addFiles(t, fsys, map[string]string{
		dir + "/extension.json":                  rubyDescriptor,
		dir + "/grammars/ruby.wasm":              "",
		dir + "/grammars/embedded_template.wasm": "",
		dir + "/languages/ruby/config.toml":      rubyLanguageConfig,
		dir + "/languages/ruby/highlights.scm":   "",
		dir + "/languages/erb/config.toml":       erbLanguageConfig,
		dir + "/languages/erb/highlights.scm":    "",
	})
}

// writeMonokaiExtension lays out the acme-monokai fixture under dir.
func writeMonokaiExtension(t *testing.T, fsys *vfs.MemFS, dir string) {
	t.Helper()
	addFiles(t, fsys, map[string]string{
		dir + "/extension.json":          monokaiDescriptor,
		dir + "/themes/monokai.json":     monokaiThemeFamily,
		dir + "/themes/monokai-pro.json": monokaiProThemeFamily,
	})
}

// writeGruvboxExtension lays out the acme-gruvbox fixture under dir.
func writeGruvboxExtension(t *testing.T, fsys *vfs.MemFS, dir string) {
	t.Helper()
	addFiles(t, fsys, map[string]string{
		dir + "/extension.json":      gruvboxDescriptor,
		dir + "/themes/gruvbox.json": gruvboxThemeFamily,
	})
}

// writeLSPExtension lays out the language-server fixture under dir.
func writeLSPExtension(t *testing.T, fsys *vfs.MemFS, dir string) {
	t.Helper()
	addFiles(t, fsys, map[string]string{
		dir + "/extension.json":                          lspDescriptor,
		dir + "/language_servers/the-server/config.toml": lspServerConfig,
		dir + "/language_servers/the-server/server.js":   lspServerScript,
	})
}

// equalStrings compares two string slices.
func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
