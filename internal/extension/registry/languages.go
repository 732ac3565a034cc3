// Package registry provides in-memory implementations of the extension
// store's collaborator contracts: a language registry, a theme registry,
// and a language-server tracker. The editor host wires real consumers
// behind these; tests use them directly.
package registry

import (
	"sort"
	"sync"

	"github.com/dshills/extstore/internal/extension"
)

// PlainTextLanguage is the built-in language that is always registered.
const PlainTextLanguage = "Plain Text"

// languageInfo is one registered language.
type languageInfo struct {
	matcher extension.Matcher
	grammar string
	builtin bool
}

// Languages is an in-memory language registry. It ships with the
// built-in "Plain Text" language, which cannot be removed.
//
// Languages is safe for concurrent use.
type Languages struct {
	mu        sync.RWMutex
	languages map[string]languageInfo
	grammars  map[string]string // grammar name -> wasm path
}

// NewLanguages creates a language registry holding only the built-ins.
func NewLanguages() *Languages {
	l := &Languages{
		languages: make(map[string]languageInfo),
		grammars:  make(map[string]string),
	}
	l.languages[PlainTextLanguage] = languageInfo{builtin: true}
	return l
}

// Ensure Languages implements the store's contract.
var _ extension.LanguageRegistry = (*Languages)(nil)

// Register adds or replaces a language. The grammar reference may name a
// grammar that is not registered; the language still works, without
// highlighting, until the grammar appears.
func (l *Languages) Register(name string, matcher extension.Matcher, grammar string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.languages[name]; ok && existing.builtin {
		return
	}
	l.languages[name] = languageInfo{matcher: matcher, grammar: grammar}
}

// Remove unregisters a language. Built-ins are kept.
func (l *Languages) Remove(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if info, ok := l.languages[name]; ok && !info.builtin {
		delete(l.languages, name)
	}
}

// AddGrammar adds or replaces a compiled grammar.
func (l *Languages) AddGrammar(name, wasmPath string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.grammars[name] = wasmPath
}

// RemoveGrammar unregisters a grammar.
func (l *Languages) RemoveGrammar(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.grammars, name)
}

// LanguageNames returns all registered language names, sorted.
func (l *Languages) LanguageNames() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.languages))
	for name := range l.languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GrammarNames returns all registered grammar names, sorted.
func (l *Languages) GrammarNames() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.grammars))
	for name := range l.grammars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GrammarPath returns the wasm path registered for a grammar.
func (l *Languages) GrammarPath(name string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	path, ok := l.grammars[name]
	return path, ok
}

// Matcher returns the matcher registered for a language.
func (l *Languages) Matcher(name string) (extension.Matcher, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	info, ok := l.languages[name]
	return info.matcher, ok
}

// Grammar returns the grammar reference registered for a language, which
// may be empty.
func (l *Languages) Grammar(name string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	info, ok := l.languages[name]
	return info.grammar, ok
}
