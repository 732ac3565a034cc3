package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/extstore/internal/extension"
)

// Servers tracks the language-server entries forwarded by the extension
// store. It never executes a server; an external installer reads the
// tracked entries, resolves versions, downloads, and launches.
//
// Servers is safe for concurrent use.
type Servers struct {
	mu      sync.RWMutex
	entries map[string]extension.LanguageServerEntry
}

// NewServers creates an empty tracker.
func NewServers() *Servers {
	return &Servers{entries: make(map[string]extension.LanguageServerEntry)}
}

// Ensure Servers implements the store's contract.
var _ extension.LanguageServerTracker = (*Servers)(nil)

// LanguageServerAdded records a tracked server entry.
func (s *Servers) LanguageServerAdded(id string, entry extension.LanguageServerEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = entry
}

// LanguageServerRemoved drops a tracked server entry.
func (s *Servers) LanguageServerRemoved(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// IDs returns the tracked server ids, sorted.
func (s *Servers) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns a tracked entry by id.
func (s *Servers) Get(id string) (extension.LanguageServerEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	return entry, ok
}

// ForLanguage returns the ids of servers targeting a language, sorted.
func (s *Servers) ForLanguage(language string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, entry := range s.entries {
		if entry.Language == language {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ScriptPath returns the script recorded for a server, relative to the
// owning extension's root. The external runtime interprets the script;
// this tracker only hands it off.
func (s *Servers) ScriptPath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return "", fmt.Errorf("language server %q is not tracked", id)
	}
	if entry.Script == "" {
		return "", fmt.Errorf("language server %q declares no script", id)
	}
	return entry.Script, nil
}
