package extension

import (
	"reflect"
	"sort"
)

// Diff lists, per content category, the entry names removed from the
// previous manifest and added in the new one. An entry present in both
// with a changed payload appears in both lists (remove-then-add). All
// slices are sorted.
type Diff struct {
	ExtensionsAdded   []string
	ExtensionsRemoved []string

	GrammarsAdded   []string
	GrammarsRemoved []string

	LanguagesAdded   []string
	LanguagesRemoved []string

	ThemesAdded   []string
	ThemesRemoved []string

	ServersAdded   []string
	ServersRemoved []string
}

// Empty reports whether the diff contains no changes.
func (d *Diff) Empty() bool {
	return len(d.ExtensionsAdded) == 0 && len(d.ExtensionsRemoved) == 0 &&
		len(d.GrammarsAdded) == 0 && len(d.GrammarsRemoved) == 0 &&
		len(d.LanguagesAdded) == 0 && len(d.LanguagesRemoved) == 0 &&
		len(d.ThemesAdded) == 0 && len(d.ThemesRemoved) == 0 &&
		len(d.ServersAdded) == 0 && len(d.ServersRemoved) == 0
}

// ComputeDiff compares two manifests. Either side may be nil, which is
// treated as empty.
func ComputeDiff(prev, next *Manifest) *Diff {
	if prev == nil {
		prev = NewManifest()
	}
	if next == nil {
		next = NewManifest()
	}

	d := &Diff{}
	d.ExtensionsRemoved, d.ExtensionsAdded = diffMaps(prev.Extensions, next.Extensions)
	d.GrammarsRemoved, d.GrammarsAdded = diffMaps(prev.Grammars, next.Grammars)
	d.LanguagesRemoved, d.LanguagesAdded = diffMaps(prev.Languages, next.Languages)
	d.ThemesRemoved, d.ThemesAdded = diffMaps(prev.Themes, next.Themes)
	d.ServersRemoved, d.ServersAdded = diffMaps(prev.LanguageServers, next.LanguageServers)
	return d
}

// diffMaps returns the removed and added keys between two maps. A key in
// both whose payload differs counts as removed and added.
func diffMaps[V any](prev, next map[string]V) (removed, added []string) {
	for key, prevVal := range prev {
		nextVal, ok := next[key]
		if !ok {
			removed = append(removed, key)
			continue
		}
		if !reflect.DeepEqual(prevVal, nextVal) {
			removed = append(removed, key)
			added = append(added, key)
		}
	}
	for key := range next {
		if _, ok := prev[key]; !ok {
			added = append(added, key)
		}
	}
	sort.Strings(removed)
	sort.Strings(added)
	return removed, added
}
