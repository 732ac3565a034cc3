package extension

import "sort"

// BuildManifest merges per-extension descriptors into one aggregate
// manifest. Descriptors are processed in ascending extension-id order so
// the merge is deterministic; when two extensions declare the same
// logical name, the entry from the extension later in that order wins.
// Descriptors carrying an error contribute nothing.
func BuildManifest(descriptors []*Descriptor) *Manifest {
	sorted := make([]*Descriptor, len(descriptors))
	copy(sorted, descriptors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	manifest := NewManifest()
	for _, desc := range sorted {
		mergeDescriptor(manifest, desc)
	}
	return manifest
}

// mergeDescriptor folds one descriptor into the manifest. No-op for
// descriptors carrying an error.
func mergeDescriptor(m *Manifest, desc *Descriptor) {
	if desc == nil || desc.Err != nil {
		return
	}

	m.Extensions[desc.ID] = desc.Version
	for name, entry := range desc.Grammars {
		m.Grammars[name] = entry
	}
	for name, entry := range desc.Languages {
		m.Languages[name] = entry
	}
	for name, entry := range desc.Themes {
		m.Themes[name] = entry
	}
	for id, entry := range desc.LanguageServers {
		m.LanguageServers[id] = entry
	}
}
