// Package extension is the extension bookkeeping core of the editor: it
// discovers installed extensions on disk, builds the authoritative
// Manifest of the content they provide (grammars, languages, themes,
// language servers), and keeps the external language and theme registries
// synchronized with that manifest across startup, reload, install, and
// uninstall.
//
// # Pipeline
//
// Each cycle flows one way:
//
//	Scanner -> Builder -> (Cache read/write) -> Diff -> Registry Sync
//
// gated by the Store, which owns the manifest's write-lock swap. The
// Scanner walks <root>/installed and parses each extension into a private
// Descriptor; failures are isolated per extension and never abort the
// scan. The Builder merges descriptors in sorted-id order into a fresh
// Manifest. The Cache persists the manifest so a warm restart adopts it
// with a constant number of metadata calls and no directory listings.
// The Diff engine compares the previous and new snapshots per category,
// and the Syncer applies the result to the registries in dependency-safe
// order: removals before additions, languages unregistered before their
// grammars, grammars registered before the languages referencing them.
//
// # Usage
//
//	langs := registry.NewLanguages()
//	themes := registry.NewThemes(fsys)
//	store, err := extension.New(root, fsys, httpClient, langs, themes,
//	    extension.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	// ...
//	if err := store.Reload(ctx); err != nil {
//	    log.Printf("reload: %v", err)
//	}
//	manifest := store.Manifest()
//
// Reload always converges to a manifest consistent with the file system
// at invocation time; a Reload issued while one is in flight coalesces
// into the pending cycle instead of racing it. Install and Uninstall
// mutate only the target extension's subtree and merge a single-subtree
// scan into the existing manifest, so unaffected extensions are never
// re-scanned.
//
// # What this package does not do
//
// Extension code never executes here. Grammars are indexed by path for a
// WASM runtime, language-server scripts are forwarded as opaque entries
// to a LanguageServerTracker, and downloads belong to whoever holds the
// HTTPClient. Theme rendering and the highlighting engine consume the
// registries; they are outside this package.
package extension
