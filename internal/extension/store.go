package extension

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/extstore/internal/vfs"
)

// HTTPClient is the transport handed to external collaborators that
// download language servers or extension archives. The store itself never
// performs network IO.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Store owns the extension manifest and keeps the external registries in
// sync with the installed-extensions directory. It is the single writer
// of the manifest: each cycle builds a new manifest in private state and
// swaps it in under a brief write lock, so readers never wait on IO.
type Store struct {
	fs         vfs.VFS
	root       string
	httpClient HTTPClient
	logger     *zap.Logger

	scanner       *Scanner
	cache         *Cache
	syncer        *Syncer
	serverTracker LanguageServerTracker

	// pipelineMu serializes scan/diff/sync cycles. Reload, Install, and
	// Uninstall all run the same pipeline; install and uninstall are the
	// localized variants.
	pipelineMu sync.Mutex

	// mu guards the published snapshot below.
	mu       sync.RWMutex
	manifest *Manifest
	state    State
	scanErrs map[string]error

	// coalesceMu guards pending. A reload requested while one is in
	// flight is satisfied by the in-flight cycle's result instead of
	// starting a second walk.
	coalesceMu sync.Mutex
	pending    *reloadCycle
}

// reloadCycle is one in-flight reload shared by coalesced callers.
type reloadCycle struct {
	done chan struct{}
	err  error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLanguageServerTracker attaches a consumer for language-server
// entries. Without one, server entries are tracked in the manifest only.
func WithLanguageServerTracker(tracker LanguageServerTracker) Option {
	return func(s *Store) {
		s.serverTracker = tracker
	}
}

// New creates a Store for the extensions root directory and synchronously
// runs the initial cycle: adopt the persisted manifest if it is still
// valid, otherwise scan, build, and persist; then sync the registries.
// Per-extension failures during the scan are recorded, logged, and never
// fatal; New only fails on invalid arguments.
func New(root string, fsys vfs.VFS, httpClient HTTPClient, languages LanguageRegistry, themes ThemeRegistry, opts ...Option) (*Store, error) {
	if fsys == nil {
		return nil, fmt.Errorf("extension store: file system is required")
	}
	if languages == nil || themes == nil {
		return nil, fmt.Errorf("extension store: language and theme registries are required")
	}

	s := &Store{
		fs:         fsys,
		root:       root,
		httpClient: httpClient,
		logger:     zap.NewNop(),
		manifest:   NewManifest(),
		state:      StateUninitialized,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.scanner = NewScanner(fsys, root, s.logger)
	s.cache = NewCache(fsys, root, s.logger)
	s.syncer = NewSyncer(fsys, s.scanner.InstalledDir(), languages, themes, s.serverTracker, s.logger)

	s.setState(StateLoading)
	if err := s.runCycle(context.Background(), true); err != nil {
		// Cycle errors are degradations, not construction failures.
		s.logger.Warn("initial extension load", zap.Error(err))
	}
	return s, nil
}

// Manifest returns a deep copy of the current manifest snapshot.
func (s *Store) Manifest() *Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest.Clone()
}

// State returns the store's lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Errors returns the per-extension failures recorded by the last full
// scan, keyed by extension directory name.
func (s *Store) Errors() map[string]error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	errs := make(map[string]error, len(s.scanErrs))
	for id, err := range s.scanErrs {
		errs[id] = err
	}
	return errs
}

// HTTPClient returns the transport for external collaborators.
func (s *Store) HTTPClient() HTTPClient {
	return s.httpClient
}

// Reload runs a full pipeline pass: cache-checked scan, build, diff,
// persist, registry sync, snapshot swap. If a reload is already in
// flight the call coalesces into it and returns that cycle's result,
// preventing duplicate directory walks and duplicate registry churn.
func (s *Store) Reload(ctx context.Context) error {
	return s.reload(ctx, true)
}

// reload coalesces concurrent callers onto a single cycle. useCache
// false forces a directory walk even when the persisted manifest looks
// valid (used by the change watcher, whose events may not touch the
// installed directory's own mtime).
func (s *Store) reload(ctx context.Context, useCache bool) error {
	s.coalesceMu.Lock()
	if cycle := s.pending; cycle != nil {
		s.coalesceMu.Unlock()
		select {
		case <-cycle.done:
			return cycle.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	cycle := &reloadCycle{done: make(chan struct{})}
	s.pending = cycle
	s.coalesceMu.Unlock()

	cycle.err = s.runCycle(ctx, useCache)

	s.coalesceMu.Lock()
	s.pending = nil
	s.coalesceMu.Unlock()
	close(cycle.done)
	return cycle.err
}

// runCycle executes one scan/build/diff/persist/sync pass and swaps the
// resulting manifest in. The write lock is held only for the swap.
func (s *Store) runCycle(ctx context.Context, useCache bool) error {
	s.pipelineMu.Lock()
	defer s.pipelineMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if s.State() == StateReady {
		s.setState(StateReloading)
	}

	prev := s.snapshot()

	var next *Manifest
	scanErrs := make(map[string]error)
	if useCache {
		if cached, ok := s.cache.Load(); ok {
			s.logger.Debug("adopted persisted manifest",
				zap.Int("extensions", len(cached.Extensions)))
			next = cached
		}
	}
	if next == nil {
		descriptors := s.scanner.Scan()
		for _, desc := range descriptors {
			if desc.Err != nil {
				scanErrs[desc.ID] = desc.Err
			}
		}
		next = BuildManifest(descriptors)
		if err := s.cache.Save(next); err != nil {
			s.logger.Warn("persisting manifest cache", zap.Error(err))
		}
	}

	diff := ComputeDiff(prev, next)
	s.syncer.Apply(diff, prev, next)
	s.swap(next, scanErrs)
	return nil
}

// Install stages the extension from sourceDir, moves it into place,
// scans only the new subtree, merges it into the manifest, persists, and
// syncs. Unaffected extensions are not re-scanned. If the filesystem
// mutation fails, the manifest and registries are left unchanged.
func (s *Store) Install(ctx context.Context, id, sourceDir string) error {
	if id == "" {
		return ErrMissingID
	}
	if !s.fs.IsDir(sourceDir) {
		return fmt.Errorf("%s: %w", sourceDir, ErrInvalidSource)
	}

	s.pipelineMu.Lock()
	defer s.pipelineMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	installedDir := s.scanner.InstalledDir()
	if err := s.fs.MkdirAll(installedDir, 0o755); err != nil {
		return fmt.Errorf("installing %s: %w", id, err)
	}

	// Stage the full copy first so a half-copied tree never lands under
	// the extension's final name.
	staging := s.fs.Join(installedDir, ".staging-"+uuid.NewString())
	if err := vfs.CopyAll(s.fs, sourceDir, staging); err != nil {
		_ = s.fs.RemoveAll(staging)
		return fmt.Errorf("installing %s: %w", id, err)
	}

	dest := s.fs.Join(installedDir, id)
	if err := s.fs.RemoveAll(dest); err != nil {
		_ = s.fs.RemoveAll(staging)
		return fmt.Errorf("installing %s: %w", id, err)
	}
	if err := s.fs.Rename(staging, dest); err != nil {
		_ = s.fs.RemoveAll(staging)
		return fmt.Errorf("installing %s: %w", id, err)
	}

	desc := s.scanner.ScanExtension(id)
	if desc.Err != nil {
		return fmt.Errorf("installing %s: %w", id, desc.Err)
	}

	prev := s.snapshot()
	next := prev.Clone()
	next.RemoveExtension(desc.ID)
	mergeDescriptor(next, desc)

	if err := s.cache.Save(next); err != nil {
		s.logger.Warn("persisting manifest cache", zap.Error(err))
	}

	diff := ComputeDiff(prev, next)
	s.syncer.Apply(diff, prev, next)
	s.swapManifestOnly(next)

	s.logger.Info("installed extension",
		zap.String("extension", desc.ID), zap.String("version", desc.Version))
	return nil
}

// Uninstall removes the extension's subtree and drops exactly its entries
// from the manifest and registries. If removing the subtree fails, the
// manifest and registries are left unchanged.
func (s *Store) Uninstall(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}

	s.pipelineMu.Lock()
	defer s.pipelineMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := s.fs.Join(s.scanner.InstalledDir(), id)
	if !s.fs.Exists(dir) {
		return fmt.Errorf("%s: %w", id, ErrNotInstalled)
	}
	if err := s.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("uninstalling %s: %w", id, err)
	}

	prev := s.snapshot()
	next := prev.Clone()
	next.RemoveExtension(id)

	if err := s.cache.Save(next); err != nil {
		s.logger.Warn("persisting manifest cache", zap.Error(err))
	}

	diff := ComputeDiff(prev, next)
	s.syncer.Apply(diff, prev, next)
	s.swapManifestOnly(next)

	s.logger.Info("uninstalled extension", zap.String("extension", id))
	return nil
}

// snapshot returns the current manifest without copying. Callers must
// treat it as immutable.
func (s *Store) snapshot() *Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest
}

// swap publishes a new manifest and scan error set.
func (s *Store) swap(next *Manifest, scanErrs map[string]error) {
	s.mu.Lock()
	s.manifest = next
	s.scanErrs = scanErrs
	s.state = StateReady
	s.mu.Unlock()
}

// swapManifestOnly publishes a new manifest, keeping prior scan errors.
func (s *Store) swapManifestOnly(next *Manifest) {
	s.mu.Lock()
	s.manifest = next
	s.state = StateReady
	s.mu.Unlock()
}

// setState updates the lifecycle state.
func (s *Store) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
