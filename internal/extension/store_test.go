package extension_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/extstore/internal/extension"
	"github.com/dshills/extstore/internal/extension/registry"
	"github.com/dshills/extstore/internal/vfs"
)

const storeTestRoot = "/the-extension-dir"

// testRegistries bundles the collaborators a store drives.
type testRegistries struct {
	languages *registry.Languages
	themes    *registry.Themes
	servers   *registry.Servers
}

func newTestStore(t *testing.T, fsys vfs.VFS) (*extension.Store, *testRegistries) {
	t.Helper()
	regs := &testRegistries{
		languages: registry.NewLanguages(),
		themes:    registry.NewThemes(fsys),
		servers:   registry.NewServers(),
	}
	store, err := extension.New(storeTestRoot, fsys, nil, regs.languages, regs.themes,
		extension.WithLanguageServerTracker(regs.servers))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return store, regs
}

func TestStoreInitialLoad(t *testing.T) {
	fsys := vfs.NewMemFS()
	writeRubyExtension(t, fsys, storeTestRoot+"/installed/acme-ruby")
	writeMonokaiExtension(t, fsys, storeTestRoot+"/installed/acme-monokai")

	store, regs := newTestStore(t, fsys)

	if store.State() != extension.StateReady {
		t.Errorf("State() = %v, want %v", store.State(), extension.StateReady)
	}

	m := store.Manifest()
	if !equalStrings(m.ExtensionIDs(), []string{"acme-monokai", "acme-ruby"}) {
		t.Errorf("ExtensionIDs() = %v", m.ExtensionIDs())
	}
	if !equalStrings(m.LanguageNames(), []string{"ERB", "Ruby"}) {
		t.Errorf("manifest LanguageNames() = %v", m.LanguageNames())
	}

	// The registry additionally carries the built-in language.
	if got := regs.languages.LanguageNames(); !equalStrings(got, []string{"ERB", "Plain Text", "Ruby"}) {
		t.Errorf("registry LanguageNames() = %v", got)
	}
	if got := regs.languages.GrammarNames(); !equalStrings(got, []string{"embedded_template", "ruby"}) {
		t.Errorf("registry GrammarNames() = %v", got)
	}
	if path, ok := regs.languages.GrammarPath("ruby"); !ok || path != storeTestRoot+"/installed/acme-ruby/grammars/ruby.wasm" {
		t.Errorf("GrammarPath(ruby) = %q, %v", path, ok)
	}

	want := []string{"Monokai Dark", "Monokai Light", "Monokai Pro Dark", "Monokai Pro Light", "One Dark"}
	if got := regs.themes.ListNames(false); !equalStrings(got, want) {
		t.Errorf("ListNames() = %v, want %v", got, want)
	}
}

func TestStoreEmptyRoot(t *testing.T) {
	store, regs := newTestStore(t, vfs.NewMemFS())

	if store.State() != extension.StateReady {
		t.Errorf("State() = %v, want %v", store.State(), extension.StateReady)
	}
	if got := store.Manifest().ExtensionIDs(); len(got) != 0 {
		t.Errorf("ExtensionIDs() = %v, want empty", got)
	}
	// Built-ins alone.
	if got := regs.languages.LanguageNames(); !equalStrings(got, []string{"Plain Text"}) {
		t.Errorf("LanguageNames() = %v", got)
	}
	if got := regs.themes.ListNames(false); !equalStrings(got, []string{"One Dark"}) {
		t.Errorf("ListNames() = %v", got)
	}
}

func TestStoreRecordsScanErrors(t *testing.T) {
	fsys := vfs.NewMemFS()
	writeRubyExtension(t, fsys, storeTestRoot+"/installed/acme-ruby")
	addFiles(t, fsys, map[string]string{
		storeTestRoot + "/installed/broken/extension.json": `{not json`,
	})

	store, _ := newTestStore(t, fsys)

	if _, ok := store.Errors()["broken"]; !ok {
		t.Errorf("Errors() = %v, missing broken", store.Errors())
	}
	if !equalStrings(store.Manifest().ExtensionIDs(), []string{"acme-ruby"}) {
		t.Errorf("ExtensionIDs() = %v", store.Manifest().ExtensionIDs())
	}
}

func TestStoreReloadPicksUpNewExtension(t *testing.T) {
	fsys := vfs.NewMemFS()
	writeMonokaiExtension(t, fsys, storeTestRoot+"/installed/acme-monokai")
	store, regs := newTestStore(t, fsys)

	writeGruvboxExtension(t, fsys, storeTestRoot+"/installed/acme-gruvbox")
	if err := store.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	m := store.Manifest()
	if !equalStrings(m.ExtensionIDs(), []string{"acme-gruvbox", "acme-monokai"}) {
		t.Errorf("ExtensionIDs() = %v", m.ExtensionIDs())
	}
	if owner, ok := regs.themes.Owner("Gruvbox"); !ok || owner != "acme-gruvbox" {
		t.Errorf("Owner(Gruvbox) = %q, %v", owner, ok)
	}
	if store.State() != extension.StateReady {
		t.Errorf("State() = %v, want %v", store.State(), extension.StateReady)
	}
}

func TestStoreReloadIdempotent(t *testing.T) {
	fsys := vfs.NewMemFS()
	writeRubyExtension(t, fsys, storeTestRoot+"/installed/acme-ruby")
	writeMonokaiExtension(t, fsys, storeTestRoot+"/installed/acme-monokai")
	store, regs := newTestStore(t, fsys)

	before := store.Manifest()
	themesBefore := regs.themes.ListNames(true)

	for i := 0; i < 3; i++ {
		if err := store.Reload(context.Background()); err != nil {
			t.Fatalf("Reload() #%d error = %v", i, err)
		}
	}

	if !reflect.DeepEqual(store.Manifest(), before) {
		t.Error("manifest changed across no-op reloads")
	}
	if got := regs.themes.ListNames(true); !equalStrings(got, themesBefore) {
		t.Errorf("themes changed across no-op reloads: %v", got)
	}
}

func TestStoreWarmRestart(t *testing.T) {
	fsys := vfs.NewMemFS()
	writeRubyExtension(t, fsys, storeTestRoot+"/installed/acme-ruby")
	writeMonokaiExtension(t, fsys, storeTestRoot+"/installed/acme-monokai")

	// First run scans and persists the manifest.
	first, _ := newTestStore(t, fsys)
	firstManifest := first.Manifest()

	// Second run adopts the persisted manifest: no directory listings and
	// a bounded number of metadata probes.
	counting := vfs.NewCountingFS(fsys)
	second, regs := newTestStore(t, counting)

	if got := counting.ReadDirCalls(); got != 0 {
		t.Errorf("warm restart ReadDir calls = %d, want 0", got)
	}
	if got := counting.MetadataCalls(); got > 2 {
		t.Errorf("warm restart metadata calls = %d, want <= 2", got)
	}
	if !reflect.DeepEqual(second.Manifest(), firstManifest) {
		t.Error("warm restart produced a different manifest")
	}
	// Registries are fully populated even without a scan.
	if got := regs.languages.LanguageNames(); !equalStrings(got, []string{"ERB", "Plain Text", "Ruby"}) {
		t.Errorf("LanguageNames() = %v", got)
	}
}

func TestStoreCorruptCacheDegradesToScan(t *testing.T) {
	fsys := vfs.NewMemFS()
	writeRubyExtension(t, fsys, storeTestRoot+"/installed/acme-ruby")
	addFiles(t, fsys, map[string]string{
		storeTestRoot + "/manifest.json": "{corrupt",
	})

	store, _ := newTestStore(t, fsys)

	if !equalStrings(store.Manifest().ExtensionIDs(), []string{"acme-ruby"}) {
		t.Errorf("ExtensionIDs() = %v", store.Manifest().ExtensionIDs())
	}
	// The scan rewrote the cache.
	data, err := fsys.ReadFile(storeTestRoot + "/manifest.json")
	if err != nil || strings.HasPrefix(string(data), "{corrupt") {
		t.Errorf("cache not rewritten: %v %q", err, data)
	}
}

func TestStoreUninstall(t *testing.T) {
	fsys := vfs.NewMemFS()
	writeRubyExtension(t, fsys, storeTestRoot+"/installed/acme-ruby")
	writeMonokaiExtension(t, fsys, storeTestRoot+"/installed/acme-monokai")
	store, regs := newTestStore(t, fsys)

	if err := store.Uninstall(context.Background(), "acme-monokai"); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}

	if fsys.Exists(storeTestRoot + "/installed/acme-monokai") {
		t.Error("extension directory still present")
	}
	m := store.Manifest()
	if !equalStrings(m.ExtensionIDs(), []string{"acme-ruby"}) {
		t.Errorf("ExtensionIDs() = %v", m.ExtensionIDs())
	}
	if len(m.Themes) != 0 {
		t.Errorf("Themes = %v, want empty", m.Themes)
	}
	// Only the built-in theme survives; languages are untouched.
	if got := regs.themes.ListNames(false); !equalStrings(got, []string{"One Dark"}) {
		t.Errorf("ListNames() = %v", got)
	}
	if got := regs.languages.LanguageNames(); !equalStrings(got, []string{"ERB", "Plain Text", "Ruby"}) {
		t.Errorf("LanguageNames() = %v", got)
	}
}

func TestStoreUninstallNotInstalled(t *testing.T) {
	store, _ := newTestStore(t, vfs.NewMemFS())

	err := store.Uninstall(context.Background(), "no-such-extension")
	if !errors.Is(err, extension.ErrNotInstalled) {
		t.Errorf("Uninstall() error = %v, want %v", err, extension.ErrNotInstalled)
	}
}

func TestStoreInstall(t *testing.T) {
	fsys := vfs.NewMemFS()
	writeRubyExtension(t, fsys, storeTestRoot+"/installed/acme-ruby")
	store, regs := newTestStore(t, fsys)

	writeGruvboxExtension(t, fsys, "/downloads/acme-gruvbox")
	if err := store.Install(context.Background(), "acme-gruvbox", "/downloads/acme-gruvbox"); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	if !fsys.Exists(storeTestRoot + "/installed/acme-gruvbox/extension.json") {
		t.Error("installed files missing")
	}
	m := store.Manifest()
	if !equalStrings(m.ExtensionIDs(), []string{"acme-gruvbox", "acme-ruby"}) {
		t.Errorf("ExtensionIDs() = %v", m.ExtensionIDs())
	}
	if owner, ok := regs.themes.Owner("Gruvbox"); !ok || owner != "acme-gruvbox" {
		t.Errorf("Owner(Gruvbox) = %q, %v", owner, ok)
	}
	// No staging directory left behind.
	for _, f := range fsys.Files() {
		if strings.Contains(f, ".staging-") {
			t.Errorf("staging leftover: %s", f)
		}
	}
	// Prior extensions were not disturbed.
	if got := regs.languages.LanguageNames(); !equalStrings(got, []string{"ERB", "Plain Text", "Ruby"}) {
		t.Errorf("LanguageNames() = %v", got)
	}
}

func TestStoreInstallReplacesExistingVersion(t *testing.T) {
	fsys := vfs.NewMemFS()
	writeGruvboxExtension(t, fsys, storeTestRoot+"/installed/acme-gruvbox")
	store, _ := newTestStore(t, fsys)

	// Same id, bumped version and an extra stray file in the old tree
	// that the new version no longer ships.
	addFiles(t, fsys, map[string]string{
		storeTestRoot + "/installed/acme-gruvbox/themes/old.json": gruvboxThemeFamily,
	})
	addFiles(t, fsys, map[string]string{
		"/downloads/acme-gruvbox/extension.json":      `{"id": "acme-gruvbox", "name": "Acme Gruvbox", "version": "2.0.0"}`,
		"/downloads/acme-gruvbox/themes/gruvbox.json": gruvboxThemeFamily,
	})

	if err := store.Install(context.Background(), "acme-gruvbox", "/downloads/acme-gruvbox"); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	if got := store.Manifest().Extensions["acme-gruvbox"]; got != "2.0.0" {
		t.Errorf("version = %q, want %q", got, "2.0.0")
	}
	// Install replaces the subtree wholesale.
	if fsys.Exists(storeTestRoot + "/installed/acme-gruvbox/themes/old.json") {
		t.Error("stale file survived reinstall")
	}
}

func TestStoreInstallInvalidSource(t *testing.T) {
	store, _ := newTestStore(t, vfs.NewMemFS())

	err := store.Install(context.Background(), "x", "/no/such/dir")
	if !errors.Is(err, extension.ErrInvalidSource) {
		t.Errorf("Install() error = %v, want %v", err, extension.ErrInvalidSource)
	}
	if err := store.Install(context.Background(), "", "/no/such/dir"); !errors.Is(err, extension.ErrMissingID) {
		t.Errorf("Install() with empty id error = %v, want %v", err, extension.ErrMissingID)
	}
}

func TestStoreInstallMalformedLeavesStateUnchanged(t *testing.T) {
	fsys := vfs.NewMemFS()
	writeRubyExtension(t, fsys, storeTestRoot+"/installed/acme-ruby")
	store, regs := newTestStore(t, fsys)
	before := store.Manifest()

	addFiles(t, fsys, map[string]string{
		"/downloads/broken/extension.json": `{not json`,
	})

	if err := store.Install(context.Background(), "broken", "/downloads/broken"); err == nil {
		t.Fatal("Install() of malformed extension succeeded")
	}
	if !reflect.DeepEqual(store.Manifest(), before) {
		t.Error("manifest changed after failed install")
	}
	if got := regs.languages.LanguageNames(); !equalStrings(got, []string{"ERB", "Plain Text", "Ruby"}) {
		t.Errorf("LanguageNames() = %v", got)
	}
}

func TestStoreMismatchedDeclaredID(t *testing.T) {
	fsys := vfs.NewMemFS()
	addFiles(t, fsys, map[string]string{
		storeTestRoot + "/installed/foo/extension.json":      `{"id": "bar", "name": "Mismatch", "version": "1.0.0"}`,
		storeTestRoot + "/installed/foo/themes/gruvbox.json": gruvboxThemeFamily,
	})

	store, regs := newTestStore(t, fsys)

	// The directory name owns the entries, so the theme family resolves
	// to a real path and reaches the registry.
	if !equalStrings(store.Manifest().ExtensionIDs(), []string{"foo"}) {
		t.Fatalf("ExtensionIDs() = %v, want [foo]", store.Manifest().ExtensionIDs())
	}
	if owner, ok := regs.themes.Owner("Gruvbox"); !ok || owner != "foo" {
		t.Errorf("Owner(Gruvbox) = %q, %v", owner, ok)
	}
	if path, ok := regs.themes.Path("Gruvbox"); !ok || !fsys.Exists(path) {
		t.Errorf("theme family path %q does not exist", path)
	}

	// Uninstalling by directory name drops every entry; nothing lingers
	// under the declared id.
	if err := store.Uninstall(context.Background(), "foo"); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}
	if got := store.Manifest().ExtensionIDs(); len(got) != 0 {
		t.Errorf("ExtensionIDs() after uninstall = %v, want empty", got)
	}
	if got := regs.themes.ListNames(false); !equalStrings(got, []string{"One Dark"}) {
		t.Errorf("ListNames() after uninstall = %v", got)
	}
}

func TestStoreTracksLanguageServers(t *testing.T) {
	fsys := vfs.NewMemFS()
	writeLSPExtension(t, fsys, storeTestRoot+"/installed/the-lsp-extension")
	store, regs := newTestStore(t, fsys)

	if got := regs.servers.IDs(); !equalStrings(got, []string{"the-server"}) {
		t.Fatalf("IDs() = %v", got)
	}
	script, err := regs.servers.ScriptPath("the-server")
	if err != nil || script != "language_servers/the-server/server.js" {
		t.Errorf("ScriptPath() = %q, %v", script, err)
	}
	if got := regs.servers.ForLanguage("TypeScript"); !equalStrings(got, []string{"the-server"}) {
		t.Errorf("ForLanguage() = %v", got)
	}

	if err := store.Uninstall(context.Background(), "the-lsp-extension"); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}
	if got := regs.servers.IDs(); len(got) != 0 {
		t.Errorf("IDs() after uninstall = %v", got)
	}
}

// hookFS forwards to an inner VFS, invoking a callback before each ReadDir.
type hookFS struct {
	vfs.VFS
	onReadDir func(path string)
}

func (h *hookFS) ReadDir(path string) ([]vfs.FileInfo, error) {
	if h.onReadDir != nil {
		h.onReadDir(path)
	}
	return h.VFS.ReadDir(path)
}

func TestStoreCoalescesConcurrentReloads(t *testing.T) {
	mem := vfs.NewMemFS()
	writeRubyExtension(t, mem, storeTestRoot+"/installed/acme-ruby")

	var walks atomic.Int64
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	blocking := false
	var blockMu sync.Mutex

	fsys := &hookFS{VFS: mem}
	fsys.onReadDir = func(path string) {
		if path != storeTestRoot+"/installed" {
			return
		}
		walks.Add(1)
		blockMu.Lock()
		active := blocking
		blockMu.Unlock()
		if active {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
	}

	store, _ := newTestStore(t, fsys)

	// Invalidate the cache so the next reload must walk the directory.
	writeGruvboxExtension(t, mem, storeTestRoot+"/installed/acme-gruvbox")
	walks.Store(0)
	blockMu.Lock()
	blocking = true
	blockMu.Unlock()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = store.Reload(context.Background())
	}()

	// Wait until the first reload is mid-walk, then issue a second one;
	// it must coalesce onto the in-flight cycle.
	<-entered
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[1] = store.Reload(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Reload() #%d error = %v", i, err)
		}
	}
	if got := walks.Load(); got != 1 {
		t.Errorf("installed dir walked %d times, want 1", got)
	}
	if !equalStrings(store.Manifest().ExtensionIDs(), []string{"acme-gruvbox", "acme-ruby"}) {
		t.Errorf("ExtensionIDs() = %v", store.Manifest().ExtensionIDs())
	}
}

func TestStoreReloadCancelledContext(t *testing.T) {
	fsys := vfs.NewMemFS()
	writeRubyExtension(t, fsys, storeTestRoot+"/installed/acme-ruby")
	store, _ := newTestStore(t, fsys)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Reload(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Reload() error = %v, want %v", err, context.Canceled)
	}
}
