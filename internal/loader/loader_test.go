package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/renovatio/renovatio/pkg/sdk"
)

type stubProvider struct {
	name, version, description string
}

func (p *stubProvider) Name() string                            { return p.name }
func (p *stubProvider) Description() string                     { return p.description }
func (p *stubProvider) Version() string                         { return p.version }
func (p *stubProvider) Conflicts(string) bool                   { return false }
func (p *stubProvider) Update(context.Context, sdk.Sender) bool { return true }

type fakeModule struct {
	symbols map[string]any
}

func (m fakeModule) Lookup(symbol string) (any, error) {
	if s, ok := m.symbols[symbol]; ok {
		return s, nil
	}
	return nil, errors.New("symbol " + symbol + " not found")
}

type fakeOpener struct {
	modules map[string]fakeModule
	opens   atomic.Int32
	delay   time.Duration
}

func (o *fakeOpener) Open(path string) (Module, error) {
	o.opens.Add(1)
	if o.delay > 0 {
		time.Sleep(o.delay)
	}
	m, ok := o.modules[filepath.Base(path)]
	if !ok {
		return nil, errors.New("not a valid ELF file")
	}
	return m, nil
}

func factoryFor(name, version string) func() sdk.Provider {
	return func() sdk.Provider {
		return &stubProvider{name: name, version: version, description: name + " updates"}
	}
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDiscoverSkipsBadModulesAndMissingDirs(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "brew.so", "broken.so", "nofactory.so", "README.md")
	if err := os.Mkdir(filepath.Join(dir, "nested.so"), 0755); err != nil {
		t.Fatal(err)
	}

	opener := &fakeOpener{modules: map[string]fakeModule{
		"brew.so":      {symbols: map[string]any{sdk.FactorySymbol: factoryFor("brew", "0.1.0")}},
		"nofactory.so": {symbols: map[string]any{"Other": 1}},
	}}

	core, logs := observer.New(zap.WarnLevel)
	l := New(opener, zap.New(core))

	reg := l.Discover([]string{filepath.Join(dir, "missing"), dir})

	if reg.Len() != 1 {
		t.Fatalf("expected exactly one provider, got %v", reg.Names())
	}
	entry, ok := reg.Lookup("brew")
	if !ok {
		t.Fatal("expected brew to be registered")
	}
	if entry.Path != filepath.Join(dir, "brew.so") || entry.Version != "0.1.0" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if got := logs.FilterMessage("skipping provider module").Len(); got != 2 {
		t.Fatalf("expected 2 skip warnings, got %d", got)
	}
}

func TestDiscoverFirstWins(t *testing.T) {
	system, user := t.TempDir(), t.TempDir()
	touch(t, system, "flatpak.so")
	touch(t, user, "flatpak.so")

	opener := &fakeOpener{modules: map[string]fakeModule{
		"flatpak.so": {symbols: map[string]any{sdk.FactorySymbol: factoryFor("flatpak", "1.0.0")}},
	}}
	l := New(opener, nil)

	reg := l.Discover([]string{system, user})
	if reg.Len() != 1 {
		t.Fatalf("expected duplicate to be dropped, got %d entries", reg.Len())
	}
	entry, _ := reg.Lookup("flatpak")
	if filepath.Dir(entry.Path) != system {
		t.Fatalf("expected first search path to win, got %s", entry.Path)
	}
	if _, ok := reg.Lookup(entry.Path); !ok {
		t.Fatal("expected lookup by load path to work")
	}
}

func TestDiscoverRejectsABIMismatch(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "old.so", "new.so")

	old := "0"
	current := sdk.ABIVersion
	opener := &fakeOpener{modules: map[string]fakeModule{
		"old.so": {symbols: map[string]any{sdk.ABISymbol: &old, sdk.FactorySymbol: factoryFor("old", "1")}},
		"new.so": {symbols: map[string]any{sdk.ABISymbol: &current, sdk.FactorySymbol: factoryFor("new", "1")}},
	}}
	reg := New(opener, nil).Discover([]string{dir})

	if _, ok := reg.Lookup("old"); ok {
		t.Fatal("module with old ABI must be rejected")
	}
	if _, ok := reg.Lookup("new"); !ok {
		t.Fatal("module with current ABI must load")
	}
}

func TestDiscoverSurvivesPanickingFactory(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "panic.so", "nil.so")

	opener := &fakeOpener{modules: map[string]fakeModule{
		"panic.so": {symbols: map[string]any{sdk.FactorySymbol: func() sdk.Provider { panic("boom") }}},
		"nil.so":   {symbols: map[string]any{sdk.FactorySymbol: func() sdk.Provider { return nil }}},
	}}
	reg := New(opener, nil).Discover([]string{dir})
	if reg.Len() != 0 {
		t.Fatalf("expected no providers, got %v", reg.Names())
	}
}

func TestInstantiateRoundTripsMetadata(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "distrobox.so")
	opener := &fakeOpener{modules: map[string]fakeModule{
		"distrobox.so": {symbols: map[string]any{sdk.FactorySymbol: sdk.Factory(factoryFor("distrobox", "0.2.0"))}},
	}}
	l := New(opener, nil)
	entry, _ := l.Discover([]string{dir}).Lookup("distrobox")

	for i := 0; i < 2; i++ {
		h, err := l.Instantiate(entry)
		if err != nil {
			t.Fatalf("Instantiate #%d: %v", i, err)
		}
		p := h.Provider
		if p.Name() != entry.Name || p.Version() != entry.Version || p.Description() != entry.Description {
			t.Fatalf("metadata mismatch: %s %s %s vs %+v", p.Name(), p.Version(), p.Description(), entry)
		}
		if l.Live(entry.Path) != 1 {
			t.Fatalf("expected one live handle, got %d", l.Live(entry.Path))
		}
		h.Close()
		h.Close()
		if l.Live(entry.Path) != 0 {
			t.Fatalf("expected handle release, got %d live", l.Live(entry.Path))
		}
	}

	if got := opener.opens.Load(); got != 1 {
		t.Fatalf("expected module to be opened once, got %d", got)
	}
}

func TestInstantiateDetectsChangedMetadata(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "brew.so")
	opener := &fakeOpener{modules: map[string]fakeModule{
		"brew.so": {symbols: map[string]any{sdk.FactorySymbol: factoryFor("brew", "2.0.0")}},
	}}
	l := New(opener, nil)

	stale := sdk.Metadata{Name: "brew", Version: "1.0.0", Description: "brew updates", Path: filepath.Join(dir, "brew.so")}
	_, err := l.Instantiate(stale)
	if !errors.Is(err, ErrMetadataChanged) {
		t.Fatalf("expected ErrMetadataChanged, got %v", err)
	}
}

func TestConcurrentLoadsOfSamePathAreSerialized(t *testing.T) {
	opener := &fakeOpener{
		delay: 20 * time.Millisecond,
		modules: map[string]fakeModule{
			"uupd.so": {symbols: map[string]any{sdk.FactorySymbol: factoryFor("uupd", "0.1.0")}},
		},
	}
	l := New(opener, nil)
	entry := sdk.Metadata{Name: "uupd", Version: "0.1.0", Description: "uupd updates", Path: "/plugins/uupd.so"}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := l.Instantiate(entry)
			if err != nil {
				errs <- err
				return
			}
			h.Close()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("Instantiate: %v", err)
	}
	if got := opener.opens.Load(); got != 1 {
		t.Fatalf("expected a single open for concurrent loads, got %d", got)
	}
}
