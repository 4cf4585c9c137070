// Package loader discovers provider modules on disk and instantiates them.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/renovatio/renovatio/internal/logging"
	"github.com/renovatio/renovatio/pkg/sdk"
)

var (
	// ErrNoFactory means the module does not export a usable NewProvider.
	ErrNoFactory = errors.New("module does not export a provider factory")
	// ErrABIMismatch means the module was built against another sdk revision.
	ErrABIMismatch = errors.New("module ABI version mismatch")
	// ErrMetadataChanged means a re-instantiated provider no longer matches its registry entry.
	ErrMetadataChanged = errors.New("provider metadata changed since discovery")
)

// Loader turns search paths into registry entries and entries into live providers.
type Loader struct {
	opener Opener
	logger *zap.Logger
	group  singleflight.Group

	mu      sync.Mutex
	modules map[string]*module
}

type module struct {
	path    string
	factory sdk.Factory
	live    int
}

// New creates a Loader. A nil opener uses Go's plugin package.
func New(opener Opener, logger *zap.Logger) *Loader {
	if opener == nil {
		opener = PluginOpener{}
	}
	return &Loader{
		opener:  opener,
		logger:  logging.Component(logger, "loader"),
		modules: make(map[string]*module),
	}
}

// Discover scans dirs in order and returns a registry of every provider that
// loads cleanly. Missing directories and broken modules are skipped; the
// first module to claim a provider name wins.
func (l *Loader) Discover(dirs []string) *Registry {
	reg := NewRegistry()

	for _, dir := range dirs {
		files, err := listModules(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				l.logger.Debug("search path does not exist", zap.String(logging.KeyPath, dir))
			} else {
				l.logger.Warn("cannot read search path", zap.String(logging.KeyPath, dir), zap.Error(err))
			}
			continue
		}

		for _, path := range files {
			meta, err := l.describe(path)
			if err != nil {
				l.logger.Warn("skipping provider module", zap.String(logging.KeyPath, path), zap.Error(err))
				continue
			}
			if !reg.Add(meta) {
				existing, _ := reg.Lookup(meta.Name)
				l.logger.Warn("duplicate provider name, keeping first",
					zap.String(logging.KeyProvider, meta.Name),
					zap.String(logging.KeyPath, path),
					zap.String("kept", existing.Path),
				)
				continue
			}
			l.logger.Info("discovered provider",
				zap.String(logging.KeyProvider, meta.Name),
				zap.String("version", meta.Version),
				zap.String(logging.KeyPath, path),
			)
		}
	}

	return reg
}

// Instantiate creates a fresh provider for a registry entry. The caller owns
// the returned handle and must Close it once the provider is no longer used.
func (l *Loader) Instantiate(entry sdk.Metadata) (*Handle, error) {
	mod, err := l.load(entry.Path)
	if err != nil {
		return nil, err
	}

	p, err := construct(mod.factory)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", entry.Path, err)
	}

	got := sdk.MetadataOf(p, entry.Path)
	if got != entry {
		return nil, fmt.Errorf("%w: %s: registered %q %s, module now reports %q %s",
			ErrMetadataChanged, entry.Path, entry.Name, entry.Version, got.Name, got.Version)
	}

	l.mu.Lock()
	mod.live++
	l.mu.Unlock()

	return NewHandle(p, got, func() {
		l.mu.Lock()
		mod.live--
		l.mu.Unlock()
	}), nil
}

// Live returns the number of open handles for the module at path.
func (l *Loader) Live(path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if mod, ok := l.modules[path]; ok {
		return mod.live
	}
	return 0
}

func (l *Loader) describe(path string) (sdk.Metadata, error) {
	mod, err := l.load(path)
	if err != nil {
		return sdk.Metadata{}, err
	}
	p, err := construct(mod.factory)
	if err != nil {
		return sdk.Metadata{}, err
	}
	meta := sdk.MetadataOf(p, path)
	if meta.Name == "" {
		return sdk.Metadata{}, fmt.Errorf("provider has an empty name")
	}
	return meta, nil
}

// load opens and resolves a module once; concurrent callers for the same
// path share a single in-flight load.
func (l *Loader) load(path string) (*module, error) {
	l.mu.Lock()
	if mod, ok := l.modules[path]; ok {
		l.mu.Unlock()
		return mod, nil
	}
	l.mu.Unlock()

	v, err, _ := l.group.Do(path, func() (any, error) {
		l.mu.Lock()
		if mod, ok := l.modules[path]; ok {
			l.mu.Unlock()
			return mod, nil
		}
		l.mu.Unlock()

		m, err := l.opener.Open(path)
		if err != nil {
			return nil, err
		}
		factory, err := resolveFactory(m)
		if err != nil {
			return nil, err
		}

		mod := &module{path: path, factory: factory}
		l.mu.Lock()
		l.modules[path] = mod
		l.mu.Unlock()
		return mod, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*module), nil
}

func resolveFactory(m Module) (sdk.Factory, error) {
	if sym, err := m.Lookup(sdk.ABISymbol); err == nil {
		var declared string
		switch v := sym.(type) {
		case *string:
			declared = *v
		case string:
			declared = v
		default:
			return nil, fmt.Errorf("%w: %s has type %T", ErrABIMismatch, sdk.ABISymbol, sym)
		}
		if declared != sdk.ABIVersion {
			return nil, fmt.Errorf("%w: module %q, host %q", ErrABIMismatch, declared, sdk.ABIVersion)
		}
	}

	sym, err := m.Lookup(sdk.FactorySymbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFactory, err)
	}

	switch f := sym.(type) {
	case func() sdk.Provider:
		return f, nil
	case sdk.Factory:
		return f, nil
	case *sdk.Factory:
		if f != nil && *f != nil {
			return *f, nil
		}
	case *func() sdk.Provider:
		if f != nil && *f != nil {
			return *f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has type %T", ErrNoFactory, sdk.FactorySymbol, sym)
}

// construct calls a module factory, converting a panic or nil result into an error.
func construct(factory sdk.Factory) (p sdk.Provider, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider factory panicked: %v", r)
		}
	}()

	p = factory()
	if p == nil {
		return nil, fmt.Errorf("provider factory returned nil")
	}
	return p, nil
}

func listModules(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), Suffix()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
