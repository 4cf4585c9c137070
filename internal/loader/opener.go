package loader

import (
	"fmt"
	"plugin"
)

// Module is a loaded dynamic unit from which symbols can be resolved.
type Module interface {
	Lookup(symbol string) (any, error)
}

// Opener loads a module from disk.
type Opener interface {
	Open(path string) (Module, error)
}

// PluginOpener opens Go plugins built with -buildmode=plugin.
type PluginOpener struct{}

// Open loads the shared object at path. Go never unmaps a plugin, and opening
// the same path twice returns the already loaded unit.
func (PluginOpener) Open(path string) (Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plugin %s: %w", path, err)
	}
	return pluginModule{p: p}, nil
}

type pluginModule struct {
	p *plugin.Plugin
}

func (m pluginModule) Lookup(symbol string) (any, error) {
	s, err := m.p.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Suffix is the file extension of loadable provider modules.
func Suffix() string {
	return ".so"
}
