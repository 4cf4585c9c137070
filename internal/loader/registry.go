package loader

import "github.com/renovatio/renovatio/pkg/sdk"

// Registry is the ordered set of providers found during discovery.
// It holds metadata only, never live provider instances.
type Registry struct {
	entries []sdk.Metadata
	byName  map[string]int
	byPath  map[string]int
}

// NewRegistry builds a registry from entries. Later duplicates of a name are ignored.
func NewRegistry(entries ...sdk.Metadata) *Registry {
	r := &Registry{
		byName: make(map[string]int, len(entries)),
		byPath: make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		r.Add(e)
	}
	return r
}

// Add registers an entry unless its name is already taken. It reports whether
// the entry was added.
func (r *Registry) Add(e sdk.Metadata) bool {
	if _, exists := r.byName[e.Name]; exists {
		return false
	}
	r.byName[e.Name] = len(r.entries)
	if e.Path != "" {
		r.byPath[e.Path] = len(r.entries)
	}
	r.entries = append(r.entries, e)
	return true
}

// Lookup resolves a provider by name or by load path.
func (r *Registry) Lookup(key string) (sdk.Metadata, bool) {
	if i, ok := r.byName[key]; ok {
		return r.entries[i], true
	}
	if i, ok := r.byPath[key]; ok {
		return r.entries[i], true
	}
	return sdk.Metadata{}, false
}

// Entries returns a copy of the registered entries in discovery order.
func (r *Registry) Entries() []sdk.Metadata {
	out := make([]sdk.Metadata, len(r.entries))
	copy(out, r.entries)
	return out
}

// Names returns provider names in discovery order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.Name)
	}
	return names
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return len(r.entries)
}
