// Package sdk defines the contract between renovatio and its update providers.
//
// A provider is built as a Go plugin (go build -buildmode=plugin) whose main
// package exports a factory function named NewProvider with the signature
//
//	func NewProvider() sdk.Provider
//
// and, optionally, a string variable ABIVersion set to sdk.ABIVersion. The
// loader rejects modules that lack the factory or declare a different ABI.
package sdk

import "context"

const (
	// FactorySymbol is the exported symbol the loader resolves in every module.
	FactorySymbol = "NewProvider"

	// ABISymbol is the optional exported string variable declaring the ABI revision.
	ABISymbol = "ABIVersion"

	// ABIVersion is bumped whenever Provider or Progress change incompatibly.
	ABIVersion = "1"
)

// Sender is the write side of a progress channel handed to Provider.Update.
// Send returns false once the receiving side has gone away.
type Sender interface {
	Send(p Progress) bool
}

// Provider is implemented by every update provider.
type Provider interface {
	// Name is a unique, stable identifier used as a registry key and for conflict checks.
	Name() string

	// Description is display text only.
	Description() string

	// Version is informational.
	Version() string

	// Conflicts reports whether this provider must not run alongside the named one.
	// The orchestrator queries both directions.
	Conflicts(other string) bool

	// Update runs the blocking update. It must send at least one terminal record
	// (Percent 100 or Failed) before returning and must not keep tx after returning.
	Update(ctx context.Context, tx Sender) bool
}

// Factory is the type of the exported NewProvider symbol.
type Factory func() Provider

// ConflictsWithAll is the Conflicts implementation of an exclusive provider.
func ConflictsWithAll(string) bool { return true }

// ConflictsWith returns a Conflicts implementation matching the given names.
func ConflictsWith(names ...string) func(string) bool {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(other string) bool {
		_, ok := set[other]
		return ok
	}
}

// Metadata describes a discovered provider without holding a live instance.
type Metadata struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Path        string `json:"path"`
}

// MetadataOf reads a provider's identity.
func MetadataOf(p Provider, path string) Metadata {
	return Metadata{
		Name:        p.Name(),
		Version:     p.Version(),
		Description: p.Description(),
		Path:        path,
	}
}
