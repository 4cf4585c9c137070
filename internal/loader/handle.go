package loader

import (
	"sync"

	"github.com/renovatio/renovatio/pkg/sdk"
)

// Handle owns one live provider instance for the duration of a run.
type Handle struct {
	Provider sdk.Provider
	Metadata sdk.Metadata

	once    sync.Once
	release func()
}

// NewHandle wraps a provider. release, if non-nil, runs once on Close.
func NewHandle(p sdk.Provider, meta sdk.Metadata, release func()) *Handle {
	return &Handle{Provider: p, Metadata: meta, release: release}
}

// Close releases the instance. The handle must not be used afterwards.
func (h *Handle) Close() {
	h.once.Do(func() {
		h.Provider = nil
		if h.release != nil {
			h.release()
		}
	})
}
