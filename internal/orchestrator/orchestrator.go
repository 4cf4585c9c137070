// Package orchestrator runs an ordered set of update providers one at a time
// and folds their progress into a single timeline.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/renovatio/renovatio/internal/loader"
	"github.com/renovatio/renovatio/internal/logging"
	"github.com/renovatio/renovatio/internal/workerpool"
	"github.com/renovatio/renovatio/pkg/sdk"
)

// DefaultPollInterval is the Wait cadence when none is configured.
const DefaultPollInterval = 50 * time.Millisecond

// Orchestrator starts runs. It is safe to reuse for sequential runs.
type Orchestrator struct {
	instantiator Instantiator
	sink         ProgressSink
	logSink      LogSink
	reboot       RebootHandler
	checks       []Check
	logger       *zap.Logger
	interval     time.Duration
	now          func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogSink forwards provider stdout/stderr to s.
func WithLogSink(s LogSink) Option {
	return func(o *Orchestrator) { o.logSink = s }
}

// WithRebootHandler sets the collaborator consulted when a reboot is required.
func WithRebootHandler(h RebootHandler) Option {
	return func(o *Orchestrator) { o.reboot = h }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithPollInterval sets the Wait cadence.
func WithPollInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithChecks adds preflight checks run during validation.
func WithChecks(checks ...Check) Option {
	return func(o *Orchestrator) { o.checks = append(o.checks, checks...) }
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator. A nil sink discards progress.
func New(inst Instantiator, sink ProgressSink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		instantiator: inst,
		sink:         sink,
		interval:     DefaultPollInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.sink == nil {
		o.sink = nopSink{}
	}
	if o.logSink == nil {
		o.logSink = nopSink{}
	}
	o.logger = logging.Component(o.logger, "orchestrator")
	return o
}

// Begin validates the enabled list against the registry and prepares a run.
// The list is read once; later changes do not affect the run.
//
// If the run is rejected the returned Run is in state Rejected and err says
// why: ErrUnknownProvider, *ConflictError or a failed preflight check.
func (o *Orchestrator) Begin(ctx context.Context, reg *loader.Registry, enabled []string) (*Run, error) {
	id := uuid.NewString()
	r := &Run{
		o:      o,
		id:     id,
		ctx:    ctx,
		state:  Idle,
		logger: o.logger.With(zap.String(logging.KeyRunID, id)),
		summary: Summary{
			RunID:     id,
			StartedAt: o.now(),
		},
	}

	r.state = Validating
	entries, err := o.resolve(reg, enabled, r.logger)
	if err != nil {
		return r.reject(err)
	}
	if err := o.checkConflicts(entries); err != nil {
		return r.reject(err)
	}
	for _, check := range o.checks {
		if err := check(ctx); err != nil {
			return r.reject(err)
		}
	}

	r.entries = entries
	r.pool = workerpool.New(1, 1, r.logger)
	r.pool.OnPanic(r.providerPanicked)
	r.state = Running
	r.logger.Info("update run started", zap.Strings("providers", names(entries)))
	return r, nil
}

// Execute runs the enabled providers to completion.
func (o *Orchestrator) Execute(ctx context.Context, reg *loader.Registry, enabled []string) (Summary, error) {
	r, err := o.Begin(ctx, reg, enabled)
	if err != nil {
		return r.Summary(), err
	}
	if err := r.Wait(ctx); err != nil {
		return r.Summary(), err
	}
	return r.Summary(), nil
}

func (o *Orchestrator) resolve(reg *loader.Registry, enabled []string, logger *zap.Logger) ([]sdk.Metadata, error) {
	seen := make(map[string]bool, len(enabled))
	entries := make([]sdk.Metadata, 0, len(enabled))
	for _, name := range enabled {
		entry, ok := reg.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
		}
		if seen[entry.Name] {
			logger.Warn("provider enabled twice, running once", zap.String(logging.KeyProvider, entry.Name))
			continue
		}
		seen[entry.Name] = true
		entries = append(entries, entry)
	}
	return entries, nil
}

// checkConflicts queries every pair in both directions. Providers are
// instantiated only for the query and released immediately.
func (o *Orchestrator) checkConflicts(entries []sdk.Metadata) error {
	if len(entries) < 2 {
		return nil
	}

	handles := make([]*loader.Handle, 0, len(entries))
	defer func() {
		for _, h := range handles {
			h.Close()
		}
	}()
	for _, e := range entries {
		h, err := o.instantiator.Instantiate(e)
		if err != nil {
			return fmt.Errorf("instantiate %s for conflict check: %w", e.Name, err)
		}
		handles = append(handles, h)
	}

	for i := 0; i < len(handles); i++ {
		for j := i + 1; j < len(handles); j++ {
			a, b := handles[i].Provider, handles[j].Provider
			if a.Conflicts(b.Name()) || b.Conflicts(a.Name()) {
				return &ConflictError{A: a.Name(), B: b.Name()}
			}
		}
	}
	return nil
}

func names(entries []sdk.Metadata) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}
