package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/renovatio/renovatio/internal/loader"
	"github.com/renovatio/renovatio/pkg/sdk"
)

// ErrUnknownProvider is returned when an enabled name has no registry entry.
var ErrUnknownProvider = errors.New("unknown provider")

// ConflictError rejects a run because two enabled providers cannot run together.
type ConflictError struct {
	A string
	B string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("providers %q and %q conflict and cannot run in the same update", e.A, e.B)
}

// State is the lifecycle state of a run.
type State int

const (
	Idle State = iota
	Validating
	Running
	Finalizing
	Done
	Rejected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Running:
		return "running"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Instantiator creates live providers for registry entries. *loader.Loader
// implements it.
type Instantiator interface {
	Instantiate(entry sdk.Metadata) (*loader.Handle, error)
}

// Update is one progress record as seen by the progress sink.
type Update struct {
	RunID         string    `json:"runId"`
	Provider      string    `json:"provider"`
	Index         int       `json:"index"` // 1-based position in the run
	Total         int       `json:"total"`
	Percent       int       `json:"percent"`
	Indeterminate bool      `json:"indeterminate,omitempty"`
	Failed        bool      `json:"failed,omitempty"`
	Message       string    `json:"message"`
	Overall       float64   `json:"overall"` // 0-1 across the whole run
	At            time.Time `json:"at"`
}

// ProviderResult is the outcome of one provider.
type ProviderResult struct {
	Name    string `json:"name"`
	Index   int    `json:"index"`
	Success bool   `json:"success"`
	// Synthesized is set when the orchestrator had to make up the terminal
	// record because the provider never sent one.
	Synthesized bool          `json:"synthesized,omitempty"`
	Panicked    bool          `json:"panicked,omitempty"`
	Error       string        `json:"error,omitempty"`
	Stack       string        `json:"stack,omitempty"` // set when the provider panicked
	Duration    time.Duration `json:"duration"`
}

// Summary is the outcome of a whole run.
type Summary struct {
	RunID          string           `json:"runId"`
	Results        []ProviderResult `json:"results"`
	RebootRequired bool             `json:"rebootRequired"`
	RebootErr      error            `json:"-"`
	StartedAt      time.Time        `json:"startedAt"`
	FinishedAt     time.Time        `json:"finishedAt"`
}

// Failed returns the names of providers that did not succeed.
func (s Summary) Failed() []string {
	var names []string
	for _, r := range s.Results {
		if !r.Success {
			names = append(names, r.Name)
		}
	}
	return names
}

// Succeeded reports whether every provider succeeded.
func (s Summary) Succeeded() bool {
	return len(s.Failed()) == 0
}

// ProgressSink receives forwarded progress. Calls happen on the polling
// goroutine while the run is locked, so sinks must not call back into the Run.
type ProgressSink interface {
	Progress(u Update)
	// Finished is the run-level completion record.
	Finished(s Summary)
}

// LogSink receives provider command output verbatim. A nil pointer means the
// stream was absent from the record.
type LogSink interface {
	Output(provider string, stdout, stderr *string)
}

// RebootHandler is consulted once at the end of a run that requires a reboot.
type RebootHandler interface {
	HandleReboot(ctx context.Context, s Summary) error
}

// Check is a preflight condition evaluated before any provider runs.
type Check func(ctx context.Context) error

type nopSink struct{}

func (nopSink) Progress(Update)                 {}
func (nopSink) Finished(Summary)                {}
func (nopSink) Output(string, *string, *string) {}
