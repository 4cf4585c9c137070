package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/renovatio/renovatio/internal/loader"
	"github.com/renovatio/renovatio/internal/logging"
	"github.com/renovatio/renovatio/internal/progress"
	"github.com/renovatio/renovatio/internal/workerpool"
	"github.com/renovatio/renovatio/pkg/sdk"
)

const drainTimeout = 5 * time.Second

// Run is one pass over the enabled providers. Poll and Wait must be driven
// from a single goroutine; State and Summary may be read from anywhere.
type Run struct {
	o       *Orchestrator
	id      string
	ctx     context.Context
	logger  *zap.Logger
	pool    *workerpool.Pool
	entries []sdk.Metadata

	mu      sync.Mutex
	state   State
	next    int
	active  *active
	summary Summary

	// running is the provider on the worker, for the pool's panic hook.
	running   atomic.Pointer[active]
	finalDone chan struct{}
}

// active tracks the provider currently executing.
type active struct {
	index   int
	entry   sdk.Metadata
	handle  *loader.Handle
	ch      *progress.Channel
	tx      *progress.Sender
	started time.Time

	// written by the worker before its sender closes
	returned   atomic.Bool
	panicked   atomic.Bool
	panicValue string
	panicStack string

	percent  int
	failed   bool
	terminal bool
}

// ID returns the run's correlation ID.
func (r *Run) ID() string {
	return r.id
}

// State returns the current lifecycle state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Summary returns a snapshot of the results so far.
func (r *Run) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.summary
	s.Results = append([]ProviderResult(nil), r.summary.Results...)
	return s
}

// Poll advances the run without blocking: it starts the next provider when
// none is active, drains every queued record and finalizes after the last
// provider. It returns true once the run is over; while the reboot hand-off
// is still in progress the run is Finalizing and Poll returns false.
func (r *Run) Poll() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		switch r.state {
		case Done, Rejected:
			return true
		case Running:
		default:
			return false
		}

		if r.active == nil {
			if r.next >= len(r.entries) {
				r.finalize()
				return false
			}
			r.start()
			continue
		}

		if !r.drain() {
			return false
		}
	}
}

// Wait drives Poll until the run is over or ctx is done. Records are picked
// up as soon as they are queued; the poll interval bounds the latency of
// everything else.
func (r *Run) Wait(ctx context.Context) error {
	ticker := time.NewTicker(r.o.interval)
	defer ticker.Stop()

	for !r.Poll() {
		select {
		case <-ctx.Done():
			r.abort(ctx.Err())
			return fmt.Errorf("wait for run %s: %w", r.id, ctx.Err())
		case <-ticker.C:
		case <-r.notify():
		}
	}
	return nil
}

func (r *Run) notify() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Finalizing {
		return r.finalDone
	}
	if r.active == nil {
		return nil
	}
	return r.active.ch.Notify()
}

// abort stops a running run after its context ended. The active provider is
// recorded as failed and its channel is closed so further sends fail; the
// remaining providers never start.
func (r *Run) abort(cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Running {
		return
	}

	if a := r.active; a != nil {
		a.ch.Close()
		if a.handle != nil {
			a.handle.Close()
		}
		r.summary.Results = append(r.summary.Results, ProviderResult{
			Name:     a.entry.Name,
			Index:    a.index,
			Error:    cause.Error(),
			Duration: r.o.now().Sub(a.started),
		})
		r.active = nil
	}

	pool := r.pool
	pool.StopAccepting()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := pool.Drain(ctx); err != nil {
			r.logger.Warn("provider did not stop after cancellation", zap.Error(err))
		}
	}()

	r.summary.FinishedAt = r.o.now()
	r.state = Done
	r.logger.Warn("update run cancelled", zap.Error(cause), zap.Int("completed", len(r.summary.Results)))
}

// providerPanicked is the worker pool's panic hook. It runs after the panic
// was recovered and releases the provider's sender in place of Update.
func (r *Run) providerPanicked(recovered any, stack []byte) {
	a := r.running.Swap(nil)
	if a == nil {
		return
	}
	a.panicValue = fmt.Sprint(recovered)
	a.panicStack = string(stack)
	a.panicked.Store(true)
	a.tx.Close()
}

func (r *Run) reject(err error) (*Run, error) {
	r.mu.Lock()
	r.state = Rejected
	r.summary.FinishedAt = r.o.now()
	r.mu.Unlock()

	r.logger.Warn("update run rejected", zap.Error(err))
	return r, err
}

func (r *Run) start() {
	entry := r.entries[r.next]
	a := &active{
		index:   r.next + 1,
		entry:   entry,
		ch:      progress.New(),
		started: r.o.now(),
	}
	r.active = a
	logger := r.logger.With(zap.String(logging.KeyProvider, entry.Name))

	h, err := r.o.instantiator.Instantiate(entry)
	if err != nil {
		logger.Error("failed to instantiate provider", zap.Error(err))
		r.finish(err)
		return
	}
	a.handle = h

	a.tx = a.ch.Sender()
	p := h.Provider
	ctx := r.ctx
	submitted := r.pool.Submit(func() {
		r.running.Store(a)
		ok := p.Update(ctx, a.tx)
		r.running.Store(nil)
		a.returned.Store(ok)
		a.tx.Close()
	})
	if !submitted {
		a.tx.Close()
		logger.Error("worker rejected provider")
		r.finish(fmt.Errorf("worker rejected %s", entry.Name))
		return
	}
	logger.Info("provider started", zap.Int("index", a.index), zap.Int("total", len(r.entries)))
}

// drain consumes every queued record and reports whether the active provider
// is finished.
func (r *Run) drain() bool {
	a := r.active
	for {
		rec, status := a.ch.TryRecv()
		switch status {
		case progress.Empty:
			return false
		case progress.Received:
			r.handle(a, rec)
		case progress.Disconnected:
			r.finish(nil)
			return true
		}
	}
}

func (r *Run) handle(a *active, rec sdk.Progress) {
	name := a.entry.Name
	if rec.HasOutput() {
		r.o.logSink.Output(name, rec.Stdout, rec.Stderr)
	}
	if rec.RebootRequired {
		r.summary.RebootRequired = true
	}
	if a.terminal {
		r.logger.Debug("record after terminal record dropped",
			zap.String(logging.KeyProvider, name), zap.String("message", rec.Message))
		return
	}

	if rec.Indeterminate && rec.Percent < sdk.PercentComplete {
		// Only a completion percent counts on an indeterminate record.
		rec.Percent = a.percent
	} else {
		rec.Clamp(a.percent)
		a.percent = rec.Percent
	}
	if rec.Failed {
		a.failed = true
	}
	if rec.Terminal() {
		a.terminal = true
	}

	total := len(r.entries)
	r.o.sink.Progress(Update{
		RunID:         r.id,
		Provider:      name,
		Index:         a.index,
		Total:         total,
		Percent:       rec.Percent,
		Indeterminate: rec.Indeterminate,
		Failed:        rec.Failed,
		Message:       rec.Message,
		Overall:       (float64(a.index-1) + float64(rec.Percent)/100) / float64(total),
		At:            r.o.now(),
	})
}

// finish records the active provider's outcome. startErr is set when the
// provider never ran.
func (r *Run) finish(startErr error) {
	a := r.active
	logger := r.logger.With(zap.String(logging.KeyProvider, a.entry.Name))

	result := ProviderResult{
		Name:     a.entry.Name,
		Index:    a.index,
		Panicked: a.panicked.Load(),
	}
	result.Success = startErr == nil && a.returned.Load() && !a.failed && !result.Panicked

	switch {
	case startErr != nil:
		result.Error = startErr.Error()
	case result.Panicked:
		result.Error = "provider panicked: " + a.panicValue
		result.Stack = a.panicStack
	case !result.Success:
		result.Error = "update failed"
	}

	if !a.terminal {
		result.Synthesized = true
		rec := sdk.NewProgress(a.entry.Name)
		rec.Percent = a.percent
		if result.Success {
			rec.Percent = sdk.PercentComplete
			rec.Message = "Update complete."
		} else {
			rec.Failed = true
			rec.Message = fmt.Sprintf("%s stopped without reporting completion", a.entry.Name)
		}
		logger.Warn("provider ended without a terminal record", zap.Bool("success", result.Success))
		r.handle(a, rec)
	}

	if a.handle != nil {
		a.handle.Close()
	}
	result.Duration = r.o.now().Sub(a.started)
	r.summary.Results = append(r.summary.Results, result)

	if result.Success {
		logger.Info("provider finished", zap.Duration("duration", result.Duration))
	} else {
		logger.Warn("provider failed", zap.String("error", result.Error))
	}

	r.active = nil
	r.next++
}

// finalize reports the run-level completion and hands the rest of the
// shutdown to a goroutine so Poll never waits on the reboot handler.
func (r *Run) finalize() {
	r.state = Finalizing
	r.summary.FinishedAt = r.o.now()
	r.o.sink.Finished(r.summary)

	r.finalDone = make(chan struct{})
	go r.complete(r.summary)
}

func (r *Run) complete(sum Summary) {
	defer close(r.finalDone)

	var rebootErr error
	if sum.RebootRequired && r.o.reboot != nil {
		if err := r.o.reboot.HandleReboot(r.ctx, sum); err != nil {
			r.logger.Error("reboot handling failed", zap.Error(err))
			rebootErr = err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	if err := r.pool.Shutdown(ctx); err != nil {
		r.logger.Warn("worker did not stop", zap.Error(err))
	}
	cancel()

	r.mu.Lock()
	r.summary.RebootErr = rebootErr
	r.state = Done
	r.mu.Unlock()

	r.logger.Info("update run finished",
		zap.Int("providers", len(sum.Results)),
		zap.Strings("failed", sum.Failed()),
		zap.Bool("reboot_required", sum.RebootRequired))
}
