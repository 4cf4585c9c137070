// Package providers holds the helpers shared by the built-in update providers.
package providers

import (
	"strconv"
	"strings"
	"sync"

	"github.com/renovatio/renovatio/internal/execute"
	"github.com/renovatio/renovatio/pkg/sdk"
)

// Version is reported by every built-in provider.
var Version = "0.1.0"

// Reporter keeps a provider's working record and sends snapshots of it.
type Reporter struct {
	tx  sdk.Sender
	rec sdk.Progress
}

// NewReporter starts a record for the named provider.
func NewReporter(name string, tx sdk.Sender) *Reporter {
	return &Reporter{tx: tx, rec: sdk.NewProgress(name)}
}

// Percent returns the last sent percent.
func (r *Reporter) Percent() int {
	return r.rec.Percent
}

// Status sends a plain status line.
func (r *Reporter) Status(percent int, msg string) {
	r.set(percent, msg)
	r.rec.Indeterminate = false
	r.send()
}

// Pulse sends activity without a meaningful percent.
func (r *Reporter) Pulse(msg string) {
	r.rec.Message = msg
	r.rec.Indeterminate = true
	r.send()
}

// Output sends a status line carrying a command's captured output. Both
// streams are present on the record even when empty.
func (r *Reporter) Output(percent int, msg string, res execute.Result) {
	r.set(percent, msg)
	r.rec.Indeterminate = false
	r.rec.WithOutput(res.Stdout, res.Stderr)
	r.send()
}

// Warn reports a non-fatal problem at the current percent.
func (r *Reporter) Warn(msg string, res execute.Result, err error) {
	r.rec.Message = msg
	r.rec.Stderr = sdk.StringPtr(ErrorText(res, err))
	r.send()
}

// Fail sends the terminal failure record and returns false for Update to
// return directly.
func (r *Reporter) Fail(msg string, res execute.Result, err error) bool {
	r.rec.Message = msg
	r.rec.Failed = true
	r.rec.Indeterminate = false
	r.rec.Stderr = sdk.StringPtr(ErrorText(res, err))
	r.send()
	return false
}

// Done sends the terminal success record.
func (r *Reporter) Done(msg string, rebootRequired bool) bool {
	r.rec.Percent = sdk.PercentComplete
	r.rec.Message = msg
	r.rec.Indeterminate = false
	r.rec.RebootRequired = r.rec.RebootRequired || rebootRequired
	r.send()
	return true
}

// Send forwards a record built elsewhere, keeping the working percent in step.
func (r *Reporter) Send(p sdk.Progress) {
	if p.Percent > r.rec.Percent {
		r.rec.Percent = p.Percent
	}
	r.tx.Send(p)
}

func (r *Reporter) set(percent int, msg string) {
	if percent > r.rec.Percent {
		r.rec.Percent = percent
	}
	r.rec.Message = msg
}

func (r *Reporter) send() {
	r.tx.Send(r.rec)
	r.rec.ClearOutput()
}

// ErrorText picks the most useful description of a failed command.
func ErrorText(res execute.Result, err error) string {
	if s := strings.TrimSpace(res.Stderr); s != "" {
		return s
	}
	if err != nil {
		return err.Error()
	}
	if res.ExitCode != 0 {
		return "exit status " + strconv.Itoa(res.ExitCode)
	}
	return ""
}

// Step returns the percent reached after done of total items, scaled into
// [from, 99] so the terminal record stays distinct.
func Step(from, done, total int) int {
	if total <= 0 {
		return from
	}
	p := from + done*(sdk.PercentComplete-1-from)/total
	if p > sdk.PercentComplete-1 {
		p = sdk.PercentComplete - 1
	}
	return p
}

// Collector is an sdk.Sender that keeps every record, for tests.
type Collector struct {
	mu      sync.Mutex
	records []sdk.Progress
}

func (c *Collector) Send(p sdk.Progress) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, p.Clone())
	return true
}

// Records returns a copy of everything sent so far.
func (c *Collector) Records() []sdk.Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sdk.Progress(nil), c.records...)
}

// Last returns the most recent record.
func (c *Collector) Last() sdk.Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.records) == 0 {
		return sdk.Progress{}
	}
	return c.records[len(c.records)-1]
}
