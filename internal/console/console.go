// Package console renders an update run in a terminal.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/renovatio/renovatio/internal/orchestrator"
)

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
	warnColor = color.New(color.FgYellow)
	dimColor  = color.New(color.Faint)
)

// Sink draws one progress bar per provider and prints provider output.
type Sink struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool

	bar     *progressbar.ProgressBar
	current string
	prefix  string
	pulse   int
}

var pulseFrames = []string{"|", "/", "-", "\\"}

var (
	_ orchestrator.ProgressSink = (*Sink)(nil)
	_ orchestrator.LogSink      = (*Sink)(nil)
)

// New creates a sink writing to out. With verbose set, provider stdout is
// echoed too; stderr is always shown.
func New(out io.Writer, verbose bool) *Sink {
	return &Sink{out: out, verbose: verbose}
}

func (s *Sink) Progress(u orchestrator.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Provider != s.current {
		s.finishBar()
		s.current = u.Provider
		s.prefix = fmt.Sprintf("[cyan][%d/%d][reset] %s", u.Index, u.Total, u.Provider)
		s.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(s.out),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionSetDescription(s.prefix),
		)
	}

	desc := s.prefix
	if u.Indeterminate && !u.Failed && u.Percent < 100 {
		desc += " " + pulseFrames[s.pulse%len(pulseFrames)]
		s.pulse++
	}
	if u.Message != "" {
		desc += ": " + u.Message
	}
	s.bar.Describe(desc)
	if !u.Indeterminate || u.Percent >= 100 {
		_ = s.bar.Set(u.Percent)
	}

	switch {
	case u.Failed:
		s.exitBar()
		failColor.Fprintf(s.out, "✗ %s: %s\n", u.Provider, u.Message)
	case u.Percent >= 100:
		s.finishBar()
		okColor.Fprintf(s.out, "✓ %s: %s\n", u.Provider, u.Message)
	}
}

func (s *Sink) Output(provider string, stdout, stderr *string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.verbose && stdout != nil {
		writeLines(s.out, dimColor, provider, *stdout)
	}
	if stderr != nil {
		writeLines(s.out, warnColor, provider, *stderr)
	}
}

func (s *Sink) Finished(sum orchestrator.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishBar()

	fmt.Fprintln(s.out)
	for _, r := range sum.Results {
		if r.Success {
			okColor.Fprintf(s.out, "  %-12s ok (%s)\n", r.Name, r.Duration.Round(time.Millisecond))
			continue
		}
		failColor.Fprintf(s.out, "  %-12s failed: %s\n", r.Name, r.Error)
	}
	if sum.Succeeded() {
		okColor.Fprintln(s.out, "All updates finished.")
	} else {
		failColor.Fprintf(s.out, "%d of %d providers failed.\n", len(sum.Failed()), len(sum.Results))
	}
	if sum.RebootRequired {
		warnColor.Fprintln(s.out, "A reboot is required to finish updating.")
	}
}

func (s *Sink) finishBar() {
	if s.bar == nil {
		return
	}
	_ = s.bar.Finish()
	s.resetBar()
}

// exitBar stops the bar where it is, without filling it.
func (s *Sink) exitBar() {
	if s.bar == nil {
		return
	}
	_ = s.bar.Exit()
	s.resetBar()
}

func (s *Sink) resetBar() {
	fmt.Fprintln(s.out)
	s.bar = nil
	s.current = ""
	s.pulse = 0
}

func writeLines(w io.Writer, c *color.Color, provider, text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if line == "" {
			continue
		}
		c.Fprintf(w, "  %s | %s\n", provider, line)
	}
}
