package execute

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
)

// Fake is a scripted Runner for provider tests. Responses are keyed by the
// command line joined with single spaces.
type Fake struct {
	mu        sync.Mutex
	responses map[string]Result
	errs      map[string]error
	calls     []string
}

// NewFake returns an empty fake. Unknown commands exit 127.
func NewFake() *Fake {
	return &Fake{responses: map[string]Result{}, errs: map[string]error{}}
}

// On registers the result for a command line.
func (f *Fake) On(cmdline string, r Result) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmdline] = r
	return f
}

// OnError makes a command line fail to start.
func (f *Fake) OnError(cmdline string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[cmdline] = err
	return f
}

// Calls returns the command lines run so far.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return f.Stream(ctx, nil, name, args...)
}

func (f *Fake) Stream(ctx context.Context, onLine func([]byte), name string, args ...string) (Result, error) {
	cmdline := strings.Join(append([]string{name}, args...), " ")

	f.mu.Lock()
	f.calls = append(f.calls, cmdline)
	r, ok := f.responses[cmdline]
	err := f.errs[cmdline]
	f.mu.Unlock()

	if err != nil {
		return Result{ExitCode: -1}, err
	}
	if !ok {
		return Result{ExitCode: 127, Stderr: fmt.Sprintf("%s: command not found", name)}, nil
	}
	if onLine != nil {
		scanner := bufio.NewScanner(bytes.NewReader([]byte(r.Stdout)))
		for scanner.Scan() {
			onLine(scanner.Bytes())
		}
	}
	return r, nil
}
