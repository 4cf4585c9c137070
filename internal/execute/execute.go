// Package execute runs the external package-manager commands that providers
// drive, capturing bounded output and killing whole process groups on
// cancellation.
package execute

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/renovatio/renovatio/internal/logging"
)

const (
	// MaxOutputSize is the maximum size of stdout/stderr to capture
	MaxOutputSize = 1024 * 1024 // 1MB

	// maxLineSize bounds a single streamed line.
	maxLineSize = 256 * 1024
)

// Result is the outcome of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Success reports a zero exit code.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Runner runs external commands. A non-zero exit is reported in
// Result.ExitCode, not as an error; err is set only when the command could
// not be started or was cancelled.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
	// Stream calls onLine for each stdout line as it is produced. The
	// returned Result still carries the captured stdout.
	Stream(ctx context.Context, onLine func(line []byte), name string, args ...string) (Result, error)
}

// Exec runs commands on the host.
type Exec struct {
	// Env is appended to the current environment.
	Env    []string
	Dir    string
	Logger *zap.Logger
}

// NewExec returns a host runner.
func NewExec(logger *zap.Logger) *Exec {
	return &Exec{Logger: logging.Component(logger, "execute")}
}

// Run executes name with args and waits for it.
func (e *Exec) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return e.run(ctx, nil, name, args...)
}

// Stream executes name with args, delivering stdout line by line.
func (e *Exec) Stream(ctx context.Context, onLine func(line []byte), name string, args ...string) (Result, error) {
	return e.run(ctx, onLine, name, args...)
}

func (e *Exec) run(ctx context.Context, onLine func([]byte), name string, args ...string) (Result, error) {
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()

	cmd := exec.Command(name, args...)
	cmd.Dir = e.Dir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	stdoutW := &limitedWriter{buf: &stdout, limit: MaxOutputSize}
	cmd.Stderr = &limitedWriter{buf: &stderr, limit: MaxOutputSize}

	var pipe io.ReadCloser
	if onLine != nil {
		var err error
		pipe, err = cmd.StdoutPipe()
		if err != nil {
			return Result{ExitCode: -1}, fmt.Errorf("stdout pipe for %s: %w", name, err)
		}
	} else {
		cmd.Stdout = stdoutW
	}

	logger.Debug("starting command", zap.String("command", name), zap.Strings("args", args))
	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1, Duration: time.Since(start)}, fmt.Errorf("start %s: %w", name, err)
	}

	done := make(chan struct{})
	var killOnce sync.Once
	go func() {
		select {
		case <-ctx.Done():
			killOnce.Do(func() {
				if err := killProcessGroup(cmd); err != nil {
					logger.Warn("failed to kill process group", zap.String("command", name), zap.Error(err))
				}
			})
		case <-done:
		}
	}()

	if pipe != nil {
		scanner := bufio.NewScanner(pipe)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := scanner.Bytes()
			stdoutW.Write(line)
			stdoutW.Write([]byte{'\n'})
			onLine(line)
		}
		if err := scanner.Err(); err != nil {
			logger.Warn("stdout scan stopped", zap.String("command", name), zap.Error(err))
			io.Copy(io.Discard, pipe)
		}
	}

	err := cmd.Wait()
	close(done)

	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			result.ExitCode = -1
			return result, fmt.Errorf("%s: %w", name, ctx.Err())
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		default:
			result.ExitCode = -1
			return result, fmt.Errorf("%s: %w", name, err)
		}
	}

	logger.Debug("command finished",
		zap.String("command", name),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// limitedWriter wraps a buffer with a size limit
type limitedWriter struct {
	buf     *bytes.Buffer
	limit   int
	written int
}

// Write always reports the full length so io.Copy in os/exec does not fail
// with a short write once the limit is reached.
func (w *limitedWriter) Write(p []byte) (int, error) {
	total := len(p)
	if w.written >= w.limit {
		return total, nil
	}

	if remaining := w.limit - w.written; len(p) > remaining {
		p = p[:remaining]
	}

	n, err := w.buf.Write(p)
	w.written += n
	if err != nil {
		return n, err
	}
	return total, nil
}
