package execute

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	requireShell(t)
	e := NewExec(nil)

	res, err := e.Run(context.Background(), "sh", "-c", "echo out; echo err >&2; exit 3")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 || res.Success() {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "out" || strings.TrimSpace(res.Stderr) != "err" {
		t.Fatalf("unexpected output %q / %q", res.Stdout, res.Stderr)
	}
}

func TestRunMissingBinary(t *testing.T) {
	e := NewExec(nil)
	res, err := e.Run(context.Background(), "renovatio-definitely-missing-binary")
	if err == nil {
		t.Fatal("expected start error")
	}
	if res.ExitCode != -1 {
		t.Fatalf("expected exit code -1, got %d", res.ExitCode)
	}
}

func TestStreamDeliversLinesInOrder(t *testing.T) {
	requireShell(t)
	e := NewExec(nil)

	var lines []string
	res, err := e.Stream(context.Background(), func(line []byte) {
		lines = append(lines, string(line))
	}, "sh", "-c", "echo one; echo two; echo three")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if strings.Join(lines, ",") != "one,two,three" {
		t.Fatalf("unexpected lines %v", lines)
	}
	if res.Stdout != "one\ntwo\nthree\n" {
		t.Fatalf("expected stdout to be captured too, got %q", res.Stdout)
	}
}

func TestRunCancelKillsProcess(t *testing.T) {
	requireShell(t)
	e := NewExec(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := e.Run(ctx, "sh", "-c", "sleep 10")
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("process was not killed on cancellation")
	}
}

func TestLimitedWriterTruncates(t *testing.T) {
	var buf bytes.Buffer
	w := &limitedWriter{buf: &buf, limit: 5}

	n, err := w.Write([]byte("hello world"))
	if err != nil || n != 11 {
		t.Fatalf("expected full length to be reported, got %d, %v", n, err)
	}
	w.Write([]byte("more"))
	if buf.String() != "hello" {
		t.Fatalf("expected truncation at limit, got %q", buf.String())
	}
}

func TestRunOutputBeyondLimitStillSucceeds(t *testing.T) {
	requireShell(t)
	e := NewExec(nil)

	res, err := e.Run(context.Background(), "sh", "-c", "head -c 2000000 /dev/zero; exit 0")
	if err != nil {
		t.Fatalf("expected large output to be truncated silently, got %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", res.ExitCode)
	}
	if len(res.Stdout) != MaxOutputSize {
		t.Fatalf("expected stdout capped at %d bytes, got %d", MaxOutputSize, len(res.Stdout))
	}
}

func TestElevated(t *testing.T) {
	orig := geteuid
	defer func() { geteuid = orig }()

	geteuid = func() int { return 1000 }
	name, args := Elevated("uupd", "--json")
	if name != "pkexec" || len(args) != 2 || args[0] != "uupd" || args[1] != "--json" {
		t.Fatalf("expected pkexec wrapper, got %s %v", name, args)
	}

	geteuid = func() int { return 0 }
	name, args = Elevated("uupd", "--json")
	if name != "uupd" || len(args) != 1 {
		t.Fatalf("root should not be wrapped, got %s %v", name, args)
	}
	if !IsRoot() {
		t.Fatal("expected IsRoot with euid 0")
	}
}

func TestFakeRunner(t *testing.T) {
	f := NewFake().On("brew update", Result{Stdout: "a\nb\n"})

	var lines []string
	res, err := f.Stream(context.Background(), func(l []byte) { lines = append(lines, string(l)) }, "brew", "update")
	if err != nil || !res.Success() {
		t.Fatalf("unexpected result %+v, %v", res, err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %v", lines)
	}

	res, _ = f.Run(context.Background(), "brew", "doctor")
	if res.ExitCode != 127 {
		t.Fatalf("unknown command should exit 127, got %d", res.ExitCode)
	}
	if got := f.Calls(); len(got) != 2 || got[1] != "brew doctor" {
		t.Fatalf("unexpected calls %v", got)
	}
}
