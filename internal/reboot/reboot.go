// Package reboot decides whether to restart the machine after an update run.
package reboot

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/zap"

	"github.com/renovatio/renovatio/internal/execute"
	"github.com/renovatio/renovatio/internal/logging"
	"github.com/renovatio/renovatio/internal/orchestrator"
)

// PendingExitCode is returned by `rpm-ostree status --pending-exit-77` when a
// deployment is staged.
const PendingExitCode = 77

// DefaultMinUptime guards against reboot loops.
const DefaultMinUptime = 5 * time.Minute

// LoopError indicates the machine booted too recently to reboot again.
type LoopError struct {
	Uptime    time.Duration
	MinUptime time.Duration
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("reboot loop guard: up for %s, need at least %s", e.Uptime.Round(time.Second), e.MinUptime)
}

// Manager implements orchestrator.RebootHandler.
type Manager struct {
	AutoReboot bool
	MinUptime  time.Duration

	runner   execute.Runner
	logger   *zap.Logger
	bootTime func(ctx context.Context) (time.Time, error)
	now      func() time.Time
}

var _ orchestrator.RebootHandler = (*Manager)(nil)

// New creates a manager. With autoReboot false it only reports.
func New(runner execute.Runner, autoReboot bool, logger *zap.Logger) *Manager {
	return &Manager{
		AutoReboot: autoReboot,
		MinUptime:  DefaultMinUptime,
		runner:     runner,
		logger:     logging.Component(logger, "reboot"),
		bootTime:   hostBootTime,
		now:        time.Now,
	}
}

// Pending reports whether an OS deployment is staged for the next boot.
func (m *Manager) Pending(ctx context.Context) (bool, error) {
	res, err := m.runner.Run(ctx, "rpm-ostree", "status", "--pending-exit-77")
	if err != nil {
		return false, fmt.Errorf("check pending deployment: %w", err)
	}
	switch res.ExitCode {
	case 0:
		return false, nil
	case PendingExitCode:
		return true, nil
	default:
		return false, fmt.Errorf("rpm-ostree status exited %d: %s", res.ExitCode, res.Stderr)
	}
}

// Uptime returns how long the machine has been up.
func (m *Manager) Uptime(ctx context.Context) (time.Duration, error) {
	boot, err := m.bootTime(ctx)
	if err != nil {
		return 0, fmt.Errorf("read boot time: %w", err)
	}
	return m.now().Sub(boot), nil
}

// HandleReboot reboots when auto-reboot is on and a deployment is pending.
func (m *Manager) HandleReboot(ctx context.Context, s orchestrator.Summary) error {
	logger := m.logger.With(zap.String(logging.KeyRunID, s.RunID))
	if !m.AutoReboot {
		logger.Info("reboot required, automatic reboot disabled")
		return nil
	}

	pending, err := m.Pending(ctx)
	if err != nil {
		return err
	}
	if !pending {
		logger.Info("no staged deployment, skipping reboot")
		return nil
	}

	uptime, err := m.Uptime(ctx)
	if err != nil {
		logger.Warn("could not determine uptime", zap.Error(err))
	} else if m.MinUptime > 0 && uptime < m.MinUptime {
		return &LoopError{Uptime: uptime, MinUptime: m.MinUptime}
	}

	logger.Info("rebooting", zap.Duration("uptime", uptime))
	res, err := m.runner.Run(ctx, "systemctl", "reboot")
	if err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	if !res.Success() {
		return fmt.Errorf("systemctl reboot exited %d: %s", res.ExitCode, res.Stderr)
	}
	return nil
}

func hostBootTime(ctx context.Context) (time.Time, error) {
	secs, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(secs), 0), nil
}
