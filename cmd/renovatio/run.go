package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/renovatio/renovatio/internal/config"
	"github.com/renovatio/renovatio/internal/console"
	"github.com/renovatio/renovatio/internal/execute"
	"github.com/renovatio/renovatio/internal/loader"
	"github.com/renovatio/renovatio/internal/orchestrator"
	"github.com/renovatio/renovatio/internal/preflight"
	"github.com/renovatio/renovatio/internal/providers/uupd"
	"github.com/renovatio/renovatio/internal/reboot"
	"github.com/renovatio/renovatio/internal/runlock"
)

var (
	runJSON       bool
	runVerbose    bool
	runAutoReboot bool
	runSkipChecks bool
)

var runCmd = &cobra.Command{
	Use:   "run [provider...]",
	Short: "Run the enabled providers, or the named ones, in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		if cmd.Flags().Changed("auto-reboot") {
			cfg.AutoReboot = runAutoReboot
		}
		enabled := cfg.EnabledProviders
		if len(args) > 0 {
			enabled = args
		}
		if len(enabled) == 0 {
			return errors.New("no providers enabled; use 'renovatio enable <provider>' or name them on the command line")
		}

		lock, err := runlock.Acquire(runlock.DefaultPath())
		if err != nil {
			return err
		}
		defer lock.Release()

		if err := exportProviderSettings(cfg); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ld := loader.New(nil, logger)
		reg := ld.Discover(cfg.SearchPaths)

		var sink interface {
			orchestrator.ProgressSink
			orchestrator.LogSink
		}
		if runJSON {
			sink = console.NewJSON(cmd.OutOrStdout())
		} else {
			sink = console.New(cmd.OutOrStdout(), runVerbose)
		}

		opts := []orchestrator.Option{
			orchestrator.WithLogger(logger),
			orchestrator.WithLogSink(sink),
			orchestrator.WithPollInterval(cfg.PollInterval),
			orchestrator.WithRebootHandler(reboot.New(execute.NewExec(logger), cfg.AutoReboot, logger)),
		}
		if !runSkipChecks {
			opts = append(opts, orchestrator.WithChecks(
				preflight.DiskSpace("/", cfg.MinFreeDiskMB),
				preflight.PackageManagerIdle(),
			))
		}

		sum, err := orchestrator.New(ld, sink, opts...).Execute(ctx, reg, enabled)
		if err != nil {
			var conflict *orchestrator.ConflictError
			switch {
			case errors.As(err, &conflict):
				return fmt.Errorf("%w; disable one of them with 'renovatio disable'", err)
			case errors.Is(err, orchestrator.ErrUnknownProvider):
				return fmt.Errorf("%w; see 'renovatio list'", err)
			default:
				return err
			}
		}

		if sum.RebootErr != nil {
			logger.Error("reboot failed", zap.Error(sum.RebootErr))
		}
		if !sum.Succeeded() {
			return fmt.Errorf("%d provider(s) failed: %v", len(sum.Failed()), sum.Failed())
		}
		return nil
	},
}

// exportProviderSettings passes settings to providers loaded as plugins,
// which read them from the environment.
func exportProviderSettings(cfg *config.Config) error {
	if err := os.Setenv(uupd.PolicyEnv, cfg.NormalizerPolicy); err != nil {
		return fmt.Errorf("export %s: %w", uupd.PolicyEnv, err)
	}
	return nil
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "emit progress as JSON lines")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "show provider command output")
	runCmd.Flags().BoolVar(&runAutoReboot, "auto-reboot", false, "reboot when an OS update is staged")
	runCmd.Flags().BoolVar(&runSkipChecks, "skip-checks", false, "skip disk space and package manager checks")
}
