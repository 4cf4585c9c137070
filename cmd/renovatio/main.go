package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/renovatio/renovatio/internal/config"
	"github.com/renovatio/renovatio/internal/logging"
	"github.com/renovatio/renovatio/pkg/sdk"
)

var (
	version  = "0.1.0"
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "renovatio",
	Short: "Update the system through pluggable providers",
	Long: `renovatio runs a configured, ordered set of update providers (bootc, rpm-ostree,
flatpak, brew, distrobox, uupd, ...) and shows their combined progress.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "renovatio v%s (provider ABI %s)\n", version, sdk.ABIVersion)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/renovatio/renovatio.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the process logger. The logger is
// installed as zap's global so providers loaded as plugins log through it.
func setup() (*config.Config, *zap.Logger, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	problems := cfg.Validate()

	logger, cleanup, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, nil, nil, err
	}
	for _, p := range problems {
		logger.Warn("config adjusted", zap.Error(p))
	}
	undo := zap.ReplaceGlobals(logger)

	return cfg, logger, func() {
		undo()
		cleanup()
	}, nil
}
