package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/renovatio/renovatio/internal/loader"
)

var enableCmd = &cobra.Command{
	Use:   "enable <provider>...",
	Short: "Append providers to the enabled list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		reg := loader.New(nil, logger).Discover(cfg.SearchPaths)
		for _, name := range args {
			e, ok := reg.Lookup(name)
			if !ok {
				return fmt.Errorf("no provider named %q in the search paths", name)
			}
			if cfg.Enable(e.Name) {
				fmt.Fprintf(cmd.OutOrStdout(), "enabled %s\n", e.Name)
			}
		}
		return cfg.Save()
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <provider>...",
	Short: "Remove providers from the enabled list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		for _, name := range args {
			if cfg.Disable(name) {
				fmt.Fprintf(cmd.OutOrStdout(), "disabled %s\n", name)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s was not enabled\n", name)
			}
		}
		return cfg.Save()
	},
}
