package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/renovatio/renovatio/internal/loader"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		reg := loader.New(nil, logger).Discover(cfg.SearchPaths)
		enabled := make(map[string]bool, len(cfg.EnabledProviders))
		for _, n := range cfg.EnabledProviders {
			if e, ok := reg.Lookup(n); ok {
				enabled[e.Name] = true
			}
		}

		out := cmd.OutOrStdout()
		if listJSON {
			type row struct {
				Name        string `json:"name"`
				Version     string `json:"version"`
				Description string `json:"description"`
				Path        string `json:"path"`
				Enabled     bool   `json:"enabled"`
			}
			rows := make([]row, 0, reg.Len())
			for _, e := range reg.Entries() {
				rows = append(rows, row{e.Name, e.Version, e.Description, e.Path, enabled[e.Name]})
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		if reg.Len() == 0 {
			fmt.Fprintln(out, "No providers found in:")
			for _, p := range cfg.SearchPaths {
				fmt.Fprintf(out, "  %s\n", p)
			}
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tVERSION\tENABLED\tDESCRIPTION")
		for _, e := range reg.Entries() {
			mark := "no"
			if enabled[e.Name] {
				mark = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.Version, mark, e.Description)
		}
		return tw.Flush()
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON")
}
