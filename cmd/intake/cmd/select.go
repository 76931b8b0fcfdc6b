package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tormodhaugland/intake/internal/selector"
)

var selectCmd = &cobra.Command{
	Use:   "select [start-dir]",
	Short: "Pick paths interactively and print them",
	Long: `Opens the source picker and prints the chosen paths, one per line, in the
order they were selected. Nothing is copied.

Usage with shell:
  intake import $(intake select ~/Downloads)`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		start := cfg.PickerStart
		if len(args) > 0 {
			start = args[0]
		}

		sel, err := selector.Picker{Start: start}.Select(cmd.Context())
		if err != nil {
			return err
		}

		if jsonOut {
			return outputJSON(sel)
		}
		if sel.Cancelled {
			fmt.Fprintln(os.Stderr, "Selection cancelled.")
			return nil
		}
		for _, p := range sel.Paths {
			fmt.Println(p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(selectCmd)
}
