package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tormodhaugland/intake/internal/fs"
	"github.com/tormodhaugland/intake/internal/history"
	"github.com/tormodhaugland/intake/internal/tui"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [batch-id]",
	Short: "List past imports or show one batch",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if ok, _ := fs.Exists(cfg.HistoryPath()); !ok {
			if jsonOut {
				return outputJSON([]history.Summary{})
			}
			fmt.Println("No imports recorded yet")
			return nil
		}

		db, err := history.Open(cfg.HistoryPath())
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer db.Close()

		ctx := cmd.Context()

		if len(args) == 1 {
			batch, err := db.GetBatch(ctx, args[0])
			if errors.Is(err, history.ErrNotFound) {
				return fmt.Errorf("no batch with id %s", args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to load batch: %w", err)
			}
			if jsonOut {
				return outputJSON(batch)
			}
			fmt.Printf("Batch:    %s\n", batch.ID)
			fmt.Printf("Target:   %s\n", batch.TargetDir)
			fmt.Printf("Started:  %s\n", batch.StartedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Duration: %s\n\n", batch.FinishedAt.Sub(batch.StartedAt).Round(time.Millisecond))
			fmt.Println(tui.RenderOutcomes(batch.Outcomes))
			return nil
		}

		batches, err := db.ListBatches(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list batches: %w", err)
		}
		if jsonOut {
			return outputJSON(batches)
		}
		if len(batches) == 0 {
			fmt.Println("No imports recorded yet")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tWHEN\tTARGET\tITEMS\tOK\tSIZE")
		for _, b := range batches {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
				b.ID, humanize.Time(b.StartedAt), b.TargetDir, b.Total, b.Succeeded, humanize.IBytes(uint64(b.Bytes)))
		}
		w.Flush()
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of batches to list")
	rootCmd.AddCommand(historyCmd)
}
