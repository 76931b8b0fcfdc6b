package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tormodhaugland/intake/internal/config"
	"github.com/tormodhaugland/intake/internal/fs"
	"github.com/tormodhaugland/intake/internal/history"
	"github.com/tormodhaugland/intake/internal/model"
	"github.com/tormodhaugland/intake/internal/selector"
	"github.com/tormodhaugland/intake/internal/service"
	"github.com/tormodhaugland/intake/internal/tui"
	"github.com/tormodhaugland/intake/internal/workspace"
)

var (
	importInto        string
	importInteractive bool
	importGlobs       []string
	importWorkers     int
	importVerify      bool
	importDryRun      bool
	importYes         bool
	importNoHistory   bool
)

type importResult struct {
	BatchID   string                `json:"batch_id,omitempty"`
	TargetDir string                `json:"target_dir"`
	DryRun    bool                  `json:"dry_run"`
	Outcomes  []model.ImportOutcome `json:"outcomes"`
}

var importCmd = &cobra.Command{
	Use:   "import [paths...]",
	Short: "Copy files and folders into the data root",
	Long: `Copies each source into a directory under the data root. The copy keeps
the source's base name, so /home/u/report.txt lands at <target>/report.txt.

Sources come from the arguments, from --glob patterns, or from the
interactive picker (-i). Each source is handled on its own:

  - a source that is the data root, the target, or a parent of either
    is rejected (recursive_import)
  - an existing destination is left untouched (already_exists)
  - any error while copying fails only that source (copy_failed)

Use --dry-run to run the checks without copying anything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if importInteractive && (len(args) > 0 || len(importGlobs) > 0) {
			return fmt.Errorf("-i/--interactive cannot be combined with paths or --glob")
		}
		if !importInteractive && len(args) == 0 && len(importGlobs) == 0 {
			return fmt.Errorf("no sources given (pass paths, --glob, or use -i/--interactive)")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, closeLog := openLogger(cfg)
		defer closeLog()

		workers := cfg.Workers
		if cmd.Flags().Changed("workers") {
			workers = importWorkers
		}

		engineOpts := workspace.Options{
			Workers: workers,
			Verify:  cfg.Verify || importVerify,
		}
		if !jsonOut && !importDryRun {
			engineOpts.OnStart = func(index int, source string) {
				fmt.Fprintf(os.Stderr, "Importing %s\n", source)
			}
		}

		svcOpts := service.Options{Selector: buildSelector(cfg, args)}
		if !importNoHistory && !importDryRun {
			if journal := openJournal(cfg, &log); journal != nil {
				defer journal.Close()
				svcOpts.Journal = journal
			}
		}

		svc, err := newService(cfg, &log, engineOpts, svcOpts)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		sel, err := svc.SelectSources(ctx)
		if err != nil {
			if errors.Is(err, selector.ErrPickerUnavailable) {
				return fmt.Errorf("%w (pass paths or --glob instead)", err)
			}
			return fmt.Errorf("failed to select sources: %w", err)
		}
		if sel.Cancelled {
			if importInteractive {
				fmt.Fprintln(os.Stderr, "Import cancelled.")
				return nil
			}
			return fmt.Errorf("no sources matched")
		}

		target, err := svc.ResolveTarget(importInto)
		if err != nil {
			return err
		}

		if importDryRun {
			outcomes := svc.Plan(ctx, target, sel.Paths)
			return reportImport(importResult{TargetDir: target, DryRun: true, Outcomes: outcomes})
		}

		if importInteractive && !importYes && !jsonOut {
			confirm, err := tui.RunImportConfirm(target, sel.Paths)
			if err != nil {
				return fmt.Errorf("prompt failed: %w", err)
			}
			if confirm.Aborted || !confirm.Confirmed {
				fmt.Fprintln(os.Stderr, "Import cancelled.")
				return nil
			}
		}

		batch := svc.Import(ctx, model.ImportRequest{TargetDir: target, Sources: sel.Paths})
		return reportImport(importResult{BatchID: batch.ID, TargetDir: target, Outcomes: batch.Outcomes})
	},
}

func buildSelector(cfg *config.Config, args []string) selector.Selector {
	if importInteractive {
		return selector.Picker{Start: cfg.PickerStart}
	}

	var multi selector.Multi
	if len(args) > 0 {
		multi = append(multi, selector.Static{Paths: args})
	}
	if len(importGlobs) > 0 {
		multi = append(multi, selector.Glob{Patterns: importGlobs})
	}
	return multi
}

// openJournal opens the history journal of an existing data root. A journal
// that cannot be opened only costs the history entry.
func openJournal(cfg *config.Config, log *zerolog.Logger) *history.DB {
	if !fs.IsDir(cfg.DataRoot) {
		return nil
	}
	db, err := history.Open(cfg.HistoryPath())
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.HistoryPath()).Msg("history journal unavailable")
		return nil
	}
	return db
}

func reportImport(result importResult) error {
	if jsonOut {
		if err := outputJSON(result); err != nil {
			return err
		}
	} else {
		fmt.Println(tui.RenderOutcomes(result.Outcomes))
		if result.BatchID != "" {
			fmt.Printf("Batch %s recorded.\n", result.BatchID)
		}
	}

	unsuccessful := 0
	for _, o := range result.Outcomes {
		if !o.Success && !o.Planned {
			unsuccessful++
		}
	}
	if unsuccessful > 0 {
		return fmt.Errorf("%d of %d item(s) not imported", unsuccessful, len(result.Outcomes))
	}
	return nil
}

func init() {
	importCmd.Flags().StringVar(&importInto, "into", "", "target directory, relative to the data root (default: the data root)")
	importCmd.Flags().BoolVarP(&importInteractive, "interactive", "i", false, "pick sources in a terminal browser")
	importCmd.Flags().StringArrayVar(&importGlobs, "glob", nil, "doublestar pattern selecting sources (can be repeated)")
	importCmd.Flags().IntVar(&importWorkers, "workers", 1, "number of sources copied in parallel")
	importCmd.Flags().BoolVar(&importVerify, "verify", false, "re-read copies and compare checksums")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "run all checks without copying")
	importCmd.Flags().BoolVarP(&importYes, "yes", "y", false, "skip the confirmation prompt in interactive mode")
	importCmd.Flags().BoolVar(&importNoHistory, "no-history", false, "do not record this batch in the history journal")
	rootCmd.AddCommand(importCmd)
}
