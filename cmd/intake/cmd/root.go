package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tormodhaugland/intake/internal/config"
	"github.com/tormodhaugland/intake/internal/fs"
	"github.com/tormodhaugland/intake/internal/logging"
	"github.com/tormodhaugland/intake/internal/service"
	"github.com/tormodhaugland/intake/internal/workspace"
)

var (
	cfgFile      string
	dataRootFlag string
	logLevelFlag string
	jsonOut      bool
)

var rootCmd = &cobra.Command{
	Use:   "intake",
	Short: "Copy files and folders into a managed data root",
	Long: `intake copies external files and directories into a managed data root.

Every requested source is checked and copied on its own: a source that would
copy the data root into itself is rejected, an existing destination is never
overwritten, and a failing source never stops the rest of the batch.`,
	SilenceUsage: true,
}

// Execute runs the root command. An interrupt cancels the running batch;
// items not started yet are reported as failed.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/intake/config.json)")
	rootCmd.PersistentFlags().StringVar(&dataRootFlag, "data-root", "", "data root (overrides $"+config.EnvDataRoot+" and config)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dataRootFlag != "" {
		if err := cfg.SetDataRoot(dataRootFlag); err != nil {
			return nil, fmt.Errorf("invalid data root: %w", err)
		}
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	return cfg, nil
}

// openLogger logs JSON lines to the data root's log file. An explicit
// --log-level also echoes to stderr. Nothing is created when the data root
// does not exist yet.
func openLogger(cfg *config.Config) (zerolog.Logger, func()) {
	var writers []io.Writer
	closeFn := func() {}

	if fs.IsDir(cfg.DataRoot) {
		f, err := logging.AppendFile(cfg.LogPath())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		} else {
			writers = append(writers, f)
			closeFn = func() { f.Close() }
		}
	}
	if logLevelFlag != "" {
		writers = append(writers, logging.ConsoleWriter(os.Stderr))
	}

	if len(writers) == 0 {
		return logging.Nop(), closeFn
	}
	log := logging.New(zerolog.MultiLevelWriter(writers...), cfg.LogLevel)
	return log, closeFn
}

func newService(cfg *config.Config, log *zerolog.Logger, engineOpts workspace.Options, svcOpts service.Options) (*service.Service, error) {
	engineOpts.Logger = log
	engine, err := workspace.NewEngine(cfg.DataRoot, engineOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create import engine: %w", err)
	}
	svcOpts.Logger = log
	return service.New(engine, svcOpts), nil
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
