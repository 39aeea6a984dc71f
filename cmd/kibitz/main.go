package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"kibitz/internal/app"
	"kibitz/internal/config"
)

var (
	// Global flags
	verbose bool

	cfg    config.Config
	logger *zap.Logger

	// newApp is swapped in tests to inject a fake engine.
	newApp = func(cfg config.Config, log *zap.Logger) (*app.App, error) {
		return app.New(cfg, log)
	}
)

var rootCmd = &cobra.Command{
	Use:   "kibitz",
	Short: "Annotate chess.com games with a UCI engine",
	Long: `kibitz downloads a game from the public chess.com API, evaluates every
position with a UCI engine, grades each move by its centipawn loss and writes
an annotated PGN. Analyses are stored in sqlite and can be browsed in the
terminal (view) or in a browser (serve).

Configuration is read from KIBITZ_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		zc := zap.NewProductionConfig()
		if verbose || cfg.Verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		if logger, err = zc.Build(); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	fetchCmd.Flags().Int("year", 0, "archive year of --game")
	fetchCmd.Flags().Int("month", 0, "archive month of --game")
	fetchCmd.Flags().String("game", "", "chess.com game id; empty fetches the latest game")

	gamesCmd.Flags().Int("limit", 50, "number of analyses to list")

	renderCmd.Flags().Int("ply", -1, "position to draw; -1 is the final position")
	renderCmd.Flags().String("format", "text", "svg, png or text")
	renderCmd.Flags().StringP("output", "o", "", "output file; stdout when empty")
	renderCmd.Flags().Int("size", 0, "png size in pixels")
	renderCmd.Flags().Bool("flip", false, "draw from black's side")

	rootCmd.AddCommand(fetchCmd, analyzeCmd, viewCmd, runCmd, serveCmd, gamesCmd, renderCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// openApp builds the application for one command run.
func openApp() (*app.App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return newApp(cfg, logger)
}
