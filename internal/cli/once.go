package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vietddude/guildwatch/internal/control"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single validation round on every chain and exit",
	Run:   runOnce,
}

func init() {
	rootCmd.AddCommand(onceCmd)
}

func runOnce(cmd *cobra.Command, args []string) {
	cfg, closeLog := loadConfig()
	defer closeLog()

	app, err := control.NewApp(cfg)
	if err != nil {
		slog.Error("Failed to initialize guildwatch", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := app.RunOnce(ctx)
	if err := app.Stop(context.Background()); err != nil {
		slog.Warn("Error during shutdown", "error", err)
	}
	if runErr != nil {
		slog.Error("Round failed", "error", runErr)
		os.Exit(1)
	}
	slog.Info("Round complete", "chains", len(cfg.Chains))
}
