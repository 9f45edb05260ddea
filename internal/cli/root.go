package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/guildwatch/internal/control"
	"github.com/vietddude/guildwatch/internal/core/config"
	"github.com/vietddude/guildwatch/internal/validation/guild"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "guildwatch",
	Short: "Guildwatch block producer prober",
	Long:  `Guildwatch validates the infrastructure of Antelope block producers every round and alerts on changes.`,
	Run:   runService,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig loads .env and the config file, validates it and sets up
// logging. It exits the process on failure.
func loadConfig() (*config.AppConfig, func()) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	closeLog := setupLogging(cfg.Logging, isDebug)

	if err := config.Validate(cfg, guild.CatalogKeys()); err != nil {
		slog.Error("Invalid config", "error", err)
		closeLog()
		os.Exit(1)
	}
	return cfg, closeLog
}

func runService(cmd *cobra.Command, args []string) {
	cfg, closeLog := loadConfig()
	defer closeLog()

	app, err := control.NewApp(cfg)
	if err != nil {
		slog.Error("Failed to initialize guildwatch", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start guildwatch", "error", err)
		os.Exit(1)
	}

	slog.Info("Guildwatch started", "config", cfgPath, "chains", len(cfg.Chains))

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
