package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/guildwatch/internal/core/config"
	"github.com/vietddude/guildwatch/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest verdict of every tracked guild",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		slog.Error("status needs database.url; memory storage does not outlive the service")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	guilds := postgres.NewGuildRepo(db)
	validations := postgres.NewValidationRepo(db)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CHAIN\tGUILD\tLEVEL\tNODES\tVALIDATED")

	for _, c := range cfg.Chains {
		tracked, err := guilds.ListTracked(ctx, c.Name)
		if err != nil {
			slog.Error("Failed to list guilds", "chain", c.Name, "error", err)
			continue
		}
		for _, g := range tracked {
			last, err := validations.FindLastGuildValidation(ctx, g.Name, c.Name)
			if err != nil || last == nil {
				_, _ = fmt.Fprintf(w, "%s\t%s\t-\t-\t-\n", c.Name, g.Name)
				continue
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				c.Name, g.Name, last.AllChecksOK, len(last.Nodes), last.CreatedAt.Format(time.RFC3339))
		}
	}
	_ = w.Flush()
}
