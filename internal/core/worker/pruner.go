package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vietddude/guildwatch/internal/core/config"
	"github.com/vietddude/guildwatch/internal/infra/storage"
)

// Pruner deletes old validations based on retention policy.
type Pruner struct {
	cfg    config.RetentionConfig
	chains []string
	repo   storage.ValidationRepository
	cron   *cron.Cron
	log    *slog.Logger
	now    func() time.Time
}

// NewPruner creates a new Pruner worker. The schedule uses standard cron
// syntax including descriptors such as @hourly.
func NewPruner(cfg config.RetentionConfig, chains []string, repo storage.ValidationRepository) (*Pruner, error) {
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", cfg.Schedule, err)
	}
	return &Pruner{
		cfg:    cfg,
		chains: chains,
		repo:   repo,
		cron:   cron.New(),
		log:    slog.Default().With("component", "pruner"),
		now:    time.Now,
	}, nil
}

// Start runs the pruner until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	if p.cfg.Period <= 0 {
		return // Retention disabled
	}

	if _, err := p.cron.AddFunc(p.cfg.Schedule, func() { p.Prune(ctx) }); err != nil {
		p.log.Error("Failed to schedule pruning", "error", err)
		return
	}

	// Initial prune
	p.Prune(ctx)

	p.cron.Start()
	<-ctx.Done()
	<-p.cron.Stop().Done()
}

// Prune deletes validations older than the retention period on every chain
// and returns how many rows were removed.
func (p *Pruner) Prune(ctx context.Context) int64 {
	threshold := p.now().Add(-p.cfg.Period)

	var total int64
	for _, chain := range p.chains {
		n, err := p.repo.DeleteOlderThan(ctx, chain, threshold)
		if err != nil {
			p.log.Error("Failed to prune validations", "chain", chain, "error", err)
			continue
		}
		if n > 0 {
			p.log.Info("Pruned validations", "chain", chain, "deleted", n, "before", threshold)
		}
		total += n
	}
	return total
}
