package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/guildwatch/internal/core/config"
	"github.com/vietddude/guildwatch/internal/core/domain"
	"github.com/vietddude/guildwatch/internal/core/round"
	"github.com/vietddude/guildwatch/internal/infra/storage"
	"github.com/vietddude/guildwatch/internal/monitoring/health"
	"github.com/vietddude/guildwatch/internal/monitoring/metrics"
)

// ErrDirectoryUpdate is returned when the producer directory could not be refreshed.
var ErrDirectoryUpdate = errors.New("directory update failed")

// maxMissingLogged caps the guild names listed in a progress line.
const maxMissingLogged = 10

// Directory is the authoritative source of the producer list.
type Directory interface {
	GetProducers(ctx context.Context, limit int) ([]domain.Producer, error)
}

// GuildValidator validates one guild for one round.
type GuildValidator interface {
	Validate(ctx context.Context, rd *round.Round, g *domain.Guild) (*domain.GuildValidation, error)
}

// RoundLock keeps two instances from validating the same chain at once.
type RoundLock interface {
	AcquireRoundLock(ctx context.Context, chain string, ttl time.Duration) (bool, error)
	ReleaseRoundLock(ctx context.Context, chain string) error
}

// RoundRecorder receives a summary of every finished round.
type RoundRecorder interface {
	RecordRound(s health.RoundSummary)
}

// OrchestratorConfig holds the collaborators of one chain's orchestrator.
type OrchestratorConfig struct {
	Chain               *config.ChainConfig
	Directory           Directory
	Guilds              storage.GuildRepository
	Validator           GuildValidator
	Lock                RoundLock // optional
	LockTTL             time.Duration
	Health              RoundRecorder // optional
	MaxConcurrentGuilds int
}

// Orchestrator runs validation rounds for one chain.
type Orchestrator struct {
	cfg OrchestratorConfig
	log *slog.Logger
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.MaxConcurrentGuilds <= 0 {
		cfg.MaxConcurrentGuilds = 1
	}
	return &Orchestrator{
		cfg: cfg,
		log: slog.Default().With("component", "orchestrator", "chain", cfg.Chain.Name),
	}
}

// Run executes rounds until ctx is done. The next round is scheduled only
// after the current one returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		if err := o.RunOnce(ctx); err != nil {
			o.log.Error("Round failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.cfg.Chain.RoundInterval):
		}
	}
}

// RunOnce executes a single round.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	chain := o.cfg.Chain
	rd := round.New(chain, o.log)

	if o.cfg.Lock != nil {
		acquired, err := o.cfg.Lock.AcquireRoundLock(ctx, chain.Name, o.cfg.LockTTL)
		switch {
		case err != nil:
			rd.Log.Warn("Failed to acquire round lock, running unlocked", "error", err)
		case !acquired:
			rd.Log.Info("Round already running on another instance, skipping")
			return nil
		default:
			defer func() {
				if err := o.cfg.Lock.ReleaseRoundLock(context.WithoutCancel(ctx), chain.Name); err != nil {
					rd.Log.Warn("Failed to release round lock", "error", err)
				}
			}()
		}
	}

	rd.Log.Info("Round started")

	var directoryErr string
	if err := o.RefreshDirectory(ctx); err != nil {
		directoryErr = err.Error()
		metrics.DirectoryErrors.WithLabelValues(chain.Name).Inc()
		rd.Log.Error("Directory refresh failed, validating tracked guilds", "error", err)
	}

	guilds, err := o.cfg.Guilds.ListTracked(ctx, chain.Name)
	if err != nil {
		return fmt.Errorf("failed to list tracked guilds: %w", err)
	}

	failed := o.validateAll(ctx, rd, guilds)

	duration := time.Since(rd.StartedAt)
	metrics.RoundDuration.WithLabelValues(chain.Name).Observe(duration.Seconds())
	metrics.GuildsValidated.WithLabelValues(chain.Name).Set(float64(len(guilds) - failed))

	if o.cfg.Health != nil {
		o.cfg.Health.RecordRound(health.RoundSummary{
			Chain:          chain.Name,
			FinishedAt:     time.Now(),
			Duration:       duration,
			Guilds:         len(guilds),
			FailedGuilds:   failed,
			DirectoryError: directoryErr,
		})
	}

	if failed > 0 {
		rd.Log.Warn("Round complete with errors", "guilds", len(guilds), "failed", failed, "duration", duration)
	} else {
		rd.Log.Info("Round complete", "guilds", len(guilds), "duration", duration)
	}
	return nil
}

// RefreshDirectory inserts new producers and refreshes the URL and location
// of known ones.
func (o *Orchestrator) RefreshDirectory(ctx context.Context) error {
	chain := o.cfg.Chain
	producers, err := o.cfg.Directory.GetProducers(ctx, chain.Directory.ProducerLimit)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDirectoryUpdate, err)
	}

	var errs []error
	created := 0
	for _, p := range producers {
		isNew, err := o.cfg.Guilds.Upsert(ctx, &domain.Guild{
			Name:         p.Owner,
			Chain:        chain.Name,
			URL:          p.URL,
			LocationCode: p.Location,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("upsert %s: %w", p.Owner, err))
			continue
		}
		if isNew {
			created++
		}
	}

	o.log.Info("Directory refreshed", "producers", len(producers), "new", created)
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrDirectoryUpdate, errors.Join(errs...))
	}
	return nil
}

// validateAll validates every guild with bounded fan-out and returns how many
// validations reported an error.
func (o *Orchestrator) validateAll(ctx context.Context, rd *round.Round, guilds []*domain.Guild) int {
	total := len(guilds)
	pending := make(map[string]bool, total)
	for _, g := range guilds {
		pending[g.Name] = true
	}

	var (
		mu     sync.Mutex
		done   int
		failed int
	)

	var eg errgroup.Group
	eg.SetLimit(o.cfg.MaxConcurrentGuilds)
	for _, g := range guilds {
		eg.Go(func() error {
			_, err := o.cfg.Validator.Validate(ctx, rd, g)

			mu.Lock()
			defer mu.Unlock()
			delete(pending, g.Name)
			done++
			if err != nil {
				failed++
				rd.ForGuild(g.Name).Error("Guild validation failed", "error", err)
			}
			rd.Log.Info(fmt.Sprintf("%d of %d complete", done, total), "missing", missingNames(pending))
			return nil
		})
	}
	_ = eg.Wait()
	return failed
}

func missingNames(pending map[string]bool) []string {
	names := make([]string, 0, len(pending))
	for name := range pending {
		names = append(names, name)
	}
	slices.Sort(names)
	if len(names) > maxMissingLogged {
		names = append(names[:maxMissingLogged], fmt.Sprintf("+%d more", len(names)-maxMissingLogged))
	}
	return names
}
