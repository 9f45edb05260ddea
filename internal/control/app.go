package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/guildwatch/internal/core/config"
	"github.com/vietddude/guildwatch/internal/core/worker"
	"github.com/vietddude/guildwatch/internal/infra/alert"
	"github.com/vietddude/guildwatch/internal/infra/antelope"
	"github.com/vietddude/guildwatch/internal/infra/p2p"
	"github.com/vietddude/guildwatch/internal/infra/probe"
	redisclient "github.com/vietddude/guildwatch/internal/infra/redis"
	"github.com/vietddude/guildwatch/internal/infra/report"
	"github.com/vietddude/guildwatch/internal/infra/storage"
	"github.com/vietddude/guildwatch/internal/infra/storage/memory"
	"github.com/vietddude/guildwatch/internal/infra/storage/postgres"
	"github.com/vietddude/guildwatch/internal/monitoring/health"
	"github.com/vietddude/guildwatch/internal/validation/engine"
	"github.com/vietddude/guildwatch/internal/validation/guild"
	"github.com/vietddude/guildwatch/internal/validation/seed"
)

// App owns every long-running component of the service.
type App struct {
	cfg           *config.AppConfig
	orchestrators []*Orchestrator
	validators    []*guild.Validator
	pruner        *worker.Pruner
	healthMon     *health.Monitor
	healthServer  *health.Server
	grpcServer    *health.GRPCServer
	db            *postgres.DB
	redisClient   *redisclient.Client
	log           *slog.Logger
	wg            sync.WaitGroup
}

// NewApp creates a new App with all dependencies initialized.
func NewApp(cfg *config.AppConfig) (*App, error) {
	log := slog.Default().With("component", "app")
	ctx := context.Background()

	// 1. Storage
	var guilds storage.GuildRepository
	var validations storage.ValidationRepository
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		guilds = postgres.NewGuildRepo(db)
		validations = postgres.NewValidationRepo(db)
		log.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewStorage()
		guilds = memory.NewGuildRepo(store)
		validations = memory.NewValidationRepo(store)
		log.Info("Using Memory storage")
	}

	// 2. Redis: round lock and report cache
	var redisClient *redisclient.Client
	var lock RoundLock
	sinks := report.Multi{report.NewFileSink(cfg.Report.Dir)}
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, round lock and report cache disabled", "error", err)
		} else {
			lock = redisClient
			sinks = append(sinks, report.NewCacheSink(redisClient, cfg.Report.CacheTTL))
		}
	}

	// 3. Alerts
	var notifier alert.Notifier
	if cfg.Alert.WebhookURL != "" {
		notifier = alert.NewWebhookNotifier(cfg.Alert.WebhookURL, cfg.Alert.JWTSecret, cfg.Alert.Timeout, slog.Default())
	} else {
		notifier = alert.NewLogNotifier(slog.Default())
	}

	// 4. Health
	intervals := make(map[string]time.Duration, len(cfg.Chains))
	chainNames := make([]string, 0, len(cfg.Chains))
	for _, c := range cfg.Chains {
		intervals[c.Name] = c.RoundInterval
		chainNames = append(chainNames, c.Name)
	}
	healthMon := health.NewMonitor(intervals)
	healthServer := health.NewServer(healthMon, cfg.Server.Port)
	var grpcServer *health.GRPCServer
	if cfg.Server.GRPCPort > 0 {
		grpcServer = health.NewGRPCServer(healthMon, cfg.Server.GRPCPort)
	}

	// 5. Per-chain validation pipeline
	orchestrators := make([]*Orchestrator, 0, len(cfg.Chains))
	validators := make([]*guild.Validator, 0, len(cfg.Chains))
	for i := range cfg.Chains {
		chain := &cfg.Chains[i]
		chainLog := slog.Default().With("chain", chain.Name)

		prober := probe.NewClient(chain.Request, probe.WithLogger(chainLog))
		chainAPI := antelope.NewClient(chain.APIURL, chain.Request.Timeout)
		p2pClient := p2p.NewClient(chain.P2P, chain.ID, chainAPI, chainLog)

		validator := guild.NewValidator(guild.Config{
			Engine:             engine.New(prober, validations),
			Prober:             prober,
			Seed:               seed.Kind(p2pClient),
			Store:              validations,
			Sink:               sinks,
			Notifier:           notifier,
			MaxConcurrentNodes: cfg.Orchestrator.MaxConcurrentNodes,
			NotifyTimeout:      cfg.Alert.Timeout,
		})
		validators = append(validators, validator)

		orchestrators = append(orchestrators, NewOrchestrator(OrchestratorConfig{
			Chain:               chain,
			Directory:           chainAPI,
			Guilds:              guilds,
			Validator:           validator,
			Lock:                lock,
			LockTTL:             cfg.Orchestrator.LockTTL,
			Health:              healthMon,
			MaxConcurrentGuilds: cfg.Orchestrator.MaxConcurrentGuilds,
		}))
		log.Info("Chain configured", "chain", chain.Name, "api", chain.APIURL, "interval", chain.RoundInterval)
	}

	// 6. Retention
	pruner, err := worker.NewPruner(cfg.Retention, chainNames, validations)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:           cfg,
		orchestrators: orchestrators,
		validators:    validators,
		pruner:        pruner,
		healthMon:     healthMon,
		healthServer:  healthServer,
		grpcServer:    grpcServer,
		db:            db,
		redisClient:   redisClient,
		log:           log,
	}, nil
}

// Start starts the servers, the pruner and one round loop per chain.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.healthServer.Start(); err != nil {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	if a.grpcServer != nil {
		go func() {
			if err := a.grpcServer.Start(); err != nil {
				a.log.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.pruner.Start(ctx)
	}()

	for _, o := range a.orchestrators {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := o.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error("Orchestrator stopped", "chain", o.cfg.Chain.Name, "error", err)
			}
		}()
	}
	return nil
}

// RunOnce runs a single round on every chain concurrently and returns.
func (a *App) RunOnce(ctx context.Context) error {
	var eg errgroup.Group
	errs := make([]error, len(a.orchestrators))
	for i, o := range a.orchestrators {
		eg.Go(func() error {
			if err := o.RunOnce(ctx); err != nil {
				errs[i] = fmt.Errorf("chain %s: %w", o.cfg.Chain.Name, err)
			}
			return nil
		})
	}
	_ = eg.Wait()
	return errors.Join(errs...)
}

// Stop waits for running rounds to return, then releases every resource.
// The context passed to Start must be cancelled first.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping guildwatch...")

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		for _, v := range a.validators {
			v.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("Timed out waiting for rounds and alerts to finish")
	}

	if a.grpcServer != nil {
		a.grpcServer.Stop()
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}

	return a.healthServer.Stop(ctx)
}
