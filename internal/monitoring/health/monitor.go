package health

import (
	"context"
	"slices"
	"sync"
	"time"
)

// staleRounds is how many round intervals may pass without a finished round
// before a chain is critical.
const staleRounds = 3

// Monitor keeps the last round summary of every chain.
type Monitor struct {
	intervals map[string]time.Duration
	rounds    map[string]RoundSummary
	listeners []func(map[string]ChainHealth)
	now       func() time.Time
	started   time.Time
	mu        sync.RWMutex
}

// NewMonitor creates a new health monitor for chains with their round intervals.
func NewMonitor(intervals map[string]time.Duration) *Monitor {
	return &Monitor{
		intervals: intervals,
		rounds:    make(map[string]RoundSummary),
		now:       time.Now,
		started:   time.Now(),
	}
}

// OnUpdate registers fn to receive the report after every recorded round.
func (m *Monitor) OnUpdate(fn func(map[string]ChainHealth)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// RecordRound stores the summary of a finished round.
func (m *Monitor) RecordRound(s RoundSummary) {
	m.mu.Lock()
	m.rounds[s.Chain] = s
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	if len(listeners) == 0 {
		return
	}
	report := m.CheckHealth(context.Background())
	for _, fn := range listeners {
		fn(report)
	}
}

// CheckHealth evaluates every chain against its last round.
func (m *Monitor) CheckHealth(ctx context.Context) map[string]ChainHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	report := make(map[string]ChainHealth, len(m.intervals))
	for chain, interval := range m.intervals {
		s, ok := m.rounds[chain]
		health := ChainHealth{Chain: chain, Status: StatusHealthy}
		if !ok {
			// First round still running.
			health.Status = StatusDegraded
			if interval > 0 && now.Sub(m.started) > staleRounds*interval {
				health.Status = StatusCritical
			}
			report[chain] = health
			continue
		}

		health.LastRoundAt = s.FinishedAt
		health.RoundDuration = s.Duration
		health.Guilds = s.Guilds
		health.FailedGuilds = s.FailedGuilds
		health.DirectoryError = s.DirectoryError

		budget := staleRounds * max(interval, s.Duration)
		switch {
		case budget > 0 && now.Sub(s.FinishedAt) > budget:
			health.Status = StatusCritical
		case s.Guilds > 0 && s.FailedGuilds == s.Guilds:
			health.Status = StatusCritical
		case s.FailedGuilds > 0 || s.DirectoryError != "":
			health.Status = StatusDegraded
		}
		report[chain] = health
	}
	return report
}

// Report returns the full report with its overall status.
func (m *Monitor) Report(ctx context.Context) HealthReport {
	chains := m.CheckHealth(ctx)
	return HealthReport{SystemStatus: Worst(chains), Chains: chains}
}
