// Package health reports per-chain round status over HTTP and gRPC.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ChainHealth describes the last round of a chain.
type ChainHealth struct {
	Chain          string        `json:"chain"`
	Status         SystemStatus  `json:"status"`
	LastRoundAt    time.Time     `json:"last_round_at,omitzero"`
	RoundDuration  time.Duration `json:"round_duration"`
	Guilds         int           `json:"guilds"`
	FailedGuilds   int           `json:"failed_guilds"`
	DirectoryError string        `json:"directory_error,omitempty"`
}

// RoundSummary is what the orchestrator reports after each round.
type RoundSummary struct {
	Chain          string
	FinishedAt     time.Time
	Duration       time.Duration
	Guilds         int
	FailedGuilds   int
	DirectoryError string
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus           `json:"system_status"`
	Chains       map[string]ChainHealth `json:"chains"`
}

// Worst returns the most severe status in report.
func Worst(report map[string]ChainHealth) SystemStatus {
	status := StatusHealthy
	for _, chain := range report {
		if chain.Status == StatusCritical {
			return StatusCritical
		}
		if chain.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}
