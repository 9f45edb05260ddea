package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProbeAttempts tracks HTTP probe attempts by outcome
	ProbeAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guildwatch_probe_attempts_total",
			Help: "Total number of HTTP probe attempts",
		},
		[]string{"outcome"}, // ok, TIMEOUT, SSL, HTTP, OTHER, UNKNOWN
	)

	// ProbeLatency tracks HTTP probe attempt latency
	ProbeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guildwatch_probe_latency_seconds",
			Help:    "HTTP probe attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// CheckResults tracks check levels per chain and check key
	CheckResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guildwatch_check_results_total",
			Help: "Total number of evaluated checks by level",
		},
		[]string{"chain", "check", "level"},
	)

	// NodeValidations tracks node aggregate verdicts
	NodeValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guildwatch_node_validations_total",
			Help: "Total number of node validations by aggregate level",
		},
		[]string{"chain", "kind", "level"},
	)

	// P2PSpeed tracks measured block relay speed
	P2PSpeed = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guildwatch_p2p_speed_blocks_per_second",
			Help:    "Block relay speed measured by the p2p probe",
			Buckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250},
		},
		[]string{"chain"},
	)

	// P2POutcomes tracks p2p probe terminations by reason
	P2POutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guildwatch_p2p_outcomes_total",
			Help: "Total number of p2p probes by termination reason",
		},
		[]string{"chain", "reason"},
	)

	// RoundDuration tracks how long a full round takes
	RoundDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guildwatch_round_duration_seconds",
			Help:    "Duration of a validation round in seconds",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
		},
		[]string{"chain"},
	)

	// GuildsValidated tracks the number of guilds validated in the last round
	GuildsValidated = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "guildwatch_guilds_validated",
			Help: "Number of guilds validated in the last round",
		},
		[]string{"chain"},
	)

	// DirectoryErrors tracks failed producer directory refreshes
	DirectoryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guildwatch_directory_errors_total",
			Help: "Total number of failed producer directory refreshes",
		},
		[]string{"chain"},
	)

	// PersistenceErrors tracks failed saves
	PersistenceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guildwatch_persistence_errors_total",
			Help: "Total number of failed validation saves",
		},
		[]string{"entity"},
	)

	// DBConnectionPoolUsage tracks database connection pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "guildwatch_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
