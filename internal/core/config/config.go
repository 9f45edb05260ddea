package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/guildwatch/internal/core/severity"
	redisclient "github.com/vietddude/guildwatch/internal/infra/redis"
	"github.com/vietddude/guildwatch/internal/infra/storage/postgres"
)

// ErrConfigLookup is returned when a check key has no configuration entry.
var ErrConfigLookup = errors.New("check not configured")

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server       ServerConfig       `yaml:"server"`
	Chains       []ChainConfig      `yaml:"chains"`
	Redis        redisclient.Config `yaml:"redis"`
	Logging      LoggingConfig      `yaml:"logging"`
	Database     postgres.Config    `yaml:"database"`
	Report       ReportConfig       `yaml:"report"`
	Alert        AlertConfig        `yaml:"alert"`
	Retention    RetentionConfig    `yaml:"retention"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
}

// ServerConfig holds HTTP and gRPC health server settings.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"` // 0 = disabled
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // json, text
	File       string `yaml:"file"`   // rotate into this file instead of stderr
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// ReportConfig controls where per-guild reports go.
type ReportConfig struct {
	Dir      string        `yaml:"dir"`
	CacheTTL time.Duration `yaml:"cache_ttl"` // redis cache, used when redis is configured
}

// AlertConfig configures the alert sink. Without a webhook URL alerts are logged.
type AlertConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	JWTSecret  string        `yaml:"jwt_secret"`
	Timeout    time.Duration `yaml:"timeout"`
}

// RetentionConfig controls pruning of old validations.
type RetentionConfig struct {
	Period   time.Duration `yaml:"period"` // 0 = keep forever
	Schedule string        `yaml:"schedule"`
}

// OrchestratorConfig bounds fan-out.
type OrchestratorConfig struct {
	MaxConcurrentGuilds int           `yaml:"max_concurrent_guilds"`
	MaxConcurrentNodes  int           `yaml:"max_concurrent_nodes"`
	LockTTL             time.Duration `yaml:"lock_ttl"`
}

// CheckConfig is the per-check enable flag and failure severity.
type CheckConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Severity string `yaml:"severity"` // warn, error
}

// ChainConfig holds settings for one Antelope chain.
type ChainConfig struct {
	ID            string                 `yaml:"id"` // hex chain id
	Name          string                 `yaml:"name"`
	Label         string                 `yaml:"label"`
	APIURL        string                 `yaml:"api_url"`
	RoundInterval time.Duration          `yaml:"round_interval"`
	Checks        map[string]CheckConfig `yaml:"checks"`
	Request       RequestConfig          `yaml:"request"`
	P2P           P2PConfig              `yaml:"p2p"`
	API           APIConfig              `yaml:"api"`
	Indexer       IndexerConfig          `yaml:"indexer"`
	TLS           TLSConfig              `yaml:"tls"`
	Directory     DirectoryConfig        `yaml:"directory"`
}

// RequestConfig tunes the HTTP probe substrate.
type RequestConfig struct {
	Timeout                  time.Duration `yaml:"timeout"`
	Retries                  int           `yaml:"retries"`
	RetryPause               time.Duration `yaml:"retry_pause"`
	PerformanceMode          bool          `yaml:"performance_mode"`
	PerformanceModeThreshold int           `yaml:"performance_mode_threshold"`
}

// P2PConfig tunes the block transmission probe.
type P2PConfig struct {
	NetworkVersion  uint16        `yaml:"network_version"`
	BlockSampleSize uint32        `yaml:"block_sample_size"`
	BlockTimeout    time.Duration `yaml:"block_timeout"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
	MinSpeed        float64       `yaml:"min_speed"` // blocks per second
	Address         string        `yaml:"address"`   // advertised p2p address
	Agent           string        `yaml:"agent"`
}

// APIConfig holds the expectations of the chain API checks.
type APIConfig struct {
	HeadBlockDelta  time.Duration `yaml:"head_block_delta"`
	ServerVersions  []string      `yaml:"server_versions"`
	TestAccount     string        `yaml:"test_account"`
	CoreSymbol      string        `yaml:"core_symbol"`
	PublicKey       string        `yaml:"public_key"`
	TestTransaction string        `yaml:"test_transaction"`
}

// IndexerConfig holds indexer (Hyperion, AtomicAssets) expectations.
type IndexerConfig struct {
	MissingBlocksTolerance int    `yaml:"missing_blocks_tolerance"`
	AtomicCollection       string `yaml:"atomic_collection"`
}

// TLSConfig holds certificate expectations.
type TLSConfig struct {
	MinValidity time.Duration `yaml:"min_validity"`
}

// DirectoryConfig controls the producer directory refresh.
type DirectoryConfig struct {
	ProducerLimit int    `yaml:"producer_limit"`
	BPJSONPath    string `yaml:"bp_json_path"`
}

// DisplayName returns the label, falling back to the name.
func (c *ChainConfig) DisplayName() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Name
}

// Rule resolves the enable flag and severity of a check.
func (c *ChainConfig) Rule(key string) (severity.Rule, error) {
	check, ok := c.Checks[key]
	if !ok {
		return severity.Rule{}, fmt.Errorf("%w: %s on chain %s", ErrConfigLookup, key, c.Name)
	}
	level := severity.LevelError
	if check.Severity == string(severity.LevelWarn) {
		level = severity.LevelWarn
	}
	return severity.Rule{Enabled: check.Enabled, Severity: level}, nil
}

// Enabled reports whether a check is configured and switched on.
func (c *ChainConfig) Enabled(key string) bool {
	check, ok := c.Checks[key]
	return ok && check.Enabled
}
