package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Report.Dir == "" {
		cfg.Report.Dir = "reports"
	}
	if cfg.Report.CacheTTL == 0 {
		cfg.Report.CacheTTL = 24 * time.Hour
	}
	if cfg.Alert.Timeout == 0 {
		cfg.Alert.Timeout = 10 * time.Second
	}
	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = "@hourly"
	}
	if cfg.Orchestrator.MaxConcurrentGuilds == 0 {
		cfg.Orchestrator.MaxConcurrentGuilds = 10
	}
	if cfg.Orchestrator.MaxConcurrentNodes == 0 {
		cfg.Orchestrator.MaxConcurrentNodes = 4
	}
	if cfg.Orchestrator.LockTTL == 0 {
		cfg.Orchestrator.LockTTL = 30 * time.Minute
	}

	for i := range cfg.Chains {
		applyChainDefaults(&cfg.Chains[i])
	}
}

func applyChainDefaults(c *ChainConfig) {
	if c.RoundInterval == 0 {
		c.RoundInterval = 30 * time.Minute
	}
	if c.Request.Timeout == 0 {
		c.Request.Timeout = 10 * time.Second
	}
	if c.Request.RetryPause == 0 {
		c.Request.RetryPause = time.Second
	}
	if c.Request.PerformanceModeThreshold == 0 {
		c.Request.PerformanceModeThreshold = 3
	}
	if c.P2P.NetworkVersion == 0 {
		c.P2P.NetworkVersion = 1206
	}
	if c.P2P.BlockSampleSize == 0 {
		c.P2P.BlockSampleSize = 20
	}
	if c.P2P.BlockTimeout == 0 {
		c.P2P.BlockTimeout = 10 * time.Second
	}
	if c.P2P.DialTimeout == 0 {
		c.P2P.DialTimeout = 10 * time.Second
	}
	if c.P2P.Address == "" {
		c.P2P.Address = "guildwatch:9876"
	}
	if c.P2P.Agent == "" {
		c.P2P.Agent = "guildwatch"
	}
	if c.API.HeadBlockDelta == 0 {
		c.API.HeadBlockDelta = 10 * time.Second
	}
	if c.Indexer.MissingBlocksTolerance == 0 {
		c.Indexer.MissingBlocksTolerance = 10
	}
	if c.TLS.MinValidity == 0 {
		c.TLS.MinValidity = 7 * 24 * time.Hour
	}
	if c.Directory.ProducerLimit == 0 {
		c.Directory.ProducerLimit = 100
	}
	if c.Directory.BPJSONPath == "" {
		c.Directory.BPJSONPath = "bp.json"
	}
}

// Validate rejects configurations the validators cannot run against. Every key
// in keys must be configured on every chain.
func Validate(cfg *AppConfig, keys []string) error {
	if len(cfg.Chains) == 0 {
		return errors.New("no chains configured")
	}

	var errs []error
	seen := make(map[string]bool)
	for i := range cfg.Chains {
		c := &cfg.Chains[i]
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("chain #%d: name is required", i))
			continue
		}
		if seen[c.Name] {
			errs = append(errs, fmt.Errorf("chain %s: duplicate name", c.Name))
		}
		seen[c.Name] = true

		if len(c.ID) != 64 {
			errs = append(errs, fmt.Errorf("chain %s: id must be a 64 character hex chain id", c.Name))
		}
		if c.APIURL == "" {
			errs = append(errs, fmt.Errorf("chain %s: api_url is required", c.Name))
		}
		if c.Request.Retries < 0 {
			errs = append(errs, fmt.Errorf("chain %s: request.retries must not be negative", c.Name))
		}
		if c.Request.Timeout < 0 || c.Request.RetryPause < 0 {
			errs = append(errs, fmt.Errorf("chain %s: request durations must be positive", c.Name))
		}
		if c.P2P.MinSpeed < 0 {
			errs = append(errs, fmt.Errorf("chain %s: p2p.min_speed must not be negative", c.Name))
		}

		for key, check := range c.Checks {
			switch check.Severity {
			case "warn", "error":
			default:
				errs = append(errs, fmt.Errorf("chain %s: check %s has invalid severity %q", c.Name, key, check.Severity))
			}
		}
		for _, key := range keys {
			if _, ok := c.Checks[key]; !ok {
				errs = append(errs, fmt.Errorf("chain %s: %w: %s", c.Name, ErrConfigLookup, key))
			}
		}
	}

	return errors.Join(errs...)
}
