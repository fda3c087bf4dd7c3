// Package config loads memtier settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds storage paths, cache tuning, and consolidation policy.
type Config struct {
	// EpisodicDir is the directory holding one JSON file per episodic key.
	EpisodicDir string `env:"MEMTIER_EPISODIC_DIR" envDefault:"./data/episodic"`

	// LongTermPath is the single JSON file for the long-term tier.
	LongTermPath string `env:"MEMTIER_LONGTERM_PATH" envDefault:"./data/longterm.json"`

	// CacheTTL bounds the staleness of cached profile lookups.
	CacheTTL time.Duration `env:"MEMTIER_CACHE_TTL" envDefault:"5m"`

	// ConsolidateMaxAttempts bounds summarizer retries on throttling.
	ConsolidateMaxAttempts int `env:"MEMTIER_CONSOLIDATE_MAX_ATTEMPTS" envDefault:"3"`

	// ConsolidateRetryDelay is the fixed wait between throttled attempts.
	ConsolidateRetryDelay time.Duration `env:"MEMTIER_CONSOLIDATE_RETRY_DELAY" envDefault:"60s"`

	// SummarizerTimeout bounds each individual summarizer call.
	SummarizerTimeout time.Duration `env:"MEMTIER_SUMMARIZER_TIMEOUT" envDefault:"120s"`

	// AnthropicModel selects the Claude model for consolidation summaries.
	AnthropicModel string `env:"MEMTIER_ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-20250514"`
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.ConsolidateMaxAttempts < 1 {
		return nil, fmt.Errorf("MEMTIER_CONSOLIDATE_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("MEMTIER_CACHE_TTL must be positive")
	}
	return cfg, nil
}
