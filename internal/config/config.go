// Package config defines service configuration and its layered loader.
package config

import (
	"runtime"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory evaluation queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of evaluation workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the number of remembered request ids.
	DedupeSize int `koanf:"dedupe_size"`

	// StoreBackend is memory or redis.
	StoreBackend string `koanf:"store_backend"`

	// StoreMaxEntries bounds the memory store. Zero means unbounded.
	StoreMaxEntries int `koanf:"store_max_entries"`

	// ResultTTLSeconds is how long redis keeps an evaluation. Zero keeps it forever.
	ResultTTLSeconds int `koanf:"result_ttl_seconds"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisPrefix   string `koanf:"redis_prefix"`

	// CatalogPath points at a programs YAML replacing the built-in catalog.
	CatalogPath string `koanf:"catalog_path"`

	// RateLimitRPS and RateLimitBurst shape the per-client token bucket.
	// A zero RPS disables rate limiting.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// RateLimitTrustProxy keys clients by X-Forwarded-For / X-Real-IP.
	// Leave it off unless a proxy in front rewrites those headers.
	RateLimitTrustProxy bool `koanf:"rate_limit_trust_proxy"`

	// Matching thresholds, in confidence points (1-100).
	MatchPrimaryThreshold  int `koanf:"match_primary_threshold"`
	MatchFallbackThreshold int `koanf:"match_fallback_threshold"`
	FuzzyConfidence        int `koanf:"fuzzy_confidence"`

	// FuzzyLengthRatio is the minimum shorter/longer length ratio for a
	// containment match, in (0, 1).
	FuzzyLengthRatio float64 `koanf:"fuzzy_length_ratio"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		QueueSize:              10_000,
		WorkerCount:            runtime.NumCPU() * 2,
		DedupeSize:             50_000,
		StoreBackend:           BackendMemory,
		StoreMaxEntries:        100_000,
		ResultTTLSeconds:       86_400,
		RedisAddr:              "localhost:6379",
		RedisPrefix:            "apsmatch:evaluation",
		RateLimitRPS:           50,
		RateLimitBurst:         100,
		MatchPrimaryThreshold:  50,
		MatchFallbackThreshold: 40,
		FuzzyConfidence:        45,
		FuzzyLengthRatio:       0.6,
	}
}
