package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix      = "APS_"
	envConfigPath  = "APS_CONFIG"
	envEnvFilePath = "APS_ENV_FILE"
	defaultEnvFile = ".env"
)

// Load builds a Config by layering defaults, an optional .env file, an
// optional YAML file and env vars. Order of precedence (low -> high):
//  1. defaults (New())
//  2. .env file (APS_ENV_FILE, or ./.env when present)
//  3. YAML file if APS_CONFIG is set
//  4. env (prefix APS_)
func Load(_ context.Context) (*Config, error) {
	base := New()
	k := koanf.New(".")

	dotenv, err := readEnvFile()
	if err != nil {
		return nil, err
	}
	if err := k.Load(dotenv, nil); err != nil {
		return nil, fmt.Errorf("%w: env file: %v", ErrLoadConfig, err)
	}

	if path := os.Getenv(envConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// APS_QUEUE_SIZE -> queue_size; flat keys keep their underscores.
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
}

// envFile feeds APS_ entries of a dotenv file to koanf without touching the
// process environment.
type envFile map[string]string

func (f envFile) ReadBytes() ([]byte, error) {
	return nil, errors.New("env file provider does not support ReadBytes")
}

func (f envFile) Read() (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(f))
	for key, val := range f {
		if !strings.HasPrefix(key, envPrefix) || key == envConfigPath || key == envEnvFilePath {
			continue
		}
		out[envKey(key)] = val
	}
	return out, nil
}

func readEnvFile() (envFile, error) {
	path := os.Getenv(envEnvFilePath)
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}
	vals, err := godotenv.Read(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return envFile{}, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
	}
	return envFile(vals), nil
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(c.Addr != "", "addr must not be empty")
	check(c.LogFormat == "text" || c.LogFormat == "json", "log_format must be text or json")
	check(c.QueueSize > 0, "queue_size must be positive")
	check(c.WorkerCount > 0, "worker_count must be positive")
	check(c.DedupeSize > 0, "dedupe_size must be positive")
	check(c.StoreMaxEntries >= 0, "store_max_entries must not be negative")
	check(c.ResultTTLSeconds >= 0, "result_ttl_seconds must not be negative")
	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		check(c.RedisAddr != "", "redis_addr must be set for the redis backend")
	default:
		problems = append(problems, fmt.Sprintf("store_backend %q must be memory or redis", c.StoreBackend))
	}
	check(c.RateLimitRPS >= 0, "rate_limit_rps must not be negative")
	check(c.RateLimitRPS == 0 || c.RateLimitBurst > 0, "rate_limit_burst must be positive when rate limiting")
	check(inPercent(c.MatchPrimaryThreshold), "match_primary_threshold must be within 1-100")
	check(inPercent(c.MatchFallbackThreshold), "match_fallback_threshold must be within 1-100")
	check(c.MatchFallbackThreshold <= c.MatchPrimaryThreshold, "match_fallback_threshold must not exceed match_primary_threshold")
	check(inPercent(c.FuzzyConfidence), "fuzzy_confidence must be within 1-100")
	check(c.FuzzyLengthRatio > 0 && c.FuzzyLengthRatio < 1, "fuzzy_length_ratio must be within (0, 1)")

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func inPercent(v int) bool { return v >= 1 && v <= 100 }
