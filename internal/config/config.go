// Package config resolves runtime settings from a YAML file and the
// environment. Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is looked up in the working directory when no path is given.
const FileName = "sieve.yaml"

// Store backends.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the merged configuration of one process.
type Config struct {
	Dir           string `yaml:"dir"`
	Model         string `yaml:"model"`
	Instructions  string `yaml:"instructions"`
	MaxIterations int    `yaml:"max_iterations"`
	MaxRounds     int    `yaml:"max_analysis_rounds"`
	LogLevel      string `yaml:"log_level"`

	LLM     LLM     `yaml:"llm"`
	Store   Store   `yaml:"store"`
	Privacy Privacy `yaml:"privacy"`
}

// LLM configures the OpenAI-compatible endpoint.
type LLM struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	JSONMode bool          `yaml:"json_mode"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Store selects and configures session persistence.
type Store struct {
	Backend  string        `yaml:"backend"`
	Path     string        `yaml:"path"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
	// StaleAfter frees in-progress sessions nobody has touched for this
	// long. Zero keeps them locked until removed with --force.
	StaleAfter time.Duration `yaml:"stale_after"`
}

// Privacy configures what happens to sessions at rest.
type Privacy struct {
	EncryptionKey string   `yaml:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys"`
	MaskPII       bool     `yaml:"mask_pii"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Dir:           ".",
		Model:         "openai/gpt-4o",
		MaxIterations: 3,
		MaxRounds:     5,
		LogLevel:      "info",
		LLM: LLM{
			Endpoint: "http://localhost:4000",
			Timeout:  2 * time.Minute,
		},
		Store: Store{Backend: StoreFile, StaleAfter: time.Hour},
	}
}

// Load reads path (or sieve.yaml in the current directory when path is
// empty) over the defaults, then applies the environment. A missing
// default file is not an error; a missing explicit one is.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = FileName
	}
	data, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg.ApplyEnv(os.LookupEnv)
	return cfg, cfg.Validate()
}

// ApplyEnv overrides settings from the environment. SIEVE_* variables win
// over the LITELLM_* ones.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	pick := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	pick(&c.LLM.Endpoint, "SIEVE_LLM_ENDPOINT", "LITELLM_ENDPOINT")
	pick(&c.LLM.APIKey, "SIEVE_LLM_API_KEY", "LITELLM_API_KEY")
	pick(&c.Model, "SIEVE_MODEL")
	pick(&c.Store.RedisURL, "SIEVE_REDIS_URL")
	pick(&c.Privacy.EncryptionKey, "SIEVE_ENCRYPTION_KEY")
	pick(&c.LogLevel, "SIEVE_LOG_LEVEL")
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case StoreFile, StoreMemory:
	case StoreRedis:
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("store.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.Store.LockTTL < 0 || c.Store.StaleAfter < 0 {
		errs = append(errs, errors.New("store durations cannot be negative"))
	}
	if c.MaxIterations < 1 {
		errs = append(errs, errors.New("max_iterations must be at least 1"))
	}
	if c.MaxRounds < 1 {
		errs = append(errs, errors.New("max_analysis_rounds must be at least 1"))
	}
	return errors.Join(errs...)
}
