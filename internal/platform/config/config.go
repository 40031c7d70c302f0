// Package config loads wowl configuration from environment variables.
// All variables use the WOWL_ prefix; CLI flags override them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Store      StoreConfig
	Cache      CacheConfig
	Notify     NotifyConfig
	Assessment AssessmentConfig
	Quest      QuestConfig
	Log        LogConfig

	// CatalogDir overrides the embedded competency catalog when set.
	CatalogDir string
	// RubricsPath overrides the embedded rubric set when set.
	RubricsPath string
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string // "sqlite", "postgres" or "memory"
	DSN    string
}

// CacheConfig holds Redis settings for the learning-path cache.
// An empty URL disables caching.
type CacheConfig struct {
	URL string
	TTL time.Duration
}

// NotifyConfig holds milestone notification settings.
type NotifyConfig struct {
	Enabled bool
	// RedisURL enables pub/sub delivery when set; otherwise milestones
	// are only logged.
	RedisURL   string
	Channel    string
	BufferSize int
}

// AssessmentConfig holds the resubmission policy and grader timeout.
type AssessmentConfig struct {
	MaxAttempts   int
	GraderTimeout time.Duration
}

// QuestConfig holds quest materialization settings.
type QuestConfig struct {
	Size int // competencies per auto-progression quest
}

// LogConfig holds logging settings.
type LogConfig struct {
	Mode string // "dev" or "prod"
}

// Load reads configuration from WOWL_ environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Store: StoreConfig{
			Driver: envStr("WOWL_DB_DRIVER", "sqlite"),
			DSN:    envStr("WOWL_DB", ""),
		},
		Cache: CacheConfig{
			URL: envStr("WOWL_CACHE_URL", ""),
			TTL: envDuration("WOWL_CACHE_TTL", 24*time.Hour),
		},
		Notify: NotifyConfig{
			Enabled:    envBool("WOWL_NOTIFY_ENABLED", true),
			RedisURL:   envStr("WOWL_NOTIFY_REDIS_URL", ""),
			Channel:    envStr("WOWL_NOTIFY_CHANNEL", "wowl:milestones"),
			BufferSize: envInt("WOWL_NOTIFY_BUFFER", 64),
		},
		Assessment: AssessmentConfig{
			MaxAttempts:   envInt("WOWL_MAX_ATTEMPTS", 3),
			GraderTimeout: envDuration("WOWL_GRADER_TIMEOUT", 30*time.Second),
		},
		Quest: QuestConfig{
			Size: envInt("WOWL_QUEST_SIZE", 3),
		},
		Log: LogConfig{
			Mode: envStr("WOWL_LOG_MODE", "dev"),
		},
		CatalogDir:  envStr("WOWL_CATALOG_DIR", ""),
		RubricsPath: envStr("WOWL_RUBRICS", ""),
	}

	if cfg.Store.Driver == "sqlite" && cfg.Store.DSN == "" {
		p, err := DefaultDBPath()
		if err != nil {
			return nil, err
		}
		cfg.Store.DSN = p
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("WOWL_DB is required for the %s driver", c.Store.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("WOWL_DB_DRIVER must be 'sqlite', 'postgres' or 'memory', got %q", c.Store.Driver)
	}
	if c.Assessment.MaxAttempts < 1 {
		return fmt.Errorf("WOWL_MAX_ATTEMPTS must be >= 1, got %d", c.Assessment.MaxAttempts)
	}
	if c.Assessment.GraderTimeout <= 0 {
		return fmt.Errorf("WOWL_GRADER_TIMEOUT must be positive")
	}
	if c.Quest.Size < 1 {
		return fmt.Errorf("WOWL_QUEST_SIZE must be >= 1, got %d", c.Quest.Size)
	}
	return nil
}

// DefaultDBPath resolves the SQLite file path in priority order:
// 1. $XDG_DATA_HOME/wowl/wowl.db
// 2. ~/.local/share/wowl/wowl.db
func DefaultDBPath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "wowl", "wowl.db")
	return p, os.MkdirAll(filepath.Dir(p), 0o755)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}
