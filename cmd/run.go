package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wowl-learning/wowl/internal/assessment"
	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/engine"
	"github.com/wowl-learning/wowl/internal/grader"
	"github.com/wowl-learning/wowl/internal/notify"
	"github.com/wowl-learning/wowl/internal/platform/cache"
	"github.com/wowl-learning/wowl/internal/platform/config"
	"github.com/wowl-learning/wowl/internal/platform/logger"
	"github.com/wowl-learning/wowl/internal/store"
)

// loadConfig reads WOWL_ variables and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("driver"); v != "" {
		cfg.Store.Driver = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.Store.DSN = v
		if cfg.Store.Driver == "sqlite" {
			if err := os.MkdirAll(filepath.Dir(v), 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
	}
	if v, _ := cmd.Flags().GetString("catalog"); v != "" {
		cfg.CatalogDir = v
	}
	if v, _ := cmd.Flags().GetString("rubrics"); v != "" {
		cfg.RubricsPath = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadCatalog(cfg *config.Config) (*competency.Catalog, error) {
	if cfg.CatalogDir != "" {
		return competency.LoadDir(cfg.CatalogDir)
	}
	return competency.Default()
}

func loadRubrics(cfg *config.Config) (assessment.RubricSet, error) {
	if cfg.RubricsPath != "" {
		return assessment.LoadRubrics(cfg.RubricsPath)
	}
	return assessment.DefaultRubrics()
}

// openEngine builds the engine and everything it depends on. The returned
// func releases them in reverse order.
func openEngine(cmd *cobra.Command) (*engine.Engine, func(), error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		log.Sync()
	}
	fail := func(err error) (*engine.Engine, func(), error) {
		cleanup()
		return nil, nil, err
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return fail(err)
	}
	rubrics, err := loadRubrics(cfg)
	if err != nil {
		return fail(err)
	}

	var repo store.Repository
	if cfg.Store.Driver == "memory" {
		repo = store.NewMemoryStore()
	} else {
		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return fail(fmt.Errorf("open store: %w", err))
		}
		repo = st
	}
	closers = append(closers, func() { repo.Close() })

	ecfg := engine.Config{
		Catalog:       cat,
		Rubrics:       rubrics,
		Repo:          repo,
		CacheTTL:      cfg.Cache.TTL,
		Policy:        assessment.Policy{MaxAttempts: cfg.Assessment.MaxAttempts},
		GraderTimeout: cfg.Assessment.GraderTimeout,
		QuestSize:     cfg.Quest.Size,
		Logger:        log,
	}

	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			log.Warn("path cache unavailable, continuing without it", "error", err)
		} else {
			ecfg.Cache = c
			closers = append(closers, func() { c.Close() })
		}
	}

	if cfg.Notify.Enabled {
		var sink notify.Notifier = notify.NewLogNotifier(log)
		if cfg.Notify.RedisURL != "" {
			pub, err := cache.New(ctx, cfg.Notify.RedisURL)
			if err != nil {
				log.Warn("milestone broker unavailable, logging milestones instead", "error", err)
			} else {
				sink = notify.NewRedisNotifier(pub, cfg.Notify.Channel)
				closers = append(closers, func() { pub.Close() })
			}
		}
		async := notify.NewAsync(sink, cfg.Notify.BufferSize, log)
		closers = append(closers, async.Close)
		ecfg.Notifier = async
	}

	gcfg := grader.ConfigFromEnv()
	if err := gcfg.Validate(); err != nil {
		return fail(err)
	}
	g, err := grader.New(ctx, gcfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Grader not configured:", err)
		fmt.Fprintln(os.Stderr, "Media submissions will go to tutor review.")
	} else if g != nil {
		ecfg.Grader = g
	}

	e, err := engine.New(ecfg)
	if err != nil {
		return fail(err)
	}
	return e, cleanup, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
