package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/iopps/iopps-sync/pkg/cache"
	"github.com/iopps/iopps-sync/pkg/cache/memory"
	"github.com/iopps/iopps-sync/pkg/cache/redis"
	"github.com/iopps/iopps-sync/pkg/cache/sqlite"
	"github.com/iopps/iopps-sync/pkg/config"
	"github.com/iopps/iopps-sync/pkg/journal"
	"github.com/iopps/iopps-sync/pkg/logger"
	"github.com/iopps/iopps-sync/pkg/optimistic"
	"github.com/iopps/iopps-sync/pkg/readthrough"
	"github.com/iopps/iopps-sync/pkg/remote"
	"github.com/iopps/iopps-sync/pkg/screen"
)

const defaultConfigPath = "iopps-sync.yaml"

// app holds the components one command run needs.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	cache   *cache.Cache
	journal *journal.Journal
}

// loadConfig reads configPath. A missing file at the default path falls back
// to built-in defaults; an explicit path must exist.
func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err == nil {
		return cfg, nil
	}
	if configPath == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("load config: %w", err)
}

func openApp(configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	l, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(l)

	store, err := openStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	a := &app{
		cfg:    cfg,
		logger: l,
		cache:  cache.New(store, cache.WithPrefix(cfg.Store.Prefix), cache.WithLogger(l)),
	}

	if cfg.Journal.Enabled {
		a.journal, err = journal.New(cfg.Journal, l)
		if err != nil {
			_ = a.cache.Close()
			return nil, fmt.Errorf("init journal: %w", err)
		}
	}
	return a, nil
}

func openStore(cfg config.StoreConfig) (cache.Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return sqlite.New(cfg.DBPath)
	case "memory":
		return memory.New(), nil
	case "redis":
		return redis.New(redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func (a *app) close() {
	if a.journal != nil {
		_ = a.journal.Close()
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("close cache", "error", err)
	}
}

// screenDeps wires the remote service, read coordinator and mutation runner.
func (a *app) screenDeps() (*screen.Deps, error) {
	rc := a.cfg.Remote
	svc, err := remote.New(rc.BaseURLs, remote.WithToken(rc.Token), remote.WithTimeout(rc.Timeout))
	if err != nil {
		return nil, fmt.Errorf("init remote: %w", err)
	}

	runnerOpts := []optimistic.RunnerOption{
		optimistic.WithTimeout(a.cfg.Mutation.Timeout),
		optimistic.WithLogger(a.logger),
	}
	if a.journal != nil {
		runnerOpts = append(runnerOpts, optimistic.WithObserver(a.journal))
	}

	return &screen.Deps{
		Service: svc,
		Reads: readthrough.New(a.cache,
			readthrough.WithCoalescing(a.cfg.Read.Coalesce),
			readthrough.WithRefreshTimeout(a.cfg.Read.RefreshTimeout),
			readthrough.WithLogger(a.logger),
		),
		Mutations:      optimistic.NewRunner(runnerOpts...),
		RefreshTimeout: a.cfg.Remote.Timeout,
		Logger:         a.logger,
	}, nil
}

// userID returns the --user flag value or the configured member.
func (a *app) userID(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if a.cfg.User.ID != "" {
		return a.cfg.User.ID, nil
	}
	return "", fmt.Errorf("--user is required (or set user.id in the config)")
}

// printStatus tells an interactive user that cached data is on screen.
func printStatus(st screen.Status) {
	if st.FromCache && term.IsTerminal(int(os.Stderr.Fd())) {
		fmt.Fprintln(os.Stderr, "(cached, refreshing in background)")
	}
}
