package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	contributionengine "lexcontrib/contexts/lexeme-contribution/contribution-engine"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/adapters/corpus"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/adapters/memory"
	postgresadapter "lexcontrib/contexts/lexeme-contribution/contribution-engine/adapters/postgres"
	workerapp "lexcontrib/contexts/lexeme-contribution/contribution-engine/application/workers"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	"lexcontrib/internal/platform/config"
	"lexcontrib/internal/platform/db"
	"lexcontrib/internal/platform/httpserver"
	"lexcontrib/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type Options struct {
	EnvFile    string
	ConfigFile string
	Addr       string
}

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	bus          *messaging.Kafka
	outboxRelay  *workerapp.OutboxRelay
	expirer      *workerapp.SessionExpirer
	pollInterval time.Duration
	logger       *slog.Logger
}

type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	postgres *db.Postgres
	repo     *postgresadapter.Repository
	module   contributionengine.Module
}

func BuildAPI(ctx context.Context, opts Options) (*APIApp, error) {
	rt, err := buildRuntime(ctx, opts, "api")
	if err != nil {
		return nil, err
	}

	addr := rt.cfg.HTTPPort
	if strings.TrimSpace(opts.Addr) != "" {
		addr = opts.Addr
	}
	server := httpserver.New(rt.module, rt.logger, normalizeAddr(addr))
	return &APIApp{
		server:   server,
		postgres: rt.postgres,
		logger:   rt.logger,
	}, nil
}

func BuildWorker(ctx context.Context, opts Options) (*WorkerApp, error) {
	rt, err := buildRuntime(ctx, opts, "worker")
	if err != nil {
		return nil, err
	}
	if rt.repo == nil {
		_ = rt.postgres.Close()
		return nil, errors.New("POSTGRES_DSN is required for the worker")
	}

	bus, err := messaging.NewKafka(rt.cfg.KafkaBrokers, rt.cfg.ServiceName, rt.logger)
	if err != nil {
		_ = rt.postgres.Close()
		return nil, err
	}

	app := &WorkerApp{
		postgres:     rt.postgres,
		bus:          bus,
		pollInterval: rt.cfg.PollInterval,
		logger:       rt.logger,
	}
	if rt.cfg.EnableOutboxRelay {
		app.outboxRelay = &workerapp.OutboxRelay{
			Outbox:    rt.repo,
			Publisher: bus,
			Clock:     postgresadapter.SystemClock{},
			BatchSize: 100,
			Logger:    rt.logger,
		}
	}
	if rt.cfg.EnableSessionExpirer {
		expirer := rt.module.SessionExpirer(rt.repo, postgresadapter.SystemClock{}, rt.cfg.SessionTTL, rt.logger)
		app.expirer = &expirer
	}
	return app, nil
}

// buildRuntime loads config and wires the contribution module against
// Postgres, or against the in-memory store when no DSN is configured.
func buildRuntime(ctx context.Context, opts Options, process string) (runtime, error) {
	if opts.ConfigFile != "" {
		if err := os.Setenv("CONFIG_FILE", opts.ConfigFile); err != nil {
			return runtime{}, err
		}
	}
	cfg, err := config.LoadFrom(opts.EnvFile)
	if err != nil {
		return runtime{}, err
	}

	logger := newLogger(cfg).With("service", cfg.ServiceName, "process", process)
	slog.SetDefault(logger)

	languages, err := seedLanguages(cfg.Languages)
	if err != nil {
		return runtime{}, err
	}

	client := corpus.NewClient(corpus.Config{
		SPARQLEndpoint: cfg.SPARQLEndpoint,
		APIEndpoint:    cfg.APIEndpoint,
		UserAgent:      cfg.UserAgent,
		Timeout:        cfg.HTTPTimeout,
	}, &http.Client{Timeout: cfg.HTTPTimeout}, logger)

	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		logger.Warn("POSTGRES_DSN not set, using in-memory store",
			"event", "bootstrap_memory_store",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		store := memory.NewStore(languages, logger)
		module := contributionengine.NewModule(contributionengine.Dependencies{
			UnitOfWork:        store,
			Sessions:          store,
			Items:             store,
			Languages:         store,
			Preferences:       store,
			Corpus:            client,
			Clock:             store,
			IDGenerator:       store,
			BatchSize:         cfg.BatchSize,
			MaxAttempts:       cfg.MaxAttempts,
			Deadline:          cfg.AllocationTimeout,
			LookupConcurrency: cfg.LookupConcurrency,
			Logger:            logger,
		})
		module.Store = store
		return runtime{cfg: cfg, logger: logger, module: module}, nil
	}

	pg, err := db.Connect(ctx, cfg.PostgresDSN, db.Options{MaxOpenConns: 20, MaxIdleConns: 5, ConnMaxLifetime: 30 * time.Minute})
	if err != nil {
		return runtime{}, err
	}
	repo := postgresadapter.NewRepository(pg.DB, logger)
	if err := repo.Migrate(ctx); err != nil {
		_ = pg.Close()
		return runtime{}, fmt.Errorf("migrate contribution store: %w", err)
	}
	if len(languages) > 0 {
		if err := repo.SeedLanguages(ctx, languages); err != nil {
			_ = pg.Close()
			return runtime{}, fmt.Errorf("seed languages: %w", err)
		}
	}

	module := contributionengine.NewModule(contributionengine.Dependencies{
		UnitOfWork:        repo,
		Sessions:          repo,
		Items:             repo,
		Languages:         repo,
		Preferences:       repo,
		Corpus:            client,
		Clock:             postgresadapter.SystemClock{},
		IDGenerator:       postgresadapter.UUIDGenerator{},
		BatchSize:         cfg.BatchSize,
		MaxAttempts:       cfg.MaxAttempts,
		Deadline:          cfg.AllocationTimeout,
		LookupConcurrency: cfg.LookupConcurrency,
		Logger:            logger,
	})
	return runtime{cfg: cfg, logger: logger, postgres: pg, repo: repo, module: module}, nil
}

func seedLanguages(seeds []config.LanguageSeed) ([]entities.Language, error) {
	languages := make([]entities.Language, 0, len(seeds))
	for _, seed := range seeds {
		code := strings.ToLower(strings.TrimSpace(seed.Code))
		if code == "" || strings.TrimSpace(seed.QID) == "" {
			return nil, fmt.Errorf("language seed %q: code and qid are required", seed.Code)
		}
		language := entities.Language{
			LanguageID: code,
			QID:        strings.TrimSpace(seed.QID),
			Code:       code,
			Name:       seed.Name,
		}
		names := make([]string, 0, len(seed.Activities))
		for name := range seed.Activities {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			kind, ok := entities.ParseActivityKind(name)
			if !ok {
				return nil, fmt.Errorf("language seed %q: unknown activity %q", seed.Code, name)
			}
			language.Activities = append(language.Activities, entities.LanguageActivity{
				LanguageID:  code,
				Activity:    kind,
				VariantCode: strings.TrimSpace(seed.Activities[name]),
			})
		}
		languages = append(languages, language)
	}
	return languages, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	options := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, options))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, options))
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	interval := w.pollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", interval.String(),
		"outbox_relay", w.outboxRelay != nil,
		"session_expirer", w.expirer != nil,
	)

	for {
		if w.expirer != nil {
			if err := w.expirer.RunOnce(ctx); err != nil && ctx.Err() == nil {
				return err
			}
		}
		if w.outboxRelay != nil {
			if err := w.outboxRelay.RunOnce(ctx); err != nil && ctx.Err() == nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	var errs []error
	if w.bus != nil {
		errs = append(errs, w.bus.Close())
	}
	if w.postgres != nil {
		errs = append(errs, w.postgres.Close())
	}
	return errors.Join(errs...)
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.Contains(value, ":") {
		return value
	}
	return ":" + value
}
