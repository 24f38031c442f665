package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"outreach-engine/internal/config"
	"outreach-engine/internal/directory"
	"outreach-engine/internal/enrich"
	"outreach-engine/internal/events"
	"outreach-engine/internal/logging"
	"outreach-engine/internal/metrics"
	"outreach-engine/internal/notify"
	"outreach-engine/internal/quota"
	"outreach-engine/internal/rank"
	"outreach-engine/internal/retry"
	"outreach-engine/internal/secrets"
	"outreach-engine/internal/store"
	"outreach-engine/internal/tasks"
	"outreach-engine/internal/worker"
	"outreach-engine/internal/workflow"
)

// bootstrap holds the loaded config and logger every command starts from.
type bootstrap struct {
	dataDir string
	cfgPath string
	cfgVal  *atomic.Value // stores config.Config
	cfg     config.Config
	log     *zap.Logger
}

func loadBootstrap(opts *rootOptions) (*bootstrap, error) {
	if err := os.MkdirAll(opts.dataDir, 0o755); err != nil {
		return nil, err
	}
	userCfgPath, err := config.EnsureUserConfig(opts.dataDir, opts.defaultConfig)
	if err != nil {
		return nil, fmt.Errorf("config bootstrap failed: %w", err)
	}

	cfg, err := loadConfig(userCfgPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed (%s): %w", userCfgPath, err)
	}
	if vr := validate(&cfg); !vr.OK() {
		return nil, vr
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	var cfgVal atomic.Value
	cfgVal.Store(cfg)
	return &bootstrap{dataDir: opts.dataDir, cfgPath: userCfgPath, cfgVal: &cfgVal, cfg: cfg, log: log}, nil
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	config.OverlayEnv(&cfg)
	return cfg, nil
}

func validate(cfg *config.Config) config.Validation {
	normalized, vr := config.NormalizeAndValidate(*cfg)
	*cfg = normalized
	return vr
}

// app is the wired engine with everything that needs closing.
type app struct {
	db       *store.DB
	redis    *redis.Client
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	hub      *events.Hub
	pool     *worker.Pool
	tracker  *tasks.Tracker
	gate     *quota.Gate
	engine   *workflow.Engine
	sup      *tasks.Supervisor
	log      *zap.Logger
}

func openStore(b *bootstrap) (*store.DB, error) {
	dbPath := filepath.Join(b.dataDir, "outreach.db")
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	if err := store.Migrate(db.Pool); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// openLedger picks the quota backend. The returned client is nil for sqlite.
func openLedger(ctx context.Context, cfg config.Config, db *store.DB) (quota.Ledger, *redis.Client, error) {
	if cfg.Quota.Backend != "redis" {
		return db, nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Quota.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.Quota.RedisAddr, err)
	}
	return quota.NewRedisLedger(client, cfg.Quota.RedisKeyPrefix), client, nil
}

func buildApp(ctx context.Context, b *bootstrap) (*app, error) {
	cfg, log := b.cfg, b.log

	db, err := openStore(b)
	if err != nil {
		return nil, err
	}
	a := &app{db: db, log: log}

	ledger, rdb, err := openLedger(ctx, cfg, db)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.redis = rdb
	a.gate = quota.NewGate(ledger, cfg.Quota.DailyLimit)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)
	a.hub = events.NewHub()
	a.tracker = tasks.NewTracker(db, log, a.metrics)
	a.pool = worker.NewPool(cfg.Workers.Shards, cfg.Workers.QueueSize, log)

	sizes := rank.Sizes{Small: cfg.Prospecting.SmallCompany, Large: cfg.Prospecting.LargeCompany}
	ranker := &rank.Ranker{
		Sizes:           sizes,
		MaxProspects:    cfg.Prospecting.MaxProspects,
		SearchThreshold: cfg.Prospecting.SearchThreshold,
		Log:             log,
		Metrics:         a.metrics,
	}

	var lookuper directory.Lookuper
	if cfg.Directory.BaseURL != "" {
		key, err := secrets.Get(secrets.DirectoryAPIKey.WithAccount(cfg.Directory.APIKeyAccount))
		if err != nil {
			log.Warn("directory API key missing; search and contact lookups disabled", zap.Error(err))
		} else {
			client := directory.NewHTTPClient(cfg.Directory.BaseURL, key, cfg.Directory.RequestsPerMinute,
				time.Duration(cfg.Directory.TimeoutSeconds)*time.Second)
			ranker.Searcher = client
			lookuper = client
		}
	}

	if cfg.Scorer.Provider == "anthropic" {
		key, err := secrets.Get(secrets.AnthropicAPIKey.WithAccount(cfg.Scorer.APIKeyAccount))
		if err != nil {
			log.Warn("anthropic API key missing; using heuristic scorer", zap.Error(err))
		} else {
			ranker.Scorer = rank.NewAnthropicScorer(key, cfg.Scorer.Model, cfg.Scorer.MaxTokens)
		}
	}

	notifiers := notify.Multi{notify.HubNotifier{Hub: a.hub}}
	if tg := cfg.Notify.Telegram; tg.Enabled {
		token, err := secrets.Get(secrets.TelegramToken.WithAccount(tg.TokenAccount))
		if err != nil {
			log.Warn("telegram token missing; telegram notifications disabled", zap.Error(err))
		} else if t, err := notify.NewTelegramNotifier(token, tg.ChatID); err != nil {
			log.Warn("telegram init failed", zap.Error(err))
		} else {
			notifiers = append(notifiers, t)
		}
	}

	enricher := enrich.NewSiteEnricher(time.Duration(cfg.Enricher.TimeoutSeconds)*time.Second,
		cfg.Enricher.UserAgent, cfg.Enricher.Pages, cfg.Enricher.MaxAttempts, log)

	a.engine, err = workflow.New(workflow.Deps{
		Store:      db,
		Tracker:    a.tracker,
		Gate:       a.gate,
		Policy:     retry.OnTouch{MaxAutoAttempts: cfg.Retry.MaxAutoAttempts},
		Ranker:     ranker,
		Enricher:   enricher,
		Lookuper:   lookuper,
		Domains:    enrich.NewDomainFinder(db, cfg.Enricher.UserAgent),
		Notifier:   notifiers,
		Publisher:  a.hub,
		Dispatcher: a.pool,
		Log:        log,
		Metrics:    a.metrics,
		Options: workflow.Options{
			BaseURL:              cfg.App.BaseURL,
			AutoSelectPerCompany: cfg.Prospecting.AutoSelectPerCompany,
			CallDelay:            cfg.CallDelay(),
		},
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.sup = &tasks.Supervisor{Tracker: a.tracker, Companies: db, StaleAfter: cfg.StaleAfter()}
	return a, nil
}

// sweep fails orphaned tasks, then re-queues failed companies the retry
// policy allows.
func (a *app) sweep(ctx context.Context) error {
	orphaned, err := a.sup.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("supervisor sweep: %w", err)
	}
	queued, err := a.engine.RetryFailedCompanies(ctx)
	if err != nil {
		return fmt.Errorf("retry sweep: %w", err)
	}
	if orphaned > 0 || queued > 0 {
		a.log.Info("sweep", zap.Int("orphaned", orphaned), zap.Int("retried", queued))
	}
	return nil
}

// Close drains queued work before closing storage.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
