package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/stylevault/resilience/internal/core/config"
	"github.com/stylevault/resilience/internal/core/domain"
	redisclient "github.com/stylevault/resilience/internal/infra/redis"
	"github.com/stylevault/resilience/internal/infra/storage"
	"github.com/stylevault/resilience/internal/infra/storage/memory"
	"github.com/stylevault/resilience/internal/infra/storage/postgres"
	"github.com/stylevault/resilience/internal/recovery/broadcast"
	"github.com/stylevault/resilience/internal/recovery/classify"
	"github.com/stylevault/resilience/internal/recovery/policy"
	"github.com/stylevault/resilience/internal/recovery/store"
)

// Service composes the resilience core: classifier, policy table, event
// store, broadcast handler, report sink and the ops HTTP server.
type Service struct {
	cfg config.AppConfig

	Classifier *classify.Classifier
	Policies   *policy.Table
	Events     *store.EventStore
	Broadcast  *broadcast.Handler

	reports     storage.ErrorReportRepository
	db          *postgres.DB
	redisClient *redisclient.Client
	cache       *redisclient.RecentErrorCache
	server      *Server
	log         *slog.Logger

	stopPruner context.CancelFunc
}

// NewService creates a Service with all dependencies initialized.
func NewService(cfg config.AppConfig) (*Service, error) {
	log := slog.Default()

	// 1. Classifier
	tone := classify.ToneNeutral
	if cfg.Recovery.Tone == string(classify.ToneSupportive) {
		tone = classify.ToneSupportive
	}
	classifier := classify.New(
		classify.WithTone(tone),
		classify.WithProduction(cfg.Recovery.Production),
		classify.WithPlatform(cfg.Recovery.Platform),
	)

	// 2. Policy table with config overrides
	policies := policy.NewTable()
	for _, p := range cfg.Policies {
		err := policies.Register(domain.Category(p.Category), domain.RetryConfig{
			MaxAttempts:       p.MaxAttempts,
			BaseDelay:         p.BaseDelay(),
			MaxDelay:          p.MaxDelay(),
			BackoffMultiplier: p.BackoffMultiplier,
			Jitter:            p.Jitter,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to apply policy override: %w", err)
		}
	}
	policies.Seal()

	// 3. Report sink
	var reports storage.ErrorReportRepository
	var db *postgres.DB
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Run migrations
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		reports = postgres.NewReportRepo(db)
		slog.Info("Using PostgreSQL report sink")
	} else {
		reports = memory.NewReportRepo()
		slog.Info("Using in-memory report sink")
	}

	// 4. Redis recent-error cache (optional, best-effort)
	var redisClient *redisclient.Client
	var cache *redisclient.RecentErrorCache
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			// Cache loss never blocks the core.
			slog.Warn("Redis unavailable, recent-error cache disabled", "error", err)
		} else {
			cache = redisclient.NewRecentErrorCache(redisClient)
		}
	}

	// 5. Event store and broadcast
	events := store.New(cfg.Recovery.EventCapacity)
	reporters := []broadcast.Reporter{&sinkReporter{repo: reports}}
	if cache != nil {
		reporters = append(reporters, cache)
	}
	handler := broadcast.New(classifier, events, log, reporters...)

	s := &Service{
		cfg:         cfg,
		Classifier:  classifier,
		Policies:    policies,
		Events:      events,
		Broadcast:   handler,
		reports:     reports,
		db:          db,
		redisClient: redisClient,
		cache:       cache,
		log:         log,
	}
	s.server = NewServer(s, cfg.Server.Port)

	return s, nil
}

// Start brings up the ops server and the retention pruner.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.server.Start(); err != nil {
			s.log.Error("Ops server stopped", "error", err)
		}
	}()
	s.log.Info("Ops server listening", "port", s.cfg.Server.Port)

	if s.cfg.Recovery.Retention() > 0 {
		pruneCtx, cancel := context.WithCancel(ctx)
		s.stopPruner = cancel
		go s.pruneLoop(pruneCtx)
	}

	return nil
}

// Stop shuts down the ops server and closes connections.
func (s *Service) Stop(ctx context.Context) error {
	if s.stopPruner != nil {
		s.stopPruner()
	}
	if err := s.server.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop ops server: %w", err)
	}
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return nil
}

// Reports exposes the configured sink for the CLI.
func (s *Service) Reports() storage.ErrorReportRepository {
	return s.reports
}

// pruneLoop deletes archived reports past the retention window once an hour.
func (s *Service) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.cfg.Recovery.Retention())
			deleted, err := s.reports.DeleteOlderThan(ctx, cutoff)
			if err != nil {
				s.log.Warn("Report pruning failed", "error", err)
				continue
			}
			if deleted > 0 {
				s.log.Info("Pruned archived reports", "deleted", deleted)
			}
		}
	}
}

// sinkReporter adapts the report repository to the broadcast.Reporter
// interface.
type sinkReporter struct {
	repo storage.ErrorReportRepository
}

func (r *sinkReporter) Report(ctx context.Context, rec *domain.ErrorRecord) error {
	return r.repo.Save(ctx, storage.ReportFromRecord(rec))
}
