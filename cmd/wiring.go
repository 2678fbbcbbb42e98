package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/okian/rfqmatch/internal/adapters/repository"
	"github.com/okian/rfqmatch/internal/adapters/scorer/remote"
	service "github.com/okian/rfqmatch/internal/app"
	"github.com/okian/rfqmatch/internal/config"
	"github.com/okian/rfqmatch/internal/domain/explain"
	"github.com/okian/rfqmatch/internal/domain/identity"
	"github.com/okian/rfqmatch/internal/domain/scoring"
	"github.com/okian/rfqmatch/internal/fixtures"
	"github.com/okian/rfqmatch/pkg/logger"
)

var errNoDatabase = errors.New("no database configured")

// seedableStore is what every storage driver provides.
type seedableStore interface {
	repository.Store
	repository.Seeder
}

// application is a fully wired process.
type application struct {
	cfg   *config.Config
	log   logger.Logger
	store seedableStore
	svc   *service.Service
}

func (a *application) close() {
	a.svc.Stop()
}

// bootstrap loads configuration, initialises logging and builds the service.
func bootstrap(ctx context.Context, flags *globalFlags, logOut io.Writer) (*application, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(logOut)); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if flags != nil && flags.fixtures != "" {
		sum, err := fixtures.Load(ctx, store, flags.fixtures)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		log.Info(ctx, "fixtures loaded",
			logger.String("path", flags.fixtures),
			logger.Int("rfqs", sum.RFQs),
			logger.Int("suppliers", sum.Suppliers),
			logger.Int("quotes", sum.Quotes),
		)
	}

	svc, err := buildService(cfg, store, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return &application{cfg: cfg, log: log, store: store, svc: svc}, nil
}

func buildStore(ctx context.Context, cfg *config.Config) (seedableStore, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		return repository.NewMemoryStore(), nil
	case config.StorageSQLite:
		return repository.Open(ctx, repository.DriverSQLite, cfg.StorageDSN)
	case config.StoragePostgres:
		return repository.Open(ctx, repository.DriverPostgres, cfg.StorageDSN)
	default:
		return nil, fmt.Errorf("%w: %q", repository.ErrUnknownDriver, cfg.StorageDriver)
	}
}

// buildScorer returns the preferred scorer for the configured mode, or nil
// when every batch should go to the heuristic scorer.
func buildScorer(cfg *config.Config, heuristic *scoring.HeuristicScorer) scoring.Scorer {
	switch cfg.ScorerMode {
	case config.ScorerRemote:
		return remote.New(cfg.ScorerURL, remote.WithTimeout(cfg.ScorerTimeout()))
	case config.ScorerSimulated:
		minLatency, maxLatency := cfg.ScorerLatencyRange()
		return scoring.NewSimulatedScorer(
			scoring.WithLatencyRange(minLatency, maxLatency),
			scoring.WithBaseScorer(heuristic),
		)
	default:
		return nil
	}
}

func buildService(cfg *config.Config, store seedableStore, log logger.Logger) (*service.Service, error) {
	heuristic := scoring.NewHeuristicScorer(scoring.WithCaseInsensitiveIndustry(cfg.IndustryCaseInsensitive))

	return service.New(service.Dependencies{
		Catalog:  store,
		Ledger:   store,
		Metrics:  store,
		Scorer:   buildScorer(cfg, heuristic),
		Fallback: heuristic,
		Explainer: explain.New(
			explain.WithIndustryGate(cfg.IndustryGateExperience),
			explain.WithCaseInsensitiveIndustry(cfg.IndustryCaseInsensitive),
			explain.WithLogger(log.Named("explain")),
		),
		Verifier: identity.NewVerifier(identity.WithThreshold(cfg.NameMatchThreshold)),
		Stats:    store,
	},
		service.WithLogger(log.Named("service")),
		service.WithScorerTimeout(cfg.ScorerTimeout()),
		service.WithExplainConcurrency(cfg.ExplainConcurrency),
	)
}
