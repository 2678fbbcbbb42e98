// Package service orchestrates supplier matching for RFQs: it loads
// candidates, scores them, records matches in the ledger and explains the
// resulting ranking.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/rfqmatch/internal/adapters/repository"
	"github.com/okian/rfqmatch/internal/domain/explain"
	"github.com/okian/rfqmatch/internal/domain/identity"
	"github.com/okian/rfqmatch/internal/domain/model"
	"github.com/okian/rfqmatch/internal/domain/performance"
	"github.com/okian/rfqmatch/internal/domain/scoring"
	"github.com/okian/rfqmatch/pkg/logger"
	"github.com/okian/rfqmatch/pkg/metrics"
)

const (
	defaultScorerTimeout      = 2 * time.Second
	defaultExplainConcurrency = 8
)

// Run outcomes reported to metrics.
const (
	outcomeScored   = "scored"
	outcomeDegraded = "degraded"
	outcomeReused   = "reused"
	outcomeEmpty    = "empty"
	outcomeError    = "error"
)

// StatsSource reports storage statistics.
type StatsSource interface {
	Stats(ctx context.Context) (repository.Stats, error)
}

// Dependencies are the collaborators of the Service. Catalog and Ledger are
// required; the rest have defaults.
type Dependencies struct {
	Catalog repository.Catalog
	Ledger  repository.Ledger
	Metrics performance.Provider
	// Scorer is the preferred strategy. When nil every batch is scored by Fallback.
	Scorer    scoring.Scorer
	Fallback  *scoring.HeuristicScorer
	Explainer *explain.Generator
	Verifier  *identity.Verifier
	Stats     StatsSource
}

// Service implements the matching use cases behind the HTTP API and CLI.
type Service struct {
	mu      sync.RWMutex
	started bool

	catalog   repository.Catalog
	ledger    repository.Ledger
	perf      performance.Provider
	scorer    scoring.Scorer
	fallback  *scoring.HeuristicScorer
	explainer *explain.Generator
	verifier  *identity.Verifier
	stats     StatsSource

	scorerTimeout      time.Duration
	explainConcurrency int

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithScorerTimeout bounds a single preferred-scorer call.
func WithScorerTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.scorerTimeout = d
		}
	}
}

// WithExplainConcurrency caps parallel explanation work per request.
func WithExplainConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.explainConcurrency = n
		}
	}
}

// New constructs a Service from its dependencies.
func New(deps Dependencies, opts ...Option) (*Service, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("%w: catalog", ErrMissingDependency)
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("%w: ledger", ErrMissingDependency)
	}

	s := &Service{
		catalog:            deps.Catalog,
		ledger:             deps.Ledger,
		perf:               deps.Metrics,
		scorer:             deps.Scorer,
		fallback:           deps.Fallback,
		explainer:          deps.Explainer,
		verifier:           deps.Verifier,
		stats:              deps.Stats,
		scorerTimeout:      defaultScorerTimeout,
		explainConcurrency: defaultExplainConcurrency,
		logger:             logger.OrNop("service"),
	}
	if s.perf == nil {
		s.perf = performance.NewStaticProvider()
	}
	if s.fallback == nil {
		s.fallback = scoring.NewHeuristicScorer()
	}
	if s.explainer == nil {
		s.explainer = explain.New(explain.WithCaseInsensitiveIndustry(s.fallback.FoldsIndustryCase()))
	}
	if s.verifier == nil {
		s.verifier = identity.NewVerifier()
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start marks the service ready to serve.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	s.started = true
	s.logger.Info(ctx, "match service started",
		logger.String("scorer", s.scorerName()),
		logger.Duration("scorerTimeout", s.scorerTimeout),
		logger.Int("explainConcurrency", s.explainConcurrency),
	)
	return nil
}

// Stop closes the storage backends that support it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}

	closed := make(map[any]struct{})
	for _, c := range []any{s.catalog, s.ledger} {
		closer, ok := c.(interface{ Close() error })
		if !ok {
			continue
		}
		if _, done := closed[c]; done {
			continue
		}
		closed[c] = struct{}{}
		if err := closer.Close(); err != nil {
			s.logger.Warn(context.Background(), "failed to close store", logger.Error(err))
		}
	}
	s.started = false
	s.logger.Info(context.Background(), "match service stopped")
}

// Match returns the ranked recommendations for an RFQ. The first call scores
// every candidate and records the matches; later calls re-explain the
// recorded matches with their stored scores. Only failures to load the RFQ,
// its candidates or its existing matches are returned as errors.
func (s *Service) Match(ctx context.Context, rfqID string) (recs []model.MatchRecommendation, err error) {
	start := time.Now()
	outcome := outcomeError
	defer func() {
		metrics.RecordMatchRun(outcome, float64(time.Since(start).Microseconds())/1000)
	}()

	if strings.TrimSpace(rfqID) == "" {
		return nil, fmt.Errorf("%w: empty rfq id", ErrInvalidArgument)
	}

	rfq, err := s.catalog.GetRFQ(ctx, rfqID)
	if err != nil {
		return nil, fmt.Errorf("load rfq: %w", err)
	}
	candidates, err := s.catalog.CandidateSuppliers(ctx, rfq)
	if err != nil {
		return nil, fmt.Errorf("load candidates for %s: %w", rfqID, err)
	}
	metrics.RecordCandidates(len(candidates))

	existing, err := s.ledger.FindExisting(ctx, rfqID)
	if err != nil {
		return nil, fmt.Errorf("load existing matches for %s: %w", rfqID, err)
	}

	if len(existing) > 0 {
		recs = s.reuse(ctx, rfq, candidates, existing)
		outcome = outcomeReused
		metrics.RecordMatchesReused(len(existing))
		s.logger.Debug(ctx, "returning recorded matches",
			logger.String("rfq_id", rfqID),
			logger.Int("matches", len(existing)),
		)
		return recs, nil
	}

	if len(candidates) == 0 {
		outcome = outcomeEmpty
		return []model.MatchRecommendation{}, nil
	}

	enriched := s.enrich(ctx, candidates)
	scores, strategy := s.score(ctx, rfq, enriched)
	outcome = outcomeScored
	if strategy == model.StrategyHeuristic && s.scorer != nil {
		outcome = outcomeDegraded
	}

	recs = make([]model.MatchRecommendation, 0, len(enriched))
	for _, c := range enriched {
		rec, err := s.ledger.Create(ctx, rfqID, c.ID, scores[c.ID], strategy)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateMatch) {
				metrics.RecordMatchDuplicate()
				s.logger.Info(ctx, "supplier already matched concurrently, skipping",
					logger.String("rfq_id", rfqID),
					logger.String("supplier_id", c.ID),
				)
			} else {
				s.logger.Error(ctx, "failed to record match, skipping supplier",
					logger.String("rfq_id", rfqID),
					logger.String("supplier_id", c.ID),
					logger.Error(err),
				)
			}
			continue
		}
		metrics.RecordMatchCreated()
		recs = append(recs, model.MatchRecommendation{
			Supplier:  c,
			Score:     rec.Score,
			Strategy:  rec.Strategy,
			Submitted: rec.Submitted,
		})
	}

	s.explainAll(ctx, rfq, recs)
	model.SortRecommendations(recs)
	return recs, nil
}

// reuse rebuilds recommendations from recorded matches without re-scoring.
// A recorded supplier missing from the catalog keeps its id and default metrics.
func (s *Service) reuse(ctx context.Context, rfq model.RFQ, candidates []model.Supplier, existing []model.MatchRecord) []model.MatchRecommendation {
	byID := make(map[string]model.Supplier, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	suppliers := make([]model.Supplier, len(existing))
	for i, rec := range existing {
		sup, ok := byID[rec.SupplierID]
		if !ok {
			sup = model.Supplier{ID: rec.SupplierID}
		}
		suppliers[i] = sup
	}

	enriched := s.enrich(ctx, suppliers)
	recs := make([]model.MatchRecommendation, len(existing))
	for i, rec := range existing {
		recs[i] = model.MatchRecommendation{
			Supplier:  enriched[i],
			Score:     rec.Score,
			Strategy:  rec.Strategy,
			Submitted: rec.Submitted,
		}
	}
	s.explainAll(ctx, rfq, recs)
	model.SortRecommendations(recs)
	return recs
}

// enrich joins suppliers with their metrics. A failing provider degrades to
// the default profile for everyone.
func (s *Service) enrich(ctx context.Context, suppliers []model.Supplier) []model.EnrichedSupplier {
	ids := make([]string, len(suppliers))
	for i, sup := range suppliers {
		ids[i] = sup.ID
	}

	got, err := s.perf.GetMetrics(ctx, ids)
	if err != nil {
		metrics.RecordMetricsFallback()
		s.logger.Warn(ctx, "performance metrics unavailable, using defaults",
			logger.Int("suppliers", len(ids)),
			logger.Error(fmt.Errorf("%w: %w", performance.ErrMetricsUnavailable, err)),
		)
		got = nil
	}
	profiles := performance.Complete(ids, got)

	out := make([]model.EnrichedSupplier, len(suppliers))
	for i, sup := range suppliers {
		out[i] = model.EnrichedSupplier{Supplier: sup, Metrics: profiles[sup.ID]}
	}
	return out
}

// score runs the preferred scorer on the whole batch and falls back to the
// heuristic for the whole batch on any failure.
func (s *Service) score(ctx context.Context, rfq model.RFQ, candidates []model.EnrichedSupplier) (map[string]int, model.Strategy) {
	if s.scorer != nil {
		start := time.Now()
		scoreCtx, cancel := context.WithTimeout(ctx, s.scorerTimeout)
		scores, err := s.scorer.ScoreBatch(scoreCtx, rfq, candidates)
		cancel()
		if err == nil {
			err = scoring.ValidateBatch(candidates, scores)
		}
		if err == nil {
			metrics.RecordScoringBatch(s.scorer.Name(), float64(time.Since(start).Microseconds())/1000)
			return scores, model.StrategyExternal
		}

		reason := scoring.FailureReason(err)
		metrics.RecordScorerFailure(reason)
		s.logger.Warn(ctx, "preferred scorer failed, scoring batch heuristically",
			logger.String("rfq_id", rfq.ID),
			logger.String("scorer", s.scorer.Name()),
			logger.String("reason", reason),
			logger.Error(err),
		)
	}

	start := time.Now()
	scores, _ := s.fallback.ScoreBatch(ctx, rfq, candidates)
	metrics.RecordScoringBatch(s.fallback.Name(), float64(time.Since(start).Microseconds())/1000)
	return scores, model.StrategyHeuristic
}

// explainAll fills in explanations in place with bounded parallelism.
func (s *Service) explainAll(ctx context.Context, rfq model.RFQ, recs []model.MatchRecommendation) {
	var g errgroup.Group
	g.SetLimit(s.explainConcurrency)
	for i := range recs {
		g.Go(func() error {
			r := &recs[i]
			r.Explanation = s.explainer.Explain(ctx, rfq, r.Supplier, r.Score, explain.StyleFor(r.Strategy))
			return nil
		})
	}
	_ = g.Wait()
}

// MarkSubmitted records that a matched supplier quoted on the RFQ.
func (s *Service) MarkSubmitted(ctx context.Context, rfqID, supplierID string) error {
	if strings.TrimSpace(rfqID) == "" || strings.TrimSpace(supplierID) == "" {
		return fmt.Errorf("%w: rfq and supplier ids are required", ErrInvalidArgument)
	}
	if err := s.ledger.MarkSubmitted(ctx, rfqID, supplierID); err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	s.logger.Info(ctx, "match marked submitted",
		logger.String("rfq_id", rfqID),
		logger.String("supplier_id", supplierID),
	)
	return nil
}

// VerifyBusinessName compares a claimed name against the registered one.
func (s *Service) VerifyBusinessName(_ context.Context, claimed, registered string) identity.Result {
	return s.verifier.Verify(claimed, registered)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	stats := map[string]any{
		"started":            started,
		"scorer":             s.scorerName(),
		"scorerTimeoutMs":    s.scorerTimeout.Milliseconds(),
		"explainConcurrency": s.explainConcurrency,
		"nameMatchThreshold": s.verifier.Threshold(),
	}
	if s.stats != nil {
		st, err := s.stats.Stats(ctx)
		if err != nil {
			s.logger.Warn(ctx, "failed to read storage stats", logger.Error(err))
		} else {
			stats["storage"] = st
		}
	}
	return stats
}

func (s *Service) scorerName() string {
	if s.scorer == nil {
		return s.fallback.Name()
	}
	return s.scorer.Name()
}
