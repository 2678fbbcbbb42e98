package scoring

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/rfqmatch/internal/domain/model"
)

// Default simulation constants.
const (
	defaultMinLatency     = 80 * time.Millisecond
	defaultMaxLatency     = 150 * time.Millisecond
	defaultRandomSeed     = 42
	defaultIndustryWeight = 0.3
	simulatedStrategyName = "simulated"
)

// Option applies a configuration option to the SimulatedScorer.
type Option func(*SimulatedScorer)

// WithLatencyRange sets the simulated predictor latency range.
func WithLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(s *SimulatedScorer) {
		if minLatency > 0 && maxLatency > minLatency {
			s.minLatency = minLatency
			s.maxLatency = maxLatency
		}
	}
}

// WithIndustryWeight sets how much of the score comes from the supplier's
// industry score rather than the rule score. Values outside [0,1] are ignored.
func WithIndustryWeight(w float64) Option {
	return func(s *SimulatedScorer) {
		if w >= 0 && w <= 1 {
			s.industryWeight = w
		}
	}
}

// WithBaseScorer sets the rule scorer the simulation blends from.
func WithBaseScorer(h *HeuristicScorer) Option {
	return func(s *SimulatedScorer) {
		if h != nil {
			s.base = h
		}
	}
}

// SimulatedScorer stands in for the remote predictor during local runs. It
// waits a predictor-like latency and returns a deterministic blend of the
// rule score and the supplier's industry score.
type SimulatedScorer struct {
	base           *HeuristicScorer
	industryWeight float64
	minLatency     time.Duration
	maxLatency     time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedScorer creates a simulated predictor with options.
func NewSimulatedScorer(opts ...Option) *SimulatedScorer {
	s := &SimulatedScorer{
		base:           NewHeuristicScorer(),
		industryWeight: defaultIndustryWeight,
		minLatency:     defaultMinLatency,
		maxLatency:     defaultMaxLatency,
		rng:            rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // latency jitter only
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Scorer.
func (s *SimulatedScorer) Name() string { return simulatedStrategyName }

// ScoreBatch implements Scorer.
func (s *SimulatedScorer) ScoreBatch(ctx context.Context, rfq model.RFQ, candidates []model.EnrichedSupplier) (map[string]int, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	case <-time.After(s.latency()):
	}

	out := make(map[string]int, len(candidates))
	for _, c := range candidates {
		rule := float64(s.base.Score(rfq, c))
		industry := c.Metrics.IndustryScore
		if math.IsNaN(industry) {
			industry = 0
		}
		blended := (1-s.industryWeight)*rule + s.industryWeight*industry
		out[c.ID] = Clamp(int(math.Round(blended)))
	}
	return out, nil
}

func (s *SimulatedScorer) latency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minLatency + time.Duration(s.rng.Int63n(int64(s.maxLatency-s.minLatency)))
}
