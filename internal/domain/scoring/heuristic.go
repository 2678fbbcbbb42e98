package scoring

import (
	"context"

	"github.com/okian/rfqmatch/internal/domain/model"
)

// Heuristic rule weights and thresholds.
const (
	industryMatchPoints   = 40
	acceptancePoints      = 15
	completionPoints      = 15
	responsePoints        = 10
	pricePoints           = 10
	experiencePoints      = 10
	verifiedPoints        = 10
	ratingPoints          = 10
	acceptanceThreshold   = 80.0
	completionThreshold   = 85.0
	responseHoursCeiling  = 12.0
	similarRFQsThreshold  = 10
	ratingThreshold       = 4.0
	heuristicStrategyName = "heuristic"
)

// HeuristicScorer is the local, deterministic rule-based strategy. It is
// always available and is the fallback for any external failure.
type HeuristicScorer struct {
	foldIndustryCase bool
}

// HeuristicOption configures a HeuristicScorer.
type HeuristicOption func(*HeuristicScorer)

// WithCaseInsensitiveIndustry compares industries ignoring case and
// surrounding space.
func WithCaseInsensitiveIndustry(enabled bool) HeuristicOption {
	return func(h *HeuristicScorer) {
		h.foldIndustryCase = enabled
	}
}

// NewHeuristicScorer creates the rule-based scorer.
func NewHeuristicScorer(opts ...HeuristicOption) *HeuristicScorer {
	h := &HeuristicScorer{}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements Scorer.
func (h *HeuristicScorer) Name() string { return heuristicStrategyName }

// FoldsIndustryCase reports the industry comparison mode.
func (h *HeuristicScorer) FoldsIndustryCase() bool { return h.foldIndustryCase }

// Score computes the additive rule score for one supplier, clamped last.
func (h *HeuristicScorer) Score(rfq model.RFQ, s model.EnrichedSupplier) int {
	score := 0
	m := s.Metrics

	if model.SameIndustry(s.Industry, rfq.Industry, h.foldIndustryCase) {
		score += industryMatchPoints
	}
	if m.AcceptanceRate > acceptanceThreshold {
		score += acceptancePoints
	}
	if m.CompletionRate > completionThreshold {
		score += completionPoints
	}
	// The zero profile is excluded here: no history is not a fast response.
	if m.AvgResponseTimeHours < responseHoursCeiling && !m.IsZero() {
		score += responsePoints
	}
	if m.AvgPriceDeviation < 0 {
		score += pricePoints
	}
	if m.SimilarRFQsCount > similarRFQsThreshold {
		score += experiencePoints
	}
	if s.Verified {
		score += verifiedPoints
	}
	if s.RatingAbove(ratingThreshold) {
		score += ratingPoints
	}

	return Clamp(score)
}

// ScoreBatch implements Scorer. It never fails.
func (h *HeuristicScorer) ScoreBatch(_ context.Context, rfq model.RFQ, candidates []model.EnrichedSupplier) (map[string]int, error) {
	out := make(map[string]int, len(candidates))
	for _, c := range candidates {
		out[c.ID] = h.Score(rfq, c)
	}
	return out, nil
}
