package model

import (
	"sort"
	"time"
)

// PerformanceMetrics is a supplier's derived track record. The zero value is
// the default profile given to suppliers without history.
type PerformanceMetrics struct {
	AvgResponseTimeHours float64 `json:"avg_response_time"`
	AcceptanceRate       float64 `json:"acceptance_rate"`
	CompletionRate       float64 `json:"completion_rate"`
	AvgPriceDeviation    float64 `json:"avg_price_competitiveness"` // percent vs market; negative is cheaper
	SimilarRFQsCount     int     `json:"similar_rfqs_count"`
	IndustryScore        float64 `json:"industry_score"`
}

// IsZero reports whether m is the no-history default profile.
func (m PerformanceMetrics) IsZero() bool {
	return m == PerformanceMetrics{}
}

// EnrichedSupplier is a supplier joined with its metrics for one request.
type EnrichedSupplier struct {
	Supplier
	Metrics PerformanceMetrics `json:"metrics"`
}

// Strategy names the scorer that produced a persisted score.
type Strategy string

const (
	StrategyExternal  Strategy = "external"
	StrategyHeuristic Strategy = "heuristic"
)

// MatchRecord is the durable fact that a supplier was proposed for an RFQ.
// (RFQID, SupplierID) is unique.
type MatchRecord struct {
	ID         string    `json:"id"`
	RFQID      string    `json:"rfq_id"`
	SupplierID string    `json:"supplier_id"`
	Score      int       `json:"score"`
	Strategy   Strategy  `json:"strategy"`
	Submitted  bool      `json:"submitted"`
	CreatedAt  time.Time `json:"created_at"`
}

// FeatureContribution is one named, signed component of a match rationale.
type FeatureContribution struct {
	Feature      string  `json:"feature"`
	Contribution float64 `json:"contribution"`
	Reason       string  `json:"reason"`
}

// MatchRecommendation is the ranked result returned to callers.
type MatchRecommendation struct {
	Supplier    EnrichedSupplier      `json:"supplier"`
	Score       int                   `json:"match_score"`
	Strategy    Strategy              `json:"strategy"`
	Submitted   bool                  `json:"submitted"`
	Explanation []FeatureContribution `json:"explanation"`
}

// SortRecommendations orders by score descending, then supplier id ascending.
func SortRecommendations(recs []MatchRecommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Supplier.ID < recs[j].Supplier.ID
	})
}
