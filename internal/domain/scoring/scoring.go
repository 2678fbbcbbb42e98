// Package scoring defines the contract for ranking candidate suppliers against an RFQ.
package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/rfqmatch/internal/domain/model"
)

// Score bounds.
const (
	MinScore = 0
	MaxScore = 100
)

// Scorer scores a whole candidate list at once so an implementation may
// normalize relative to the batch. Every candidate must receive a score in
// [MinScore, MaxScore]; implementations hold no hidden state between calls.
type Scorer interface {
	// Name identifies the strategy in logs and metrics.
	Name() string
	// ScoreBatch returns supplier id -> score, honoring ctx for cancellation.
	ScoreBatch(ctx context.Context, rfq model.RFQ, candidates []model.EnrichedSupplier) (map[string]int, error)
}

// Clamp bounds a raw score to [MinScore, MaxScore].
func Clamp(v int) int {
	switch {
	case v < MinScore:
		return MinScore
	case v > MaxScore:
		return MaxScore
	default:
		return v
	}
}

// ValidateBatch checks that scores covers every candidate with an in-range
// value. Entries for suppliers outside the batch are ignored.
func ValidateBatch(candidates []model.EnrichedSupplier, scores map[string]int) error {
	for _, c := range candidates {
		v, ok := scores[c.ID]
		if !ok {
			return fmt.Errorf("%w: supplier %s", ErrMissingScore, c.ID)
		}
		if v < MinScore || v > MaxScore {
			return fmt.Errorf("%w: supplier %s scored %d", ErrScoreOutOfRange, c.ID, v)
		}
	}
	return nil
}

// FailureReason maps a scorer error to a short metrics label.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrMissingScore):
		return "missing_score"
	case errors.Is(err, ErrScoreOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrUnexpectedStatus):
		return "bad_status"
	default:
		return "transport"
	}
}
