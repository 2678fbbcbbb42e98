package scoring

import "errors"

// Sentinel kinds for scoring errors. Any of them fails the whole batch.
var (
	ErrExternalScorer    = errors.New("external scorer failed")
	ErrMissingScore      = errors.New("missing score for candidate")
	ErrScoreOutOfRange   = errors.New("score out of range")
	ErrMalformedResponse = errors.New("malformed scorer response")
	ErrUnexpectedStatus  = errors.New("unexpected scorer status")
)
