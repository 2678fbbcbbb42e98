package performance

import "errors"

// ErrMetricsUnavailable marks a provider failure. Callers degrade to Default.
var ErrMetricsUnavailable = errors.New("performance metrics unavailable")
