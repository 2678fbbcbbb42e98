package repository

import (
	"errors"
	"time"

	"github.com/okian/rfqmatch/internal/domain/model"
	"github.com/okian/rfqmatch/pkg/metrics"
)

// aggregate derives a supplier's metrics from its quote history.
// Completion is measured against accepted quotes only.
func aggregate(industry string, quotes []Quote) model.PerformanceMetrics {
	if len(quotes) == 0 {
		return model.PerformanceMetrics{}
	}

	var (
		responseSum, deviationSum float64
		accepted, completed       int
		inIndustry                int
		similar                   = make(map[string]struct{})
	)
	for _, q := range quotes {
		responseSum += q.ResponseHours
		deviationSum += q.PriceDeviation
		if q.Accepted {
			accepted++
			if q.Completed {
				completed++
			}
		}
		if q.Industry == industry {
			inIndustry++
			similar[q.RFQID] = struct{}{}
		}
	}

	n := float64(len(quotes))
	m := model.PerformanceMetrics{
		AvgResponseTimeHours: responseSum / n,
		AcceptanceRate:       100 * float64(accepted) / n,
		AvgPriceDeviation:    deviationSum / n,
		SimilarRFQsCount:     len(similar),
		IndustryScore:        100 * float64(inIndustry) / n,
	}
	if accepted > 0 {
		m.CompletionRate = 100 * float64(completed) / float64(accepted)
	}
	return m
}

// observe records ledger latency and unexpected failures.
func observe(operation string, start time.Time, err error) {
	metrics.RecordLedgerLatency(operation, float64(time.Since(start).Microseconds())/1000)
	if err != nil && !errors.Is(err, ErrDuplicateMatch) && !errors.Is(err, ErrNotFound) {
		metrics.RecordLedgerError(operation)
	}
}
