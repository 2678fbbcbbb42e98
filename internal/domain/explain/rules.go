package explain

import (
	"fmt"
	"math"

	"github.com/okian/rfqmatch/internal/domain/model"
)

// Thresholds shared with the heuristic scorer.
const (
	responseHoursCeiling = 12.0
	acceptanceThreshold  = 80.0
	similarRFQsThreshold = 10
)

// input is everything a rule may look at.
type input struct {
	rfq           model.RFQ
	supplier      model.EnrichedSupplier
	score         int
	industryMatch bool
}

// rule is one row of an explanation table. A row is emitted when emit
// holds; its weight is ifTrue when cond holds and ifFalse otherwise.
type rule struct {
	feature string
	emit    func(in input) bool
	cond    func(in input) bool
	ifTrue  float64
	ifFalse float64
	reason  func(in input, hit bool) string
}

func always(input) bool { return true }

func evaluate(table []rule, in input) []model.FeatureContribution {
	out := make([]model.FeatureContribution, 0, len(table))
	for _, r := range table {
		if !r.emit(in) {
			continue
		}
		hit := r.cond(in)
		weight := r.ifFalse
		if hit {
			weight = r.ifTrue
		}
		out = append(out, model.FeatureContribution{
			Feature:      r.feature,
			Contribution: weight,
			Reason:       r.reason(in, hit),
		})
	}
	return out
}

// richTable is the detailed explanation, evaluated in order.
// gateIndustry decides whether "Industry Experience" requires an actual match.
func richTable(gateIndustry bool) []rule {
	industryEmit := always
	if gateIndustry {
		industryEmit = func(in input) bool { return in.industryMatch }
	}

	return []rule{
		{
			feature: "Industry Experience",
			emit:    industryEmit,
			cond:    always,
			ifTrue:  25,
			reason: func(in input, _ bool) string {
				return fmt.Sprintf("Specializes in %s, the industry of this RFQ", in.supplier.Industry)
			},
		},
		{
			feature: "Response Time",
			emit:    always,
			cond:    func(in input) bool { return in.supplier.Metrics.AvgResponseTimeHours < responseHoursCeiling },
			ifTrue:  15,
			ifFalse: -10,
			reason: func(in input, hit bool) string {
				h := in.supplier.Metrics.AvgResponseTimeHours
				if hit {
					return fmt.Sprintf("Responds to RFQs in %.1f hours on average", h)
				}
				return fmt.Sprintf("Average response time of %.1f hours is slower than the %.0f hour target", h, responseHoursCeiling)
			},
		},
		{
			feature: "Success Rate",
			emit:    always,
			cond:    func(in input) bool { return in.supplier.Metrics.AcceptanceRate > acceptanceThreshold },
			ifTrue:  20,
			ifFalse: 5,
			reason: func(in input, _ bool) string {
				return fmt.Sprintf("%.0f%% of submitted quotes were accepted by buyers", in.supplier.Metrics.AcceptanceRate)
			},
		},
		{
			feature: "Price Competitiveness",
			emit:    always,
			cond:    func(in input) bool { return in.supplier.Metrics.AvgPriceDeviation < 0 },
			ifTrue:  15,
			ifFalse: -5,
			reason: func(in input, hit bool) string {
				d := math.Abs(in.supplier.Metrics.AvgPriceDeviation)
				if hit {
					return fmt.Sprintf("Quotes average %.1f%% below market price", d)
				}
				return fmt.Sprintf("Quotes average %.1f%% above market price", d)
			},
		},
		{
			feature: "Similar Project Experience",
			emit:    always,
			cond:    func(in input) bool { return in.supplier.Metrics.SimilarRFQsCount > similarRFQsThreshold },
			ifTrue:  18,
			ifFalse: 8,
			reason: func(in input, _ bool) string {
				return fmt.Sprintf("Has handled %d similar RFQs", in.supplier.Metrics.SimilarRFQsCount)
			},
		},
		{
			feature: "Verified Status",
			emit:    func(in input) bool { return in.supplier.Verified },
			cond:    always,
			ifTrue:  12,
			reason:  func(input, bool) string { return "Business identity and registration are verified" },
		},
	}
}

// fallbackTable mirrors the heuristic scorer and skips rows without signal.
var fallbackTable = []rule{
	{
		feature: "Industry Match",
		emit:    func(in input) bool { return in.industryMatch },
		cond:    always,
		ifTrue:  40,
		reason: func(in input, _ bool) string {
			return fmt.Sprintf("Operates in %s, matching this RFQ", in.supplier.Industry)
		},
	},
	{
		feature: "Success Rate",
		emit:    func(in input) bool { return in.supplier.Metrics.AcceptanceRate > 0 },
		cond:    func(in input) bool { return in.supplier.Metrics.AcceptanceRate > acceptanceThreshold },
		ifTrue:  15,
		ifFalse: 5,
		reason: func(in input, _ bool) string {
			return fmt.Sprintf("%.0f%% quote acceptance rate", in.supplier.Metrics.AcceptanceRate)
		},
	},
	{
		feature: "Response Time",
		emit:    func(in input) bool { return in.supplier.Metrics.AvgResponseTimeHours > 0 },
		cond:    func(in input) bool { return in.supplier.Metrics.AvgResponseTimeHours < responseHoursCeiling },
		ifTrue:  10,
		ifFalse: -5,
		reason: func(in input, _ bool) string {
			return fmt.Sprintf("Average response time of %.1f hours", in.supplier.Metrics.AvgResponseTimeHours)
		},
	},
	{
		feature: "Verified Status",
		emit:    func(in input) bool { return in.supplier.Verified },
		cond:    always,
		ifTrue:  10,
		reason:  func(input, bool) string { return "Verified supplier" },
	},
}

// overall is emitted by the fallback path when no row applies to a nonzero score.
func overall(in input) model.FeatureContribution {
	return model.FeatureContribution{
		Feature:      "Overall Match",
		Contribution: float64(in.score),
		Reason:       fmt.Sprintf("Overall match score of %d for this RFQ", in.score),
	}
}
