// Package explain turns a match score into an ordered list of feature
// contributions a buyer can read.
package explain

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/rfqmatch/internal/domain/model"
	"github.com/okian/rfqmatch/pkg/logger"
	"github.com/okian/rfqmatch/pkg/metrics"
)

// Style selects the explanation path.
type Style int

const (
	// StyleRich is the detailed path used for externally scored matches.
	StyleRich Style = iota
	// StyleFallback is the short path paired with heuristic scores.
	StyleFallback
)

func (s Style) String() string {
	if s == StyleFallback {
		return "fallback"
	}
	return "rich"
}

// StyleFor picks the explanation style matching the scorer that produced a score.
func StyleFor(strategy model.Strategy) Style {
	if strategy == model.StrategyHeuristic {
		return StyleFallback
	}
	return StyleRich
}

// Source produces a rich explanation. It may fail; the Generator then
// falls back to the short table.
type Source interface {
	Explain(ctx context.Context, rfq model.RFQ, s model.EnrichedSupplier, score int) ([]model.FeatureContribution, error)
}

// TableSource evaluates the rich rule table.
type TableSource struct {
	table    []rule
	foldCase bool
}

// NewTableSource creates the table-driven rich source.
func NewTableSource(gateIndustry, foldCase bool) *TableSource {
	return &TableSource{table: richTable(gateIndustry), foldCase: foldCase}
}

// Explain implements Source.
func (t *TableSource) Explain(_ context.Context, rfq model.RFQ, s model.EnrichedSupplier, score int) ([]model.FeatureContribution, error) {
	return evaluate(t.table, newInput(rfq, s, score, t.foldCase)), nil
}

// Generator produces explanations and never fails.
type Generator struct {
	primary      Source
	gateIndustry bool
	foldCase     bool
	logger       logger.Logger
}

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithIndustryGate makes "Industry Experience" require an actual industry
// match. Disabling it restores the unconditional entry.
func WithIndustryGate(enabled bool) Option {
	return func(g *Generator) {
		g.gateIndustry = enabled
	}
}

// WithCaseInsensitiveIndustry folds case when comparing industries.
func WithCaseInsensitiveIndustry(enabled bool) Option {
	return func(g *Generator) {
		g.foldCase = enabled
	}
}

// WithPrimarySource replaces the rich source.
func WithPrimarySource(src Source) Option {
	return func(g *Generator) {
		g.primary = src
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Generator. The industry gate is on by default.
func New(opts ...Option) *Generator {
	g := &Generator{
		gateIndustry: true,
		logger:       logger.OrNop("explain"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.primary == nil {
		g.primary = NewTableSource(g.gateIndustry, g.foldCase)
	}
	return g
}

// Explain returns the contributions behind score. Rich explanations that
// error, panic or carry non-finite weights are replaced by the fallback.
func (g *Generator) Explain(ctx context.Context, rfq model.RFQ, s model.EnrichedSupplier, score int, style Style) []model.FeatureContribution {
	if style == StyleRich {
		out, err := g.tryPrimary(ctx, rfq, s, score)
		if err == nil {
			return out
		}
		metrics.RecordExplanationFallback()
		g.logger.Warn(ctx, "rich explanation failed, using fallback",
			logger.String("rfq_id", rfq.ID),
			logger.String("supplier_id", s.ID),
			logger.Error(err),
		)
	}
	return g.Fallback(rfq, s, score)
}

// Fallback evaluates the short table. A nonzero score always gets at least
// one contribution.
func (g *Generator) Fallback(rfq model.RFQ, s model.EnrichedSupplier, score int) []model.FeatureContribution {
	in := newInput(rfq, s, score, g.foldCase)
	out := evaluate(fallbackTable, in)
	if len(out) == 0 && score != 0 {
		out = append(out, overall(in))
	}
	return out
}

func (g *Generator) tryPrimary(ctx context.Context, rfq model.RFQ, s model.EnrichedSupplier, score int) (out []model.FeatureContribution, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("rich explanation panicked: %v", r)
		}
	}()

	out, err = g.primary.Explain(ctx, rfq, s, score)
	if err != nil {
		return nil, err
	}
	for _, c := range out {
		if math.IsNaN(c.Contribution) || math.IsInf(c.Contribution, 0) {
			return nil, fmt.Errorf("non-finite contribution for %q", c.Feature)
		}
	}
	if len(out) == 0 && score != 0 {
		return nil, fmt.Errorf("empty explanation for score %d", score)
	}
	return out, nil
}

func newInput(rfq model.RFQ, s model.EnrichedSupplier, score int, foldCase bool) input {
	return input{
		rfq:           rfq,
		supplier:      s,
		score:         score,
		industryMatch: model.SameIndustry(s.Industry, rfq.Industry, foldCase),
	}
}
