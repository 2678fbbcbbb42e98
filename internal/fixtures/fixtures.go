// Package fixtures loads RFQs, suppliers and quote history from a YAML file
// into a store. It seeds the in-memory driver and local databases.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/okian/rfqmatch/internal/adapters/repository"
	"github.com/okian/rfqmatch/internal/domain/model"
)

// ErrInvalidFixture marks a fixture entry that cannot be converted.
var ErrInvalidFixture = errors.New("invalid fixture")

// File is the on-disk fixture layout.
type File struct {
	RFQs      []RFQ      `koanf:"rfqs"`
	Suppliers []Supplier `koanf:"suppliers"`
	Quotes    []Quote    `koanf:"quotes"`
}

// RFQ is a fixture RFQ. Budget is a decimal string; Deadline is RFC3339.
type RFQ struct {
	ID          string `koanf:"id"`
	BuyerID     string `koanf:"buyer_id"`
	Title       string `koanf:"title"`
	Industry    string `koanf:"industry"`
	Description string `koanf:"description"`
	Budget      string `koanf:"budget"`
	Deadline    string `koanf:"deadline"`
}

// Supplier is a fixture supplier.
type Supplier struct {
	ID          string   `koanf:"id"`
	UserID      string   `koanf:"user_id"`
	Name        string   `koanf:"name"`
	Description string   `koanf:"description"`
	Industry    string   `koanf:"industry"`
	Rating      *float64 `koanf:"rating"`
	ReviewCount int      `koanf:"review_count"`
	Verified    bool     `koanf:"verified"`
}

// Quote is a fixture quote history row.
type Quote struct {
	SupplierID     string  `koanf:"supplier_id"`
	RFQID          string  `koanf:"rfq_id"`
	Industry       string  `koanf:"industry"`
	ResponseHours  float64 `koanf:"response_hours"`
	Accepted       bool    `koanf:"accepted"`
	Completed      bool    `koanf:"completed"`
	PriceDeviation float64 `koanf:"price_deviation"`
}

// Summary counts what Apply wrote.
type Summary struct {
	RFQs      int
	Suppliers int
	Quotes    int
}

// Read parses a YAML fixture file.
func Read(path string) (File, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return File{}, fmt.Errorf("loading fixtures %s: %w", path, err)
	}
	var f File
	if err := k.UnmarshalWithConf("", &f, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return File{}, fmt.Errorf("decoding fixtures %s: %w", path, err)
	}
	return f, nil
}

// Apply writes every fixture to the seeder, stopping at the first error.
func Apply(ctx context.Context, s repository.Seeder, f File) (Summary, error) {
	var sum Summary
	for _, r := range f.RFQs {
		rfq, err := r.toModel()
		if err != nil {
			return sum, err
		}
		if err := s.PutRFQ(ctx, rfq); err != nil {
			return sum, err
		}
		sum.RFQs++
	}
	for _, sp := range f.Suppliers {
		if err := s.PutSupplier(ctx, sp.toModel()); err != nil {
			return sum, err
		}
		sum.Suppliers++
	}
	for _, q := range f.Quotes {
		if err := s.AddQuote(ctx, repository.Quote(q)); err != nil {
			return sum, err
		}
		sum.Quotes++
	}
	return sum, nil
}

// Load reads path and applies it.
func Load(ctx context.Context, s repository.Seeder, path string) (Summary, error) {
	f, err := Read(path)
	if err != nil {
		return Summary{}, err
	}
	return Apply(ctx, s, f)
}

func (r RFQ) toModel() (model.RFQ, error) {
	out := model.RFQ{
		ID:          r.ID,
		BuyerID:     r.BuyerID,
		Title:       r.Title,
		Industry:    r.Industry,
		Description: r.Description,
	}
	if r.Budget != "" {
		b, err := decimal.NewFromString(r.Budget)
		if err != nil {
			return model.RFQ{}, fmt.Errorf("%w: rfq %s budget %q: %w", ErrInvalidFixture, r.ID, r.Budget, err)
		}
		out.Budget = b
	}
	if r.Deadline != "" {
		d, err := time.Parse(time.RFC3339, r.Deadline)
		if err != nil {
			return model.RFQ{}, fmt.Errorf("%w: rfq %s deadline %q: %w", ErrInvalidFixture, r.ID, r.Deadline, err)
		}
		out.Deadline = d.UTC()
	}
	return out, nil
}

func (s Supplier) toModel() model.Supplier {
	return model.Supplier{
		ID:          s.ID,
		UserID:      s.UserID,
		Name:        s.Name,
		Description: s.Description,
		Industry:    s.Industry,
		Rating:      s.Rating,
		ReviewCount: s.ReviewCount,
		Verified:    s.Verified,
	}
}
