// Package repository persists RFQs, suppliers, quote history and the match
// ledger.
package repository

import (
	"context"

	"github.com/okian/rfqmatch/internal/domain/model"
)

// Ledger records which suppliers were proposed for which RFQ.
// At most one record exists per (rfq, supplier) pair.
type Ledger interface {
	// FindExisting returns every record for the RFQ ordered by supplier id.
	// An RFQ that was never matched yields an empty slice.
	FindExisting(ctx context.Context, rfqID string) ([]model.MatchRecord, error)

	// Create stores a new record. It returns ErrDuplicateMatch when the pair
	// already exists; the existing record is left untouched.
	Create(ctx context.Context, rfqID, supplierID string, score int, strategy model.Strategy) (model.MatchRecord, error)

	// MarkSubmitted flags that the supplier quoted on the RFQ.
	// Returns ErrNotFound if no record exists for the pair.
	MarkSubmitted(ctx context.Context, rfqID, supplierID string) error
}

// Catalog reads the RFQs and supplier profiles the matcher works on.
type Catalog interface {
	// GetRFQ returns ErrRFQNotFound when the id is unknown.
	GetRFQ(ctx context.Context, rfqID string) (model.RFQ, error)

	// CandidateSuppliers returns every supplier eligible for the RFQ ordered by id.
	CandidateSuppliers(ctx context.Context, rfq model.RFQ) ([]model.Supplier, error)
}

// Stats summarises store contents.
type Stats struct {
	RFQs      int `json:"rfqs"`
	Suppliers int `json:"suppliers"`
	Matches   int `json:"matches"`
	Submitted int `json:"submitted"`
}

// Store is the full storage surface used by the service.
type Store interface {
	Ledger
	Catalog
	GetMetrics(ctx context.Context, supplierIDs []string) (map[string]model.PerformanceMetrics, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Quote is one historical quote used to derive performance metrics.
type Quote struct {
	SupplierID     string
	RFQID          string
	Industry       string
	ResponseHours  float64
	Accepted       bool
	Completed      bool
	PriceDeviation float64 // percent vs market; negative is cheaper
}

// Seeder loads catalog data and quote history.
type Seeder interface {
	PutRFQ(ctx context.Context, rfq model.RFQ) error
	PutSupplier(ctx context.Context, s model.Supplier) error
	AddQuote(ctx context.Context, q Quote) error
}
