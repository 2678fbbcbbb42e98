package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/rfqmatch/internal/domain/model"
)

type matchKey struct {
	rfqID      string
	supplierID string
}

// MemoryStore keeps everything in process memory. A single mutex makes
// Create's check-and-insert atomic.
type MemoryStore struct {
	settings

	mu        sync.RWMutex
	rfqs      map[string]model.RFQ
	suppliers map[string]model.Supplier
	quotes    map[string][]Quote
	matches   map[matchKey]model.MatchRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		settings:  defaultSettings(),
		rfqs:      make(map[string]model.RFQ),
		suppliers: make(map[string]model.Supplier),
		quotes:    make(map[string][]Quote),
		matches:   make(map[matchKey]model.MatchRecord),
	}
	for _, opt := range opts {
		opt(&s.settings)
	}
	return s
}

// PutRFQ inserts or replaces an RFQ.
func (s *MemoryStore) PutRFQ(_ context.Context, rfq model.RFQ) error {
	if rfq.ID == "" {
		return fmt.Errorf("put rfq: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rfqs[rfq.ID] = rfq
	return nil
}

// PutSupplier inserts or replaces a supplier.
func (s *MemoryStore) PutSupplier(_ context.Context, sup model.Supplier) error {
	if sup.ID == "" {
		return fmt.Errorf("put supplier: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppliers[sup.ID] = sup
	return nil
}

// AddQuote appends to a supplier's quote history.
func (s *MemoryStore) AddQuote(_ context.Context, q Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.SupplierID] = append(s.quotes[q.SupplierID], q)
	return nil
}

// GetRFQ implements Catalog.
func (s *MemoryStore) GetRFQ(_ context.Context, rfqID string) (model.RFQ, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rfq, ok := s.rfqs[rfqID]
	if !ok {
		return model.RFQ{}, fmt.Errorf("%w: %s", ErrRFQNotFound, rfqID)
	}
	return rfq, nil
}

// CandidateSuppliers implements Catalog.
func (s *MemoryStore) CandidateSuppliers(_ context.Context, _ model.RFQ) ([]model.Supplier, error) {
	s.mu.RLock()
	out := make([]model.Supplier, 0, len(s.suppliers))
	for _, sup := range s.suppliers {
		out = append(out, sup)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetMetrics aggregates the stored quote history.
func (s *MemoryStore) GetMetrics(_ context.Context, supplierIDs []string) (map[string]model.PerformanceMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.PerformanceMetrics, len(supplierIDs))
	for _, id := range supplierIDs {
		out[id] = aggregate(s.suppliers[id].Industry, s.quotes[id])
	}
	return out, nil
}

// FindExisting implements Ledger.
func (s *MemoryStore) FindExisting(_ context.Context, rfqID string) ([]model.MatchRecord, error) {
	start := time.Now()
	defer observe("find_existing", start, nil)

	s.mu.RLock()
	out := make([]model.MatchRecord, 0)
	for k, rec := range s.matches {
		if k.rfqID == rfqID {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SupplierID < out[j].SupplierID })
	return out, nil
}

// Create implements Ledger.
func (s *MemoryStore) Create(_ context.Context, rfqID, supplierID string, score int, strategy model.Strategy) (rec model.MatchRecord, err error) {
	start := time.Now()
	defer func() { observe("create", start, err) }()

	key := matchKey{rfqID: rfqID, supplierID: supplierID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.matches[key]; exists {
		return model.MatchRecord{}, fmt.Errorf("%w: rfq=%s supplier=%s", ErrDuplicateMatch, rfqID, supplierID)
	}
	rec = model.MatchRecord{
		ID:         s.newID(),
		RFQID:      rfqID,
		SupplierID: supplierID,
		Score:      score,
		Strategy:   strategy,
		CreatedAt:  s.now().UTC(),
	}
	s.matches[key] = rec
	return rec, nil
}

// MarkSubmitted implements Ledger.
func (s *MemoryStore) MarkSubmitted(_ context.Context, rfqID, supplierID string) (err error) {
	start := time.Now()
	defer func() { observe("mark_submitted", start, err) }()

	key := matchKey{rfqID: rfqID, supplierID: supplierID}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.matches[key]
	if !ok {
		return fmt.Errorf("%w: rfq=%s supplier=%s", ErrNotFound, rfqID, supplierID)
	}
	rec.Submitted = true
	s.matches[key] = rec
	return nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{RFQs: len(s.rfqs), Suppliers: len(s.suppliers), Matches: len(s.matches)}
	for _, rec := range s.matches {
		if rec.Submitted {
			st.Submitted++
		}
	}
	return st, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
