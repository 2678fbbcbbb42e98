package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/rfqmatch/internal/domain/model"
)

// floatEqual compares two float64 values with a small tolerance.
func floatEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testOptions() []Option {
	n := 0
	var mu sync.Mutex
	return []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("m-%03d", n)
		}),
	}
}

type storeFactory struct {
	name string
	open func(t *testing.T) interface {
		Store
		Seeder
	}
}

func factories() []storeFactory {
	return []storeFactory{
		{
			name: "memory",
			open: func(t *testing.T) interface {
				Store
				Seeder
			} {
				return NewMemoryStore(testOptions()...)
			},
		},
		{
			name: "sqlite",
			open: func(t *testing.T) interface {
				Store
				Seeder
			} {
				t.Helper()
				s, err := Open(context.Background(), DriverSQLite, ":memory:", testOptions()...)
				if err != nil {
					t.Fatalf("Open(:memory:) failed: %v", err)
				}
				t.Cleanup(func() { s.Close() })
				return s
			},
		},
	}
}

func rating(v float64) *float64 { return &v }

func TestStore_Catalog(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			s := f.open(t)

			rfq := model.RFQ{
				ID:       "rfq-1",
				BuyerID:  "buyer-1",
				Title:    "PCB assembly",
				Industry: "Electronics",
				Budget:   decimal.RequireFromString("12500.50"),
				Deadline: fixedNow.Add(72 * time.Hour),
			}
			if err := s.PutRFQ(ctx, rfq); err != nil {
				t.Fatalf("PutRFQ: %v", err)
			}
			for _, sup := range []model.Supplier{
				{ID: "sup-b", Name: "Beta", Industry: "Textiles"},
				{ID: "sup-a", Name: "Alpha", Industry: "Electronics", Verified: true, Rating: rating(4.5), ReviewCount: 12},
			} {
				if err := s.PutSupplier(ctx, sup); err != nil {
					t.Fatalf("PutSupplier: %v", err)
				}
			}

			got, err := s.GetRFQ(ctx, "rfq-1")
			if err != nil {
				t.Fatalf("GetRFQ: %v", err)
			}
			if got.Title != rfq.Title || got.Industry != rfq.Industry || !got.Budget.Equal(rfq.Budget) {
				t.Errorf("GetRFQ = %+v, want %+v", got, rfq)
			}
			if !got.Deadline.Equal(rfq.Deadline) {
				t.Errorf("deadline = %v, want %v", got.Deadline, rfq.Deadline)
			}

			if _, err := s.GetRFQ(ctx, "missing"); !errors.Is(err, ErrRFQNotFound) {
				t.Errorf("expected ErrRFQNotFound, got %v", err)
			}

			cands, err := s.CandidateSuppliers(ctx, rfq)
			if err != nil {
				t.Fatalf("CandidateSuppliers: %v", err)
			}
			if len(cands) != 2 || cands[0].ID != "sup-a" || cands[1].ID != "sup-b" {
				t.Fatalf("candidates not ordered by id: %+v", cands)
			}
			if !cands[0].Verified || cands[0].Rating == nil || *cands[0].Rating != 4.5 || cands[0].ReviewCount != 12 {
				t.Errorf("supplier fields not round-tripped: %+v", cands[0])
			}
			if cands[1].Rating != nil {
				t.Errorf("unrated supplier should have nil rating, got %v", *cands[1].Rating)
			}
		})
	}
}

func TestStore_GetMetrics(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			s := f.open(t)
			if err := s.PutSupplier(ctx, model.Supplier{ID: "sup-a", Industry: "Electronics"}); err != nil {
				t.Fatalf("PutSupplier: %v", err)
			}
			quotes := []Quote{
				{SupplierID: "sup-a", RFQID: "r1", Industry: "Electronics", ResponseHours: 4, Accepted: true, Completed: true, PriceDeviation: -6},
				{SupplierID: "sup-a", RFQID: "r2", Industry: "Electronics", ResponseHours: 8, Accepted: true, Completed: false, PriceDeviation: -2},
				{SupplierID: "sup-a", RFQID: "r2", Industry: "Electronics", ResponseHours: 6, Accepted: false, PriceDeviation: 0},
				{SupplierID: "sup-a", RFQID: "r3", Industry: "Textiles", ResponseHours: 2, Accepted: true, Completed: true, PriceDeviation: 4},
			}
			for _, q := range quotes {
				if err := s.AddQuote(ctx, q); err != nil {
					t.Fatalf("AddQuote: %v", err)
				}
			}

			got, err := s.GetMetrics(ctx, []string{"sup-a", "sup-unknown"})
			if err != nil {
				t.Fatalf("GetMetrics: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("expected every requested id, got %d entries", len(got))
			}
			m := got["sup-a"]
			if !floatEqual(m.AvgResponseTimeHours, 5) {
				t.Errorf("avg response = %v, want 5", m.AvgResponseTimeHours)
			}
			if !floatEqual(m.AcceptanceRate, 75) {
				t.Errorf("acceptance = %v, want 75", m.AcceptanceRate)
			}
			if !floatEqual(m.CompletionRate, 200.0/3) {
				t.Errorf("completion = %v, want 66.67", m.CompletionRate)
			}
			if !floatEqual(m.AvgPriceDeviation, -1) {
				t.Errorf("price deviation = %v, want -1", m.AvgPriceDeviation)
			}
			if m.SimilarRFQsCount != 2 {
				t.Errorf("similar rfqs = %d, want 2", m.SimilarRFQsCount)
			}
			if !floatEqual(m.IndustryScore, 75) {
				t.Errorf("industry score = %v, want 75", m.IndustryScore)
			}
			if !got["sup-unknown"].IsZero() {
				t.Errorf("unknown supplier should get the default profile, got %+v", got["sup-unknown"])
			}

			empty, err := s.GetMetrics(ctx, nil)
			if err != nil || len(empty) != 0 {
				t.Errorf("empty input: got %v, %v", empty, err)
			}
		})
	}
}

func TestLedger_CreateAndFind(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			s := f.open(t)

			recs, err := s.FindExisting(ctx, "rfq-1")
			if err != nil {
				t.Fatalf("FindExisting: %v", err)
			}
			if len(recs) != 0 {
				t.Fatalf("expected no records, got %d", len(recs))
			}

			if _, err := s.Create(ctx, "rfq-1", "sup-b", 40, model.StrategyHeuristic); err != nil {
				t.Fatalf("Create: %v", err)
			}
			created, err := s.Create(ctx, "rfq-1", "sup-a", 87, model.StrategyExternal)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if created.ID == "" || created.Score != 87 || created.Submitted || !created.CreatedAt.Equal(fixedNow) {
				t.Errorf("unexpected record %+v", created)
			}
			if _, err := s.Create(ctx, "rfq-2", "sup-a", 10, model.StrategyHeuristic); err != nil {
				t.Fatalf("same supplier on another rfq must be allowed: %v", err)
			}

			recs, err = s.FindExisting(ctx, "rfq-1")
			if err != nil {
				t.Fatalf("FindExisting: %v", err)
			}
			if len(recs) != 2 || recs[0].SupplierID != "sup-a" || recs[1].SupplierID != "sup-b" {
				t.Fatalf("unexpected records %+v", recs)
			}
			if recs[0].Strategy != model.StrategyExternal || recs[1].Strategy != model.StrategyHeuristic {
				t.Errorf("strategy not persisted: %+v", recs)
			}
		})
	}
}

func TestLedger_Duplicate(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			s := f.open(t)

			if _, err := s.Create(ctx, "rfq-1", "sup-a", 70, model.StrategyExternal); err != nil {
				t.Fatalf("Create: %v", err)
			}
			_, err := s.Create(ctx, "rfq-1", "sup-a", 10, model.StrategyHeuristic)
			if !errors.Is(err, ErrDuplicateMatch) {
				t.Fatalf("expected ErrDuplicateMatch, got %v", err)
			}

			recs, _ := s.FindExisting(ctx, "rfq-1")
			if len(recs) != 1 || recs[0].Score != 70 {
				t.Errorf("original record must be untouched, got %+v", recs)
			}
		})
	}
}

func TestLedger_ConcurrentCreate(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			s := f.open(t)

			const workers = 16
			var (
				wg         sync.WaitGroup
				mu         sync.Mutex
				created    int
				duplicates int
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(score int) {
					defer wg.Done()
					_, err := s.Create(ctx, "rfq-1", "sup-a", score, model.StrategyHeuristic)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						created++
					case errors.Is(err, ErrDuplicateMatch):
						duplicates++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}(i)
			}
			wg.Wait()

			if created != 1 || duplicates != workers-1 {
				t.Errorf("created=%d duplicates=%d, want 1 and %d", created, duplicates, workers-1)
			}
			recs, _ := s.FindExisting(ctx, "rfq-1")
			if len(recs) != 1 {
				t.Errorf("expected exactly one record, got %d", len(recs))
			}
		})
	}
}

func TestLedger_MarkSubmitted(t *testing.T) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			s := f.open(t)

			if err := s.MarkSubmitted(ctx, "rfq-1", "sup-a"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if _, err := s.Create(ctx, "rfq-1", "sup-a", 55, model.StrategyHeuristic); err != nil {
				t.Fatalf("Create: %v", err)
			}
			if err := s.MarkSubmitted(ctx, "rfq-1", "sup-a"); err != nil {
				t.Fatalf("MarkSubmitted: %v", err)
			}
			recs, _ := s.FindExisting(ctx, "rfq-1")
			if len(recs) != 1 || !recs[0].Submitted || recs[0].Score != 55 {
				t.Errorf("unexpected record after submit: %+v", recs)
			}

			st, err := s.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats: %v", err)
			}
			if st.Matches != 1 || st.Submitted != 1 {
				t.Errorf("unexpected stats %+v", st)
			}
		})
	}
}

func TestSQLStore_Migrations(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/ledger.db"

	s1, err := Open(ctx, DriverSQLite, path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if _, err := s1.Create(ctx, "rfq-1", "sup-a", 10, model.StrategyHeuristic); err != nil {
		t.Fatalf("Create: %v", err)
	}
	s1.Close()

	s2, err := Open(ctx, DriverSQLite, path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()
	v2, err := s2.AppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) == 0 || len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}

	recs, err := s2.FindExisting(ctx, "rfq-1")
	if err != nil || len(recs) != 1 {
		t.Errorf("record did not survive reopen: %v %+v", err, recs)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x"); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("expected ErrUnknownDriver, got %v", err)
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driver: DriverPostgres}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("postgres rebind = %q", got)
	}
	lite := &SQLStore{driver: DriverSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}
