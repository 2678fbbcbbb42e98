package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/okian/rfqmatch/internal/domain/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// SQLStore implements Store on SQLite or PostgreSQL. Pair uniqueness is
// enforced by the uq_rfq_matches_pair constraint.
type SQLStore struct {
	settings
	db     *sql.DB
	driver string
}

// Open connects to the database and applies pending migrations.
// For SQLite, dsn is a file path or ":memory:".
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if driver == DriverSQLite {
		// One connection keeps ":memory:" databases shared and avoids "database is locked".
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode=WAL"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("applying %q: %w", pragma, err)
			}
		}
	}

	s := &SQLStore{settings: defaultSettings(), db: db, driver: driver}
	for _, opt := range opts {
		opt(&s.settings)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// migrate applies embedded migrations not yet recorded in schema_version.
func (s *SQLStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at_ms BIGINT NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.queryRow(ctx, "SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind("INSERT INTO schema_version (version, applied_at_ms) VALUES (?, ?)"),
			version, s.now().UnixMilli()); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns applied migration versions in ascending order.
func (s *SQLStore) AppliedMigrations(ctx context.Context) ([]int, error) {
	rows, err := s.query(ctx, "SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// isUniqueViolation recognises duplicate-key errors from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")
	}
	return false
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// --- Catalog ---

// PutRFQ inserts or replaces an RFQ.
func (s *SQLStore) PutRFQ(ctx context.Context, rfq model.RFQ) error {
	_, err := s.exec(ctx, `
		INSERT INTO rfqs (id, buyer_id, title, industry, description, budget, deadline_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			buyer_id = excluded.buyer_id, title = excluded.title, industry = excluded.industry,
			description = excluded.description, budget = excluded.budget, deadline_ms = excluded.deadline_ms`,
		rfq.ID, rfq.BuyerID, rfq.Title, rfq.Industry, rfq.Description, rfq.Budget.String(), toMillis(rfq.Deadline),
	)
	if err != nil {
		return fmt.Errorf("put rfq %s: %w", rfq.ID, err)
	}
	return nil
}

// PutSupplier inserts or replaces a supplier.
func (s *SQLStore) PutSupplier(ctx context.Context, sup model.Supplier) error {
	var rating sql.NullFloat64
	if sup.Rating != nil {
		rating = sql.NullFloat64{Float64: *sup.Rating, Valid: true}
	}
	_, err := s.exec(ctx, `
		INSERT INTO suppliers (id, user_id, name, description, industry, rating, review_count, verified, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id, name = excluded.name, description = excluded.description,
			industry = excluded.industry, rating = excluded.rating, review_count = excluded.review_count,
			verified = excluded.verified, created_at_ms = excluded.created_at_ms`,
		sup.ID, sup.UserID, sup.Name, sup.Description, sup.Industry, rating, sup.ReviewCount,
		boolInt(sup.Verified), toMillis(sup.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put supplier %s: %w", sup.ID, err)
	}
	return nil
}

// AddQuote appends to a supplier's quote history.
func (s *SQLStore) AddQuote(ctx context.Context, q Quote) error {
	_, err := s.exec(ctx, `
		INSERT INTO quote_history (supplier_id, rfq_id, industry, response_hours, accepted, completed, price_deviation)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.SupplierID, q.RFQID, q.Industry, q.ResponseHours, boolInt(q.Accepted), boolInt(q.Completed), q.PriceDeviation,
	)
	if err != nil {
		return fmt.Errorf("add quote for %s: %w", q.SupplierID, err)
	}
	return nil
}

// GetRFQ implements Catalog.
func (s *SQLStore) GetRFQ(ctx context.Context, rfqID string) (model.RFQ, error) {
	var (
		rfq      model.RFQ
		budget   string
		deadline int64
	)
	err := s.queryRow(ctx, `
		SELECT id, buyer_id, title, industry, description, budget, deadline_ms
		FROM rfqs WHERE id = ?`, rfqID,
	).Scan(&rfq.ID, &rfq.BuyerID, &rfq.Title, &rfq.Industry, &rfq.Description, &budget, &deadline)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RFQ{}, fmt.Errorf("%w: %s", ErrRFQNotFound, rfqID)
	}
	if err != nil {
		return model.RFQ{}, fmt.Errorf("get rfq %s: %w", rfqID, err)
	}
	if err := rfq.Budget.Scan(budget); err != nil {
		return model.RFQ{}, fmt.Errorf("parse budget of rfq %s: %w", rfqID, err)
	}
	rfq.Deadline = fromMillis(deadline)
	return rfq, nil
}

// CandidateSuppliers implements Catalog. Every supplier on the marketplace is a candidate.
func (s *SQLStore) CandidateSuppliers(ctx context.Context, _ model.RFQ) ([]model.Supplier, error) {
	rows, err := s.query(ctx, `
		SELECT id, user_id, name, description, industry, rating, review_count, verified, created_at_ms
		FROM suppliers ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	out := make([]model.Supplier, 0)
	for rows.Next() {
		var (
			sup       model.Supplier
			rating    sql.NullFloat64
			verified  int
			createdAt int64
		)
		if err := rows.Scan(&sup.ID, &sup.UserID, &sup.Name, &sup.Description, &sup.Industry,
			&rating, &sup.ReviewCount, &verified, &createdAt); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		if rating.Valid {
			r := rating.Float64
			sup.Rating = &r
		}
		sup.Verified = verified != 0
		sup.CreatedAt = fromMillis(createdAt)
		out = append(out, sup)
	}
	return out, rows.Err()
}

// GetMetrics aggregates quote_history. Suppliers without rows get the default profile.
func (s *SQLStore) GetMetrics(ctx context.Context, supplierIDs []string) (map[string]model.PerformanceMetrics, error) {
	out := make(map[string]model.PerformanceMetrics, len(supplierIDs))
	if len(supplierIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(supplierIDs)), ",")
	args := make([]any, len(supplierIDs))
	for i, id := range supplierIDs {
		args[i] = id
	}
	rows, err := s.query(ctx, `
		SELECT q.supplier_id, q.rfq_id, q.industry, q.response_hours, q.accepted, q.completed,
		       q.price_deviation, COALESCE(sp.industry, '')
		FROM quote_history q
		LEFT JOIN suppliers sp ON sp.id = q.supplier_id
		WHERE q.supplier_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query quote history: %w", err)
	}
	defer rows.Close()

	history := make(map[string][]Quote, len(supplierIDs))
	industries := make(map[string]string, len(supplierIDs))
	for rows.Next() {
		var (
			q                   Quote
			accepted, completed int
			industry            string
		)
		if err := rows.Scan(&q.SupplierID, &q.RFQID, &q.Industry, &q.ResponseHours, &accepted, &completed,
			&q.PriceDeviation, &industry); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		q.Accepted, q.Completed = accepted != 0, completed != 0
		history[q.SupplierID] = append(history[q.SupplierID], q)
		industries[q.SupplierID] = industry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read quote history: %w", err)
	}

	for _, id := range supplierIDs {
		out[id] = aggregate(industries[id], history[id])
	}
	return out, nil
}

// --- Ledger ---

// FindExisting implements Ledger.
func (s *SQLStore) FindExisting(ctx context.Context, rfqID string) (out []model.MatchRecord, err error) {
	start := time.Now()
	defer func() { observe("find_existing", start, err) }()

	rows, err := s.query(ctx, `
		SELECT id, rfq_id, supplier_id, score, strategy, submitted, created_at_ms
		FROM rfq_matches WHERE rfq_id = ? ORDER BY supplier_id ASC`, rfqID)
	if err != nil {
		return nil, fmt.Errorf("find matches for %s: %w", rfqID, err)
	}
	defer rows.Close()

	out = make([]model.MatchRecord, 0)
	for rows.Next() {
		var (
			rec       model.MatchRecord
			strategy  string
			submitted int
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.RFQID, &rec.SupplierID, &rec.Score, &strategy, &submitted, &createdAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		rec.Strategy = model.Strategy(strategy)
		rec.Submitted = submitted != 0
		rec.CreatedAt = fromMillis(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Create implements Ledger.
func (s *SQLStore) Create(ctx context.Context, rfqID, supplierID string, score int, strategy model.Strategy) (rec model.MatchRecord, err error) {
	start := time.Now()
	defer func() { observe("create", start, err) }()

	rec = model.MatchRecord{
		ID:         s.newID(),
		RFQID:      rfqID,
		SupplierID: supplierID,
		Score:      score,
		Strategy:   strategy,
		CreatedAt:  s.now().UTC().Truncate(time.Millisecond),
	}
	_, err = s.exec(ctx, `
		INSERT INTO rfq_matches (id, rfq_id, supplier_id, score, strategy, submitted, created_at_ms)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		rec.ID, rec.RFQID, rec.SupplierID, rec.Score, string(rec.Strategy), rec.CreatedAt.UnixMilli(),
	)
	if isUniqueViolation(err) {
		return model.MatchRecord{}, fmt.Errorf("%w: rfq=%s supplier=%s", ErrDuplicateMatch, rfqID, supplierID)
	}
	if err != nil {
		return model.MatchRecord{}, fmt.Errorf("create match: %w", err)
	}
	return rec, nil
}

// MarkSubmitted implements Ledger.
func (s *SQLStore) MarkSubmitted(ctx context.Context, rfqID, supplierID string) (err error) {
	start := time.Now()
	defer func() { observe("mark_submitted", start, err) }()

	res, err := s.exec(ctx, `UPDATE rfq_matches SET submitted = 1 WHERE rfq_id = ? AND supplier_id = ?`, rfqID, supplierID)
	if err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark submitted: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: rfq=%s supplier=%s", ErrNotFound, rfqID, supplierID)
	}
	return nil
}

// Stats implements Store.
func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	for _, q := range []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM rfqs", &st.RFQs},
		{"SELECT COUNT(*) FROM suppliers", &st.Suppliers},
		{"SELECT COUNT(*) FROM rfq_matches", &st.Matches},
		{"SELECT COUNT(*) FROM rfq_matches WHERE submitted = 1", &st.Submitted},
	} {
		if err := s.queryRow(ctx, q.sql).Scan(q.dest); err != nil {
			return Stats{}, fmt.Errorf("stats: %w", err)
		}
	}
	return st, nil
}
