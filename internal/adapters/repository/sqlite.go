package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/spendseg/internal/domain/segmentation"
	"github.com/okian/spendseg/pkg/metrics"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists analyses in a SQLite database. Results are stored as
// JSON documents.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens dbPath, creating its directory, and runs migrations.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serializing through one connection
	// avoids SQLITE_BUSY under the worker pool.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, now: time.Now}
	metrics.UpdateStoreResults(s.Count(ctx))
	return s, nil
}

// Create implements Store.Create.
func (s *SQLiteStore) Create(ctx context.Context, e Entry) error {
	defer observe("create", time.Now())

	now := s.now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.Status == "" {
		e.Status = StatusPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, request_id, status, error, records, k, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RequestID, string(e.Status), e.Error, e.Records, e.K,
		e.CreatedAt.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		metrics.RecordStoreError("create")
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, e.ID)
		}
		return fmt.Errorf("insert analysis: %w", err)
	}
	metrics.UpdateStoreResults(s.Count(ctx))
	return nil
}

// Start implements Store.Start.
func (s *SQLiteStore) Start(ctx context.Context, id string) error {
	return s.exec(ctx, "start", id,
		`UPDATE analyses SET status = ?, updated_at = ? WHERE id = ?`,
		string(StatusRunning), s.now().UTC().UnixNano(), id,
	)
}

// Complete implements Store.Complete.
func (s *SQLiteStore) Complete(ctx context.Context, id string, res *segmentation.Result) error {
	if res == nil {
		return ErrNoResult
	}
	body, err := json.Marshal(res)
	if err != nil {
		metrics.RecordStoreError("complete")
		return fmt.Errorf("encode result: %w", err)
	}
	return s.exec(ctx, "complete", id,
		`UPDATE analyses SET status = ?, error = '', records = ?, k = ?, result = ?, updated_at = ? WHERE id = ?`,
		string(StatusCompleted), res.Records, res.Metadata.K, string(body), s.now().UTC().UnixNano(), id,
	)
}

// Fail implements Store.Fail.
func (s *SQLiteStore) Fail(ctx context.Context, id string, cause string) error {
	return s.exec(ctx, "fail", id,
		`UPDATE analyses SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(StatusFailed), cause, s.now().UTC().UnixNano(), id,
	)
}

func (s *SQLiteStore) exec(ctx context.Context, op, id, query string, args ...any) error {
	defer observe(op, time.Now())

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		metrics.RecordStoreError(op)
		return fmt.Errorf("%s analysis: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s analysis: %w", op, err)
	}
	if n == 0 {
		metrics.RecordStoreError(op)
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Get implements Store.Get.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Entry, error) {
	defer observe("get", time.Now())

	row := s.db.QueryRowContext(ctx,
		`SELECT id, request_id, status, error, records, k, result, created_at, updated_at
		 FROM analyses WHERE id = ?`, id)

	var (
		e                Entry
		status           string
		result           sql.NullString
		created, updated int64
	)
	err := row.Scan(&e.ID, &e.RequestID, &status, &e.Error, &e.Records, &e.K, &result, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		metrics.RecordStoreError("get")
		return Entry{}, fmt.Errorf("get analysis: %w", err)
	}
	e.Status = Status(status)
	e.CreatedAt = time.Unix(0, created).UTC()
	e.UpdatedAt = time.Unix(0, updated).UTC()

	if result.Valid && result.String != "" {
		var res segmentation.Result
		if err := json.Unmarshal([]byte(result.String), &res); err != nil {
			metrics.RecordStoreError("get")
			return Entry{}, fmt.Errorf("decode result %s: %w", id, err)
		}
		e.Result = &res
	}
	return e, nil
}

// List implements Store.List.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Entry, error) {
	defer observe("list", time.Now())

	if limit < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, status, error, records, k, created_at, updated_at
		 FROM analyses ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		metrics.RecordStoreError("list")
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e                Entry
			status           string
			created, updated int64
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &status, &e.Error, &e.Records, &e.K, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		e.Status = Status(status)
		e.CreatedAt = time.Unix(0, created).UTC()
		e.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return out, nil
}

// Count implements Store.Count. Errors count as an empty store.
func (s *SQLiteStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses`).Scan(&n); err != nil {
		metrics.RecordStoreError("count")
		return 0
	}
	return n
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// isUniqueViolation matches the driver's constraint message without
// depending on its error type.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
