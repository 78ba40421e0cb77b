// Package store archives exported publication tables in PostgreSQL.
//
// Each export becomes one export_runs row plus one export_rows row per
// record, with the record stored as jsonb. Rows are bulk loaded with the
// COPY protocol.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/pubsum/internal/catalog"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

// schema is applied statement by statement by Migrate.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS export_runs (
		id          uuid PRIMARY KEY,
		output_path text NOT NULL,
		sheet_name  text NOT NULL,
		row_count   bigint NOT NULL,
		columns     text[] NOT NULL,
		created_at  timestamptz NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS export_rows (
		run_id   uuid NOT NULL REFERENCES export_runs(id) ON DELETE CASCADE,
		position integer NOT NULL,
		data     jsonb NOT NULL,
		PRIMARY KEY (run_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS export_runs_created_at_idx ON export_runs (created_at DESC)`,
}

// exportRowColumns must match the order of values built in Archive.
var exportRowColumns = []string{"run_id", "position", "data"}

// Run describes one archived export.
type Run struct {
	ID        uuid.UUID `json:"id"`
	Path      string    `json:"path"`
	Sheet     string    `json:"sheet"`
	RowCount  int64     `json:"rowCount"`
	Columns   []string  `json:"columns"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store writes and lists archived exports.
type Store struct {
	db    DBTX
	now   func() time.Time
	newID func() uuid.UUID
}

// New creates a store over db.
func New(db DBTX) *Store {
	return &Store{
		db:    db,
		now:   time.Now,
		newID: uuid.New,
	}
}

// Migrate creates the archive tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Archive records t as exported to path under sheet.
// Implements catalog.Archiver.
func (s *Store) Archive(ctx context.Context, path, sheet string, t *catalog.Table) error {
	id := s.newID()

	_, err := s.db.Exec(ctx,
		`INSERT INTO export_runs (id, output_path, sheet_name, row_count, columns, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, path, sheet, int64(t.Len()), t.Columns(), s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert export run: %w", err)
	}

	if t.Len() == 0 {
		return nil
	}

	rows := make([][]any, t.Len())
	for i := range rows {
		rows[i] = []any{id, int32(i), t.Row(i)}
	}

	n, err := s.db.CopyFrom(ctx, pgx.Identifier{"export_rows"}, exportRowColumns, pgx.CopyFromRows(rows))
	if err != nil {
		// Drop the run so a partial archive is never listed.
		if _, delErr := s.db.Exec(ctx, `DELETE FROM export_runs WHERE id = $1`, id); delErr != nil {
			return fmt.Errorf("copy export rows: %w (cleanup: %v)", err, delErr)
		}
		return fmt.Errorf("copy export rows: %w", err)
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("copy export rows: wrote %d of %d rows", n, len(rows))
	}
	return nil
}

// Recent lists the most recent archived exports, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, output_path, sheet_name, row_count, columns, created_at
		 FROM export_runs
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query export runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Path, &r.Sheet, &r.RowCount, &r.Columns, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan export run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate export runs: %w", err)
	}
	return runs, nil
}
