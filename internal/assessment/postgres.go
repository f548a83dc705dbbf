package assessment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dam-stability/internal/dam"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS assessments (
	id             UUID PRIMARY KEY,
	created_at     TIMESTAMPTZ NOT NULL,
	source         TEXT NOT NULL,
	evaluation     JSONB NOT NULL,
	narrative      TEXT NOT NULL DEFAULT '',
	analysis_error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS assessments_created_at_idx ON assessments (created_at DESC);
`

// OpenPostgres opens and pings a PostgreSQL pool. Connection strings without
// an sslmode get sslmode=require.
func OpenPostgres(ctx context.Context, connStr string) (*sql.DB, error) {
	if !strings.Contains(connStr, "sslmode=") {
		switch {
		case strings.HasPrefix(connStr, "postgres://"), strings.HasPrefix(connStr, "postgresql://"):
			sep := "?"
			if strings.Contains(connStr, "?") {
				sep = "&"
			}
			connStr += sep + "sslmode=require"
		default:
			connStr += " sslmode=require"
		}
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// PostgresRepository stores records in the assessments table.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the assessments table when it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create assessments schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Save(ctx context.Context, rec Record) error {
	evaluation, err := json.Marshal(rec.Evaluation)
	if err != nil {
		return fmt.Errorf("encode evaluation: %w", err)
	}

	query := `INSERT INTO assessments (id, created_at, source, evaluation, narrative, analysis_error)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			evaluation = EXCLUDED.evaluation,
			narrative = EXCLUDED.narrative,
			analysis_error = EXCLUDED.analysis_error`

	_, err = r.db.ExecContext(ctx, query, rec.ID, rec.CreatedAt, string(rec.Source), evaluation, rec.Narrative, rec.AnalysisError)
	if err != nil {
		return fmt.Errorf("insert assessment %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns ErrNotFound for ids that are not UUIDs without querying, since
// the id column cannot hold them.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Record{}, ErrNotFound
	}

	query := `SELECT id, created_at, source, evaluation, narrative, analysis_error
		FROM assessments WHERE id = $1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("select assessment %s: %w", id, err)
	}
	return rec, nil
}

func (r *PostgresRepository) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT id, created_at, source, evaluation, narrative, analysis_error
		FROM assessments ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec        Record
		source     string
		evaluation []byte
	)
	if err := s.Scan(&rec.ID, &rec.CreatedAt, &source, &evaluation, &rec.Narrative, &rec.AnalysisError); err != nil {
		return Record{}, err
	}
	rec.Source = Source(source)

	var ev dam.Evaluation
	if err := json.Unmarshal(evaluation, &ev); err != nil {
		return Record{}, fmt.Errorf("decode evaluation: %w", err)
	}
	rec.Evaluation = ev
	return rec, nil
}
