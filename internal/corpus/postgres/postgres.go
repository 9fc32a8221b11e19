// Package postgres reads the reference corpus from a pgvector-backed table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/derm-match/internal/corpus"
	"github.com/kozaktomas/derm-match/internal/index"
	"github.com/kozaktomas/derm-match/internal/taxonomy"
)

// Source reads case records from the cases table.
type Source struct {
	db *sql.DB
}

// New creates a connection pool and verifies connectivity.
func New(databaseURL string) (*Source, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	// Verify connection.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Source{db: db}, nil
}

func (s *Source) Describe() string {
	return "postgres"
}

// Close closes the connection pool.
func (s *Source) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Migrate creates the pgvector extension and the cases table.
func (s *Source) Migrate(ctx context.Context, dim int) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS cases (
			record_id        VARCHAR(255) PRIMARY KEY,
			embedding        vector(%d) NOT NULL,
			age_bucket       VARCHAR(32) NOT NULL DEFAULT 'unknown',
			ethnicity_bucket VARCHAR(32) NOT NULL DEFAULT 'unknown',
			quality          DOUBLE PRECISION NOT NULL DEFAULT 0,
			labels           TEXT[] NOT NULL DEFAULT '{}',
			image_ref        TEXT NOT NULL DEFAULT '',
			created_at       TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, dim)
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create cases table: %w", err)
	}

	return nil
}

// CreateVectorIndex creates the IVFFlat index for in-database similarity
// search. Callers run it once the table has data.
func (s *Source) CreateVectorIndex(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS cases_embedding_idx
		ON cases USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	return nil
}

// Save stores a case record (upsert).
func (s *Source) Save(ctx context.Context, record index.CaseRecord) error {
	query := `
		INSERT INTO cases (record_id, embedding, age_bucket, ethnicity_bucket, quality, labels, image_ref)
		VALUES ($1, $2::vector, $3, $4, $5, $6, $7)
		ON CONFLICT (record_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			age_bucket = EXCLUDED.age_bucket,
			ethnicity_bucket = EXCLUDED.ethnicity_bucket,
			quality = EXCLUDED.quality,
			labels = EXCLUDED.labels,
			image_ref = EXCLUDED.image_ref,
			created_at = NOW()
	`

	vec := pgvector.NewVector(record.Vector)
	_, err := s.db.ExecContext(ctx, query,
		record.ID, vec, string(record.Age), string(record.Ethnicity),
		record.Quality, pq.Array(record.Labels), record.ImageRef)
	if err != nil {
		return fmt.Errorf("save case: %w", err)
	}
	return nil
}

// Load reads every case row.
func (s *Source) Load(ctx context.Context) ([]index.CaseRecord, error) {
	query := `
		SELECT record_id, embedding, age_bucket, ethnicity_bucket, quality,
		       COALESCE(labels, '{}'), COALESCE(image_ref, '')
		FROM cases
		ORDER BY record_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var records []index.CaseRecord
	for rows.Next() {
		var r index.CaseRecord
		var vec pgvector.Vector
		var age, ethnicity string

		if err := rows.Scan(&r.ID, &vec, &age, &ethnicity, &r.Quality, pq.Array(&r.Labels), &r.ImageRef); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}

		r.Vector = vec.Slice()
		r.Age = taxonomy.AgeBucket(age)
		r.Ethnicity = taxonomy.EthnicityBucket(ethnicity)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}

	return corpus.Sanitize(records), nil
}

// Count returns the number of cases in the table.
func (s *Source) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cases").Scan(&count); err != nil {
		return 0, fmt.Errorf("count cases: %w", err)
	}
	return count, nil
}
