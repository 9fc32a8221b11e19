// Package mariadb reads the reference corpus from the legacy clinical
// archive database. Vectors live in blob columns as JSON arrays, some rows
// in the older wrapped list-of-lists form.
package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/derm-match/internal/corpus"
	"github.com/kozaktomas/derm-match/internal/index"
	"github.com/kozaktomas/derm-match/internal/taxonomy"
)

// Source reads case records from the archive cases table.
type Source struct {
	db *sql.DB
}

// New creates a connection pool for the archive DSN.
func New(dsn string) (*Source, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Source{db: db}, nil
}

func (s *Source) Describe() string {
	return "mariadb"
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

// Load reads every archive row.
func (s *Source) Load(ctx context.Context) ([]index.CaseRecord, error) {
	query := `
		SELECT record_id, embedding_json, age_bucket, ethnicity_bucket,
		       quality, COALESCE(labels_json, ''), COALESCE(image_ref, '')
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
		var blob, labelsBlob []byte
		var age, ethnicity string

		if err := rows.Scan(&r.ID, &blob, &age, &ethnicity, &r.Quality, &labelsBlob, &r.ImageRef); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}

		vector, err := decodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("record %q: %w", r.ID, err)
		}

		r.Vector = vector
		r.Labels = decodeLabels(labelsBlob)
		r.Age = taxonomy.AgeBucket(age)
		r.Ethnicity = taxonomy.EthnicityBucket(ethnicity)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}

	return corpus.Sanitize(records), nil
}

// decodeEmbedding accepts both the flat [e1, e2, ...] form and the wrapped
// [[e1, e2, ...]] list-of-lists form found in older archive rows.
func decodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty embedding blob")
	}

	var flat []float32
	if err := json.Unmarshal(blob, &flat); err == nil {
		if len(flat) == 0 {
			return nil, errors.New("empty embedding")
		}
		return flat, nil
	}

	var wrapped [][]float32
	if err := json.Unmarshal(blob, &wrapped); err == nil {
		if len(wrapped) == 0 || len(wrapped[0]) == 0 {
			return nil, errors.New("empty embedding")
		}
		return wrapped[0], nil
	}

	return nil, errors.New("embedding blob is not a JSON float array")
}

// decodeLabels reads the condition labels column, a JSON string array in
// newer rows and a bare label string in the oldest ones. An empty column
// means the record carries no labels.
func decodeLabels(blob []byte) []string {
	if len(blob) == 0 {
		return nil
	}

	var labels []string
	if err := json.Unmarshal(blob, &labels); err == nil {
		return labels
	}

	var single string
	if err := json.Unmarshal(blob, &single); err == nil {
		if single == "" {
			return nil
		}
		return []string{single}
	}

	return []string{string(blob)}
}
