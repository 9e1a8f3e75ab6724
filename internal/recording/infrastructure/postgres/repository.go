package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	recording "catalysis-cloud/internal/recording/domain"
)

const defaultRecordingsTable = "recordings"

// RecordingRepository is a Postgres implementation for recordings. The
// trace samples are stored as one JSONB document per recording; they are
// only ever read back whole.
type RecordingRepository struct {
	db    *sql.DB
	table string
}

// NewRecordingRepository constructs a repository.
func NewRecordingRepository(db *sql.DB, opts ...RecordingOption) *RecordingRepository {
	repo := &RecordingRepository{db: db, table: defaultRecordingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RecordingOption configures the repository.
type RecordingOption func(*RecordingRepository)

// WithRecordingsTable overrides the table name.
func WithRecordingsTable(table string) RecordingOption {
	return func(repo *RecordingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Save upserts a recording.
func (r *RecordingRepository) Save(ctx context.Context, rec *recording.Recording) error {
	if r == nil || r.db == nil {
		return errors.New("recording repo: nil db")
	}
	if rec == nil {
		return errors.New("recording repo: nil recording")
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	samples, err := json.Marshal(rec.Samples)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	tenant_id,
	sample_name,
	source,
	samples
) VALUES (
	$1, $2, $3, $4, $5
)
ON CONFLICT (id)
DO UPDATE SET
	tenant_id = EXCLUDED.tenant_id,
	sample_name = EXCLUDED.sample_name,
	source = EXCLUDED.source,
	samples = EXCLUDED.samples`, r.table)

	if _, err := r.db.ExecContext(ctx, query, rec.ID, rec.TenantID, rec.SampleName, rec.Source, samples); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Get loads a recording by id.
func (r *RecordingRepository) Get(ctx context.Context, id string) (*recording.Recording, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("recording repo: nil db")
	}
	if id == "" {
		return nil, recording.ErrEmptyID
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, sample_name, source, samples, created_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var rec recording.Recording
	var samples []byte
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&rec.TenantID,
		&rec.SampleName,
		&rec.Source,
		&samples,
		&rec.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, recording.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(samples, &rec.Samples); err != nil {
		return nil, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

// List returns recording summaries for a tenant, newest first. Samples
// are not loaded.
func (r *RecordingRepository) List(ctx context.Context, tenantID string, limit int) ([]recording.Recording, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("recording repo: nil db")
	}
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, sample_name, source, created_at
FROM %s
WHERE tenant_id = $1
ORDER BY created_at DESC
LIMIT $2`, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []recording.Recording
	for rows.Next() {
		var rec recording.Recording
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.SampleName, &rec.Source, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
