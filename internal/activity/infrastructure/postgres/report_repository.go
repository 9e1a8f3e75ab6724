package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"catalysis-cloud/internal/activity/application"
)

const defaultReportsTable = "analysis_reports"

// ReportRepository is a Postgres implementation for analysis reports.
// The report body is one JSONB document; query columns are duplicated
// for filtering.
type ReportRepository struct {
	db    *sql.DB
	table string
}

// NewReportRepository constructs a repository.
func NewReportRepository(db *sql.DB, opts ...ReportOption) *ReportRepository {
	repo := &ReportRepository{db: db, table: defaultReportsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ReportOption configures the repository.
type ReportOption func(*ReportRepository)

// WithReportsTable overrides the table name.
func WithReportsTable(table string) ReportOption {
	return func(repo *ReportRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Save upserts a report.
func (r *ReportRepository) Save(ctx context.Context, report *application.AnalysisReport) error {
	if r == nil || r.db == nil {
		return errors.New("report repo: nil db")
	}
	if report == nil {
		return errors.New("report repo: nil report")
	}
	if report.ID == "" {
		return errors.New("report repo: empty id")
	}

	body, err := json.Marshal(report)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	tenant_id,
	recording_id,
	sample_name,
	body,
	created_at
) VALUES (
	$1, $2, $3, $4, $5, $6
)
ON CONFLICT (id)
DO UPDATE SET body = EXCLUDED.body`, r.table)

	createdAt := report.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, query, report.ID, report.TenantID, report.RecordingID, report.SampleName, body, createdAt)
	return err
}

// Get loads a report by id.
func (r *ReportRepository) Get(ctx context.Context, id string) (*application.AnalysisReport, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("report repo: nil db")
	}
	if id == "" {
		return nil, errors.New("report repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT body
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var body []byte
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, application.ErrReportNotFound
		}
		return nil, err
	}
	var report application.AnalysisReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ListByRecording returns reports for a recording, newest first.
func (r *ReportRepository) ListByRecording(ctx context.Context, tenantID, recordingID string) ([]application.AnalysisReport, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("report repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT body
FROM %s
WHERE tenant_id = $1 AND recording_id = $2
ORDER BY created_at DESC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID, recordingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []application.AnalysisReport
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var report application.AnalysisReport
		if err := json.Unmarshal(body, &report); err != nil {
			return nil, err
		}
		result = append(result, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
