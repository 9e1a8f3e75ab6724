package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"catalysis-cloud/internal/activity/application"
)

// ReportRepository is an in-memory report store for demos/tests.
type ReportRepository struct {
	mu   sync.RWMutex
	data map[string]application.AnalysisReport
}

// NewReportRepository constructs a repository.
func NewReportRepository() *ReportRepository {
	return &ReportRepository{data: make(map[string]application.AnalysisReport)}
}

// Save stores a copy of the report.
func (r *ReportRepository) Save(ctx context.Context, report *application.AnalysisReport) error {
	_ = ctx
	if report == nil {
		return errors.New("memory report repo: nil report")
	}
	if report.ID == "" {
		return errors.New("memory report repo: empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[report.ID] = *report
	return nil
}

// Get loads a report by id.
func (r *ReportRepository) Get(ctx context.Context, id string) (*application.AnalysisReport, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.data[id]
	if !ok {
		return nil, application.ErrReportNotFound
	}
	return &report, nil
}

// ListByRecording returns reports for a recording, newest first.
func (r *ReportRepository) ListByRecording(ctx context.Context, tenantID, recordingID string) ([]application.AnalysisReport, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []application.AnalysisReport
	for _, report := range r.data {
		if report.RecordingID != recordingID {
			continue
		}
		if tenantID != "" && report.TenantID != tenantID {
			continue
		}
		result = append(result, report)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}
