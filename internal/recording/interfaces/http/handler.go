package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"catalysis-cloud/internal/auth"
	"catalysis-cloud/internal/eventing"
	"catalysis-cloud/internal/observability/metrics"
	recording "catalysis-cloud/internal/recording/domain"
	"catalysis-cloud/internal/recording/interfaces/asc"
)

// RecordingRepository persists recordings.
type RecordingRepository interface {
	Save(ctx context.Context, rec *recording.Recording) error
	List(ctx context.Context, tenantID string, limit int) ([]recording.Recording, error)
}

// RecordingIngested is published after a trace upload is stored.
type RecordingIngested struct {
	RecordingID string    `json:"recording_id"`
	TenantID    string    `json:"tenant_id"`
	SampleName  string    `json:"sample_name"`
	Samples     int       `json:"samples"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// IngestHandler accepts raw .asc uploads on POST and lists stored
// recordings on GET.
type IngestHandler struct {
	repo      RecordingRepository
	publisher EventPublisher
	tenantID  string
	logger    *log.Logger
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(repo RecordingRepository, publisher EventPublisher, tenantID string, logger *log.Logger) (*IngestHandler, error) {
	if repo == nil {
		return nil, errors.New("recording ingest: nil repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{repo: repo, publisher: publisher, tenantID: tenantID, logger: logger}, nil
}

// ServeHTTP dispatches by method.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.upload(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *IngestHandler) upload(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	defer r.Body.Close()

	samples, err := asc.Parse(r.Body)
	if err != nil {
		h.logger.Printf("recording ingest: parse error: %v", err)
		metrics.IncIngestError("parse")
		metrics.ObserveIngest(metrics.ResultError, time.Since(started))
		http.Error(w, "no parseable data rows", http.StatusBadRequest)
		return
	}

	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		tenantID = h.tenantID
	}

	rec := &recording.Recording{
		ID:         "rec-" + eventing.NewEventID(),
		TenantID:   tenantID,
		SampleName: r.URL.Query().Get("sample_name"),
		Source:     r.URL.Query().Get("source"),
		Samples:    samples,
		CreatedAt:  time.Now().UTC(),
	}
	if rec.SampleName == "" {
		rec.SampleName = rec.ID
	}

	if err := rec.Validate(); err != nil {
		h.logger.Printf("recording ingest: invalid recording: %v", err)
		metrics.IncIngestError("validate")
		metrics.ObserveIngest(metrics.ResultError, time.Since(started))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.repo.Save(r.Context(), rec); err != nil {
		h.logger.Printf("recording ingest: save error: %v", err)
		metrics.IncIngestError("store")
		metrics.ObserveIngest(metrics.ResultError, time.Since(started))
		http.Error(w, "save error", http.StatusInternalServerError)
		return
	}

	if h.publisher != nil {
		event := RecordingIngested{
			RecordingID: rec.ID,
			TenantID:    rec.TenantID,
			SampleName:  rec.SampleName,
			Samples:     len(rec.Samples),
			OccurredAt:  rec.CreatedAt,
		}
		if err := h.publisher.Publish(r.Context(), event); err != nil {
			h.logger.Printf("recording ingest: publish error: %v", err)
		}
	}

	metrics.ObserveIngest(metrics.ResultSuccess, time.Since(started))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"recording_id": rec.ID,
		"sample_name":  rec.SampleName,
		"samples":      len(rec.Samples),
		"duration_sec": rec.Duration(),
	})
}

type recordingSummary struct {
	ID         string    `json:"id"`
	SampleName string    `json:"sample_name"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (h *IngestHandler) list(w http.ResponseWriter, r *http.Request) {
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		tenantID = h.tenantID
	}

	records, err := h.repo.List(r.Context(), tenantID, 100)
	if err != nil {
		h.logger.Printf("recording list: %v", err)
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}

	summaries := make([]recordingSummary, 0, len(records))
	for _, rec := range records {
		summaries = append(summaries, recordingSummary{
			ID:         rec.ID,
			SampleName: rec.SampleName,
			Source:     rec.Source,
			CreatedAt:  rec.CreatedAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summaries)
}

// RecordingReader loads single recordings.
type RecordingReader interface {
	Get(ctx context.Context, id string) (*recording.Recording, error)
}

// DetailHandler serves single-recording metadata on
// GET /api/v1/recordings/{id}.
type DetailHandler struct {
	reader        RecordingReader
	defaultTenant string
	logger        *log.Logger
}

// NewDetailHandler constructs a detail handler.
func NewDetailHandler(reader RecordingReader, defaultTenant string, logger *log.Logger) (*DetailHandler, error) {
	if reader == nil {
		return nil, errors.New("recording detail: nil reader")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &DetailHandler{reader: reader, defaultTenant: defaultTenant, logger: logger}, nil
}

type recordingDetail struct {
	ID          string    `json:"id"`
	SampleName  string    `json:"sample_name"`
	Source      string    `json:"source,omitempty"`
	Samples     int       `json:"samples"`
	DurationSec float64   `json:"duration_sec"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *DetailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/recordings/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "recording id required", http.StatusBadRequest)
		return
	}

	rec, err := h.reader.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, recording.ErrNotFound) {
			http.Error(w, "recording not found", http.StatusNotFound)
			return
		}
		h.logger.Printf("recording detail: %v", err)
		http.Error(w, "load error", http.StatusInternalServerError)
		return
	}

	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		tenantID = h.defaultTenant
	}
	if rec.TenantID != tenantID {
		http.Error(w, "recording belongs to another tenant", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(recordingDetail{
		ID:          rec.ID,
		SampleName:  rec.SampleName,
		Source:      rec.Source,
		Samples:     len(rec.Samples),
		DurationSec: rec.Duration(),
		CreatedAt:   rec.CreatedAt,
	})
}
