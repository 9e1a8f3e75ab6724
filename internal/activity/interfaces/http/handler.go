package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	activityapp "catalysis-cloud/internal/activity/application"
	activity "catalysis-cloud/internal/activity/domain"
	activityexport "catalysis-cloud/internal/activity/interfaces"
	"catalysis-cloud/internal/audit"
	"catalysis-cloud/internal/auth"
	"catalysis-cloud/internal/observability/metrics"
	presets "catalysis-cloud/internal/presets/domain"
	recording "catalysis-cloud/internal/recording/domain"
)

// ProtocolPresetReader resolves stored protocol presets by name.
type ProtocolPresetReader interface {
	Get(ctx context.Context, tenantID, name string) (*presets.ProtocolPreset, error)
}

// CalibrationPresetReader resolves stored calibration presets by name.
type CalibrationPresetReader interface {
	Get(ctx context.Context, tenantID, name string) (*presets.CalibrationPreset, error)
}

// Handler provides analysis HTTP endpoints.
type Handler struct {
	service          *activityapp.AnalysisService
	protocols        ProtocolPresetReader
	calibrations     CalibrationPresetReader
	recordingChecker auth.RecordingTenantChecker
	auditLogger      audit.Logger
	defaultTenant    string
}

// NewHandler constructs a handler. Preset readers and audit logger are
// optional; without readers only inline settings are accepted.
func NewHandler(service *activityapp.AnalysisService, protocols ProtocolPresetReader, calibrations CalibrationPresetReader, recordingChecker auth.RecordingTenantChecker, auditLogger audit.Logger, defaultTenant string) (*Handler, error) {
	if service == nil {
		return nil, errors.New("analysis handler: nil service")
	}
	return &Handler{
		service:          service,
		protocols:        protocols,
		calibrations:     calibrations,
		recordingChecker: recordingChecker,
		auditLogger:      auditLogger,
		defaultTenant:    defaultTenant,
	}, nil
}

// ServeHTTP handles /api/v1/analyses and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/analyses":
		switch r.Method {
		case http.MethodPost:
			h.handleAnalyze(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case r.URL.Path == "/api/v1/analyses/compare":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleCompare(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/analyses/"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSubroute(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// StepRequest is one temperature step in API form. Times arrive in
// minutes to match the instrument UI.
type StepRequest struct {
	Temperature float64 `json:"temperature"`
	HoldTimeMin float64 `json:"hold_time_min"`
	ReactorID   int     `json:"reactor_id"`
}

// ProtocolRequest is an inline protocol in API form.
type ProtocolRequest struct {
	Name            string        `json:"name"`
	Steps           []StepRequest `json:"steps"`
	RampTimeMin     float64       `json:"ramp_time_min"`
	AnalysisTimeMin float64       `json:"analysis_time_min"`
	Mode            string        `json:"mode"`
	NumReactors     int           `json:"num_reactors"`
}

// CalibrationRequest is an inline calibration in API form.
type CalibrationRequest struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// AnalyzeRequest is the POST /api/v1/analyses body. Protocol and
// calibration come either inline or as preset names; inline wins when
// both are present.
type AnalyzeRequest struct {
	RecordingID       string              `json:"recording_id"`
	Protocol          *ProtocolRequest    `json:"protocol,omitempty"`
	ProtocolPreset    string              `json:"protocol_preset,omitempty"`
	Calibration       *CalibrationRequest `json:"calibration,omitempty"`
	CalibrationPreset string              `json:"calibration_preset,omitempty"`
	AutoIntercept     bool                `json:"auto_intercept"`
	Targets           []float64           `json:"targets,omitempty"`
	Model             string              `json:"model,omitempty"`
}

// CompareRequest is the POST /api/v1/analyses/compare body.
type CompareRequest struct {
	RecordingIDs      []string            `json:"recording_ids"`
	SampleNames       map[string]string   `json:"sample_names,omitempty"`
	Protocol          *ProtocolRequest    `json:"protocol,omitempty"`
	ProtocolPreset    string              `json:"protocol_preset,omitempty"`
	Calibration       *CalibrationRequest `json:"calibration,omitempty"`
	CalibrationPreset string              `json:"calibration_preset,omitempty"`
	AutoIntercept     bool                `json:"auto_intercept"`
	Targets           []float64           `json:"targets,omitempty"`
	Model             string              `json:"model,omitempty"`
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if req.RecordingID == "" {
		http.Error(w, "recording_id is required", http.StatusBadRequest)
		return
	}

	tenantID := h.tenant(r)
	if err := h.ensureRecordingTenant(r, tenantID, req.RecordingID); err != nil {
		respondTenantError(w, err)
		return
	}
	protocol, err := h.resolveProtocol(r.Context(), tenantID, req.Protocol, req.ProtocolPreset)
	if err != nil {
		respondResolveError(w, err)
		return
	}
	calibration, err := h.resolveCalibration(r.Context(), tenantID, req.Calibration, req.CalibrationPreset)
	if err != nil {
		respondResolveError(w, err)
		return
	}

	report, err := h.service.Analyze(r.Context(), activityapp.AnalyzeCommand{
		TenantID:      tenantID,
		RecordingID:   req.RecordingID,
		Protocol:      protocol,
		Calibration:   calibration,
		AutoIntercept: req.AutoIntercept,
		Targets:       req.Targets,
		Model:         activity.Model(req.Model),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(report)

	h.logAudit(r, tenantID, "analysis.run", "analysis", report.ID, map[string]any{
		"recording_id": report.RecordingID,
		"model":        string(report.Model),
	})
}

func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if len(req.RecordingIDs) < 2 {
		http.Error(w, "at least two recording_ids required", http.StatusBadRequest)
		return
	}

	tenantID := h.tenant(r)
	for _, recordingID := range req.RecordingIDs {
		if err := h.ensureRecordingTenant(r, tenantID, recordingID); err != nil {
			respondTenantError(w, err)
			return
		}
	}
	protocol, err := h.resolveProtocol(r.Context(), tenantID, req.Protocol, req.ProtocolPreset)
	if err != nil {
		respondResolveError(w, err)
		return
	}
	calibration, err := h.resolveCalibration(r.Context(), tenantID, req.Calibration, req.CalibrationPreset)
	if err != nil {
		respondResolveError(w, err)
		return
	}

	out, err := h.service.Compare(r.Context(), activityapp.CompareCommand{
		TenantID:      tenantID,
		RecordingIDs:  req.RecordingIDs,
		SampleNames:   req.SampleNames,
		Protocol:      protocol,
		Calibration:   calibration,
		AutoIntercept: req.AutoIntercept,
		Targets:       req.Targets,
		Model:         activity.Model(req.Model),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)

	h.logAudit(r, tenantID, "analysis.compare", "analysis", "", map[string]any{
		"recording_ids": req.RecordingIDs,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	recordingID := r.URL.Query().Get("recording_id")
	if recordingID == "" {
		http.Error(w, "recording_id is required", http.StatusBadRequest)
		return
	}
	tenantID := h.tenant(r)
	if err := h.ensureRecordingTenant(r, tenantID, recordingID); err != nil {
		respondTenantError(w, err)
		return
	}
	list, err := h.service.ListByRecording(r.Context(), tenantID, recordingID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (h *Handler) handleSubroute(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/analyses/")
	id, export, hasExport := strings.Cut(rest, "/")
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	report, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	tenantID := h.tenant(r)
	if tenantID != "" && report.TenantID != "" && report.TenantID != tenantID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if !hasExport {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
		return
	}
	h.handleExport(w, r, report, export)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, report *activityapp.AnalysisReport, export string) {
	started := time.Now()
	var (
		body        []byte
		contentType string
		err         error
	)
	switch export {
	case "export.xlsx":
		body, err = activityexport.BuildReportXLSX(report)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "export.pdf":
		body, err = activityexport.BuildReportPDF(report)
		contentType = "application/pdf"
	case "export.csv":
		body, err = activityexport.BuildReportCSV(report)
		contentType = "text/csv"
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	format := strings.TrimPrefix(export, "export.")
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(started))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport(format, metrics.ResultSuccess, time.Since(started))
	filename := fmt.Sprintf("%s_%s", report.SampleName, format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(body)

	h.logAudit(r, h.tenant(r), "analysis.export", "analysis", report.ID, map[string]any{
		"format": format,
	})
}

func (h *Handler) resolveProtocol(ctx context.Context, tenantID string, inline *ProtocolRequest, presetName string) (activity.Protocol, error) {
	if inline != nil {
		return inline.toDomain(), nil
	}
	if presetName != "" {
		if h.protocols == nil {
			return activity.Protocol{}, errPresetsUnavailable
		}
		preset, err := h.protocols.Get(ctx, tenantID, presetName)
		if err != nil {
			return activity.Protocol{}, err
		}
		return preset.Protocol, nil
	}
	return activity.DefaultProtocol(), nil
}

func (h *Handler) resolveCalibration(ctx context.Context, tenantID string, inline *CalibrationRequest, presetName string) (activity.Curve, error) {
	if inline != nil {
		return activity.Curve{Slope: inline.Slope, Intercept: inline.Intercept}, nil
	}
	if presetName != "" {
		if h.calibrations == nil {
			return activity.Curve{}, errPresetsUnavailable
		}
		preset, err := h.calibrations.Get(ctx, tenantID, presetName)
		if err != nil {
			return activity.Curve{}, err
		}
		return preset.Curve(), nil
	}
	return activity.DefaultCurve(), nil
}

func (p ProtocolRequest) toDomain() activity.Protocol {
	steps := make([]activity.TemperatureStep, len(p.Steps))
	for i, step := range p.Steps {
		steps[i] = activity.TemperatureStep{
			Temperature: step.Temperature,
			HoldTime:    minutes(step.HoldTimeMin),
			ReactorID:   step.ReactorID,
		}
	}
	return activity.Protocol{
		Name:         p.Name,
		Steps:        steps,
		RampTime:     minutes(p.RampTimeMin),
		AnalysisTime: minutes(p.AnalysisTimeMin),
		Mode:         activity.Mode(p.Mode),
		NumReactors:  p.NumReactors,
	}
}

func minutes(v float64) time.Duration {
	return time.Duration(v * float64(time.Minute))
}

func (h *Handler) tenant(r *http.Request) string {
	if tenantID := auth.TenantIDFromContext(r.Context()); tenantID != "" {
		return tenantID
	}
	return h.defaultTenant
}

func (h *Handler) logAudit(r *http.Request, tenantID, action, resourceType, resourceID string, metadata map[string]any) {
	if h.auditLogger == nil || tenantID == "" {
		return
	}
	meta, _ := json.Marshal(metadata)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func (h *Handler) ensureRecordingTenant(r *http.Request, tenantID, recordingID string) error {
	if h.recordingChecker == nil || tenantID == "" || recordingID == "" {
		return nil
	}
	return h.recordingChecker.EnsureRecordingTenant(r.Context(), tenantID, recordingID)
}

func respondTenantError(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrTenantMismatch) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if errors.Is(err, auth.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "tenant check failed", http.StatusInternalServerError)
}

var errPresetsUnavailable = errors.New("analysis handler: preset storage unavailable")

func respondResolveError(w http.ResponseWriter, err error) {
	if errors.Is(err, presets.ErrNotFound) {
		http.Error(w, "preset not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, errPresetsUnavailable) {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, activityapp.ErrReportNotFound), errors.Is(err, recording.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case isBadRequest(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func isBadRequest(err error) bool {
	for _, candidate := range []error{
		activity.ErrEmptySteps,
		activity.ErrInvalidHoldTime,
		activity.ErrInvalidRampTime,
		activity.ErrInvalidAnalysisTime,
		activity.ErrInvalidMode,
		activity.ErrInvalidReactorID,
		activity.ErrEmptySeries,
		activity.ErrTimeNotSorted,
		activity.ErrNoSamples,
	} {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}
