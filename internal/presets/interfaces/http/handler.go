package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	activity "catalysis-cloud/internal/activity/domain"
	"catalysis-cloud/internal/audit"
	"catalysis-cloud/internal/auth"
	presets "catalysis-cloud/internal/presets/domain"
)

// ProtocolStore persists protocol presets.
type ProtocolStore interface {
	Save(ctx context.Context, preset *presets.ProtocolPreset) error
	Get(ctx context.Context, tenantID, name string) (*presets.ProtocolPreset, error)
	List(ctx context.Context, tenantID string) ([]presets.ProtocolPreset, error)
	Delete(ctx context.Context, tenantID, name string) error
}

// CalibrationStore persists calibration presets.
type CalibrationStore interface {
	Save(ctx context.Context, preset *presets.CalibrationPreset) error
	Get(ctx context.Context, tenantID, name string) (*presets.CalibrationPreset, error)
	List(ctx context.Context, tenantID string) ([]presets.CalibrationPreset, error)
	Delete(ctx context.Context, tenantID, name string) error
}

// Handler provides preset HTTP endpoints under /api/v1/protocols and
// /api/v1/calibrations.
type Handler struct {
	protocols     ProtocolStore
	calibrations  CalibrationStore
	auditLogger   audit.Logger
	defaultTenant string
}

// NewHandler constructs a handler.
func NewHandler(protocols ProtocolStore, calibrations CalibrationStore, auditLogger audit.Logger, defaultTenant string) (*Handler, error) {
	if protocols == nil {
		return nil, errors.New("presets handler: nil protocol store")
	}
	if calibrations == nil {
		return nil, errors.New("presets handler: nil calibration store")
	}
	return &Handler{
		protocols:     protocols,
		calibrations:  calibrations,
		auditLogger:   auditLogger,
		defaultTenant: defaultTenant,
	}, nil
}

// ServeHTTP routes preset requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/protocols":
		h.listProtocols(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/protocols/"):
		h.protocolItem(w, r, strings.TrimPrefix(r.URL.Path, "/api/v1/protocols/"))
	case r.URL.Path == "/api/v1/calibrations":
		h.listCalibrations(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/calibrations/"):
		h.calibrationItem(w, r, strings.TrimPrefix(r.URL.Path, "/api/v1/calibrations/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// StepDoc is one temperature step in API form.
type StepDoc struct {
	Temperature float64 `json:"temperature"`
	HoldTimeMin float64 `json:"hold_time_min"`
	ReactorID   int     `json:"reactor_id"`
}

// ProtocolDoc is a protocol preset in API form. Times are minutes.
type ProtocolDoc struct {
	Name            string    `json:"name"`
	Steps           []StepDoc `json:"steps"`
	RampTimeMin     float64   `json:"ramp_time_min"`
	AnalysisTimeMin float64   `json:"analysis_time_min"`
	Mode            string    `json:"mode"`
	NumReactors     int       `json:"num_reactors"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

// CalibrationDoc is a calibration preset in API form.
type CalibrationDoc struct {
	Name      string    `json:"name"`
	Slope     float64   `json:"slope"`
	Intercept float64   `json:"intercept"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func protocolDoc(p presets.ProtocolPreset) ProtocolDoc {
	steps := make([]StepDoc, len(p.Protocol.Steps))
	for i, step := range p.Protocol.Steps {
		steps[i] = StepDoc{
			Temperature: step.Temperature,
			HoldTimeMin: step.HoldTime.Minutes(),
			ReactorID:   step.ReactorID,
		}
	}
	return ProtocolDoc{
		Name:            p.Name,
		Steps:           steps,
		RampTimeMin:     p.Protocol.RampTime.Minutes(),
		AnalysisTimeMin: p.Protocol.AnalysisTime.Minutes(),
		Mode:            string(p.Protocol.Mode),
		NumReactors:     p.Protocol.NumReactors,
		UpdatedAt:       p.UpdatedAt,
	}
}

func (d ProtocolDoc) toPreset(tenantID, name string) presets.ProtocolPreset {
	steps := make([]activity.TemperatureStep, len(d.Steps))
	for i, step := range d.Steps {
		steps[i] = activity.TemperatureStep{
			Temperature: step.Temperature,
			HoldTime:    minutes(step.HoldTimeMin),
			ReactorID:   step.ReactorID,
		}
	}
	return presets.ProtocolPreset{
		Name:     name,
		TenantID: tenantID,
		Protocol: activity.Protocol{
			Name:         name,
			Steps:        steps,
			RampTime:     minutes(d.RampTimeMin),
			AnalysisTime: minutes(d.AnalysisTimeMin),
			Mode:         activity.Mode(d.Mode),
			NumReactors:  d.NumReactors,
		},
	}
}

func minutes(v float64) time.Duration {
	return time.Duration(v * float64(time.Minute))
}

func (h *Handler) listProtocols(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	list, err := h.protocols.List(r.Context(), h.tenant(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	docs := make([]ProtocolDoc, len(list))
	for i, preset := range list {
		docs[i] = protocolDoc(preset)
	}
	writeJSON(w, docs)
}

func (h *Handler) protocolItem(w http.ResponseWriter, r *http.Request, name string) {
	if name == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	tenantID := h.tenant(r)
	switch r.Method {
	case http.MethodGet:
		preset, err := h.protocols.Get(r.Context(), tenantID, name)
		if err != nil {
			respondPresetError(w, err)
			return
		}
		writeJSON(w, protocolDoc(*preset))
	case http.MethodPut:
		var doc ProtocolDoc
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()
		preset := doc.toPreset(tenantID, name)
		if err := preset.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.protocols.Save(r.Context(), &preset); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		h.logAudit(r, tenantID, "preset.protocol.save", "protocol_preset", name)
	case http.MethodDelete:
		if err := h.protocols.Delete(r.Context(), tenantID, name); err != nil {
			respondPresetError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		h.logAudit(r, tenantID, "preset.protocol.delete", "protocol_preset", name)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listCalibrations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	list, err := h.calibrations.List(r.Context(), h.tenant(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	docs := make([]CalibrationDoc, len(list))
	for i, preset := range list {
		docs[i] = CalibrationDoc{
			Name:      preset.Name,
			Slope:     preset.Slope,
			Intercept: preset.Intercept,
			UpdatedAt: preset.UpdatedAt,
		}
	}
	writeJSON(w, docs)
}

func (h *Handler) calibrationItem(w http.ResponseWriter, r *http.Request, name string) {
	if name == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	tenantID := h.tenant(r)
	switch r.Method {
	case http.MethodGet:
		preset, err := h.calibrations.Get(r.Context(), tenantID, name)
		if err != nil {
			respondPresetError(w, err)
			return
		}
		writeJSON(w, CalibrationDoc{
			Name:      preset.Name,
			Slope:     preset.Slope,
			Intercept: preset.Intercept,
			UpdatedAt: preset.UpdatedAt,
		})
	case http.MethodPut:
		var doc CalibrationDoc
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()
		preset := presets.CalibrationPreset{
			Name:      name,
			TenantID:  tenantID,
			Slope:     doc.Slope,
			Intercept: doc.Intercept,
		}
		if err := preset.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.calibrations.Save(r.Context(), &preset); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		h.logAudit(r, tenantID, "preset.calibration.save", "calibration_preset", name)
	case http.MethodDelete:
		if err := h.calibrations.Delete(r.Context(), tenantID, name); err != nil {
			respondPresetError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		h.logAudit(r, tenantID, "preset.calibration.delete", "calibration_preset", name)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) tenant(r *http.Request) string {
	if tenantID := auth.TenantIDFromContext(r.Context()); tenantID != "" {
		return tenantID
	}
	return h.defaultTenant
}

func (h *Handler) logAudit(r *http.Request, tenantID, action, resourceType, resourceID string) {
	if h.auditLogger == nil || tenantID == "" {
		return
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func respondPresetError(w http.ResponseWriter, err error) {
	if errors.Is(err, presets.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
