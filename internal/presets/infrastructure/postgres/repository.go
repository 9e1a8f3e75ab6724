package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	activity "catalysis-cloud/internal/activity/domain"
	presets "catalysis-cloud/internal/presets/domain"
)

const (
	defaultProtocolsTable    = "protocol_presets"
	defaultCalibrationsTable = "calibration_presets"
)

// protocolDoc is the stored JSON form of a protocol. Durations are kept
// in minutes so stored presets stay readable and instrument-friendly.
type protocolDoc struct {
	Name         string    `json:"name"`
	Steps        []stepDoc `json:"steps"`
	RampTimeMin  float64   `json:"ramp_time_min"`
	AnalysisMin  float64   `json:"analysis_time_min"`
	Mode         string    `json:"mode"`
	NumReactors  int       `json:"num_reactors"`
}

type stepDoc struct {
	Temperature float64 `json:"temperature"`
	HoldTimeMin float64 `json:"hold_time_min"`
	ReactorID   int     `json:"reactor_id"`
}

func encodeProtocol(p activity.Protocol) ([]byte, error) {
	doc := protocolDoc{
		Name:        p.Name,
		RampTimeMin: p.RampTime.Minutes(),
		AnalysisMin: p.AnalysisTime.Minutes(),
		Mode:        string(p.Mode),
		NumReactors: p.NumReactors,
	}
	for _, s := range p.Steps {
		doc.Steps = append(doc.Steps, stepDoc{
			Temperature: s.Temperature,
			HoldTimeMin: s.HoldTime.Minutes(),
			ReactorID:   s.ReactorID,
		})
	}
	return json.Marshal(doc)
}

func decodeProtocol(data []byte) (activity.Protocol, error) {
	var doc protocolDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return activity.Protocol{}, err
	}
	p := activity.Protocol{
		Name:         doc.Name,
		RampTime:     minutes(doc.RampTimeMin),
		AnalysisTime: minutes(doc.AnalysisMin),
		Mode:         activity.Mode(doc.Mode),
		NumReactors:  doc.NumReactors,
	}
	for _, s := range doc.Steps {
		p.Steps = append(p.Steps, activity.TemperatureStep{
			Temperature: s.Temperature,
			HoldTime:    minutes(s.HoldTimeMin),
			ReactorID:   s.ReactorID,
		})
	}
	return p, nil
}

func minutes(v float64) time.Duration {
	return time.Duration(v * float64(time.Minute))
}

// ProtocolRepository is a Postgres implementation for protocol presets.
type ProtocolRepository struct {
	db    *sql.DB
	table string
}

// NewProtocolRepository constructs a repository.
func NewProtocolRepository(db *sql.DB) *ProtocolRepository {
	return &ProtocolRepository{db: db, table: defaultProtocolsTable}
}

// Save upserts a protocol preset keyed by (tenant, name).
func (r *ProtocolRepository) Save(ctx context.Context, preset *presets.ProtocolPreset) error {
	if r == nil || r.db == nil {
		return errors.New("protocol repo: nil db")
	}
	if preset == nil {
		return errors.New("protocol repo: nil preset")
	}
	if err := preset.Validate(); err != nil {
		return err
	}
	doc, err := encodeProtocol(preset.Protocol)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (tenant_id, name, protocol)
VALUES ($1, $2, $3)
ON CONFLICT (tenant_id, name)
DO UPDATE SET protocol = EXCLUDED.protocol, updated_at = NOW()`, r.table)

	if _, err := r.db.ExecContext(ctx, query, preset.TenantID, preset.Name, doc); err != nil {
		return err
	}
	now := time.Now().UTC()
	if preset.CreatedAt.IsZero() {
		preset.CreatedAt = now
	}
	preset.UpdatedAt = now
	return nil
}

// Get loads a protocol preset by name.
func (r *ProtocolRepository) Get(ctx context.Context, tenantID, name string) (*presets.ProtocolPreset, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("protocol repo: nil db")
	}
	if name == "" {
		return nil, presets.ErrEmptyName
	}

	query := fmt.Sprintf(`
SELECT tenant_id, name, protocol, created_at, updated_at
FROM %s
WHERE tenant_id = $1 AND name = $2
LIMIT 1`, r.table)

	var preset presets.ProtocolPreset
	var doc []byte
	if err := r.db.QueryRowContext(ctx, query, tenantID, name).Scan(
		&preset.TenantID,
		&preset.Name,
		&doc,
		&preset.CreatedAt,
		&preset.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, presets.ErrNotFound
		}
		return nil, err
	}
	protocol, err := decodeProtocol(doc)
	if err != nil {
		return nil, err
	}
	preset.Protocol = protocol
	return &preset, nil
}

// List returns every protocol preset for a tenant ordered by name.
func (r *ProtocolRepository) List(ctx context.Context, tenantID string) ([]presets.ProtocolPreset, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("protocol repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT tenant_id, name, protocol, created_at, updated_at
FROM %s
WHERE tenant_id = $1
ORDER BY name ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []presets.ProtocolPreset
	for rows.Next() {
		var preset presets.ProtocolPreset
		var doc []byte
		if err := rows.Scan(&preset.TenantID, &preset.Name, &doc, &preset.CreatedAt, &preset.UpdatedAt); err != nil {
			return nil, err
		}
		protocol, err := decodeProtocol(doc)
		if err != nil {
			return nil, err
		}
		preset.Protocol = protocol
		result = append(result, preset)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a protocol preset.
func (r *ProtocolRepository) Delete(ctx context.Context, tenantID, name string) error {
	if r == nil || r.db == nil {
		return errors.New("protocol repo: nil db")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1 AND name = $2`, r.table)
	_, err := r.db.ExecContext(ctx, query, tenantID, name)
	return err
}

// CalibrationRepository is a Postgres implementation for calibration presets.
type CalibrationRepository struct {
	db    *sql.DB
	table string
}

// NewCalibrationRepository constructs a repository.
func NewCalibrationRepository(db *sql.DB) *CalibrationRepository {
	return &CalibrationRepository{db: db, table: defaultCalibrationsTable}
}

// Save upserts a calibration preset keyed by (tenant, name).
func (r *CalibrationRepository) Save(ctx context.Context, preset *presets.CalibrationPreset) error {
	if r == nil || r.db == nil {
		return errors.New("calibration repo: nil db")
	}
	if preset == nil {
		return errors.New("calibration repo: nil preset")
	}
	if err := preset.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (tenant_id, name, slope, intercept)
VALUES ($1, $2, $3, $4)
ON CONFLICT (tenant_id, name)
DO UPDATE SET slope = EXCLUDED.slope, intercept = EXCLUDED.intercept, updated_at = NOW()`, r.table)

	if _, err := r.db.ExecContext(ctx, query, preset.TenantID, preset.Name, preset.Slope, preset.Intercept); err != nil {
		return err
	}
	now := time.Now().UTC()
	if preset.CreatedAt.IsZero() {
		preset.CreatedAt = now
	}
	preset.UpdatedAt = now
	return nil
}

// Get loads a calibration preset by name.
func (r *CalibrationRepository) Get(ctx context.Context, tenantID, name string) (*presets.CalibrationPreset, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("calibration repo: nil db")
	}
	if name == "" {
		return nil, presets.ErrEmptyName
	}

	query := fmt.Sprintf(`
SELECT tenant_id, name, slope, intercept, created_at, updated_at
FROM %s
WHERE tenant_id = $1 AND name = $2
LIMIT 1`, r.table)

	var preset presets.CalibrationPreset
	if err := r.db.QueryRowContext(ctx, query, tenantID, name).Scan(
		&preset.TenantID,
		&preset.Name,
		&preset.Slope,
		&preset.Intercept,
		&preset.CreatedAt,
		&preset.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, presets.ErrNotFound
		}
		return nil, err
	}
	return &preset, nil
}

// List returns every calibration preset for a tenant ordered by name.
func (r *CalibrationRepository) List(ctx context.Context, tenantID string) ([]presets.CalibrationPreset, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("calibration repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT tenant_id, name, slope, intercept, created_at, updated_at
FROM %s
WHERE tenant_id = $1
ORDER BY name ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []presets.CalibrationPreset
	for rows.Next() {
		var preset presets.CalibrationPreset
		if err := rows.Scan(&preset.TenantID, &preset.Name, &preset.Slope, &preset.Intercept, &preset.CreatedAt, &preset.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, preset)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a calibration preset.
func (r *CalibrationRepository) Delete(ctx context.Context, tenantID, name string) error {
	if r == nil || r.db == nil {
		return errors.New("calibration repo: nil db")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1 AND name = $2`, r.table)
	_, err := r.db.ExecContext(ctx, query, tenantID, name)
	return err
}
