package auth

import (
	"context"
	"database/sql"
	"errors"

	recording "catalysis-cloud/internal/recording/domain"
	recordingrepo "catalysis-cloud/internal/recording/infrastructure/postgres"
)

var (
	// ErrTenantMismatch indicates resource belongs to a different tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("resource not found")
)

// RecordingTenantChecker validates recording tenant ownership.
type RecordingTenantChecker interface {
	EnsureRecordingTenant(ctx context.Context, tenantID, recordingID string) error
}

// RecordingChecker checks recording ownership against stored recordings.
type RecordingChecker struct {
	repo *recordingrepo.RecordingRepository
}

// NewRecordingChecker constructs a RecordingChecker.
func NewRecordingChecker(db *sql.DB) *RecordingChecker {
	if db == nil {
		return nil
	}
	return &RecordingChecker{repo: recordingrepo.NewRecordingRepository(db)}
}

// EnsureRecordingTenant verifies the recording belongs to the tenant.
func (c *RecordingChecker) EnsureRecordingTenant(ctx context.Context, tenantID, recordingID string) error {
	if c == nil || c.repo == nil {
		return nil
	}
	if tenantID == "" || recordingID == "" {
		return nil
	}
	rec, err := c.repo.Get(ctx, recordingID)
	if err != nil {
		if errors.Is(err, recording.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if rec.TenantID != tenantID {
		return ErrTenantMismatch
	}
	return nil
}
