package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"catalysis-cloud/internal/activity/application"
)

func TestReportRepositoryRoundtrip(t *testing.T) {
	repo := NewReportRepository()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reports := []application.AnalysisReport{
		{ID: "an-1", TenantID: "tenant-a", RecordingID: "rec-1", SampleName: "catalyst-A", CreatedAt: base},
		{ID: "an-2", TenantID: "tenant-a", RecordingID: "rec-1", SampleName: "catalyst-A", CreatedAt: base.Add(time.Hour)},
		{ID: "an-3", TenantID: "tenant-b", RecordingID: "rec-1", SampleName: "catalyst-B", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "an-4", TenantID: "tenant-a", RecordingID: "rec-2", SampleName: "catalyst-C", CreatedAt: base},
	}
	for i := range reports {
		if err := repo.Save(ctx, &reports[i]); err != nil {
			t.Fatalf("save %s: %v", reports[i].ID, err)
		}
	}

	got, err := repo.Get(ctx, "an-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SampleName != "catalyst-A" {
		t.Errorf("unexpected sample name %q", got.SampleName)
	}

	list, err := repo.ListByRecording(ctx, "tenant-a", "rec-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 reports for tenant-a/rec-1, got %d", len(list))
	}
	if list[0].ID != "an-2" {
		t.Errorf("expected newest report first, got %s", list[0].ID)
	}
}

func TestReportRepositoryGetMissing(t *testing.T) {
	repo := NewReportRepository()
	if _, err := repo.Get(context.Background(), "an-missing"); !errors.Is(err, application.ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}

func TestReportRepositorySaveIsolation(t *testing.T) {
	repo := NewReportRepository()
	ctx := context.Background()

	report := application.AnalysisReport{ID: "an-1", RecordingID: "rec-1", Warning: ""}
	if err := repo.Save(ctx, &report); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	report.Warning = "mutated"
	got, err := repo.Get(ctx, "an-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Warning != "" {
		t.Errorf("stored report was mutated: %q", got.Warning)
	}
}
