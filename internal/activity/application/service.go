package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"catalysis-cloud/internal/activity/application/events"
	activity "catalysis-cloud/internal/activity/domain"
	"catalysis-cloud/internal/eventing"
	"catalysis-cloud/internal/observability/metrics"
	recording "catalysis-cloud/internal/recording/domain"
)

// DefaultTargets are the stock TX targets offered by the instrument UI.
var DefaultTargets = []float64{20, 50, 80}

// ErrReportNotFound is returned by report repositories for unknown ids.
var ErrReportNotFound = errors.New("analysis: report not found")

// RecordingReader loads stored recordings.
type RecordingReader interface {
	Get(ctx context.Context, id string) (*recording.Recording, error)
}

// ReportRepository persists analysis reports.
type ReportRepository interface {
	Save(ctx context.Context, report *AnalysisReport) error
	Get(ctx context.Context, id string) (*AnalysisReport, error)
	ListByRecording(ctx context.Context, tenantID, recordingID string) ([]AnalysisReport, error)
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// ReportCache caches completed reports keyed by request digest.
type ReportCache interface {
	GetReport(ctx context.Context, key string, report *AnalysisReport) (bool, error)
	SetReport(ctx context.Context, key string, report *AnalysisReport) error
}

// Clock provides time for the service.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// AnalyzeCommand describes one analysis request. Protocol and calibration
// arrive as explicit values; preset lookup happens at the interface layer.
type AnalyzeCommand struct {
	TenantID      string
	RecordingID   string
	Protocol      activity.Protocol
	Calibration   activity.Curve
	AutoIntercept bool
	Targets       []float64
	Model         activity.Model
}

// CompareCommand runs a set of recordings through one protocol and
// calibration for side-by-side comparison.
type CompareCommand struct {
	TenantID      string
	RecordingIDs  []string
	SampleNames   map[string]string // recording id -> display name
	Protocol      activity.Protocol
	Calibration   activity.Curve
	AutoIntercept bool
	Targets       []float64
	Model         activity.Model
}

// AnalysisService turns recordings into fitted activity reports.
type AnalysisService struct {
	recordings RecordingReader
	reports    ReportRepository
	publisher  EventPublisher
	cache      ReportCache
	clock      Clock
	logger     *log.Logger
}

// NewAnalysisService constructs the service. Publisher and cache are
// optional.
func NewAnalysisService(recordings RecordingReader, reports ReportRepository, publisher EventPublisher, cache ReportCache, clock Clock, logger *log.Logger) (*AnalysisService, error) {
	if recordings == nil {
		return nil, errors.New("analysis service: nil recording reader")
	}
	if reports == nil {
		return nil, errors.New("analysis service: nil report repository")
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &AnalysisService{
		recordings: recordings,
		reports:    reports,
		publisher:  publisher,
		cache:      cache,
		clock:      clock,
		logger:     logger,
	}, nil
}

// Analyze runs the full segmentation/reduction/fitting pipeline for one
// recording and persists the report. Fit failures on individual reactors
// are recorded in the report, not returned as errors; only malformed
// input or missing data fails the call.
func (s *AnalysisService) Analyze(ctx context.Context, cmd AnalyzeCommand) (*AnalysisReport, error) {
	started := time.Now()
	report, err := s.analyze(ctx, cmd)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveAnalysis(result, time.Since(started))
	return report, err
}

func (s *AnalysisService) analyze(ctx context.Context, cmd AnalyzeCommand) (*AnalysisReport, error) {
	if cmd.Model == "" {
		cmd.Model = activity.ModelConstrained
	}
	if len(cmd.Targets) == 0 {
		cmd.Targets = append([]float64(nil), DefaultTargets...)
	}
	if err := cmd.Protocol.Validate(); err != nil {
		return nil, err
	}

	key := requestDigest(cmd)
	if s.cache != nil && key != "" {
		var cached AnalysisReport
		hit, err := s.cache.GetReport(ctx, key, &cached)
		switch {
		case err != nil:
			metrics.IncCacheLookup(metrics.CacheError)
			s.logger.Printf("analysis cache: get error: %v", err)
		case hit:
			metrics.IncCacheLookup(metrics.CacheHit)
			return &cached, nil
		default:
			metrics.IncCacheLookup(metrics.CacheMiss)
		}
	}

	rec, err := s.recordings.Get(ctx, cmd.RecordingID)
	if err != nil {
		return nil, err
	}

	windows, err := activity.SegmentSteps(cmd.Protocol, rec.Points())
	if err != nil {
		return nil, err
	}
	series, err := activity.Reduce(windows, cmd.Calibration, cmd.AutoIntercept)
	if err != nil {
		return nil, err
	}

	report := &AnalysisReport{
		ID:            "an-" + eventing.NewEventID(),
		TenantID:      cmd.TenantID,
		RecordingID:   rec.ID,
		SampleName:    rec.SampleName,
		ProtocolName:  cmd.Protocol.Name,
		Model:         cmd.Model,
		AutoIntercept: cmd.AutoIntercept,
		Targets:       cmd.Targets,
		DetectedSteps: len(windows),
		TotalSteps:    len(cmd.Protocol.Steps),
		Reactors:      s.fitReactors(cmd.Model, series, cmd.Targets),
		CreatedAt:     s.clock.Now(),
	}
	if required := cmd.Protocol.TotalDuration().Seconds(); rec.Duration() < required {
		report.Warning = fmt.Sprintf("recording shorter than protocol, steps missing: %d/%d detected",
			report.DetectedSteps, report.TotalSteps)
	}

	if err := s.reports.Save(ctx, report); err != nil {
		return nil, err
	}
	if s.cache != nil && key != "" {
		if err := s.cache.SetReport(ctx, key, report); err != nil {
			s.logger.Printf("analysis cache: set error: %v", err)
		}
	}
	if s.publisher != nil {
		event := events.AnalysisCompleted{
			AnalysisID:   report.ID,
			RecordingID:  report.RecordingID,
			TenantID:     report.TenantID,
			SampleName:   report.SampleName,
			ReactorCount: len(report.Reactors),
			FittedCount:  report.FittedCount(),
			MinRSquared:  report.MinRSquared(),
			OccurredAt:   report.CreatedAt,
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Printf("analysis: publish error: %v", err)
		}
	}
	return report, nil
}

// fitReactors fits every reactor series independently. The pipelines
// share nothing, so they run concurrently and reassemble by index.
func (s *AnalysisService) fitReactors(model activity.Model, series []activity.ReactorSeries, targets []float64) []ReactorResult {
	results := make([]ReactorResult, len(series))
	var wg sync.WaitGroup
	for i, reactor := range series {
		wg.Add(1)
		go func(i int, reactor activity.ReactorSeries) {
			defer wg.Done()
			result := ReactorResult{
				ReactorID: reactor.ReactorID,
				Intercept: reactor.Intercept,
				Samples:   reactor.Samples,
			}
			fit, err := activity.Fit(model, reactor.Temperatures(), reactor.Conversions())
			if err != nil {
				result.FitError = err.Error()
				metrics.IncFit(string(model), metrics.ResultError)
			} else {
				result.Fit = &fit
				result.TXValues = activity.TXValues(fit, targets)
				metrics.IncFit(string(model), metrics.ResultSuccess)
				metrics.ObserveFitIterations(fit.Iterations)
			}
			results[i] = result
		}(i, reactor)
	}
	wg.Wait()
	return results
}

// Compare analyzes several recordings with the same settings and returns
// reports keyed by sample name, independent of completion order.
func (s *AnalysisService) Compare(ctx context.Context, cmd CompareCommand) (map[string]*AnalysisReport, error) {
	if len(cmd.RecordingIDs) < 2 {
		return nil, errors.New("analysis service: comparison needs at least two recordings")
	}

	out := make(map[string]*AnalysisReport, len(cmd.RecordingIDs))
	for _, id := range cmd.RecordingIDs {
		report, err := s.Analyze(ctx, AnalyzeCommand{
			TenantID:      cmd.TenantID,
			RecordingID:   id,
			Protocol:      cmd.Protocol,
			Calibration:   cmd.Calibration,
			AutoIntercept: cmd.AutoIntercept,
			Targets:       cmd.Targets,
			Model:         cmd.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("recording %s: %w", id, err)
		}
		name := report.SampleName
		if override, ok := cmd.SampleNames[id]; ok && override != "" {
			name = override
		}
		out[name] = report
	}
	return out, nil
}

// Get loads a stored report.
func (s *AnalysisService) Get(ctx context.Context, id string) (*AnalysisReport, error) {
	return s.reports.Get(ctx, id)
}

// ListByRecording lists stored reports for a recording.
func (s *AnalysisService) ListByRecording(ctx context.Context, tenantID, recordingID string) ([]AnalysisReport, error) {
	return s.reports.ListByRecording(ctx, tenantID, recordingID)
}

// requestDigest derives a stable cache key from the full request.
func requestDigest(cmd AnalyzeCommand) string {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return "analysis:" + hex.EncodeToString(sum[:])
}
