package quality

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"catalysis-cloud/internal/activity/application/events"
	"catalysis-cloud/internal/observability/metrics"
)

// Alert rules reported by the watcher.
const (
	RuleFitFailed  = "fit_failed"
	RuleLowRSquare = "low_r_squared"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Watcher inspects completed analyses and raises alerts when fit
// quality falls below the configured thresholds.
type Watcher struct {
	cfg      Config
	template *Template
	notifier Notifier
	clock    Clock
	logger   *log.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// WatcherOption customises a Watcher.
type WatcherOption func(*Watcher)

// WithClock replaces the watcher clock.
func WithClock(clock Clock) WatcherOption {
	return func(w *Watcher) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// NewWatcher builds a watcher from cfg. notifier may be nil, in which
// case alerts are only counted and logged.
func NewWatcher(cfg Config, notifier Notifier, logger *log.Logger, opts ...WatcherOption) (*Watcher, error) {
	if logger == nil {
		return nil, errors.New("quality: logger is nil")
	}
	tmpl, err := NewTemplate(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("quality: parse template: %w", err)
	}
	w := &Watcher{
		cfg:      cfg,
		template: tmpl,
		notifier: notifier,
		clock:    systemClock{},
		logger:   logger,
		lastSent: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// HandleAnalysisCompleted consumes an AnalysisCompleted event. It never
// fails the event pipeline: notifier errors are logged, not returned.
func (w *Watcher) HandleAnalysisCompleted(ctx context.Context, event any) error {
	completed, ok := event.(events.AnalysisCompleted)
	if !ok {
		if ptr, isPtr := event.(*events.AnalysisCompleted); isPtr && ptr != nil {
			completed = *ptr
		} else {
			return nil
		}
	}

	rule := w.evaluate(completed)
	if rule == "" {
		return nil
	}

	metrics.IncQualityAlert(rule)

	if !w.shouldNotify(completed.SampleName, rule) {
		return nil
	}

	message, err := w.template.Render(TemplateData{
		SampleName:   completed.SampleName,
		AnalysisID:   completed.AnalysisID,
		RecordingID:  completed.RecordingID,
		Rule:         rule,
		FittedCount:  completed.FittedCount,
		ReactorCount: completed.ReactorCount,
		MinRSquared:  completed.MinRSquared,
		Threshold:    w.cfg.MinRSquared,
	})
	if err != nil {
		w.logger.Printf("quality: render alert for analysis %s: %v", completed.AnalysisID, err)
		return nil
	}

	if w.notifier == nil {
		w.logger.Printf("quality: alert (%s) for sample %s: no notifier configured", rule, completed.SampleName)
		return nil
	}
	if err := w.notifier.Notify(ctx, message); err != nil {
		w.logger.Printf("quality: notify alert for analysis %s: %v", completed.AnalysisID, err)
	}
	return nil
}

func (w *Watcher) evaluate(completed events.AnalysisCompleted) string {
	if completed.ReactorCount > 0 && completed.FittedCount < completed.ReactorCount {
		return RuleFitFailed
	}
	if completed.FittedCount > 0 && completed.MinRSquared < w.cfg.MinRSquared {
		return RuleLowRSquare
	}
	return ""
}

func (w *Watcher) shouldNotify(sampleName, rule string) bool {
	key := sampleName + "|" + rule
	now := w.clock.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	if sent, ok := w.lastSent[key]; ok && now.Sub(sent) < w.cfg.Cooldown {
		return false
	}
	w.lastSent[key] = now
	return true
}
