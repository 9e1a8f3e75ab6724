package quality

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"catalysis-cloud/internal/activity/application/events"
)

type stubNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (s *stubNotifier) Notify(_ context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	return nil
}

func (s *stubNotifier) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func completedEvent(fitted, reactors int, minR2 float64) events.AnalysisCompleted {
	return events.AnalysisCompleted{
		AnalysisID:   "an-1",
		RecordingID:  "rec-1",
		TenantID:     "tenant-a",
		SampleName:   "catalyst-A",
		ReactorCount: reactors,
		FittedCount:  fitted,
		MinRSquared:  minR2,
		OccurredAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWatcherAlertsOnLowRSquared(t *testing.T) {
	notifier := &stubNotifier{}
	watcher, err := NewWatcher(Config{MinRSquared: 0.95, Cooldown: time.Minute}, notifier, testLogger())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	if err := watcher.HandleAnalysisCompleted(context.Background(), completedEvent(4, 4, 0.80)); err != nil {
		t.Fatalf("HandleAnalysisCompleted failed: %v", err)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected 1 alert, got %d", notifier.count())
	}
	if !strings.Contains(notifier.messages[0], RuleLowRSquare) {
		t.Errorf("message missing rule: %q", notifier.messages[0])
	}
	if !strings.Contains(notifier.messages[0], "catalyst-A") {
		t.Errorf("message missing sample name: %q", notifier.messages[0])
	}
}

func TestWatcherAlertsOnFailedFit(t *testing.T) {
	notifier := &stubNotifier{}
	watcher, err := NewWatcher(Config{MinRSquared: 0.95, Cooldown: time.Minute}, notifier, testLogger())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	if err := watcher.HandleAnalysisCompleted(context.Background(), completedEvent(2, 4, 0.99)); err != nil {
		t.Fatalf("HandleAnalysisCompleted failed: %v", err)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected 1 alert, got %d", notifier.count())
	}
	if !strings.Contains(notifier.messages[0], RuleFitFailed) {
		t.Errorf("message missing rule: %q", notifier.messages[0])
	}
}

func TestWatcherIgnoresHealthyAnalysis(t *testing.T) {
	notifier := &stubNotifier{}
	watcher, err := NewWatcher(Config{MinRSquared: 0.95, Cooldown: time.Minute}, notifier, testLogger())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	if err := watcher.HandleAnalysisCompleted(context.Background(), completedEvent(4, 4, 0.995)); err != nil {
		t.Fatalf("HandleAnalysisCompleted failed: %v", err)
	}
	if notifier.count() != 0 {
		t.Fatalf("expected no alerts, got %d", notifier.count())
	}
}

func TestWatcherCooldownSuppressesRepeats(t *testing.T) {
	notifier := &stubNotifier{}
	clock := &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	watcher, err := NewWatcher(Config{MinRSquared: 0.95, Cooldown: 10 * time.Minute}, notifier, testLogger(), WithClock(clock))
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	event := completedEvent(4, 4, 0.80)
	for i := 0; i < 3; i++ {
		if err := watcher.HandleAnalysisCompleted(context.Background(), event); err != nil {
			t.Fatalf("HandleAnalysisCompleted failed: %v", err)
		}
		clock.advance(time.Minute)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected 1 alert within cooldown, got %d", notifier.count())
	}

	clock.advance(10 * time.Minute)
	if err := watcher.HandleAnalysisCompleted(context.Background(), event); err != nil {
		t.Fatalf("HandleAnalysisCompleted failed: %v", err)
	}
	if notifier.count() != 2 {
		t.Fatalf("expected alert after cooldown, got %d", notifier.count())
	}
}

func TestWatcherIgnoresUnknownEvent(t *testing.T) {
	notifier := &stubNotifier{}
	watcher, err := NewWatcher(Config{MinRSquared: 0.95, Cooldown: time.Minute}, notifier, testLogger())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	if err := watcher.HandleAnalysisCompleted(context.Background(), "not an event"); err != nil {
		t.Fatalf("HandleAnalysisCompleted failed: %v", err)
	}
	if notifier.count() != 0 {
		t.Fatalf("expected no alerts, got %d", notifier.count())
	}
}

func TestWebhookNotifierPostsTextPayload(t *testing.T) {
	var received webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(server.URL)
	if err != nil {
		t.Fatalf("NewWebhookNotifier failed: %v", err)
	}
	if err := notifier.Notify(context.Background(), "low fit quality"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if received.MsgType != "text" {
		t.Errorf("expected msgtype text, got %q", received.MsgType)
	}
	if received.Text.Content != "low fit quality" {
		t.Errorf("unexpected content %q", received.Text.Content)
	}
}

func TestWebhookNotifierRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier, err := NewWebhookNotifier(server.URL)
	if err != nil {
		t.Fatalf("NewWebhookNotifier failed: %v", err)
	}
	if err := notifier.Notify(context.Background(), "message"); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quality.yaml")
	content := "min_r_squared: 0.9\nwebhook_url: https://hooks.example.com/alert\ncooldown: 5m\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("QUALITY_CONFIG", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.MinRSquared != 0.9 {
		t.Errorf("expected min_r_squared 0.9, got %v", cfg.MinRSquared)
	}
	if cfg.WebhookURL != "https://hooks.example.com/alert" {
		t.Errorf("unexpected webhook url %q", cfg.WebhookURL)
	}
	if cfg.Cooldown != 5*time.Minute {
		t.Errorf("expected 5m cooldown, got %v", cfg.Cooldown)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("QUALITY_CONFIG", "")
	t.Setenv("QUALITY_MIN_R2", "")
	t.Setenv("QUALITY_COOLDOWN", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.MinRSquared != 0.95 {
		t.Errorf("expected default 0.95, got %v", cfg.MinRSquared)
	}
	if cfg.Cooldown != 10*time.Minute {
		t.Errorf("expected default cooldown, got %v", cfg.Cooldown)
	}
}
