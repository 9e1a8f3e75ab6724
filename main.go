package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	activityapp "catalysis-cloud/internal/activity/application"
	"catalysis-cloud/internal/activity/application/events"
	activityrepo "catalysis-cloud/internal/activity/infrastructure/postgres"
	activityhttp "catalysis-cloud/internal/activity/interfaces/http"
	"catalysis-cloud/internal/audit"
	"catalysis-cloud/internal/auth"
	"catalysis-cloud/internal/cache"
	"catalysis-cloud/internal/eventing"
	"catalysis-cloud/internal/eventing/eventbus"
	eventingrepo "catalysis-cloud/internal/eventing/infrastructure/postgres"
	"catalysis-cloud/internal/observability/metrics"
	presetsrepo "catalysis-cloud/internal/presets/infrastructure/postgres"
	presetshttp "catalysis-cloud/internal/presets/interfaces/http"
	"catalysis-cloud/internal/quality"
	recordingrepo "catalysis-cloud/internal/recording/infrastructure/postgres"
	recordinghttp "catalysis-cloud/internal/recording/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	recordingChecker := auth.NewRecordingChecker(db)
	auditRepo := audit.NewRepository(db)

	baseBus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(events.AnalysisCompleted{})
	registry.Register(recordinghttp.RecordingIngested{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore)
	publisher := eventing.NewPublisher(outboxStore, dispatcher, cfg.TenantID, baseBus)

	recordingRepo := recordingrepo.NewRecordingRepository(db)
	reportRepo := activityrepo.NewReportRepository(db)

	var reportCache activityapp.ReportCache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis cache error: %v", err)
		}
		defer redisCache.Close()
		reportCache = redisCache.WithTTL(cfg.CacheTTL)
	}

	analysisService, err := activityapp.NewAnalysisService(recordingRepo, reportRepo, publisher, reportCache, nil, logger)
	if err != nil {
		logger.Fatalf("analysis service error: %v", err)
	}

	protocolRepo := presetsrepo.NewProtocolRepository(db)
	calibrationRepo := presetsrepo.NewCalibrationRepository(db)

	analysisHandler, err := activityhttp.NewHandler(analysisService, protocolRepo, calibrationRepo, recordingChecker, auditRepo, cfg.TenantID)
	if err != nil {
		logger.Fatalf("analysis handler error: %v", err)
	}
	presetsHandler, err := presetshttp.NewHandler(protocolRepo, calibrationRepo, auditRepo, cfg.TenantID)
	if err != nil {
		logger.Fatalf("presets handler error: %v", err)
	}
	ingestHandler, err := recordinghttp.NewIngestHandler(recordingRepo, publisher, cfg.TenantID, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	detailHandler, err := recordinghttp.NewDetailHandler(recordingRepo, cfg.TenantID, logger)
	if err != nil {
		logger.Fatalf("recording detail handler error: %v", err)
	}

	qualityCfg, err := quality.LoadConfig()
	if err != nil {
		logger.Fatalf("quality config error: %v", err)
	}
	var qualityNotifier quality.Notifier
	if qualityCfg.WebhookURL != "" {
		qualityNotifier, err = quality.NewWebhookNotifier(qualityCfg.WebhookURL)
		if err != nil {
			logger.Fatalf("quality webhook error: %v", err)
		}
	}
	qualityWatcher, err := quality.NewWatcher(qualityCfg, qualityNotifier, logger)
	if err != nil {
		logger.Fatalf("quality watcher error: %v", err)
	}
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[events.AnalysisCompleted](), "quality.fit", qualityWatcher.HandleAnalysisCompleted, processedStore)
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[recordinghttp.RecordingIngested](), "recording.log", func(ctx context.Context, event any) error {
		evt, ok := event.(recordinghttp.RecordingIngested)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		logger.Printf("recording ingested: id=%s sample=%s samples=%d", evt.RecordingID, evt.SampleName, evt.Samples)
		return nil
	}, processedStore)

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), time.Duration(cfg.IngestSkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/ingest/recordings", ingestAuth.Wrap(ingestHandler))
	mux.Handle("/api/v1/recordings", ingestHandler)
	mux.Handle("/api/v1/recordings/", detailHandler)
	mux.Handle("/api/v1/analyses", analysisHandler)
	mux.Handle("/api/v1/analyses/", analysisHandler)
	mux.Handle("/api/v1/analyses/compare", analysisHandler)
	mux.Handle("/api/v1/protocols", presetsHandler)
	mux.Handle("/api/v1/protocols/", presetsHandler)
	mux.Handle("/api/v1/calibrations", presetsHandler)
	mux.Handle("/api/v1/calibrations/", presetsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL       string
	HTTPAddr          string
	TenantID          string
	JWTSecret         string
	IngestSecret      string
	IngestSkewSeconds int
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	CacheTTL          time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		TenantID:          getenvDefault("TENANT_ID", "tenant-demo"),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IngestSecret:      getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestSkewSeconds: getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
		RedisAddr:         getenvDefault("REDIS_ADDR", ""),
		RedisPassword:     getenvDefault("REDIS_PASSWORD", ""),
		RedisDB:           getenvIntDefault("REDIS_DB", 0),
		CacheTTL:          getenvDuration("REPORT_CACHE_TTL", cache.DefaultReportTTL),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
