package main

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"fundamental-analyzer/internal/config"
	"fundamental-analyzer/internal/ml/predictions"

	"cloud.google.com/go/firestore"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMainBootstrap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := stubServerDeps(t)
	defer restore()

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
}

func TestRunServesHealthAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := stubServerDeps(t)
	defer restore()

	started := make(chan *http.Server, 1)
	startHTTPServerFunc = func(srv *http.Server) error {
		started <- srv
		return http.ErrServerClosed
	}
	waitForSignalFunc = func(<-chan os.Signal) {
		srv := <-started

		w := httptest.NewRecorder()
		srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "API Running Successfully") {
			t.Errorf("unexpected health response %d: %s", w.Code, w.Body.String())
		}

		w = httptest.NewRecorder()
		srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/predict/banking", strings.NewReader(`{"Company":"X","current_price":1}`)))
		if w.Code != http.StatusBadRequest {
			t.Errorf("banking has no artifacts and should be rejected, got %d", w.Code)
		}

		w = httptest.NewRecorder()
		srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "fundamental_analyzer_http_requests_total") {
			t.Errorf("metrics endpoint missing http series: %d", w.Code)
		}
	}

	if err := run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}
}

func TestRunFailsWithoutModels(t *testing.T) {
	restore := stubServerDeps(t)
	defer restore()
	openModelsFunc = func(string) fs.FS { return fstest.MapFS{} }

	if err := run(); err == nil {
		t.Fatal("expected error when no model artifacts exist")
	}
}

func TestRunReportsListenError(t *testing.T) {
	restore := stubServerDeps(t)
	defer restore()
	startHTTPServerFunc = func(*http.Server) error { return errors.New("address in use") }
	waitForSignalFunc = func(quit <-chan os.Signal) { <-quit }

	err := run()
	if err == nil || !strings.Contains(err.Error(), "address in use") {
		t.Fatalf("expected listen error, got %v", err)
	}
}

func TestBuildStore(t *testing.T) {
	restore := stubServerDeps(t)
	defer restore()
	tracer := trace.NewNoopTracerProvider().Tracer("test")

	cfg := testConfig()
	store, closeFn, err := buildStore(context.Background(), cfg, tracer, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()
	if _, ok := store.(*predictions.BreakerStore); !ok {
		t.Fatalf("expected breaker-wrapped store, got %T", store)
	}

	cfg.StoreBreakerEnabled = false
	store, closeFn, err = buildStore(context.Background(), cfg, tracer, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()
	if _, ok := store.(*predictions.BreakerStore); ok {
		t.Fatal("breaker should be skipped when disabled")
	}

	initPostgresFunc = func(context.Context, string) (*pgxpool.Pool, error) {
		return nil, errors.New("no postgres")
	}
	cfg.StoreBackend = config.StorePostgres
	if _, _, err := buildStore(context.Background(), cfg, tracer, nil); err == nil {
		t.Fatal("expected postgres init error")
	}

	newFirestoreClientFunc = func(context.Context, string, string) (*firestore.Client, error) {
		return nil, errors.New("no credentials")
	}
	cfg.StoreBackend = config.StoreFirestore
	if _, _, err := buildStore(context.Background(), cfg, tracer, nil); err == nil {
		t.Fatal("expected firestore init error")
	}

	cfg.StoreBackend = "mongo"
	if _, _, err := buildStore(context.Background(), cfg, tracer, nil); err == nil {
		t.Fatal("expected unsupported backend error")
	}
}

func testConfig() *config.Config {
	return &config.Config{
		HTTPAddr:                ":0",
		ShutdownTimeoutSecs:     1,
		ModelsDir:               "models",
		StoreBackend:            config.StoreRedis,
		RedisURL:                "localhost:6379",
		StoreBreakerEnabled:     true,
		StoreBreakerFailures:    5,
		StoreBreakerTimeoutSecs: 30,
		LogLevel:                "error",
		MetricsEnabled:          true,
	}
}

// metalsArtifacts binds a minimal model pair to the metals sector only.
func metalsArtifacts(t *testing.T) fstest.MapFS {
	t.Helper()
	const n = 9
	zeros := make([]float64, n)
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	reg, err := json.Marshal(map[string]any{
		"format": "linreg",
		"model":  map[string]any{"weights": ones, "bias": 0.5},
	})
	if err != nil {
		t.Fatal(err)
	}
	clf, err := json.Marshal(map[string]any{
		"format": "logreg",
		"model":  map[string]any{"weights": ones, "bias": 0, "means": zeros, "stds": ones},
	})
	if err != nil {
		t.Fatal(err)
	}
	return fstest.MapFS{
		"metals/regression.json": {Data: reg},
		"metals/classifier.json": {Data: clf},
	}
}

func stubServerDeps(t *testing.T) func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origSetupLogging := setupLoggingFunc
	origInitTracer := initTracerFunc
	origOpenModels := openModelsFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origNewFirestore := newFirestoreClientFunc
	origNewRouter := newRouterFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc
	origStartHTTP := startHTTPServerFunc
	origShutdownHTTP := shutdownHTTPServerFunc

	artifacts := metalsArtifacts(t)

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() (*config.Config, error) { return testConfig(), nil }
	setupLoggingFunc = func(string, string) zerolog.Logger { return zerolog.Nop() }
	initTracerFunc = func(ctx context.Context, enabled bool, endpoint string) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	openModelsFunc = func(string) fs.FS { return artifacts }
	initRedisFunc = func(context.Context, string) (*redis.Client, error) {
		return redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), nil
	}
	newRouterFunc = func(...gin.OptionFunc) *gin.Engine { return gin.New() }
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}
	startHTTPServerFunc = func(*http.Server) error { return http.ErrServerClosed }
	shutdownHTTPServerFunc = func(*http.Server, context.Context) error { return nil }

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		setupLoggingFunc = origSetupLogging
		initTracerFunc = origInitTracer
		openModelsFunc = origOpenModels
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		newFirestoreClientFunc = origNewFirestore
		newRouterFunc = origNewRouter
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
		startHTTPServerFunc = origStartHTTP
		shutdownHTTPServerFunc = origShutdownHTTP
	}
}
