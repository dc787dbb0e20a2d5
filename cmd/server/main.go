package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fundamental-analyzer/internal/cache"
	"fundamental-analyzer/internal/config"
	"fundamental-analyzer/internal/db"
	"fundamental-analyzer/internal/handler"
	"fundamental-analyzer/internal/ml/inference"
	"fundamental-analyzer/internal/ml/predictions"
	"fundamental-analyzer/internal/ml/registry"
	"fundamental-analyzer/pkg/logging"
	"fundamental-analyzer/pkg/metrics"
	"fundamental-analyzer/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "fundamental-analyzer/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	setupLoggingFunc       = logging.Setup
	initTracerFunc         = tracing.InitTracer
	openModelsFunc         = func(dir string) fs.FS { return os.DirFS(dir) }
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	newFirestoreClientFunc = predictions.NewFirestoreClient
	newRouterFunc          = gin.New
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Fundamental Analyzer API
// @version         1.0
// @description     Sector-specific price-move predictions from company fundamentals.

// @host      localhost:5000
// @BasePath  /
func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run() error {
	// .env is optional
	_ = loadEnvFunc()

	cfg, err := loadConfigFunc()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLoggingFunc(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, cfg.TracingEnabled, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	models, skipped, err := registry.LoadFS(openModelsFunc(cfg.ModelsDir), registry.LoadOptions{RequireAll: cfg.ModelsRequireAll})
	if err != nil {
		return fmt.Errorf("load models from %s: %w", cfg.ModelsDir, err)
	}
	for _, sector := range skipped {
		log.Warn().Str("sector", sector.String()).Msg("no model artifacts, sector disabled")
	}
	log.Info().Int("sectors", len(models.Sectors())).Str("dir", cfg.ModelsDir).Msg("models loaded")

	var mm *metrics.Manager
	if cfg.MetricsEnabled {
		mm = metrics.NewManager()
	}

	store, closeStore, err := buildStore(ctx, cfg, tracer, mm)
	if err != nil {
		return err
	}
	defer closeStore()

	svcCfg := inference.Config{}
	if mm != nil {
		svcCfg.Recorder = mm
	}
	svc := inference.NewService(tracer, models, store, svcCfg)

	h := handler.New(tracer, svc)
	if mm != nil {
		h.SetMetrics(mm, mm.Handler())
	}

	r := newRouterFunc()
	r.Use(gin.Recovery(), otelgin.Middleware(tracing.ServiceName))
	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			select {
			case quit <- syscall.SIGTERM:
			default:
			}
		}
	}()

	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info().Msg("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSecs)*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	default:
	}

	log.Info().Msg("server exiting")
	return nil
}

// buildStore connects the configured persistence backend and wraps it in the
// circuit breaker when enabled. The returned func releases the connection.
func buildStore(ctx context.Context, cfg *config.Config, tracer trace.Tracer, mm *metrics.Manager) (inference.ResultStore, func(), error) {
	var (
		store   inference.ResultStore
		closeFn = func() {}
	)

	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := initPostgresFunc(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		repo := predictions.NewRepository(pool, tracer)
		if err := repo.RunMigrations(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		store, closeFn = repo, pool.Close
	case config.StoreRedis:
		client, err := initRedisFunc(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		store = cache.NewResultStore(client, tracer)
		closeFn = func() { _ = client.Close() }
	case config.StoreFirestore:
		client, err := newFirestoreClientFunc(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		store = predictions.NewFirestoreStore(client, tracer)
		closeFn = func() { _ = client.Close() }
	default:
		return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
	log.Info().Str("backend", cfg.StoreBackend).Msg("prediction store ready")

	if !cfg.StoreBreakerEnabled {
		return store, closeFn, nil
	}
	bcfg := predictions.BreakerConfig{
		ConsecutiveFailures: uint32(cfg.StoreBreakerFailures),
		Timeout:             time.Duration(cfg.StoreBreakerTimeoutSecs) * time.Second,
	}
	bcfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("store breaker state changed")
		if mm != nil {
			mm.BreakerStateChanged(name, from, to)
		}
	}
	return predictions.NewBreakerStore(store, bcfg), closeFn, nil
}
