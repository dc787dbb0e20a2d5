package handler

import (
	"context"
	"net/http"
	"time"

	"fundamental-analyzer/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// Predictor is the prediction pipeline behind POST /predict/:sector.
type Predictor interface {
	Supports(sector domain.Sector) bool
	Predict(ctx context.Context, sector domain.Sector, company string, fundamentals domain.Fundamentals, currentPrice float64) (*domain.PredictionResult, error)
}

// HTTPObserver receives one observation per served request.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

type Handler struct {
	tracer    trace.Tracer
	predictor Predictor

	metrics        HTTPObserver
	metricsHandler http.Handler
}

func New(tracer trace.Tracer, predictor Predictor) *Handler {
	return &Handler{
		tracer:    tracer,
		predictor: predictor,
	}
}

// SetMetrics enables request metrics and mounts handler at /metrics.
func (h *Handler) SetMetrics(observer HTTPObserver, handler http.Handler) {
	h.metrics = observer
	h.metricsHandler = handler
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Use(RequestID(), RequestLogger())
	if h.metrics != nil {
		r.Use(Metrics(h.metrics))
	}

	r.GET("/", h.Health)
	r.POST("/predict/:sector", h.Predict)

	if h.metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(h.metricsHandler))
	}
}
