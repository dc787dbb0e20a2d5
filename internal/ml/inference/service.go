package inference

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"fundamental-analyzer/internal/domain"
	"fundamental-analyzer/internal/ml/ensemble"
	"fundamental-analyzer/internal/ml/features"
	"fundamental-analyzer/internal/ml/registry"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrMissingCompany = errors.New("company is required")
	ErrModel          = errors.New("model invocation failed")
	ErrPersistence    = errors.New("prediction could not be stored")
)

// ResultStore durably stores one prediction result under its path, replacing
// whatever was stored there before.
type ResultStore interface {
	Store(ctx context.Context, path domain.ResultPath, result domain.PredictionResult) error
}

// Recorder receives one observation per Predict call.
type Recorder interface {
	ObservePrediction(sector, outcome string, elapsed time.Duration)
}

const (
	OutcomeSuccess         = "success"
	OutcomeInvalidInput    = "invalid_input"
	OutcomeModelError      = "model_error"
	OutcomePersistenceFail = "persistence_error"
)

type Config struct {
	Now      func() time.Time
	Recorder Recorder
}

type Service struct {
	tracer   trace.Tracer
	models   *registry.ModelSet
	store    ResultStore
	now      func() time.Time
	recorder Recorder
}

func NewService(tracer trace.Tracer, models *registry.ModelSet, store ResultStore, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		tracer:   tracer,
		models:   models,
		store:    store,
		now:      cfg.Now,
		recorder: cfg.Recorder,
	}
}

// Supports reports whether the sector has a model pair bound.
func (s *Service) Supports(sector domain.Sector) bool {
	return s.models.Has(sector)
}

// Predict runs the sector's models on the fundamentals, stores the result and
// returns it. Nothing is stored unless every computation step succeeded, and a
// failed store fails the call.
func (s *Service) Predict(
	ctx context.Context,
	sector domain.Sector,
	company string,
	fundamentals domain.Fundamentals,
	currentPrice float64,
) (*domain.PredictionResult, error) {
	ctx, span := s.tracer.Start(ctx, "inference.predict")
	defer span.End()
	span.SetAttributes(
		attribute.String("sector", string(sector)),
		attribute.String("company", company),
	)

	started := s.now()
	result, outcome, err := s.predict(ctx, sector, company, fundamentals, currentPrice)
	if s.recorder != nil {
		s.recorder.ObservePrediction(string(sector), outcome, s.now().Sub(started))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	return result, nil
}

func (s *Service) predict(
	ctx context.Context,
	sector domain.Sector,
	company string,
	fundamentals domain.Fundamentals,
	currentPrice float64,
) (*domain.PredictionResult, string, error) {
	if !domain.ValidCompany(company) {
		return nil, OutcomeInvalidInput, ErrMissingCompany
	}
	pair, ok := s.models.Lookup(sector)
	if !ok {
		return nil, OutcomeInvalidInput, fmt.Errorf("%w: %q", domain.ErrUnknownSector, sector)
	}

	vec, err := features.Normalize(sector, fundamentals)
	if err != nil {
		return nil, OutcomeInvalidInput, err
	}

	pctChange, err := pair.Regressor.Predict(vec)
	if err != nil {
		return nil, OutcomeModelError, fmt.Errorf("%w: %s regressor: %v", ErrModel, sector, err)
	}
	if math.IsNaN(pctChange) || math.IsInf(pctChange, 0) {
		return nil, OutcomeModelError, fmt.Errorf("%w: %s regressor returned %v", ErrModel, sector, pctChange)
	}
	predictedPrice := currentPrice + currentPrice*(pctChange/100)

	label, err := pair.Classifier.Predict(vec)
	if err != nil {
		return nil, OutcomeModelError, fmt.Errorf("%w: %s classifier: %v", ErrModel, sector, err)
	}
	direction := domain.Direction(label)
	if !direction.IsValid() {
		return nil, OutcomeModelError, fmt.Errorf("%w: %s classifier returned label %d", ErrModel, sector, label)
	}
	probs, err := pair.Classifier.PredictProba(vec)
	if err != nil {
		return nil, OutcomeModelError, fmt.Errorf("%w: %s classifier probabilities: %v", ErrModel, sector, err)
	}
	if len(probs) == 0 {
		return nil, OutcomeModelError, fmt.Errorf("%w: %s classifier returned no probabilities", ErrModel, sector)
	}
	proba := maxProb(probs)

	log.Ctx(ctx).Debug().
		Str("sector", string(sector)).
		Str("company", company).
		Float64("pct_change", pctChange).
		Float64("current_price", currentPrice).
		Float64("predicted_price", predictedPrice).
		Int("direction", label).
		Float64("probability", proba).
		Msg("prediction computed")

	result := domain.PredictionResult{
		Sector:                 sector,
		Company:                company,
		PredictedPrice:         ensemble.Round(predictedPrice, 2),
		PredictedChangePercent: ensemble.Round(pctChange, 2),
		Direction:              direction,
		Confidence:             ensemble.Confidence(pctChange, proba),
		Timestamp:              s.now().UTC(),
		InputFundamentals:      fundamentals.Clone(),
	}

	if err := s.store.Store(ctx, domain.NewResultPath(sector, company), result); err != nil {
		return nil, OutcomePersistenceFail, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return &result, OutcomeSuccess, nil
}

func maxProb(probs []float64) float64 {
	best := probs[0]
	for _, p := range probs[1:] {
		if p > best {
			best = p
		}
	}
	return best
}
