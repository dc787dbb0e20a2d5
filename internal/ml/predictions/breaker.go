package predictions

import (
	"context"
	"time"

	"fundamental-analyzer/internal/domain"

	"github.com/sony/gobreaker"
)

type resultStore interface {
	Store(ctx context.Context, path domain.ResultPath, result domain.PredictionResult) error
}

type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32
	Timeout             time.Duration
	OnStateChange       func(name string, from, to gobreaker.State)
}

// BreakerStore fails fast while the wrapped store keeps failing. An open
// breaker returns gobreaker.ErrOpenState; writes are never dropped silently.
type BreakerStore struct {
	next    resultStore
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerStore(next resultStore, cfg BreakerConfig) *BreakerStore {
	if cfg.Name == "" {
		cfg.Name = "prediction-store"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	threshold := cfg.ConsecutiveFailures
	return &BreakerStore{
		next: next,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: 1,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: cfg.OnStateChange,
		}),
	}
}

func (s *BreakerStore) Store(ctx context.Context, path domain.ResultPath, result domain.PredictionResult) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.next.Store(ctx, path, result)
	})
	return err
}

func (s *BreakerStore) State() gobreaker.State {
	return s.breaker.State()
}
