package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fundamental-analyzer/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// ResultStore keeps the latest prediction per (sector, company) under
// predictions:{sector}:{company}:results with no expiry.
type ResultStore struct {
	client RedisClient
	tracer trace.Tracer
}

func NewResultStore(client RedisClient, tracer trace.Tracer) *ResultStore {
	return &ResultStore{client: client, tracer: tracer}
}

func (s *ResultStore) Store(ctx context.Context, path domain.ResultPath, result domain.PredictionResult) error {
	ctx, span := s.tracer.Start(ctx, "redis-store.store")
	defer span.End()
	span.SetAttributes(attribute.String("key", path.Key()))

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode prediction: %w", err)
	}
	return s.client.Set(ctx, path.Key(), data, 0).Err()
}
