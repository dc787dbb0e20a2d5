package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"fundamental-analyzer/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func TestResultStoreOverwritesKey(t *testing.T) {
	fake := newFakeRedis()
	store := NewResultStore(fake, testTracer)
	path := domain.NewResultPath(domain.SectorIT, "Infosys")

	first := domain.PredictionResult{Sector: domain.SectorIT, Company: "Infosys", PredictedPrice: 10, Timestamp: time.Unix(0, 0).UTC()}
	second := first
	second.PredictedPrice = 20

	for _, res := range []domain.PredictionResult{first, second} {
		if err := store.Store(context.Background(), path, res); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if len(fake.data) != 1 {
		t.Fatalf("expected a single key, got %d", len(fake.data))
	}
	raw, ok := fake.data["predictions:it:Infosys:results"]
	if !ok {
		t.Fatalf("missing key, have %v", fake.data)
	}
	var stored domain.PredictionResult
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("stored value is not JSON: %v", err)
	}
	if stored.PredictedPrice != 20 {
		t.Fatalf("expected last write to win, got %v", stored.PredictedPrice)
	}
	if fake.lastTTL != 0 {
		t.Fatalf("results must not expire, got ttl %v", fake.lastTTL)
	}
}

func TestResultStoreSurfacesErrors(t *testing.T) {
	fake := newFakeRedis()
	fake.setErr = errors.New("READONLY")
	store := NewResultStore(fake, testTracer)

	err := store.Store(context.Background(), domain.NewResultPath(domain.SectorIT, "Infosys"), domain.PredictionResult{})
	if err == nil {
		t.Fatal("expected error")
	}
}

type fakeRedis struct {
	data    map[string][]byte
	setErr  error
	lastTTL time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]byte)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.lastTTL = expiration
	switch v := value.(type) {
	case []byte:
		f.data[key] = append([]byte(nil), v...)
	case string:
		f.data[key] = []byte(v)
	default:
		b, _ := json.Marshal(v)
		f.data[key] = b
	}
	return redis.NewStatusResult("OK", nil)
}
