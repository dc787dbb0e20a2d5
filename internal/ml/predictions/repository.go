package predictions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fundamental-analyzer/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const createPredictionsTable = `
CREATE TABLE IF NOT EXISTS sector_predictions (
    sector                   TEXT             NOT NULL,
    company                  TEXT             NOT NULL,
    path                     TEXT             NOT NULL,
    document                 JSONB            NOT NULL,
    predicted_price          DOUBLE PRECISION NOT NULL,
    predicted_change_percent DOUBLE PRECISION NOT NULL,
    direction                SMALLINT         NOT NULL,
    confidence               DOUBLE PRECISION NOT NULL,
    predicted_at             TIMESTAMPTZ      NOT NULL,
    updated_at               TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
    PRIMARY KEY (sector, company)
);
`

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository keeps the latest prediction per (sector, company) in Postgres.
// Each store replaces the previous row; no history is kept.
type Repository struct {
	pool   pool
	tracer trace.Tracer
}

func NewRepository(pool pool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

func (r *Repository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "predictions-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createPredictionsTable)
	return err
}

func (r *Repository) Store(ctx context.Context, path domain.ResultPath, result domain.PredictionResult) error {
	ctx, span := r.tracer.Start(ctx, "predictions-repo.store")
	defer span.End()
	span.SetAttributes(attribute.String("path", path.String()))

	doc, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode prediction: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
INSERT INTO sector_predictions (
    sector, company, path, document,
    predicted_price, predicted_change_percent, direction, confidence,
    predicted_at, updated_at
) VALUES (
    $1, $2, $3, $4,
    $5, $6, $7, $8,
    $9, NOW()
)
ON CONFLICT (sector, company) DO UPDATE SET
    path = EXCLUDED.path,
    document = EXCLUDED.document,
    predicted_price = EXCLUDED.predicted_price,
    predicted_change_percent = EXCLUDED.predicted_change_percent,
    direction = EXCLUDED.direction,
    confidence = EXCLUDED.confidence,
    predicted_at = EXCLUDED.predicted_at,
    updated_at = NOW()`,
		string(path.Sector),
		path.Company,
		path.String(),
		doc,
		result.PredictedPrice,
		result.PredictedChangePercent,
		int16(result.Direction),
		result.Confidence,
		result.Timestamp.UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("prediction upsert affected no rows")
	}
	return nil
}
