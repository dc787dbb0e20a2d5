package predictions

import (
	"context"

	"fundamental-analyzer/internal/domain"

	"cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
)

// FirestoreStore writes results to predictions/{sector}/{company}/results,
// replacing the document on every write.
type FirestoreStore struct {
	tracer trace.Tracer
	setDoc func(ctx context.Context, segments []string, data any) error
}

func NewFirestoreClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	return firestore.NewClient(ctx, projectID, opts...)
}

func NewFirestoreStore(client *firestore.Client, tracer trace.Tracer) *FirestoreStore {
	return &FirestoreStore{
		tracer: tracer,
		setDoc: func(ctx context.Context, segments []string, data any) error {
			doc := client.Collection(segments[0]).Doc(segments[1]).Collection(segments[2]).Doc(segments[3])
			_, err := doc.Set(ctx, data)
			return err
		},
	}
}

func (s *FirestoreStore) Store(ctx context.Context, path domain.ResultPath, result domain.PredictionResult) error {
	ctx, span := s.tracer.Start(ctx, "predictions-firestore.store")
	defer span.End()
	span.SetAttributes(attribute.String("path", path.String()))

	return s.setDoc(ctx, path.Segments(), result)
}
