package inference

import (
	"testing"

	"fundamental-analyzer/internal/domain"
	"fundamental-analyzer/internal/ml/models/linreg"
	"fundamental-analyzer/internal/ml/models/logreg"
	"fundamental-analyzer/internal/ml/registry"
)

// loadTestModels binds metals to real artifact-backed models that only look at
// EPS, the last metals feature.
func loadTestModels(t *testing.T) *registry.ModelSet {
	t.Helper()
	n := domain.SectorMetals.FeatureCount()
	weights := make([]float64, n)
	means := make([]float64, n)
	stds := make([]float64, n)
	for i := range stds {
		stds[i] = 1
	}

	weights[n-1] = 0.5
	reg, err := linreg.New(linreg.Artifact{Weights: append([]float64(nil), weights...), Bias: 1, Means: means, Stds: stds})
	if err != nil {
		t.Fatalf("linreg: %v", err)
	}

	weights[n-1] = 1
	clf, err := logreg.New(logreg.Artifact{Weights: weights, Means: means, Stds: stds})
	if err != nil {
		t.Fatalf("logreg: %v", err)
	}

	set, err := registry.NewModelSet(map[domain.Sector]registry.Pair{
		domain.SectorMetals: {Regressor: reg, Classifier: clf},
	})
	if err != nil {
		t.Fatalf("model set: %v", err)
	}
	return set
}
