// Package linreg serves linear regressors that predict percent price change.
package linreg

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Artifact mirrors the classifier artifacts: inputs are standardized with
// Means/Stds, then y = Weights·z + Bias.
type Artifact struct {
	FeatureNames []string  `json:"feature_names"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	Means        []float64 `json:"means"`
	Stds         []float64 `json:"stds"`
}

type Model struct {
	artifact Artifact
}

var ErrFeatureCount = errors.New("feature count mismatch")

func New(a Artifact) (*Model, error) {
	n := len(a.Weights)
	if n == 0 {
		return nil, errors.New("invalid artifact: no weights")
	}
	if a.Means == nil {
		a.Means = make([]float64, n)
	}
	if a.Stds == nil {
		a.Stds = make([]float64, n)
		for i := range a.Stds {
			a.Stds[i] = 1
		}
	}
	if len(a.Means) != n || len(a.Stds) != n {
		return nil, errors.New("invalid artifact: weights, means and stds differ in length")
	}
	for i, s := range a.Stds {
		if s == 0 || math.IsNaN(s) {
			return nil, fmt.Errorf("invalid artifact: zero std at %d", i)
		}
	}
	if floats.HasNaN(a.Weights) || math.IsNaN(a.Bias) {
		return nil, errors.New("invalid artifact: NaN coefficients")
	}
	return &Model{artifact: a}, nil
}

// Predict returns the predicted percent change for one sample.
func (m *Model) Predict(sample []float64) (float64, error) {
	if m == nil {
		return 0, errors.New("nil model")
	}
	if len(sample) != len(m.artifact.Weights) {
		return 0, fmt.Errorf("%w: want %d, got %d", ErrFeatureCount, len(m.artifact.Weights), len(sample))
	}
	z := make([]float64, len(sample))
	floats.SubTo(z, sample, m.artifact.Means)
	floats.Div(z, m.artifact.Stds)
	return floats.Dot(m.artifact.Weights, z) + m.artifact.Bias, nil
}

func (m *Model) NumFeatures() int {
	if m == nil {
		return 0
	}
	return len(m.artifact.Weights)
}

func (m *Model) FeatureNames() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.artifact.FeatureNames))
	copy(out, m.artifact.FeatureNames)
	return out
}

func (m *Model) MarshalBinary() ([]byte, error) {
	if m == nil {
		return nil, errors.New("nil model")
	}
	return json.Marshal(m.artifact)
}

func UnmarshalBinary(data []byte) (*Model, error) {
	if len(data) == 0 {
		return nil, errors.New("empty artifact")
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return New(a)
}
