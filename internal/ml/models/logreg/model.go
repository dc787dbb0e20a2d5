package logreg

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Artifact is the serialized form of a binary logistic classifier. Inputs are
// standardized with Means/Stds before the linear term.
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
	if len(a.Weights) == 0 || len(a.Weights) != len(a.Means) || len(a.Weights) != len(a.Stds) {
		return nil, errors.New("invalid artifact")
	}
	for i, s := range a.Stds {
		if s == 0 || math.IsNaN(s) {
			return nil, fmt.Errorf("invalid artifact: zero std at %d", i)
		}
	}
	return &Model{artifact: a}, nil
}

// PredictProb returns P(class 1).
func (m *Model) PredictProb(sample []float64) (float64, error) {
	if m == nil {
		return 0, errors.New("nil model")
	}
	if len(sample) != len(m.artifact.Weights) {
		return 0, fmt.Errorf("%w: want %d, got %d", ErrFeatureCount, len(m.artifact.Weights), len(sample))
	}
	x := normalize(sample, m.artifact.Means, m.artifact.Stds)
	return sigmoid(dot(m.artifact.Weights, x) + m.artifact.Bias), nil
}

// PredictProba returns posteriors ordered by class label: [P(0), P(1)].
func (m *Model) PredictProba(sample []float64) ([]float64, error) {
	p, err := m.PredictProb(sample)
	if err != nil {
		return nil, err
	}
	return []float64{1 - p, p}, nil
}

// Predict returns the most probable class label. Ties go to class 0.
func (m *Model) Predict(sample []float64) (int, error) {
	p, err := m.PredictProb(sample)
	if err != nil {
		return 0, err
	}
	if p > 0.5 {
		return 1, nil
	}
	return 0, nil
}

func (m *Model) NumFeatures() int {
	if m == nil {
		return 0
	}
	return len(m.artifact.Weights)
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

func (m *Model) FeatureNames() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.artifact.FeatureNames))
	copy(out, m.artifact.FeatureNames)
	return out
}

func sigmoid(x float64) float64 {
	if x > 35 {
		return 1
	}
	if x < -35 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func normalize(in, means, stds []float64) []float64 {
	out := make([]float64, len(in))
	for i := range in {
		out[i] = (in[i] - means[i]) / stds[i]
	}
	return out
}
