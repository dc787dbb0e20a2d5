package xgboost

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rmera/boo"
)

type artifact struct {
	FeatureNames []string `json:"feature_names"`
	ModelText    string   `json:"model_text"`
}

// Model is a gradient-boosted tree classifier over the binary direction labels.
type Model struct {
	featureNames []string
	boost        *boo.MultiClass
	labels       []int
}

var ErrFeatureCount = errors.New("feature count mismatch")

const roundTerminator = "ROUND END\n"

func newModel(featureNames []string, boost *boo.MultiClass) (*Model, error) {
	if boost == nil {
		return nil, errors.New("nil booster")
	}
	labels := boost.ClassLabels()
	if len(labels) == 0 {
		return nil, errors.New("model has no classes")
	}
	for _, l := range labels {
		if l != 0 && l != 1 {
			return nil, fmt.Errorf("unsupported class label %d", l)
		}
	}
	return &Model{
		featureNames: append([]string(nil), featureNames...),
		boost:        boost,
		labels:       append([]int(nil), labels...),
	}, nil
}

// PredictProba returns posteriors ordered by class label: [P(0), P(1)].
func (m *Model) PredictProba(sample []float64) ([]float64, error) {
	if m == nil || m.boost == nil {
		return nil, errors.New("nil model")
	}
	if n := len(m.featureNames); n > 0 && len(sample) != n {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrFeatureCount, n, len(sample))
	}
	raw := m.boost.PredictSingle(sample)
	if len(raw) != len(m.labels) {
		return nil, fmt.Errorf("booster returned %d probabilities for %d classes", len(raw), len(m.labels))
	}
	out := make([]float64, 2)
	for i, l := range m.labels {
		out[l] = clamp01(raw[i])
	}
	return out, nil
}

// Predict returns the class with the highest posterior. Ties go to class 0.
func (m *Model) Predict(sample []float64) (int, error) {
	probs, err := m.PredictProba(sample)
	if err != nil {
		return 0, err
	}
	if probs[1] > probs[0] {
		return 1, nil
	}
	return 0, nil
}

func (m *Model) NumFeatures() int {
	if m == nil {
		return 0
	}
	return len(m.featureNames)
}

func (m *Model) MarshalBinary() ([]byte, error) {
	if m == nil || m.boost == nil {
		return nil, errors.New("nil model")
	}
	var buf bytes.Buffer
	if err := boo.JSONMultiClass(m.boost, "softmax", &buf); err != nil {
		return nil, err
	}
	return json.Marshal(artifact{
		FeatureNames: m.featureNames,
		ModelText:    buf.String(),
	})
}

func UnmarshalBinary(blob []byte) (*Model, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty artifact")
	}
	var a artifact
	if err := json.Unmarshal(blob, &a); err != nil {
		return nil, err
	}
	if a.ModelText == "" {
		return nil, errors.New("artifact has no model text")
	}
	// boo only commits a round's trees when it reads the next ROUND header,
	// so the last round needs a terminating marker or it is dropped.
	text := a.ModelText
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	text += roundTerminator
	model, err := boo.UnJSONMultiClass(bufio.NewReader(strings.NewReader(text)))
	if err != nil {
		return nil, err
	}
	return newModel(a.FeatureNames, model)
}

func (m *Model) FeatureNames() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.featureNames))
	copy(out, m.featureNames)
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
