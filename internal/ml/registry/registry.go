package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"fundamental-analyzer/internal/domain"
	"fundamental-analyzer/internal/ml/models/linreg"
	"fundamental-analyzer/internal/ml/models/logreg"
	"fundamental-analyzer/internal/ml/models/xgboost"
)

const (
	FormatLinReg  = "linreg"
	FormatLogReg  = "logreg"
	FormatXGBoost = "xgboost"

	regressionFile = "regression.json"
	classifierFile = "classifier.json"
)

// Regressor predicts a percent price change from a sector feature vector.
type Regressor interface {
	Predict(sample []float64) (float64, error)
	NumFeatures() int
}

// Classifier predicts the direction label and per-class posteriors ordered by
// label.
type Classifier interface {
	Predict(sample []float64) (int, error)
	PredictProba(sample []float64) ([]float64, error)
	NumFeatures() int
}

type Pair struct {
	Regressor  Regressor
	Classifier Classifier
}

// ModelSet binds sectors to their model pair. It is built once and only read
// afterwards, so it is safe for concurrent use.
type ModelSet struct {
	pairs map[domain.Sector]Pair
}

var ErrIncompatibleModel = errors.New("model incompatible with sector features")

// NewModelSet validates the bindings against each sector's feature count.
func NewModelSet(pairs map[domain.Sector]Pair) (*ModelSet, error) {
	out := make(map[domain.Sector]Pair, len(pairs))
	for sector, pair := range pairs {
		if !sector.IsValid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSector, sector)
		}
		if pair.Regressor == nil || pair.Classifier == nil {
			return nil, fmt.Errorf("sector %s: regressor and classifier are both required", sector)
		}
		want := sector.FeatureCount()
		if n := pair.Regressor.NumFeatures(); n != want {
			return nil, fmt.Errorf("%w: %s regressor expects %d features, sector has %d", ErrIncompatibleModel, sector, n, want)
		}
		if n := pair.Classifier.NumFeatures(); n != 0 && n != want {
			return nil, fmt.Errorf("%w: %s classifier expects %d features, sector has %d", ErrIncompatibleModel, sector, n, want)
		}
		out[sector] = pair
	}
	return &ModelSet{pairs: out}, nil
}

func (s *ModelSet) Lookup(sector domain.Sector) (Pair, bool) {
	if s == nil {
		return Pair{}, false
	}
	p, ok := s.pairs[sector]
	return p, ok
}

func (s *ModelSet) Has(sector domain.Sector) bool {
	_, ok := s.Lookup(sector)
	return ok
}

// Sectors returns the bound sectors in the canonical sector order.
func (s *ModelSet) Sectors() []domain.Sector {
	if s == nil {
		return nil
	}
	out := make([]domain.Sector, 0, len(s.pairs))
	for _, sector := range domain.SupportedSectors {
		if _, ok := s.pairs[sector]; ok {
			out = append(out, sector)
		}
	}
	return out
}

type LoadOptions struct {
	// RequireAll fails the load when any supported sector has no artifacts.
	RequireAll bool
}

// LoadFS reads <sector dir>/regression.json and classifier.json for every
// supported sector. Missing sectors are skipped unless opts.RequireAll is set.
func LoadFS(fsys fs.FS, opts LoadOptions) (*ModelSet, []domain.Sector, error) {
	pairs := make(map[domain.Sector]Pair, len(domain.SupportedSectors))
	var skipped []domain.Sector
	for _, sector := range domain.SupportedSectors {
		dir := sector.ArtifactDir()
		regBlob, regErr := fs.ReadFile(fsys, path.Join(dir, regressionFile))
		clfBlob, clfErr := fs.ReadFile(fsys, path.Join(dir, classifierFile))
		if errors.Is(regErr, fs.ErrNotExist) && errors.Is(clfErr, fs.ErrNotExist) && !opts.RequireAll {
			skipped = append(skipped, sector)
			continue
		}
		if regErr != nil {
			return nil, nil, fmt.Errorf("load %s regressor: %w", sector, regErr)
		}
		if clfErr != nil {
			return nil, nil, fmt.Errorf("load %s classifier: %w", sector, clfErr)
		}

		reg, err := DecodeRegressor(regBlob)
		if err != nil {
			return nil, nil, fmt.Errorf("decode %s regressor: %w", sector, err)
		}
		clf, err := DecodeClassifier(clfBlob)
		if err != nil {
			return nil, nil, fmt.Errorf("decode %s classifier: %w", sector, err)
		}
		pairs[sector] = Pair{Regressor: reg, Classifier: clf}
	}
	if len(pairs) == 0 {
		return nil, skipped, errors.New("no model artifacts found")
	}
	set, err := NewModelSet(pairs)
	if err != nil {
		return nil, nil, err
	}
	return set, skipped, nil
}

type envelope struct {
	Format string          `json:"format"`
	Model  json.RawMessage `json:"model"`
}

func decodeEnvelope(blob []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return env, err
	}
	if len(env.Model) == 0 {
		return env, errors.New("artifact envelope has no model")
	}
	return env, nil
}

func DecodeRegressor(blob []byte) (Regressor, error) {
	env, err := decodeEnvelope(blob)
	if err != nil {
		return nil, err
	}
	switch env.Format {
	case FormatLinReg:
		return linreg.UnmarshalBinary(env.Model)
	default:
		return nil, fmt.Errorf("unsupported regressor format %q", env.Format)
	}
}

func DecodeClassifier(blob []byte) (Classifier, error) {
	env, err := decodeEnvelope(blob)
	if err != nil {
		return nil, err
	}
	switch env.Format {
	case FormatLogReg:
		return logreg.UnmarshalBinary(env.Model)
	case FormatXGBoost:
		return xgboost.UnmarshalBinary(env.Model)
	default:
		return nil, fmt.Errorf("unsupported classifier format %q", env.Format)
	}
}

// EncodeArtifact wraps a serialized model in the on-disk envelope.
func EncodeArtifact(format string, model []byte) ([]byte, error) {
	if !json.Valid(model) {
		return nil, errors.New("model payload is not valid JSON")
	}
	return json.Marshal(envelope{Format: format, Model: model})
}
