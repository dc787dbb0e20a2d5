package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"fundamental-analyzer/internal/domain"
)

var ErrInvalidFeatureValue = errors.New("invalid feature value")

// ValueError reports a known feature whose value could not be read as a number.
type ValueError struct {
	Feature string
	Value   any
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("invalid value for feature %q: %v", e.Feature, e.Value)
}

func (e *ValueError) Unwrap() error {
	return ErrInvalidFeatureValue
}

// Normalize encodes fundamentals as the sector's fixed-order feature vector.
// Missing features become 0 and keys outside the sector's list are ignored.
func Normalize(sector domain.Sector, fundamentals domain.Fundamentals) ([]float64, error) {
	names := sector.Features()
	if names == nil {
		return nil, domain.ErrUnknownSector
	}

	out := make([]float64, len(names))
	for i, name := range names {
		raw, ok := fundamentals[name]
		if !ok {
			continue
		}
		v, err := ToFloat(raw)
		if err != nil {
			return nil, &ValueError{Feature: name, Value: raw}
		}
		out[i] = v
	}
	return out, nil
}

// ToFloat coerces a decoded JSON value to float64. Numbers, numeric strings and
// booleans are accepted; null, containers and non-finite values are not.
func ToFloat(raw any) (float64, error) {
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int32:
		v = float64(x)
	case int64:
		v = float64(x)
	case uint:
		v = float64(x)
	case uint32:
		v = float64(x)
	case uint64:
		v = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, ErrInvalidFeatureValue
		}
		v = f
	case bool:
		if x {
			v = 1
		}
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, ErrInvalidFeatureValue
		}
		v = f
	default:
		return 0, ErrInvalidFeatureValue
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidFeatureValue
	}
	return v, nil
}
