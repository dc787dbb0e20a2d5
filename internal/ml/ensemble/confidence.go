package ensemble

import "math"

const (
	// A predicted move of this many percent saturates the magnitude component.
	magnitudeSaturationPct = 15.0
	probabilityWeight      = 0.6
	magnitudeWeight        = 0.4
)

// Confidence blends the classifier's probability for its chosen class with the
// size of the regressor's predicted move. The result is rounded to 3 decimals.
// Inputs are not range-checked.
func Confidence(pctChange, classProbability float64) float64 {
	magnitude := math.Min(math.Abs(pctChange)/magnitudeSaturationPct, 1.0)
	return Round(probabilityWeight*classProbability+magnitudeWeight*magnitude, 3)
}

// Round rounds half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
