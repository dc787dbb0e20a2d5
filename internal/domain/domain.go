package domain

import (
	"strings"
	"time"
)

// Direction is the classifier's binary movement label.
type Direction int

const (
	DirectionDown Direction = 0
	DirectionUp   Direction = 1
)

func (d Direction) IsValid() bool {
	return d == DirectionDown || d == DirectionUp
}

// Fundamentals are the named financial inputs for one company as supplied by
// the caller. Values are whatever the JSON decoder produced.
type Fundamentals map[string]any

// Clone returns a shallow copy so callers can keep the original untouched.
func (f Fundamentals) Clone() Fundamentals {
	out := make(Fundamentals, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// PredictionResult is the record produced once per prediction request.
type PredictionResult struct {
	Sector                 Sector       `json:"sector" firestore:"sector"`
	Company                string       `json:"company" firestore:"company"`
	PredictedPrice         float64      `json:"predicted_price" firestore:"predicted_price"`
	PredictedChangePercent float64      `json:"predicted_change_percent" firestore:"predicted_change_percent"`
	Direction              Direction    `json:"direction" firestore:"direction"`
	Confidence             float64      `json:"confidence" firestore:"confidence"`
	Timestamp              time.Time    `json:"timestamp" firestore:"timestamp"`
	InputFundamentals      Fundamentals `json:"input_fundamentals" firestore:"input_fundamentals"`
}

// ResultPath addresses the stored result for one (sector, company) pair.
// Writes to the same path overwrite.
type ResultPath struct {
	Sector  Sector
	Company string
}

const (
	resultsCollection = "predictions"
	resultsDocument   = "results"
)

// pathSeparators would split a company across segments of String or Key.
const pathSeparators = "/:"

// ValidCompany reports whether company can name a result path: non-blank and
// free of path separators.
func ValidCompany(company string) bool {
	return strings.TrimSpace(company) != "" && !strings.ContainsAny(company, pathSeparators)
}

func NewResultPath(sector Sector, company string) ResultPath {
	return ResultPath{Sector: sector, Company: company}
}

// Segments returns the hierarchical path: predictions, sector, company, results.
func (p ResultPath) Segments() []string {
	return []string{resultsCollection, string(p.Sector), p.Company, resultsDocument}
}

func (p ResultPath) String() string {
	return strings.Join(p.Segments(), "/")
}

// Key renders the path as a colon-separated key for flat key-value stores.
func (p ResultPath) Key() string {
	return strings.Join(p.Segments(), ":")
}
