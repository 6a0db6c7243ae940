package exposure

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RiskBand is the severity of an intake value. Bands are ordered by severity.
type RiskBand int

const (
	Low RiskBand = iota
	Moderate
	High
	VeryHigh
)

// Lower bounds (particles per gram/liter) of the Moderate, High and VeryHigh bands.
const (
	ModerateThreshold = 50.0
	HighThreshold     = 150.0
	VeryHighThreshold = 300.0
)

// Classify maps a single intake value to its band. It is total over float64;
// NaN compares false everywhere and therefore lands in Low.
func Classify(v float64) RiskBand {
	switch {
	case v >= VeryHighThreshold:
		return VeryHigh
	case v >= HighThreshold:
		return High
	case v >= ModerateThreshold:
		return Moderate
	default:
		return Low
	}
}

// String returns the display name used in reports.
func (b RiskBand) String() string {
	switch b {
	case Low:
		return "Low"
	case Moderate:
		return "Moderate"
	case High:
		return "High"
	case VeryHigh:
		return "Very High"
	default:
		return fmt.Sprintf("RiskBand(%d)", int(b))
	}
}

// Color is the presentation color of the band.
func (b RiskBand) Color() string {
	switch b {
	case Moderate:
		return "orange"
	case High:
		return "red"
	case VeryHigh:
		return "darkred"
	default:
		return "green"
	}
}

// Bucket collapses the band into the three recommendation/distribution buckets.
func (b RiskBand) Bucket() Bucket {
	switch b {
	case High, VeryHigh:
		return BucketHigh
	case Moderate:
		return BucketModerate
	default:
		return BucketLow
	}
}

func (b RiskBand) MarshalJSON() ([]byte, error) { return json.Marshal(b.String()) }

func (b *RiskBand) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseRiskBand(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// ParseRiskBand accepts display names case-insensitively ("very high", "VeryHigh").
func ParseRiskBand(s string) (RiskBand, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "")) {
	case "low":
		return Low, nil
	case "moderate":
		return Moderate, nil
	case "high":
		return High, nil
	case "veryhigh":
		return VeryHigh, nil
	}
	return Low, fmt.Errorf("unknown risk band: %q", s)
}

// Bucket is the three-way grouping of bands used for recommendations and counts.
type Bucket string

const (
	BucketHigh     Bucket = "high"
	BucketModerate Bucket = "moderate"
	BucketLow      Bucket = "low"
)

// ClassifyEntity averages the entity's intake values and returns the band of the
// average with the matching recommendation bundle. Callers guarantee at least one value.
func ClassifyEntity(values []float64) (RiskBand, Recommendations) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	band := Classify(sum / float64(len(values)))
	return band, RecommendationsFor(band)
}
