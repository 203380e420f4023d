package dashboard

import "math"

const (
	RecommendationLoading   = "Loading"
	RecommendationFirmShort = "Firm Ground: short studs"
	RecommendationHybrid    = "Firm Ground / Hybrid Ground"
	RecommendationSoftLong  = "Soft Ground: long studs"

	// RecommendationVerySoft is shown above 60% humidity. It repeats the
	// 30-60% label as deployed; the product owner has not confirmed whether
	// a distinct label was intended.
	RecommendationVerySoft = RecommendationSoftLong
)

// Humidity breakpoints in percent. Both bounds belong to the lower band.
const (
	firmGroundBelow = 10.0
	hybridUpTo      = 30.0
	softUpTo        = 60.0
)

// Recommend maps an average humidity to a cleat type. A nil or NaN value
// means no average is available yet.
func Recommend(value *float64) string {
	if value == nil || math.IsNaN(*value) {
		return RecommendationLoading
	}

	v := *value
	switch {
	case v < firmGroundBelow:
		return RecommendationFirmShort
	case v <= hybridUpTo:
		return RecommendationHybrid
	case v <= softUpTo:
		return RecommendationSoftLong
	default:
		return RecommendationVerySoft
	}
}
