package pricing

// Tier classifies a slot price relative to the rolling average.
type Tier string

const (
	TierVeryCheap     Tier = "VERY_CHEAP"
	TierCheap         Tier = "CHEAP"
	TierNormal        Tier = "NORMAL"
	TierExpensive     Tier = "EXPENSIVE"
	TierVeryExpensive Tier = "VERY_EXPENSIVE"
	TierUnknown       Tier = "UNKNOWN"
)

// minMeaningfulAverage is the floor below which a rolling average carries no
// signal and every price classifies as unknown.
const minMeaningfulAverage = 0.0001

// Classify buckets price against the rolling average by ratio. The boundary
// comparisons are part of the tariff contract: an exact 0.60 or 0.90 ratio
// classifies into the cheaper bucket, an exact 1.15 or 1.40 into the more
// expensive one.
func Classify(price, average float64) Tier {
	if average <= minMeaningfulAverage {
		return TierUnknown
	}

	ratio := price / average
	switch {
	case ratio <= 0.60:
		return TierVeryCheap
	case ratio <= 0.90:
		return TierCheap
	case ratio < 1.15:
		return TierNormal
	case ratio < 1.40:
		return TierExpensive
	}
	return TierVeryExpensive
}

// ParseTier maps a stored tier name back to a Tier, defaulting to unknown.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierVeryCheap, TierCheap, TierNormal, TierExpensive, TierVeryExpensive:
		return Tier(s)
	}
	return TierUnknown
}
