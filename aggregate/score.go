package aggregate

import "math"

// Trend values.
const (
	TrendUp     = "up"
	TrendStable = "stable"
	TrendDown   = "down"
)

// Counts are the per-group totals an activity score is computed from.
type Counts struct {
	Researchers  int
	Projects     int
	Publications int
}

// ActivityScorer turns group counts into a bounded 0..100 score and classifies it.
type ActivityScorer interface {
	Score(c Counts) int
	Trend(score int) string
}

// WeightedScorer is the default scorer:
// min(100, round((researchers*2 + projects*3 + publications*1.5) / 2)).
type WeightedScorer struct {
	UpThreshold     int
	StableThreshold int
}

func DefaultScorer() WeightedScorer {
	return WeightedScorer{UpThreshold: 70, StableThreshold: 40}
}

func (s WeightedScorer) Score(c Counts) int {
	raw := (float64(c.Researchers)*2 + float64(c.Projects)*3 + float64(c.Publications)*1.5) / 2
	score := int(math.Round(raw))
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// Trend is up above UpThreshold, stable above StableThreshold, down otherwise.
func (s WeightedScorer) Trend(score int) string {
	switch {
	case score > s.UpThreshold:
		return TrendUp
	case score > s.StableThreshold:
		return TrendStable
	}
	return TrendDown
}
