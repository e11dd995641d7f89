// Package scorer reads the overall mark out of generated feedback and aggregates
// marks across a batch.
package scorer

import (
	"math"
	"regexp"
	"slices"
	"strconv"
)

// Score is the mark stated in a piece of feedback.
type Score struct {
	Awarded float64 `json:"awarded"`
	Total   float64 `json:"total"`
	Percent float64 `json:"percentage"`
}

// Summary holds aggregate statistics over parsed scores.
type Summary struct {
	Scored      int      `json:"scored"`
	Unscored    int      `json:"unscored"`
	MeanAwarded *float64 `json:"mean_awarded,omitempty"`
	MeanPercent *float64 `json:"mean_percentage,omitempty"`
	MinAwarded  *float64 `json:"min_awarded,omitempty"`
	MaxAwarded  *float64 `json:"max_awarded,omitempty"`
	Variance    *float64 `json:"variance,omitempty"`
}

var scorePatterns = []*regexp.Regexp{
	// "**Score: 12/15**", "Score: 8 / 10"
	regexp.MustCompile(`(?i)score\D{0,5}?(\d+(?:\.\d+)?)\s*/\s*(\d+)`),
	// "12/15"
	regexp.MustCompile(`(\d+(?:\.\d+)?)\s*/\s*(\d+)`),
	// "12 out of 15"
	regexp.MustCompile(`(\d+(?:\.\d+)?)\s+out\s+of\s+(\d+)`),
}

// Parse returns the first plausible score in text: a mark no larger than its
// positive total. Patterns are tried in order; the earliest match in text wins
// within a pattern.
func Parse(text string) (Score, bool) {
	for _, p := range scorePatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			awarded, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			total, err := strconv.ParseFloat(m[2], 64)
			if err != nil || total <= 0 || awarded > total {
				continue
			}
			return Score{
				Awarded: awarded,
				Total:   total,
				Percent: round2(awarded / total * 100),
			}, true
		}
	}
	return Score{}, false
}

// Summarize aggregates scores. Nil entries count as unscored.
func Summarize(scores []*Score) Summary {
	var awarded, percents []float64
	for _, s := range scores {
		if s == nil {
			continue
		}
		awarded = append(awarded, s.Awarded)
		percents = append(percents, s.Percent)
	}

	summary := Summary{Scored: len(awarded), Unscored: len(scores) - len(awarded)}
	if len(awarded) == 0 {
		return summary
	}

	meanA := mean(awarded)
	meanPct := mean(percents)
	minA := slices.Min(awarded)
	maxA := slices.Max(awarded)
	vari := variance(awarded, meanA)

	summary.MeanAwarded = &meanA
	summary.MeanPercent = &meanPct
	summary.MinAwarded = &minA
	summary.MaxAwarded = &maxA
	summary.Variance = &vari
	return summary
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return round2(sum / float64(len(vals)))
}

// variance calculates the population variance of vals given a precomputed mean.
func variance(vals []float64, mean float64) float64 {
	sumSquaredDiff := 0.0
	for _, v := range vals {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}
	return round2(sumSquaredDiff / float64(len(vals)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
