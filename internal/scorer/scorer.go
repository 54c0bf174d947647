// Package scorer implements the Engagement Scorer (C8): a per-platform
// weighted-rubric sum over a sample's raw metrics, matching the
// weighted-rubric-with-breakdown style of
// internal/adapter/queue/shared/scoring_rubric.go (component counts,
// weights, weighted scores, and percent-of-total retained on the result).
package scorer

import (
	"math"

	"github.com/trendloom/harvester/internal/domain"
)

// Weights holds the per-metric-type multiplier for one platform (spec.md §4.8).
type Weights struct {
	Likes    float64
	Comments float64
	Shares   float64
	Views    float64
}

// DefaultWeights is the fixed per-platform weighting (likes, comments,
// shares, views) from spec.md §4.8, used when config.PlatformDefaults
// doesn't override a platform's score_weights.
var DefaultWeights = map[domain.Platform]Weights{
	domain.PlatformInstagram: {Likes: 1.0, Comments: 2.5, Shares: 3.5, Views: 0.05},
	domain.PlatformTikTok:    {Likes: 1.0, Comments: 2.0, Shares: 4.0, Views: 0.15},
	domain.PlatformX:         {Likes: 1.0, Comments: 3.0, Shares: 4.0, Views: 0.02},
	domain.PlatformFacebook:  {Likes: 1.0, Comments: 2.0, Shares: 3.0, Views: 0.10},
	domain.PlatformLinkedIn:  {Likes: 1.0, Comments: 3.5, Shares: 4.0, Views: 0.05},
	domain.PlatformYouTube:   {Likes: 1.0, Comments: 2.5, Shares: 3.0, Views: 0.50},
}

// Sample is one sample's raw counts fed into the per-sample formula.
type Sample struct {
	Likes    int64
	Comments int64
	Shares   int64
	Views    int64
}

// Component is one weighted term of a score breakdown.
type Component struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	Weight  float64 `json:"weight"`
	Score   float64 `json:"score"`
	Percent float64 `json:"percent"`
}

// Breakdown is the retained per-sample score decomposition (spec.md §4.8:
// "the breakdown ... is retained for the version record").
type Breakdown struct {
	Raw        float64     `json:"raw"`
	Components []Component `json:"components"`
}

// ScoreSample computes raw = likes*w_l + comments*w_c + shares*w_s + views*w_v
// for one sample under w, returning the full weighted breakdown.
func ScoreSample(s Sample, w Weights) Breakdown {
	components := []Component{
		{Name: "likes", Count: s.Likes, Weight: w.Likes, Score: float64(s.Likes) * w.Likes},
		{Name: "comments", Count: s.Comments, Weight: w.Comments, Score: float64(s.Comments) * w.Comments},
		{Name: "shares", Count: s.Shares, Weight: w.Shares, Score: float64(s.Shares) * w.Shares},
		{Name: "views", Count: s.Views, Weight: w.Views, Score: float64(s.Views) * w.Views},
	}

	var raw float64
	for _, c := range components {
		raw += c.Score
	}
	for i := range components {
		if raw > 0 {
			components[i].Percent = components[i].Score / raw * 100
		}
	}

	return Breakdown{Raw: raw, Components: components}
}

// TrendScore is the arithmetic mean of per-sample scores (spec.md §4.8:
// "Per-trend score = arithmetic mean of per-sample scores").
func TrendScore(samples []Sample, w Weights) (float64, []Breakdown) {
	if len(samples) == 0 {
		return 0, nil
	}
	breakdowns := make([]Breakdown, len(samples))
	var sum float64
	for i, s := range samples {
		b := ScoreSample(s, w)
		breakdowns[i] = b
		sum += b.Raw
	}
	return sum / float64(len(samples)), breakdowns
}

// Normalize applies optional audience-size normalization and time-decay,
// floored at 10% of the original score, clamped to [0, 1e9] (spec.md §4.8).
func Normalize(score float64, audienceSize int64, decayRateWeekly float64, weeksInactive float64) float64 {
	if audienceSize > 0 {
		score = score / float64(audienceSize) * 1000 // per-mille of audience, keeps units comparable
	}
	if decayRateWeekly > 0 && weeksInactive > 0 {
		decayed := score * math.Pow(1-decayRateWeekly, weeksInactive)
		floor := 0.1 * score
		if decayed < floor {
			decayed = floor
		}
		score = decayed
	}
	if score < 0 {
		score = 0
	}
	if score > 1e9 {
		score = 1e9
	}
	return score
}

// WeightsFor resolves the scoring weights for platform, preferring the
// configured per-platform score_weights (keyed by metric name; the compiled-in
// YAML defaults supply them) over DefaultWeights.
func WeightsFor(platform domain.Platform, configured map[string]float64) Weights {
	w, ok := DefaultWeights[platform]
	if !ok {
		w = Weights{Likes: 1.0, Comments: 1.0, Shares: 1.0, Views: 0.1}
	}
	if v, ok := configured["likes"]; ok {
		w.Likes = v
	}
	if v, ok := configured["comments"]; ok {
		w.Comments = v
	}
	if v, ok := configured["shares"]; ok {
		w.Shares = v
	}
	if v, ok := configured["views"]; ok {
		w.Views = v
	}
	return w
}
