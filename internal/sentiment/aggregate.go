package sentiment

import "github.com/trendloom/harvester/internal/domain"

// Aggregate is the rolled-up sentiment/language summary for a trend's
// samples (spec.md §4.7: arithmetic-mean polarity, most-common label,
// language distribution, argmax primary language with its percent, and mean
// confidence over primary-language samples only).
type Aggregate struct {
	Polarity           float64
	Label              domain.SentimentLabel
	LanguageCounts     map[string]int
	PrimaryLanguage    string
	PrimaryLangPercent float64
	MeanConfidence     float64
}

// AggregateSamples rolls up per-sample SampleSentiment results into one
// trend-level Aggregate. Returns the zero Aggregate for an empty input.
func AggregateSamples(samples []SampleSentiment) Aggregate {
	if len(samples) == 0 {
		return Aggregate{LanguageCounts: map[string]int{}}
	}

	var polaritySum float64
	labelCounts := map[domain.SentimentLabel]int{}
	langCounts := map[string]int{}
	for _, s := range samples {
		polaritySum += s.Polarity
		labelCounts[s.Label]++
		langCounts[s.Language]++
	}

	primaryLang, primaryCount := "", 0
	for lang, c := range langCounts {
		if c > primaryCount || (c == primaryCount && lang < primaryLang) {
			primaryLang, primaryCount = lang, c
		}
	}

	var confidenceSum float64
	var confidenceN int
	for _, s := range samples {
		if s.Language == primaryLang {
			confidenceSum += s.Confidence
			confidenceN++
		}
	}
	meanConfidence := 0.0
	if confidenceN > 0 {
		meanConfidence = confidenceSum / float64(confidenceN)
	}

	return Aggregate{
		Polarity:           polaritySum / float64(len(samples)),
		Label:              mostCommonLabel(labelCounts),
		LanguageCounts:     langCounts,
		PrimaryLanguage:    primaryLang,
		PrimaryLangPercent: float64(primaryCount) / float64(len(samples)) * 100,
		MeanConfidence:     meanConfidence,
	}
}

func mostCommonLabel(counts map[domain.SentimentLabel]int) domain.SentimentLabel {
	best, bestCount := domain.SentimentNeutral, -1
	// Fixed iteration order keeps ties deterministic regardless of map order.
	for _, label := range []domain.SentimentLabel{domain.SentimentPositive, domain.SentimentNeutral, domain.SentimentNegative} {
		if c := counts[label]; c > bestCount {
			best, bestCount = label, c
		}
	}
	return best
}
