package sentiment

import (
	"context"

	"github.com/trendloom/harvester/internal/config"
	"github.com/trendloom/harvester/internal/domain"
)

// DetectorBreakdown records one detector's contribution to a sample's
// compound sentiment (spec.md §4.7: "also store per-detector breakdown").
type DetectorBreakdown struct {
	Name     string  `json:"name"`
	Polarity float64 `json:"polarity"`
}

// SampleSentiment is the per-caption result: polarity, label, and
// (if more than one detector ran) the per-detector breakdown.
type SampleSentiment struct {
	Polarity   float64              `json:"polarity"`
	Label      domain.SentimentLabel `json:"label"`
	Language   string               `json:"language"`
	Confidence float64              `json:"confidence"`
	Detectors  []DetectorBreakdown  `json:"detectors,omitempty"`
}

// Analyzer runs the lexicon detector always, and the LLM detector when
// configured, then applies language detection and the compound-average rule.
type Analyzer struct {
	llm           *LLMDetector
	minConfidence float64
}

// NewAnalyzer builds an Analyzer, wiring the LLM detector only when
// cfg.LLMSentimentEnabled and an API key are both present.
func NewAnalyzer(cfg config.Config) *Analyzer {
	minConfidence := cfg.MinConfidence
	if minConfidence <= 0 {
		minConfidence = 0.5
	}
	a := &Analyzer{minConfidence: minConfidence}
	if cfg.LLMSentimentEnabled && cfg.LLMAPIKey != "" {
		a.llm = NewLLMDetector(cfg)
	}
	return a
}

// Analyze scores one caption: always runs the lexicon detector and the
// language detector; runs the LLM detector too when wired, falling back
// silently to the lexicon-only result if the LLM call errors (spec.md §4.6:
// "never raise on missing optional fields (fallback to zero/null with a
// warning)" applies equally to an optional enrichment signal like this one).
func (a *Analyzer) Analyze(ctx context.Context, caption string) SampleSentiment {
	lex := DetectLexiconSentiment(caption)
	detectors := []DetectorBreakdown{{Name: "lexicon", Polarity: lex.Polarity}}
	polarity := lex.Polarity

	if a.llm != nil {
		if p, err := a.llm.DetectPolarity(ctx, caption); err == nil {
			detectors = append(detectors, DetectorBreakdown{Name: "llm", Polarity: p})
			polarity = (lex.Polarity + p) / 2
		}
	}

	lang := DetectLanguage(caption, a.minConfidence)

	return SampleSentiment{
		Polarity:   polarity,
		Label:      LabelFor(polarity),
		Language:   lang.Language,
		Confidence: lang.Confidence,
		Detectors:  detectors,
	}
}

// LabelFor applies spec.md §4.7's fixed thresholds: positive > 0.1,
// negative < -0.1, else neutral.
func LabelFor(polarity float64) domain.SentimentLabel {
	switch {
	case polarity > 0.1:
		return domain.SentimentPositive
	case polarity < -0.1:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}
