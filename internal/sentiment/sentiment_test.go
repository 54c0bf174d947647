package sentiment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trendloom/harvester/internal/config"
	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/sentiment"
)

func TestLabelFor_Thresholds(t *testing.T) {
	assert.Equal(t, domain.SentimentPositive, sentiment.LabelFor(0.11))
	assert.Equal(t, domain.SentimentNegative, sentiment.LabelFor(-0.11))
	assert.Equal(t, domain.SentimentNeutral, sentiment.LabelFor(0.1))
	assert.Equal(t, domain.SentimentNeutral, sentiment.LabelFor(-0.1))
	assert.Equal(t, domain.SentimentNeutral, sentiment.LabelFor(0))
}

func TestDetectLexiconSentiment_PositiveAndNegative(t *testing.T) {
	pos := sentiment.DetectLexiconSentiment("this is amazing and wonderful, I love it")
	assert.Greater(t, pos.Polarity, 0.0)

	neg := sentiment.DetectLexiconSentiment("this is terrible and awful, I hate it")
	assert.Less(t, neg.Polarity, 0.0)

	neutral := sentiment.DetectLexiconSentiment("the package arrived on tuesday")
	assert.Equal(t, 0.0, neutral.Polarity)
}

func TestDetectLanguage_BelowMinConfidenceIsUnknown(t *testing.T) {
	r := sentiment.DetectLanguage("xyz qwerty zzz", 0.5)
	assert.Equal(t, "unknown", r.Language)
}

func TestDetectLanguage_EnglishAboveThreshold(t *testing.T) {
	r := sentiment.DetectLanguage("the best of the best is this and that", 0.3)
	assert.Equal(t, "en", r.Language)
	assert.GreaterOrEqual(t, r.Confidence, 0.3)
}

func TestAnalyzer_LLMDisabledFallsBackToLexiconOnly(t *testing.T) {
	a := sentiment.NewAnalyzer(config.Config{LLMSentimentEnabled: false})
	result := a.Analyze(context.Background(), "I love this, amazing!")
	assert.Len(t, result.Detectors, 1)
	assert.Equal(t, "lexicon", result.Detectors[0].Name)
	assert.Equal(t, domain.SentimentPositive, result.Label)
}

func TestAggregateSamples_Empty(t *testing.T) {
	agg := sentiment.AggregateSamples(nil)
	assert.Equal(t, 0.0, agg.Polarity)
	assert.Equal(t, "", agg.PrimaryLanguage)
}

func TestAggregateSamples_MeanPolarityAndMostCommonLabel(t *testing.T) {
	samples := []sentiment.SampleSentiment{
		{Polarity: 1, Label: domain.SentimentPositive, Language: "en", Confidence: 0.8},
		{Polarity: 1, Label: domain.SentimentPositive, Language: "en", Confidence: 0.6},
		{Polarity: -1, Label: domain.SentimentNegative, Language: "es", Confidence: 0.9},
	}
	agg := sentiment.AggregateSamples(samples)
	assert.InDelta(t, 1.0/3, agg.Polarity, 0.001)
	assert.Equal(t, domain.SentimentPositive, agg.Label)
	assert.Equal(t, "en", agg.PrimaryLanguage)
	assert.InDelta(t, 2.0/3*100, agg.PrimaryLangPercent, 0.001)
	assert.InDelta(t, 0.7, agg.MeanConfidence, 0.001)
}

func TestAggregateSamples_LanguageCountsTracksAll(t *testing.T) {
	samples := []sentiment.SampleSentiment{
		{Language: "en"}, {Language: "en"}, {Language: "fr"},
	}
	agg := sentiment.AggregateSamples(samples)
	assert.Equal(t, 2, agg.LanguageCounts["en"])
	assert.Equal(t, 1, agg.LanguageCounts["fr"])
}
