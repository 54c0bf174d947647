package etl

import (
	"time"

	"github.com/trendloom/harvester/internal/adapter/source"
	"github.com/trendloom/harvester/internal/adapter/source/sourceutil"
	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/scorer"
	"github.com/trendloom/harvester/internal/sentiment"
)

// Transformed is one validated record after normalization, scoring, and
// sentiment aggregation (spec.md §4.9 step 3).
type Transformed struct {
	Platform                domain.Platform
	Topic                   string
	NormalizedTopic         string
	URL                     string
	EngagementScore         float64
	Breakdowns              []scorer.Breakdown
	Likes                   int64
	Comments                int64
	Shares                  int64
	Views                   int64
	Sentiment               sentiment.Aggregate
	ContentTypeDistribution map[string]int
	DiscoveredAt            time.Time
}

// Transform normalizes the hashtag, scores the rolled-up samples (mean of
// numeric metrics, weighted engagement score), and attaches a
// sentiment/language aggregate over every sample's caption.
func Transform(ctx domain.Context, rec source.TrendRecord, weights scorer.Weights, analyzer *sentiment.Analyzer) Transformed {
	samples := make([]scorer.Sample, len(rec.Samples))
	sentiments := make([]sentiment.SampleSentiment, 0, len(rec.Samples))
	var likesSum, commentsSum, sharesSum, viewsSum int64
	for i, s := range rec.Samples {
		samples[i] = scorer.Sample{Likes: s.Likes, Comments: s.Comments, Shares: s.Shares, Views: s.Views}
		likesSum += s.Likes
		commentsSum += s.Comments
		sharesSum += s.Shares
		viewsSum += s.Views
		if s.Caption != "" && analyzer != nil {
			sentiments = append(sentiments, analyzer.Analyze(ctx, s.Caption))
		}
	}

	score, breakdowns := scorer.TrendScore(samples, weights)

	n := int64(len(rec.Samples))
	if n == 0 {
		n = 1
	}

	return Transformed{
		Platform:                rec.Platform,
		Topic:                   rec.Topic,
		NormalizedTopic:         sourceutil.NormalizeHashtag(rec.Topic),
		URL:                     rec.URL,
		EngagementScore:         score,
		Breakdowns:              breakdowns,
		Likes:                   likesSum / n,
		Comments:                commentsSum / n,
		Shares:                  sharesSum / n,
		Views:                   viewsSum / n,
		Sentiment:               sentiment.AggregateSamples(sentiments),
		ContentTypeDistribution: rec.ContentTypeDistribution,
		DiscoveredAt:            rec.DiscoveredAt,
	}
}
