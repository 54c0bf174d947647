package sentiment

import "strings"

// positiveWords and negativeWords back the always-on lexicon/heuristic
// detector: polarity is the normalized (positive-hit - negative-hit) count,
// same shape as a bag-of-words sentiment scorer.
var positiveWords = map[string]float64{
	"love": 1, "amazing": 1, "great": 1, "awesome": 1, "best": 1, "beautiful": 1,
	"happy": 1, "excited": 1, "fantastic": 1, "wonderful": 1, "perfect": 1,
	"good": 0.6, "nice": 0.6, "cool": 0.5, "win": 0.8, "win ning": 0.8,
	"lol": 0.4, "haha": 0.4, "congrats": 0.8, "thank": 0.5, "thanks": 0.5,
}

var negativeWords = map[string]float64{
	"hate": 1, "worst": 1, "terrible": 1, "awful": 1, "sad": 0.8, "angry": 1,
	"disgusting": 1, "horrible": 1, "bad": 0.6, "fail": 0.8, "failed": 0.8,
	"boring": 0.6, "annoying": 0.7, "disappointed": 0.8, "scam": 1, "fake": 0.6,
}

// LexiconResult is the pure-Go heuristic detector's output.
type LexiconResult struct {
	Polarity float64 // [-1, 1]
}

// DetectLexiconSentiment scores caption by summed lexicon hits normalized by
// the number of scoring words matched, the teacher's stub-detector idiom
// (internal/adapter/ai/stub) applied to sentiment instead of chat completion.
func DetectLexiconSentiment(caption string) LexiconResult {
	words := tokenize(caption)
	if len(words) == 0 {
		return LexiconResult{Polarity: 0}
	}

	var score float64
	var hits int
	for _, w := range words {
		if v, ok := positiveWords[w]; ok {
			score += v
			hits++
		}
		if v, ok := negativeWords[w]; ok {
			score -= v
			hits++
		}
	}
	if strings.Contains(caption, "!!!") || strings.Contains(caption, "🔥") {
		score += 0.2
		hits++
	}
	if hits == 0 {
		return LexiconResult{Polarity: 0}
	}

	polarity := score / float64(hits)
	if polarity > 1 {
		polarity = 1
	}
	if polarity < -1 {
		polarity = -1
	}
	return LexiconResult{Polarity: polarity}
}
