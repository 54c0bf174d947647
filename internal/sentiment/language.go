// Package sentiment implements Sentiment & Language (C7): per-caption
// polarity/label scoring with an optional second, LLM-backed detector, plus
// always-on language detection, matching the lexicon/heuristic-plus-optional-
// LLM split observed in the teacher's internal/adapter/ai package (a pure-Go
// stub detector next to a real, network-backed one).
package sentiment

import (
	"strings"
	"unicode"

	"github.com/trendloom/harvester/pkg/textx"
)

// LanguageResult is one caption's detected language and confidence.
type LanguageResult struct {
	Language   string // ISO-639-1, or "unknown" below MinConfidence
	Confidence float64
}

// stopwords is a small per-language marker set used for a cheap, dependency-free
// langid heuristic: count hits per language, confidence = best language's hits / total words.
var stopwords = map[string][]string{
	"en": {"the", "and", "is", "are", "this", "that", "with", "for", "you", "was", "have"},
	"es": {"el", "la", "los", "las", "que", "para", "con", "una", "está", "pero"},
	"pt": {"o", "a", "os", "as", "que", "para", "com", "uma", "está", "mas", "não"},
	"fr": {"le", "la", "les", "des", "que", "pour", "avec", "une", "est", "mais"},
	"de": {"der", "die", "das", "und", "ist", "für", "mit", "eine", "nicht", "aber"},
	"id": {"yang", "dan", "ini", "itu", "untuk", "dengan", "adalah", "tidak", "dari"},
}

// DetectLanguage applies the stopword-overlap heuristic, returning "unknown"
// when no language clears minConfidence (spec.md §4.7 default 0.5).
func DetectLanguage(caption string, minConfidence float64) LanguageResult {
	words := tokenize(caption)
	if len(words) == 0 {
		return LanguageResult{Language: "unknown", Confidence: 0}
	}

	counts := make(map[string]int, len(stopwords))
	for _, w := range words {
		for lang, markers := range stopwords {
			for _, m := range markers {
				if w == m {
					counts[lang]++
				}
			}
		}
	}

	bestLang, bestCount := "", 0
	for lang, c := range counts {
		if c > bestCount || (c == bestCount && lang < bestLang) {
			bestLang, bestCount = lang, c
		}
	}
	if bestCount == 0 {
		return LanguageResult{Language: "unknown", Confidence: 0}
	}

	confidence := float64(bestCount) / float64(len(words))
	if confidence > 1 {
		confidence = 1
	}
	if confidence < minConfidence {
		return LanguageResult{Language: "unknown", Confidence: confidence}
	}
	return LanguageResult{Language: bestLang, Confidence: confidence}
}

func tokenize(s string) []string {
	s = strings.ToLower(textx.SanitizeText(s))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
