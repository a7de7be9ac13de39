package relevance

import (
	"math"
	"strings"
)

// Weights of the four overlap terms. The denominator is constant at 1.0:
// every fingerprint field defaults to an empty set/string rather than being
// absent, so all four terms always apply.
const (
	keywordWeight = 0.4
	topicWeight   = 0.3
	themeWeight   = 0.2
	summaryWeight = 0.1
)

// minSummaryWordLen filters connective words out of the coarse summary
// comparison; only words longer than this count.
const minSummaryWordLen = 3

// Score computes the 0-100 relevance score between two fingerprints as a
// weighted sum of Jaccard-style overlaps. Pure and deterministic.
func Score(a, b Fingerprint) int {
	weighted := keywordWeight*SetOverlap(a.Keywords, b.Keywords) +
		topicWeight*SetOverlap(a.Topics, b.Topics) +
		themeWeight*SetOverlap(a.MainThemes, b.MainThemes) +
		summaryWeight*SummarySimilarity(a.Summary, b.Summary)

	score := int(math.Round(weighted * 100))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// SetOverlap is the Jaccard overlap of two string sets, case-insensitive.
// Two empty sets compare as 0.5 (neutral: nothing known cuts both ways);
// exactly one empty set compares as 0 (no information to match against).
func SetOverlap(s1, s2 []string) float64 {
	a := toSet(s1)
	b := toSet(s2)
	if len(a) == 0 && len(b) == 0 {
		return 0.5
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// SummarySimilarity is the coarse word-overlap between two summaries,
// restricted to words longer than minSummaryWordLen. Empty-input handling
// mirrors SetOverlap.
func SummarySimilarity(a, b string) float64 {
	return SetOverlap(summaryWords(a), summaryWords(b))
}

// SharedTerms returns the case-insensitive intersection of two sets,
// preserving the first set's casing and order. Used for fallback
// relationship descriptions.
func SharedTerms(s1, s2 []string) []string {
	b := toSet(s2)
	seen := map[string]bool{}
	out := []string{}
	for _, term := range s1 {
		key := strings.ToLower(strings.TrimSpace(term))
		if key == "" || seen[key] {
			continue
		}
		if _, ok := b[key]; ok {
			seen[key] = true
			out = append(out, strings.TrimSpace(term))
		}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		key := strings.ToLower(strings.TrimSpace(item))
		if key == "" {
			continue
		}
		out[key] = struct{}{}
	}
	return out
}

func summaryWords(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !isWordRune(r)
	})
	out := []string{}
	for _, f := range fields {
		if len(f) > minSummaryWordLen {
			out = append(out, f)
		}
	}
	return out
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '\'' || r == '-':
		return true
	default:
		return false
	}
}
