package relevance

import (
	"sort"
	"strings"
)

// Deterministic local extraction used when the analysis collaborator fails
// or returns unparseable output. A document must always end up with some
// usable fingerprint so downstream scoring is never blocked.

const (
	fallbackKeywordCount = 8
	minKeywordLen        = 5
)

var stopwords = map[string]struct{}{
	"about": {}, "above": {}, "after": {}, "again": {}, "against": {},
	"because": {}, "been": {}, "before": {}, "being": {}, "below": {},
	"between": {}, "both": {}, "cannot": {}, "could": {}, "does": {},
	"doing": {}, "down": {}, "during": {}, "each": {}, "every": {},
	"from": {}, "further": {}, "have": {}, "having": {}, "here": {},
	"itself": {}, "more": {}, "most": {}, "other": {}, "over": {},
	"same": {}, "should": {}, "since": {}, "some": {}, "such": {},
	"than": {}, "that": {}, "their": {}, "theirs": {}, "them": {},
	"themselves": {}, "then": {}, "there": {}, "these": {}, "they": {},
	"this": {}, "those": {}, "through": {}, "under": {}, "until": {},
	"very": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"while": {}, "with": {}, "within": {}, "without": {}, "would": {},
	"your": {}, "yours": {},
}

// ExtractKeywords returns the top fallbackKeywordCount frequent words of at
// least minKeywordLen characters, stopwords excluded. Ties break
// alphabetically so the result is stable for identical input.
func ExtractKeywords(text string) []string {
	counts := map[string]int{}
	for _, raw := range strings.FieldsFunc(text, func(r rune) bool { return !isWordRune(r) }) {
		word := strings.ToLower(strings.Trim(raw, "'-"))
		if len(word) < minKeywordLen {
			continue
		}
		if _, ok := stopwords[word]; ok {
			continue
		}
		counts[word]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > fallbackKeywordCount {
		words = words[:fallbackKeywordCount]
	}
	return words
}

// ExtractJSONBlock returns the first balanced {...} block in s, tolerating
// surrounding prose and brace characters inside JSON strings. Returns ""
// when no balanced block exists.
func ExtractJSONBlock(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// Truncate caps text at max bytes without splitting a word when avoidable.
func Truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	if idx := strings.LastIndexByte(cut, ' '); idx > max/2 {
		cut = cut[:idx]
	}
	return cut
}
