package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"
)

// MatchType says which rule accepted a fuzzy match.
type MatchType string

const (
	MatchNone        MatchType = ""
	MatchExact       MatchType = "exact"
	MatchPrefix      MatchType = "prefix"
	MatchSubstring   MatchType = "substring"
	MatchFuzzy       MatchType = "fuzzy"
	MatchSubsequence MatchType = "subsequence"
)

const (
	prefixScore      = 0.9
	substringScore   = 0.8
	subsequenceScale = 0.5
)

// DefaultFuzzyThreshold is the minimum Similarity accepted as a fuzzy match.
const DefaultFuzzyThreshold = 0.6

// FuzzyOptions tunes FuzzyMatch.
type FuzzyOptions struct {
	Threshold float64
}

// MatchResult is the outcome of FuzzyMatch.
type MatchResult struct {
	Match bool      `json:"match"`
	Score float64   `json:"score"`
	Type  MatchType `json:"type"`
}

// FuzzyMatch compares query against text case-insensitively and returns the
// first rule that accepts it, strongest first: equality, prefix, substring,
// edit-distance similarity, then in-order subsequence. MatchSubstring (0.8)
// extends the exact, prefix, fuzzy and subsequence result types.
func FuzzyMatch(query, text string, opts FuzzyOptions) MatchResult {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	q := strings.ToLower(query)
	t := strings.ToLower(text)
	if q == "" || t == "" {
		return MatchResult{}
	}

	switch {
	case t == q:
		return MatchResult{Match: true, Score: 1.0, Type: MatchExact}
	case strings.HasPrefix(t, q):
		return MatchResult{Match: true, Score: prefixScore, Type: MatchPrefix}
	case strings.Contains(t, q):
		return MatchResult{Match: true, Score: substringScore, Type: MatchSubstring}
	}

	if sim := Similarity(q, t); sim >= threshold {
		return MatchResult{Match: true, Score: sim, Type: MatchFuzzy}
	}

	if isSubsequence(q, t) {
		ratio := float64(utf8.RuneCountInString(q)) / float64(utf8.RuneCountInString(t))
		return MatchResult{Match: true, Score: subsequenceScale * ratio, Type: MatchSubsequence}
	}
	return MatchResult{}
}

func isSubsequence(q, t string) bool {
	if utf8.RuneCountInString(q) > utf8.RuneCountInString(t) {
		return false
	}
	return len(fuzzy.Find(q, []string{t})) > 0
}
