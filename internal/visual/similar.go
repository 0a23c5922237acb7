// Package visual holds the bookkeeping for visual suggestions shown next to
// the transcript: label similarity used to avoid showing the same thing
// twice, and a handle-based arena for on-screen widgets.
package visual

import (
	"strings"

	"github.com/kljensen/snowball/english"
)

// DefaultThreshold is the Jaccard similarity above which two labels are
// considered the same suggestion.
const DefaultThreshold = 0.7

const stripped = ".,-/#!$%^&*;:{}=_`~()"

var stopwords = toSet(
	"i", "me", "my", "myself", "we", "our", "ours", "ourselves", "you", "your",
	"yours", "yourself", "yourselves", "he", "him", "his", "himself", "she",
	"her", "hers", "herself", "it", "its", "itself", "they", "them", "their",
	"theirs", "themselves", "what", "which", "who", "whom", "this", "that",
	"these", "those", "am", "is", "are", "was", "were", "be", "been", "being",
	"have", "has", "had", "having", "do", "does", "did", "doing", "a", "an",
	"the", "and", "but", "if", "or", "because", "as", "until", "while", "of",
	"at", "by", "for", "with", "about", "against", "between", "into",
	"through", "during", "before", "after", "above", "below", "to", "from",
	"up", "down", "in", "out", "on", "off", "over", "under", "again",
	"further", "then", "once", "here", "there", "when", "where", "why", "how",
	"all", "any", "both", "each", "few", "more", "most", "other", "some",
	"such", "no", "nor", "not", "only", "own", "same", "so", "than", "too",
	"very", "s", "t", "can", "will", "just", "don", "should", "now", "well",
)

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// IsSimilar reports whether the Jaccard similarity of the content words of a
// and b exceeds threshold. Words are lower-cased, stripped of punctuation,
// filtered against an English stopword list and stemmed. Labels without any
// content word are never similar. The result is symmetric in a and b.
func IsSimilar(a, b string, threshold float64) bool {
	return Similarity(a, b) > threshold
}

// Similarity returns the Jaccard similarity of the content words of a and b
// in [0, 1].
func Similarity(a, b string) float64 {
	sa, sb := contentWords(a), contentWords(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	common := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			common++
		}
	}
	return float64(common) / float64(len(sa)+len(sb)-common)
}

func contentWords(s string) map[string]struct{} {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(stripped, r) {
			return -1
		}
		return r
	}, strings.ToLower(s))

	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		if _, stop := stopwords[w]; stop {
			continue
		}
		set[english.Stem(w, false)] = struct{}{}
	}
	return set
}
