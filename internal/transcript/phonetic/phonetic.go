// Package phonetic corrects recognizer spellings of known vocabulary terms
// (product names, people, jargon) in transcript tokens.
//
// A word is a candidate for a term when their Double Metaphone codes overlap.
// Candidates are ranked by Jaro-Winkler similarity and accepted above a
// phonetic threshold. Words without a phonetic candidate may still match a
// term whose plain Jaro-Winkler similarity clears a stricter fuzzy
// threshold.
package phonetic

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/captionlens/internal/transcript"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.92

	// minWordLen keeps short function words ("to", "an") from being pulled
	// towards similar sounding terms.
	minWordLen = 4
)

// Option is a functional option for configuring a [Vocabulary].
type Option func(*Vocabulary)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically matching term. Default: 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(v *Vocabulary) {
		v.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a term without
// phonetic overlap. Default: 0.92.
func WithFuzzyThreshold(threshold float64) Option {
	return func(v *Vocabulary) {
		v.fuzzyThreshold = threshold
	}
}

type term struct {
	spelling string
	lower    string
	codes    [2]string
}

// Vocabulary holds the known terms with their phonetic codes precomputed.
// It is read-only after construction and safe for concurrent use.
type Vocabulary struct {
	terms             []term
	exact             map[string]string
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New builds a vocabulary. Terms containing spaces are ignored since tokens
// are single words.
func New(terms []string, opts ...Option) *Vocabulary {
	v := &Vocabulary{
		exact:             make(map[string]string, len(terms)),
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(v)
	}
	for _, s := range terms {
		s = strings.TrimSpace(s)
		if s == "" || strings.ContainsAny(s, " \t") {
			continue
		}
		lower := strings.ToLower(s)
		p, a := matchr.DoubleMetaphone(lower)
		v.terms = append(v.terms, term{spelling: s, lower: lower, codes: [2]string{p, a}})
		v.exact[lower] = s
	}
	return v
}

// Len returns the number of usable terms.
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.terms)
}

// Match returns the vocabulary spelling for word. When matched is false,
// corrected equals word and confidence is 0.
func (v *Vocabulary) Match(word string) (corrected string, confidence float64, matched bool) {
	lower := strings.ToLower(strings.TrimSpace(word))
	if v.Len() == 0 || utf8.RuneCountInString(lower) < minWordLen {
		return word, 0, false
	}
	if s, ok := v.exact[lower]; ok {
		return s, 1, true
	}

	p, a := matchr.DoubleMetaphone(lower)
	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, t := range v.terms {
		score := matchr.JaroWinkler(lower, t.lower, false)
		if overlaps(p, a, t.codes) {
			if score >= v.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = t.spelling, score, true
			}
			continue
		}
		if !bestPhonetic && score >= v.fuzzyThreshold && score > bestScore {
			best, bestScore = t.spelling, score
		}
	}
	if best == "" {
		return word, 0, false
	}
	return best, bestScore, true
}

func overlaps(p, a string, codes [2]string) bool {
	for _, c := range [2]string{p, a} {
		if c == "" {
			continue
		}
		if c == codes[0] || c == codes[1] {
			return true
		}
	}
	return false
}

// Corrector rewrites tokens using a [Vocabulary].
type Corrector struct {
	vocab *Vocabulary
}

// NewCorrector returns a corrector for vocab. A nil or empty vocabulary
// makes Apply a no-op.
func NewCorrector(vocab *Vocabulary) *Corrector {
	return &Corrector{vocab: vocab}
}

// Apply replaces the word of every token that has not been laid out yet with
// its vocabulary spelling, keeping surrounding punctuation. It returns the
// number of tokens changed.
func (c *Corrector) Apply(tokens []*transcript.Token) int {
	if c == nil || c.vocab.Len() == 0 {
		return 0
	}
	changed := 0
	for _, t := range tokens {
		if t.LaidOut || t.Eastern || t.Normalized == "" {
			continue
		}
		lead, word, trail := splitWord(t.Raw)
		corrected, _, ok := c.vocab.Match(word)
		if !ok || corrected == word {
			continue
		}
		t.Raw = lead + corrected + trail
		changed++
	}
	return changed
}

func splitWord(s string) (lead, word, trail string) {
	const punct = ".,;:!?\"'()\n"
	i, j := 0, len(s)
	for i < j && strings.IndexByte(punct, s[i]) >= 0 {
		i++
	}
	for j > i && strings.IndexByte(punct, s[j-1]) >= 0 {
		j--
	}
	return s[:i], s[i:j], s[j:]
}
