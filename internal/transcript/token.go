// Package transcript turns a stream of revisable speech-recognition
// hypotheses into a stable sequence of tokens.
//
// Recognizers re-emit the entire utterance on every partial result and may
// change words they already reported. [Merge] aligns each new hypothesis
// against the tokens already on screen so that displayed words keep their
// identity (and their line placement) while only the differing suffix is
// appended or corrected.
//
// Everything in this package is single-threaded and free of I/O. Time is
// always passed in explicitly so callers can drive it deterministically.
package transcript

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// FinalizeAfter is how long a token must have been laid out before it is
// considered stable enough for punctuation repair.
const FinalizeAfter = 1000 * time.Millisecond

// maxEditDistance is the exclusive Levenshtein bound under which two
// space-delimited words count as the same word ("wifi" vs "wi-fi").
const maxEditDistance = 2

// Token is one word, or one character of Eastern-script text.
//
// Tokens are shared by pointer: a token that survives a merge is the same
// *Token, which is how layout state follows a word across hypotheses.
type Token struct {
	// Raw is the display form. It may be corrected, capitalized, or get a
	// trailing line break appended by layout.
	Raw string

	// Normalized is the lowercase, punctuation-free comparison form. It is
	// fixed at creation.
	Normalized string

	// Pending holds the most recent correction reported by the recognizer.
	Pending string

	// LaidOut is set once the token was placed on a rendered line. Laid-out
	// tokens are never re-wrapped.
	LaidOut bool

	// LaidOutAt is when the token was placed.
	LaidOutAt time.Time

	// Capitalized reports whether the raw word started upper-case at
	// creation. Single-letter words never count.
	Capitalized bool

	// Eastern marks a single Eastern-script character. Eastern tokens are
	// rendered without separating spaces.
	Eastern bool
}

// NewToken creates a token from a raw word as emitted by the recognizer.
func NewToken(raw string, eastern bool) *Token {
	raw = formatRawWord(raw, eastern)
	return &Token{
		Raw:         raw,
		Normalized:  normalize(raw, eastern),
		Capitalized: startsUpper(raw),
		Eastern:     eastern,
	}
}

// NewLineBreak returns a token that forces a line break when rendered.
func NewLineBreak() *Token {
	return &Token{Raw: "\n"}
}

// IsLineBreak reports whether t is a bare line-break token.
func (t *Token) IsLineBreak() bool {
	return t.Raw == "\n"
}

// EndsLine reports whether the rendered token terminates its line.
func (t *Token) EndsLine() bool {
	return strings.HasSuffix(t.Raw, "\n")
}

// SimilarTo reports whether t and o are the same word up to recognizer
// jitter. Eastern characters must match exactly; other words may differ by a
// single edit. Tokens without a comparison form (line breaks, bare
// punctuation) only match each other.
func (t *Token) SimilarTo(o *Token) bool {
	if t.Normalized == "" || o.Normalized == "" {
		return t.Normalized == o.Normalized
	}
	if t.Eastern || o.Eastern {
		return t.Normalized == o.Normalized
	}
	if t.Normalized == o.Normalized {
		return true
	}
	return matchr.Levenshtein(t.Normalized, o.Normalized) < maxEditDistance
}

// Correct records o as a correction of t. The correction is committed to Raw
// only while t is still off screen; displayed words keep their text.
func (t *Token) Correct(o *Token) {
	t.Pending = o.Raw
	if !t.LaidOut && !t.EndsLine() {
		t.Raw = o.Raw
	}
}

// MarkLaidOut freezes the token's line placement.
func (t *Token) MarkLaidOut(now time.Time) {
	t.LaidOut = true
	t.LaidOutAt = now
}

// Finalized reports whether the token has been on screen long enough for
// punctuation repair.
func (t *Token) Finalized(now time.Time) bool {
	return t.LaidOut && now.Sub(t.LaidOutAt) > FinalizeAfter
}

// EndsSentence reports whether the token closes a sentence.
func (t *Token) EndsSentence() bool {
	s := strings.TrimRight(t.Raw, "\n ")
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}

// capitalize upper-cases the first letter of Raw.
func (t *Token) capitalize() {
	t.Raw = CapitalizeFirst(t.Raw)
}

func startsUpper(s string) bool {
	if utf8.RuneCountInString(s) < 2 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r >= 'A' && r <= 'Z'
}

// CapitalizeFirst upper-cases the first non-space character of s.
func CapitalizeFirst(s string) string {
	for i, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		if unicode.IsUpper(r) {
			return s
		}
		return s[:i] + string(unicode.ToUpper(r)) + s[i+utf8.RuneLen(r):]
	}
	return s
}
