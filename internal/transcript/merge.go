package transcript

import (
	"time"
	"unicode/utf8"
)

const (
	// MaxPendingTokens is how many trailing previous tokens take part in
	// realignment. Older tokens are considered frozen.
	MaxPendingTokens = 10

	// MinCommonTokens is the shortest aligned run for which the incoming
	// hypothesis counts as a continuation of the previous one.
	MinCommonTokens = 1

	// maxInsertedTokens is how many recognizer insertions the lockstep walk
	// tolerates before it gives up and appends.
	maxInsertedTokens = 2
)

// MergeKind reports how [MergeDetailed] produced its result.
type MergeKind int

const (
	// MergeFresh means there were no previous tokens.
	MergeFresh MergeKind = iota
	// MergeReset means the hypothesis did not align with the previous
	// tokens and replaced them.
	MergeReset
	// MergeAligned means previous tokens were carried forward.
	MergeAligned
)

// String returns the metric label for k.
func (k MergeKind) String() string {
	switch k {
	case MergeFresh:
		return "fresh"
	case MergeReset:
		return "reset"
	case MergeAligned:
		return "merged"
	}
	return "unknown"
}

// MergeResult is the outcome of one merge.
type MergeResult struct {
	Tokens []*Token
	Kind   MergeKind
	// Common is the length of the aligned run.
	Common int
	// Kept is how many previous tokens were carried forward.
	Kept int
}

// Merge aligns the hypothesis incoming against previous and returns the
// stabilized token sequence. See [MergeDetailed].
func Merge(previous []*Token, incoming string) []*Token {
	return MergeDetailed(previous, incoming).Tokens
}

// MergeDetailed aligns the hypothesis incoming against previous.
//
// The longest run of similar tokens between the last [MaxPendingTokens] of
// previous and the incoming hypothesis marks the split point. Incoming tokens
// are searched in two windows: the stretch that lines up with the pending
// previous tokens when the hypothesis only grew, and the last
// [MaxPendingTokens] for hypotheses the recognizer rewrote. A run of one
// single-rune token ("I" against "a") is not an alignment unless it is all
// previous has.
//
// Previous tokens before the split are kept as they are. From the split
// point both sequences are walked in lockstep: similar tokens carry the
// previous *Token forward with the new text as a correction, up to two
// inserted incoming tokens are skipped, and the walk stops at the first real
// mismatch. The remaining incoming tokens are appended.
//
// When several runs share the maximum length the leftmost one wins, and the
// growth window wins over the tail window.
func MergeDetailed(previous []*Token, incoming string) MergeResult {
	dst := Tokenize(incoming, IsEastern(incoming))
	if len(previous) == 0 {
		return MergeResult{Tokens: dst, Kind: MergeFresh}
	}

	srcFrom := max(0, len(previous)-MaxPendingTokens)
	src := previous[srcFrom:]

	// Incoming index of previous[srcFrom] if nothing before it changed.
	// Line-break tokens only exist on the previous side.
	base := min(len(dst), srcFrom-countLineBreaks(previous[:srcFrom]))
	windows := [2][2]int{
		{max(0, base-maxInsertedTokens), min(len(dst), base+len(src)+MaxPendingTokens)},
		{max(0, len(dst)-MaxPendingTokens), len(dst)},
	}

	var common, i, j int
	for _, w := range windows {
		n, srcEnd, dstEnd := longestRun(src, dst[w[0]:w[1]])
		if n > common {
			common, i, j = n, srcFrom+srcEnd-n, w[0]+dstEnd-n
		}
	}
	if common < MinCommonTokens || (common == 1 && len(src) > 1 && (singleRune(previous[i]) || singleRune(dst[j]))) {
		return MergeResult{Tokens: dst, Kind: MergeReset}
	}

	out := make([]*Token, 0, len(previous)+len(dst))
	out = append(out, previous[:i]...)

walk:
	for i < len(previous) && j < len(dst) {
		p := previous[i]
		if p.SimilarTo(dst[j]) {
			p.Correct(dst[j])
			out = append(out, p)
			i++
			j++
			continue
		}
		if p.IsLineBreak() {
			out = append(out, p)
			i++
			continue
		}
		for skip := 1; skip <= maxInsertedTokens; skip++ {
			if j+skip < len(dst) && p.SimilarTo(dst[j+skip]) {
				p.Correct(dst[j+skip])
				out = append(out, p)
				i++
				j += skip + 1
				continue walk
			}
		}
		break
	}
	kept := len(out)
	out = append(out, dst[j:]...)

	return MergeResult{Tokens: out, Kind: MergeAligned, Common: common, Kept: kept}
}

// longestRun returns the length of the longest run of pairwise-similar
// tokens in a and b, and the exclusive end index of that run in each.
func longestRun(a, b []*Token) (n, aEnd, bEnd int) {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1].SimilarTo(b[j-1]) {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = 0
			}
			if cur[j] > n {
				n, aEnd, bEnd = cur[j], i, j
			}
		}
		prev, cur = cur, prev
	}
	return n, aEnd, bEnd
}

func countLineBreaks(tokens []*Token) int {
	n := 0
	for _, t := range tokens {
		if t.IsLineBreak() {
			n++
		}
	}
	return n
}

func singleRune(t *Token) bool {
	return utf8.RuneCountInString(t.Normalized) == 1
}

// AreTokensNew reports whether dst looks like the start of a new utterance
// rather than a revision of src: the sequence shrank from more than three
// tokens to one or two.
func AreTokensNew(src, dst []*Token) bool {
	const minTokens = 3
	return len(src) > minTokens && len(dst) > 0 && len(dst) < minTokens
}

// Text joins tokens into a plain string, repairing punctuation.
//
// A finalized token ending in a comma becomes a sentence end when the next
// word was capitalized by the speaker, and a finalized sentence end before a
// lower-case word is softened to a comma. Punctuation on a trailing token
// that is not finalized yet is dropped since the recognizer still revises
// it. Repairs are written back to the tokens.
func Text(tokens []*Token, now time.Time) string {
	var b []byte
	for i, t := range tokens {
		if i == len(tokens)-1 {
			if !t.Finalized(now) {
				b = append(b, trimSentencePunct(t.Raw)...)
			} else {
				b = append(b, t.Raw...)
			}
			break
		}
		if t.EndsLine() {
			b = append(b, t.Raw...)
			continue
		}
		if t.Finalized(now) {
			repairPunctuation(t, tokens[i+1])
		}
		b = append(b, t.Raw...)
		if !t.Eastern {
			b = append(b, ' ')
		}
	}
	return string(b)
}

func repairPunctuation(t, next *Token) {
	if next.IsLineBreak() {
		return
	}
	n := len(t.Raw)
	if n < 2 {
		return
	}
	last := t.Raw[n-1]
	switch {
	case next.Capitalized && last == ',':
		t.Raw = t.Raw[:n-1] + "."
	case !next.Capitalized && (last == '.' || last == '!' || last == '?'):
		t.Raw = t.Raw[:n-1] + ","
	}
}

func trimSentencePunct(s string) string {
	for len(s) > 0 {
		switch s[len(s)-1] {
		case '.', ',', '!', '?':
			s = s[:len(s)-1]
			continue
		}
		break
	}
	return s
}
