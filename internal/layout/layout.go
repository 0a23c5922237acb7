package layout

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/captionlens/internal/transcript"
)

// MaxCharsPerWord bounds how many characters of an unbroken word end up on
// one line before it is hard-cut.
const MaxCharsPerWord = 20

// Tokens wraps tokens into lines no wider than maxWidth and returns the
// rendered text.
//
// Tokens that are already laid out keep their line placement and are not
// measured again. Each new token is measured together with the current line;
// when it does not fit, the previous token gets a trailing line break and the
// new token starts the next line. A token wider than a whole line is cut into
// pieces that fit. Every placed token is marked laid out at now.
//
// A non-positive maxWidth disables wrapping. Calling Tokens again on the same
// tokens yields the same text.
func Tokens(tokens []*transcript.Token, maxWidth float64, m Measurer, now time.Time) string {
	var (
		line        string
		prevEastern bool
	)
	for i, t := range tokens {
		if t.IsLineBreak() {
			line = ""
			if !t.LaidOut {
				t.MarkLaidOut(now)
			}
			continue
		}

		if t.LaidOut {
			line = joinLine(line, t.Raw, prevEastern)
			if k := strings.LastIndexByte(line, '\n'); k >= 0 {
				line = line[k+1:]
			}
			prevEastern = t.Eastern
			continue
		}

		word := strings.TrimSuffix(t.Raw, "\n")
		switch {
		case maxWidth <= 0:
			line = joinLine(line, word, prevEastern)
		case m.Measure(word) > maxWidth:
			if line != "" {
				breakAfter(tokens[i-1])
			}
			pieces := hardCut(word, maxWidth, m)
			t.Raw = strings.Join(pieces, "\n") + t.Raw[len(word):]
			line = pieces[len(pieces)-1]
		default:
			candidate := joinLine(line, word, prevEastern)
			if line != "" && m.Measure(candidate) > maxWidth {
				breakAfter(tokens[i-1])
				candidate = word
			}
			line = candidate
		}
		t.MarkLaidOut(now)
		if t.EndsLine() {
			line = ""
		}
		prevEastern = t.Eastern
	}
	return render(tokens)
}

func joinLine(line, word string, prevEastern bool) string {
	if line == "" {
		return word
	}
	if prevEastern {
		return line + word
	}
	return line + " " + word
}

func breakAfter(t *transcript.Token) {
	if !t.EndsLine() {
		t.Raw += "\n"
	}
}

// hardCut splits word into pieces of at most MaxCharsPerWord runes that each
// fit maxWidth. A single rune wider than maxWidth still makes a piece.
func hardCut(word string, maxWidth float64, m Measurer) []string {
	var pieces []string
	for word != "" {
		end, n := 0, 0
		for i, r := range word {
			next := i + utf8.RuneLen(r)
			if n > 0 && (n == MaxCharsPerWord || m.Measure(word[:next]) > maxWidth) {
				break
			}
			end = next
			n++
		}
		pieces = append(pieces, word[:end])
		word = word[end:]
	}
	return pieces
}

// render joins laid-out tokens. Words are separated by a space unless the
// previous token ends a line, is Eastern, or the next token is a line break.
func render(tokens []*transcript.Token) string {
	var b strings.Builder
	for i, t := range tokens {
		b.WriteString(t.Raw)
		if i == len(tokens)-1 || t.EndsLine() || t.Eastern || tokens[i+1].IsLineBreak() {
			continue
		}
		b.WriteByte(' ')
	}
	return strings.TrimSpace(b.String())
}
