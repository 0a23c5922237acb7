package session

import (
	"strings"
	"time"

	"github.com/MrWong99/captionlens/internal/layout"
	"github.com/MrWong99/captionlens/internal/transcript"
	"github.com/MrWong99/captionlens/internal/transcript/phonetic"
)

// FlushReason says why live tokens moved into history.
type FlushReason string

const (
	// FlushTimeout means no new text arrived for the clear timeout.
	FlushTimeout FlushReason = "timeout"
	// FlushNewUtterance means the hypothesis shrank sharply, which signals
	// that the recognizer started over.
	FlushNewUtterance FlushReason = "new_utterance"
)

// LineArchiver receives transcript lines that leave the history.
type LineArchiver interface {
	ArchiveLines(lines []string)
}

// BufferUpdate reports what one [Buffer.Update] did.
type BufferUpdate struct {
	// Merged is set when the incoming text changed and was merged.
	Merged bool
	// Merge is the merge outcome when Merged is set.
	Merge transcript.MergeKind
	// Flushed is non-empty when live tokens moved into history.
	Flushed FlushReason
	// Break is set when a soft line break was appended.
	Break bool
	// Archived is the number of history lines handed to the archiver.
	Archived int
}

// Buffer holds the transcript: history tokens that are no longer revised
// and the live tokens of the current hypothesis.
type Buffer struct {
	persist []*transcript.Token
	live    []*transcript.Token

	// archived counts the word tokens trimmed off the history.
	archived int

	lastIncoming  string
	lastChangedAt time.Time
	// flushed is the hypothesis that was moved into history on timeout.
	// Recognizers keep repeating it until they hear something new.
	flushed string

	clearTimeout time.Duration
	breakTimeout time.Duration
	maxHistory   int

	capitalizer *transcript.Capitalizer
	corrector   *phonetic.Corrector
	archiver    LineArchiver
}

// BufferConfig configures a [Buffer].
type BufferConfig struct {
	ClearTimeout time.Duration
	BreakTimeout time.Duration
	// MaxHistoryTokens caps the history. Zero keeps everything.
	MaxHistoryTokens int
	Capitalizer      *transcript.Capitalizer
	Corrector        *phonetic.Corrector
	Archiver         LineArchiver
}

// NewBuffer returns an empty buffer.
func NewBuffer(cfg BufferConfig) *Buffer {
	return &Buffer{
		clearTimeout: cfg.ClearTimeout,
		breakTimeout: cfg.BreakTimeout,
		maxHistory:   cfg.MaxHistoryTokens,
		capitalizer:  cfg.Capitalizer,
		corrector:    cfg.Corrector,
		archiver:     cfg.Archiver,
	}
}

// Update folds the incoming text into the buffer.
//
// A changed, non-empty hypothesis is merged into the live tokens. If the
// merged sequence shrank sharply the old live tokens move into history first.
// When the text stays unchanged for longer than the break timeout a soft line
// break is appended, and after the clear timeout the live tokens move into
// history. Recognizers keep the flushed words at the start of later
// hypotheses; only the words after them are merged.
func (b *Buffer) Update(now time.Time, incoming string) BufferUpdate {
	var u BufferUpdate

	text := incoming
	if b.flushed != "" {
		if incoming == b.flushed {
			return u
		}
		if rest, ok := afterFlushed(incoming, b.flushed); ok {
			text = rest
		} else {
			b.flushed = ""
		}
	}

	if incoming != b.lastIncoming && text != "" {
		res := transcript.MergeDetailed(b.live, text)
		u.Merged, u.Merge = true, res.Kind
		next := res.Tokens
		if transcript.AreTokensNew(b.live, next) {
			b.flush()
			next = transcript.Tokenize(text, transcript.IsEastern(text))
			u.Flushed = FlushNewUtterance
		}
		b.live = next
		b.capitalizer.Apply(b.live)
		b.corrector.Apply(b.live)
		b.lastChangedAt = now
	}
	b.lastIncoming = incoming

	if !u.Merged && len(b.live) > 0 {
		idle := now.Sub(b.lastChangedAt)
		switch {
		case idle > b.clearTimeout:
			b.flushed = b.lastIncoming
			b.flush()
			b.live = nil
			u.Flushed = FlushTimeout
		case idle > b.breakTimeout && !b.live[len(b.live)-1].EndsLine():
			b.live = append(b.live, transcript.NewLineBreak())
			u.Break = true
		}
	}

	u.Archived = b.trimHistory(now)
	return u
}

// afterFlushed returns the words of incoming that follow the flushed
// hypothesis when incoming still starts with it. Words are compared on their
// normalized form so punctuation and case revisions still match.
func afterFlushed(incoming, flushed string) (string, bool) {
	eastern := transcript.IsEastern(incoming)
	old := transcript.Tokenize(flushed, eastern)
	cur := transcript.Tokenize(incoming, eastern)
	if len(cur) < len(old) {
		return "", false
	}
	for i, t := range old {
		if t.Normalized != cur[i].Normalized {
			return "", false
		}
	}
	sep := " "
	if eastern {
		sep = ""
	}
	words := make([]string, 0, len(cur)-len(old))
	for _, t := range cur[len(old):] {
		words = append(words, t.Raw)
	}
	return strings.Join(words, sep), true
}

// flush appends the live tokens and a line break to the history.
func (b *Buffer) flush() {
	if len(b.live) == 0 {
		return
	}
	b.persist = append(b.persist, b.live...)
	if !b.live[len(b.live)-1].EndsLine() {
		b.persist = append(b.persist, transcript.NewLineBreak())
	}
}

// trimHistory cuts whole leading lines while the history is longer than
// the cap and hands them to the archiver.
func (b *Buffer) trimHistory(now time.Time) int {
	if b.maxHistory <= 0 || len(b.persist) <= b.maxHistory {
		return 0
	}
	cut := -1
	for i, t := range b.persist {
		if t.EndsLine() {
			cut = i + 1
			if len(b.persist)-cut <= b.maxHistory {
				break
			}
		}
	}
	if cut < 0 {
		cut = len(b.persist) - b.maxHistory
	}
	lines := textLines(b.persist[:cut], now)
	b.archived += countWordTokens(b.persist[:cut])
	b.persist = append([]*transcript.Token(nil), b.persist[cut:]...)
	if b.archiver != nil && len(lines) > 0 {
		b.archiver.ArchiveLines(lines)
	}
	return len(lines)
}

func textLines(tokens []*transcript.Token, now time.Time) []string {
	var out []string
	for _, l := range strings.Split(transcript.Text(tokens, now), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Drain hands every remaining line to the archiver and empties the buffer.
func (b *Buffer) Drain(now time.Time) int {
	b.flush()
	lines := textLines(b.persist, now)
	if b.archiver != nil && len(lines) > 0 {
		b.archiver.ArchiveLines(lines)
	}
	b.Reset()
	return len(lines)
}

// Render lays out history and live tokens into wrapped text, history
// first. Tokens are marked laid out as a side effect.
func (b *Buffer) Render(maxWidth float64, m layout.Measurer, now time.Time) string {
	history := layout.Tokens(b.persist, maxWidth, m, now)
	live := layout.Tokens(b.live, maxWidth, m, now)
	switch {
	case history == "":
		return live
	case live == "":
		return history
	}
	return history + "\n" + live
}

// Transcript returns the plain text of history and live tokens.
func (b *Buffer) Transcript(now time.Time) string {
	return b.TextSince(0, now)
}

// WordOffset returns how many word tokens the buffer has held since the
// last reset, archived ones included. Revisions of the live hypothesis may
// lower it.
func (b *Buffer) WordOffset() int {
	return b.archived + countWordTokens(b.persist) + countWordTokens(b.live)
}

// TextSince returns the plain text of the words after offset, as returned
// by [Buffer.WordOffset]. Archived words are gone; an offset before them
// yields the whole transcript.
func (b *Buffer) TextSince(offset int, now time.Time) string {
	skip := max(0, offset-b.archived)
	parts := make([]string, 0, 2)
	for _, toks := range [][]*transcript.Token{b.persist, b.live} {
		toks, skip = skipWordTokens(toks, skip)
		if s := strings.TrimSpace(transcript.Text(toks, now)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

func countWordTokens(tokens []*transcript.Token) int {
	n := 0
	for _, t := range tokens {
		if !t.IsLineBreak() {
			n++
		}
	}
	return n
}

// skipWordTokens drops the first n word tokens and any line breaks before
// them. It returns what is left of tokens and of n.
func skipWordTokens(tokens []*transcript.Token, n int) ([]*transcript.Token, int) {
	i := 0
	for ; i < len(tokens) && n > 0; i++ {
		if !tokens[i].IsLineBreak() {
			n--
		}
	}
	return tokens[i:], n
}

// Persisted returns the history tokens.
func (b *Buffer) Persisted() []*transcript.Token { return b.persist }

// Live returns the tokens of the current hypothesis.
func (b *Buffer) Live() []*transcript.Token { return b.live }

// LastChanged returns when the incoming text last changed.
func (b *Buffer) LastChanged() time.Time { return b.lastChangedAt }

// Configure changes the timeouts and the history cap.
func (b *Buffer) Configure(breakAfter, clearAfter time.Duration, maxHistoryTokens int) {
	b.breakTimeout, b.clearTimeout = breakAfter, clearAfter
	b.maxHistory = maxHistoryTokens
}

// SetCorrections replaces the capitalizer and vocabulary corrector.
func (b *Buffer) SetCorrections(c *transcript.Capitalizer, v *phonetic.Corrector) {
	b.capitalizer, b.corrector = c, v
}

// Reset clears all tokens and timers.
func (b *Buffer) Reset() {
	b.persist, b.live = nil, nil
	b.archived = 0
	b.lastIncoming, b.flushed = "", ""
	b.lastChangedAt = time.Time{}
}
