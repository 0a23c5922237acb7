// Package source provides the text a session stabilizes: recognizer
// hypotheses or meeting captions, whichever the caption mode selects.
package source

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/captionlens/internal/transcript"
	"github.com/MrWong99/captionlens/pkg/types"
)

// DefaultOutdate is how long a recognizer hypothesis stays on screen
// without a newer one.
const DefaultOutdate = 7400 * time.Millisecond

// DefaultPollEvery is how many ticks pass between two reads of recognizer
// text. Recognizers re-emit the whole utterance many times per second, so
// reading every tick only adds churn.
const DefaultPollEvery = 10

// Recognizer holds the latest recognizer hypothesis. Writers call
// [Recognizer.Push] or [Recognizer.Pump]; the session reads with
// [Recognizer.Text]. It is safe for concurrent use.
type Recognizer struct {
	outdate   time.Duration
	pollEvery int
	rewriter  *transcript.PhraseRewriter
	now       func() time.Time

	mu         sync.Mutex
	text       string
	final      bool
	receivedAt time.Time
}

// RecognizerOption configures a [Recognizer].
type RecognizerOption func(*Recognizer)

// WithOutdate sets how long a hypothesis is shown without an update.
func WithOutdate(d time.Duration) RecognizerOption {
	return func(r *Recognizer) { r.outdate = d }
}

// WithPollEvery sets the tick divisor reported by [Recognizer.PollEvery].
func WithPollEvery(n int) RecognizerOption {
	return func(r *Recognizer) { r.pollEvery = n }
}

// WithPhraseRewriter applies pr to every hypothesis.
func WithPhraseRewriter(pr *transcript.PhraseRewriter) RecognizerOption {
	return func(r *Recognizer) { r.rewriter = pr }
}

// WithClock replaces time.Now for hypotheses without a receive time.
func WithClock(now func() time.Time) RecognizerOption {
	return func(r *Recognizer) { r.now = now }
}

// NewRecognizer returns an empty Recognizer.
func NewRecognizer(opts ...RecognizerOption) *Recognizer {
	r := &Recognizer{outdate: DefaultOutdate, pollEvery: DefaultPollEvery, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	if r.outdate <= 0 {
		r.outdate = DefaultOutdate
	}
	return r
}

// Push replaces the current hypothesis.
func (r *Recognizer) Push(h types.Hypothesis) {
	at := h.ReceivedAt
	if at.IsZero() {
		at = r.now()
	}
	text := r.rewriter.Rewrite(strings.TrimSpace(h.Text))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.text, r.final, r.receivedAt = text, h.IsFinal, at
}

// Pump pushes every hypothesis from ch until ch is closed or ctx ends.
func (r *Recognizer) Pump(ctx context.Context, ch <-chan types.Hypothesis) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case h, ok := <-ch:
			if !ok {
				return nil
			}
			r.Push(h)
		}
	}
}

// Text returns the punctuated current hypothesis, or "" once it is older
// than the outdate time. An outdated hypothesis is dropped for good.
func (r *Recognizer) Text(now time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.text == "" {
		return ""
	}
	if now.Sub(r.receivedAt) > r.outdate {
		r.text, r.final = "", false
		return ""
	}
	return transcript.Punctuate(r.text, r.final)
}

// LastReceived returns when the current hypothesis arrived.
func (r *Recognizer) LastReceived() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.receivedAt
}

// PollEvery implements session.Throttler.
func (r *Recognizer) PollEvery() int { return max(r.pollEvery, 1) }

// Reset drops the current hypothesis.
func (r *Recognizer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text, r.final, r.receivedAt = "", false, time.Time{}
}

// Captions holds the latest meeting captions. It is safe for concurrent use.
type Captions struct {
	mu       sync.Mutex
	enabled  bool
	self     string
	everyone string
}

// Set replaces the captions. enabled reports whether the meeting shows
// captions at all.
func (c *Captions) Set(enabled bool, self, everyone string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled, c.self, c.everyone = enabled, self, everyone
}

// Get returns the current captions.
func (c *Captions) Get() (enabled bool, self, everyone string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled, c.self, c.everyone
}

// Selector is the session's text source. It reads captions or recognizer
// text depending on the caption mode. Recognizer text is used whenever the
// meeting has captions turned off.
type Selector struct {
	rec  *Recognizer
	caps *Captions

	mu   sync.Mutex
	mode types.CaptionMode
}

// NewSelector returns a Selector in the given mode.
func NewSelector(mode types.CaptionMode, rec *Recognizer, caps *Captions) *Selector {
	if !mode.IsValid() {
		mode = types.CaptionRecognizer
	}
	return &Selector{rec: rec, caps: caps, mode: mode}
}

// SetMode switches the caption mode. Invalid modes select the recognizer.
func (s *Selector) SetMode(mode types.CaptionMode) {
	if !mode.IsValid() {
		mode = types.CaptionRecognizer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// Mode returns the current caption mode.
func (s *Selector) Mode() types.CaptionMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// UsingRecognizer reports whether text currently comes from the recognizer.
func (s *Selector) UsingRecognizer() bool {
	if s.caps == nil {
		return true
	}
	enabled, _, _ := s.caps.Get()
	return s.Mode() == types.CaptionRecognizer || !enabled
}

// Text implements session.TextSource.
func (s *Selector) Text(now time.Time) string {
	if s.UsingRecognizer() {
		if s.rec == nil {
			return ""
		}
		return s.rec.Text(now)
	}
	_, self, everyone := s.caps.Get()
	if s.Mode() == types.CaptionSelf {
		return self
	}
	return everyone
}

// PollEvery implements session.Throttler.
func (s *Selector) PollEvery() int {
	if s.UsingRecognizer() && s.rec != nil {
		return s.rec.PollEvery()
	}
	return 1
}
