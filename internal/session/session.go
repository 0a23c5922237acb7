// Package session runs one caption overlay. It folds recognizer text into a
// stable transcript, decides when to ask for a summary and produces one
// [Frame] per render tick.
//
// A Session is driven by a single goroutine: the inputs ([Session.Tap],
// [Session.SetLoudness], [Session.SetOptions]) and [Session.Tick] must not
// be called concurrently. Recognizer and summarizer results are pulled from
// a [TextSource] and a [SummarySource] at the start of a tick, so nothing in
// a tick ever blocks.
package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/captionlens/internal/filter"
	"github.com/MrWong99/captionlens/internal/layout"
	"github.com/MrWong99/captionlens/internal/observe"
	"github.com/MrWong99/captionlens/internal/stage"
	"github.com/MrWong99/captionlens/internal/transcript"
	"github.com/MrWong99/captionlens/internal/transcript/phonetic"
	"github.com/MrWong99/captionlens/pkg/types"
)

// TextSource provides the current incoming hypothesis.
type TextSource interface {
	Text(now time.Time) string
}

// Throttler is implemented by text sources that should only be polled every
// n-th tick.
type Throttler interface {
	PollEvery() int
}

// SummarySource produces summaries asynchronously.
type SummarySource interface {
	// Request starts summarizing text. It fails when a request is already
	// in flight.
	Request(text string) error
	// Poll returns the finished summary once. An empty summary means the
	// summarizer failed or had nothing to say.
	Poll() (summary string, ok bool)
}

// SummaryDiscarder is implemented by summary sources that can drop the
// result of a request the session stopped waiting for.
type SummaryDiscarder interface {
	Discard()
}

// Archiver keeps transcript lines and summaries after they leave the
// overlay.
type Archiver interface {
	LineArchiver
	ArchiveSummary(summary string)
}

const (
	minLoudness   = 10
	maxLoudness   = 30
	minLevel      = 0.1
	maxLevel      = 1
	loudnessAlpha = 0.3
	barHeight     = 39
	barDiff       = 15
	barWidth      = 7.5
)

// Option configures a [Session].
type Option func(*Session)

// WithID sets the session id used in logs and archive rows.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithLogger sets the logger. The default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithMetrics sets the metrics sink. The default is
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithMeasurer sets the text measurer used for wrapping. The default
// measures with the built-in bitmap face.
func WithMeasurer(m layout.Measurer) Option {
	return func(s *Session) { s.measurer = m }
}

// WithTextSource sets where incoming text comes from.
func WithTextSource(src TextSource) Option {
	return func(s *Session) { s.text = src }
}

// WithSummarySource enables summaries.
func WithSummarySource(src SummarySource) Option {
	return func(s *Session) { s.summary = src }
}

// WithArchiver sets where lines and summaries go when they leave the
// overlay.
func WithArchiver(a Archiver) Option {
	return func(s *Session) { s.archiver = a }
}

// Session is the state of one caption overlay.
type Session struct {
	id       string
	opts     Options
	ctx      context.Context
	log      *slog.Logger
	metrics  *observe.Metrics
	measurer layout.Measurer
	text     TextSource
	summary  SummarySource
	archiver Archiver

	buf     *Buffer
	machine *stage.Machine
	under   *underliner
	loud    *filter.LowPassFilter

	rawLoudness float64
	tapped      bool
	ticks       int
	lastNow     time.Time

	lastRequestAt time.Time
	// summarizedWords is the buffer word offset at the last summary
	// request. Only words after it count towards the next summary.
	summarizedWords int
	summaryLines    []string

	// lines is the last rendered transcript.
	lines        []string
	lastStart    int
	scrollDelta  float64
	scrollTarget float64
	textY        float64
}

// New creates a session in the transcription stage.
func New(opts Options, deps ...Option) (*Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	loud, err := filter.NewLowPassFilter(loudnessAlpha)
	if err != nil {
		return nil, err
	}
	s := &Session{
		opts:    opts,
		ctx:     context.Background(),
		machine: stage.New(opts.Durations),
		under:   newUnderliner(),
		loud:    loud,
	}
	for _, o := range deps {
		o(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("session_id", s.id)
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.measurer == nil {
		s.measurer = layout.NewFontMeasurer(nil)
	}
	capitalizer, corrector := corrections(opts)
	s.buf = NewBuffer(BufferConfig{
		ClearTimeout:     opts.ClearTimeout,
		BreakTimeout:     opts.BreakTimeout,
		MaxHistoryTokens: opts.MaxHistoryTokens,
		Capitalizer:      capitalizer,
		Corrector:        corrector,
		Archiver:         s.archiver,
	})
	s.metrics.ActiveSessions.Add(s.ctx, 1)
	return s, nil
}

func corrections(o Options) (*transcript.Capitalizer, *phonetic.Corrector) {
	var c *transcript.Capitalizer
	if len(o.Capitalize) > 0 {
		c = transcript.NewCapitalizer(o.Capitalize)
	}
	var v *phonetic.Corrector
	if len(o.Vocabulary) > 0 {
		v = phonetic.NewCorrector(phonetic.New(o.Vocabulary))
	}
	return c, v
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Options returns the active options.
func (s *Session) Options() Options { return s.opts }

// Stage returns the active display stage.
func (s *Session) Stage() stage.Stage { return s.machine.Stage() }

// Buffer exposes the transcript buffer.
func (s *Session) Buffer() *Buffer { return s.buf }

// SetOptions replaces the options. Invalid options are rejected and the
// previous ones stay active.
func (s *Session) SetOptions(o Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	s.opts = o
	s.machine.SetDurations(o.Durations)
	s.buf.Configure(o.BreakTimeout, o.ClearTimeout, o.MaxHistoryTokens)
	s.buf.SetCorrections(corrections(o))
	s.log.Debug("session options updated", "summary_mode", o.SummaryMode, "max_lines", o.Layout.MaxLines)
	return nil
}

// Tap requests a summary on the next tick, or cancels the one in progress.
func (s *Session) Tap() { s.tapped = true }

// SetLoudness records the latest microphone level.
func (s *Session) SetLoudness(v float64) { s.rawLoudness = v }

// Tick advances the session to now and returns the frame to draw.
//
// Within a tick the incoming text is merged first, then laid out, and only
// then does the stage machine advance.
func (s *Session) Tick(now time.Time) Frame {
	s.ticks++
	s.lastNow = now
	if s.lastRequestAt.IsZero() {
		s.lastRequestAt = now
	}

	if !s.machine.SummaryShown() && s.shouldPull() {
		s.updateText(now)
	}
	s.lines = layout.Lines(s.buf.Render(s.opts.Layout.TextWidth(), s.measurer, now))

	s.pollSummary(now)
	s.triggerSummary(now)
	for _, st := range s.machine.Tick(now) {
		s.metrics.RecordStageTransition(s.ctx, st.String())
		if st == stage.Transcription {
			s.summaryLines = nil
			s.discardSummary()
		}
	}

	return s.frame(now)
}

func (s *Session) shouldPull() bool {
	every := 1
	if t, ok := s.text.(Throttler); ok {
		every = max(t.PollEvery(), 1)
	}
	return (s.ticks-1)%every == 0
}

func (s *Session) updateText(now time.Time) {
	var incoming string
	if s.text != nil {
		incoming = s.text.Text(now)
	}
	u := s.buf.Update(now, incoming)
	if u.Merged {
		s.metrics.RecordMerge(s.ctx, u.Merge.String())
	}
	if u.Flushed != "" {
		s.metrics.RecordFlush(s.ctx, string(u.Flushed))
	}
	if u.Archived > 0 {
		s.metrics.ArchivedLines.Add(s.ctx, int64(u.Archived))
	}
}

// ── summaries ───────────────────────────────────────────────────────────────

func (s *Session) pollSummary(now time.Time) {
	if s.summary == nil || !s.machine.Summarizing() {
		return
	}
	text, ok := s.summary.Poll()
	if !ok {
		return
	}
	lines := s.formatSummary(text)
	if len(lines) == 0 {
		s.machine.Abort(now)
		s.metrics.RecordSummary(s.ctx, "empty")
		s.log.Debug("summary was empty")
		return
	}
	s.summaryLines = lines
	s.machine.SummaryReady(now, len(lines))
	s.metrics.RecordSummary(s.ctx, "ok")
	if s.archiver != nil {
		s.archiver.ArchiveSummary(strings.Join(lines, " "))
	}
}

// formatSummary wraps a summary to the text width and cuts it at the last
// punctuation that fits the summary panel.
func (s *Session) formatSummary(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	w := s.opts.Layout.TextWidth()
	text = transcript.Punctuate(text, false)
	text = layout.BreakLines(text, w, s.measurer)
	text = layout.CutAtPunctuation(text, s.opts.Layout.MaxLines)
	text = layout.BreakLines(text, w, s.measurer)
	text = layout.CutAtPunctuation(text, s.opts.Layout.MaxSummaryLines)
	lines := layout.Lines(text)
	if n := s.opts.Layout.MaxSummaryLines; n > 0 && len(lines) > n {
		lines = lines[:n]
	}
	return lines
}

func (s *Session) triggerSummary(now time.Time) {
	tapped := s.tapped
	s.tapped = false
	if s.summary == nil || s.opts.SummaryMode == types.SummaryDisabled {
		return
	}

	if tapped {
		if s.machine.Summarizing() {
			s.machine.Abort(now)
			s.discardSummary()
			s.metrics.RecordSummary(s.ctx, "cancelled")
			return
		}
		s.requestSummary(now, 1)
		return
	}

	switch s.opts.SummaryMode {
	case types.SummaryAutomatic:
		if now.Sub(s.lastRequestAt) < s.opts.SummaryDelay {
			return
		}
		s.lastRequestAt = now
		s.requestSummary(now, s.opts.SummaryMinWords)
	case types.SummaryOnly:
		if last := s.buf.LastChanged(); last.IsZero() || now.Sub(last) <= s.opts.PauseTrigger {
			return
		}
		s.requestSummary(now, s.opts.SummaryMinWords)
	}
}

// requestSummary asks for a summary of the text said since the last
// request if there are at least minWords new words.
func (s *Session) requestSummary(now time.Time, minWords int) bool {
	if s.machine.Stage() != stage.Transcription {
		return false
	}
	text := s.buf.TextSince(s.summarizedWords, now)
	if transcript.CountWords(text) < max(minWords, 1) {
		return false
	}
	text = lastWords(text, s.opts.SummaryMaxWords)
	if err := s.summary.Request(text); err != nil {
		s.metrics.RecordSummary(s.ctx, "busy")
		s.log.Debug("summary request rejected", "err", err)
		return false
	}
	s.summarizedWords = s.buf.WordOffset()
	s.lastRequestAt = now
	s.machine.StartSummarizing(now)
	s.metrics.RecordSummary(s.ctx, "requested")
	return true
}

// lastWords keeps the last n words of text, or the last n characters of
// Eastern text.
func lastWords(text string, n int) string {
	if n <= 0 {
		return text
	}
	if transcript.IsEastern(text) {
		rs := []rune(text)
		if len(rs) > n {
			rs = rs[len(rs)-n:]
		}
		return string(rs)
	}
	words := strings.Fields(text)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}

// ── frame ───────────────────────────────────────────────────────────────────

func (s *Session) frame(now time.Time) Frame {
	o := s.opts.Layout
	lineHeight := layout.Compute(o, layout.State{}).LineHeight

	summaryOnly := s.opts.SummaryMode == types.SummaryOnly
	expanded := summaryOnly || s.machine.SummaryShown()

	var visible []string
	if !expanded {
		visible = s.scroll(lineHeight)
	}

	st := layout.State{Lines: len(visible), Expanded: expanded}
	g := layout.Compute(o, st)
	s.easeText(g.TargetTextY)
	if s.textY != g.TargetTextY {
		st.ScrollY = s.textY
		g = layout.Compute(o, st)
	}

	f := Frame{
		Stage:        s.machine.Stage(),
		Percentage:   s.machine.Percentage(),
		Text:         strings.Join(visible, "\n"),
		Lines:        visible,
		ScrollOffset: s.scrollDelta,
		Caption:      s.caption(),
		Geometry:     g,
		Loudness:     s.loudness(),
	}
	if len(visible) > 0 {
		lineY := g.Text.Y - s.scrollDelta + float64(len(visible)-1)*lineHeight
		f.Underline = s.under.update(now, visible[len(visible)-1], lineY, g, o.ZoomRatio, s.measurer)
	} else {
		s.under.reset()
	}
	if f.Stage >= stage.ToSummarization {
		f.Summary = s.summaryLines
	}
	return f
}

// scroll returns the transcript lines on screen. When a new line pushes the
// oldest one out, the text scrolls up over several ticks before the oldest
// line is dropped.
func (s *Session) scroll(lineHeight float64) []string {
	n := len(s.lines)
	maxLines := s.opts.Layout.MaxLines
	start := max(0, n-maxLines)

	switch {
	case start < s.lastStart || lineHeight <= 0:
		s.lastStart, s.scrollDelta, s.scrollTarget = start, 0, 0
	case start > s.lastStart:
		s.scrollTarget = lineHeight * float64(start-s.lastStart)
	}
	if s.scrollDelta < s.scrollTarget {
		step := max((s.scrollTarget-s.scrollDelta)*s.opts.ScrollingSpeed, 1)
		s.scrollDelta = min(s.scrollDelta+step, s.scrollTarget)
	}
	for lineHeight > 0 && s.scrollDelta >= lineHeight && s.lastStart < start {
		s.scrollDelta -= lineHeight
		s.scrollTarget -= lineHeight
		s.lastStart++
	}
	return s.lines[s.lastStart:min(n, s.lastStart+maxLines+1)]
}

// easeText moves the text top towards target.
func (s *Session) easeText(target float64) {
	if s.textY == 0 {
		s.textY = target
		return
	}
	d := s.textY - target
	switch {
	case d > 0:
		s.textY = max(s.textY-max(d*s.opts.ScrollingSpeed, 1), target)
	case d < 0:
		s.textY = min(s.textY+max(-d*s.opts.ScrollingSpeed, 1), target)
	}
}

func (s *Session) caption() string {
	l := s.opts.Labels
	switch {
	case s.machine.Summarizing():
		return l.Summarizing
	case s.machine.Stage() >= stage.ToSummarization:
		return l.Summary
	case s.opts.SummaryMode == types.SummaryOnly && s.rawLoudness > minLoudness:
		return l.Listening
	}
	return l.Transcription
}

func (s *Session) loudness() Loudness {
	v := s.loud.Filter(s.rawLoudness)
	v = min(max(v, minLoudness), maxLoudness)
	level := minLevel + (v-minLoudness)/(maxLoudness-minLoudness)*(maxLevel-minLevel)
	z := s.opts.Layout.ZoomRatio
	side := (barHeight - barDiff) * level * z
	return Loudness{
		Level: level,
		Bars:  [3]float64{side, barHeight * level * z, side},
		Width: barWidth * z,
	}
}

// RenderFrom returns the rendered transcript from line start on. An
// out-of-range start is logged and reported as false.
func (s *Session) RenderFrom(start int) (string, bool) {
	if start < 0 || start > len(s.lines) {
		s.log.Warn("render start out of range", "start", start, "lines", len(s.lines))
		return "", false
	}
	return strings.Join(s.lines[start:], "\n"), true
}

// Stop archives the remaining transcript and resets the session to an
// empty transcription stage. The session can be ticked again afterwards.
func (s *Session) Stop() {
	n := s.buf.Drain(s.lastNow)
	if n > 0 {
		s.metrics.ArchivedLines.Add(s.ctx, int64(n))
	}
	s.machine.Reset()
	s.under.reset()
	s.loud.Reset()
	s.rawLoudness = 0
	s.tapped = false
	s.ticks = 0
	s.lastRequestAt = time.Time{}
	s.summarizedWords = 0
	s.summaryLines = nil
	s.discardSummary()
	s.lines = nil
	s.lastStart, s.scrollDelta, s.scrollTarget, s.textY = 0, 0, 0, 0
	s.log.Info("session stopped", "archived_lines", n)
}

func (s *Session) discardSummary() {
	if d, ok := s.summary.(SummaryDiscarder); ok {
		d.Discard()
	}
}

// Close stops the session and releases its metrics slot.
func (s *Session) Close() {
	s.Stop()
	s.metrics.ActiveSessions.Add(s.ctx, -1)
}
