// Package stage drives the timed display cycle of the caption overlay: the
// summary fade-in, move, show, move back and fade-out, and the symmetric
// translation cycle.
//
// A [Machine] never reads the clock. Callers pass the current time to every
// call, usually once per render tick.
package stage

import (
	"fmt"
	"time"
)

// Stage is the active display phase. Translation stages are negative,
// summary stages positive.
type Stage int

const (
	EndTranslation Stage = iota - 4
	ShowTranslation
	ToTranslation
	Translation
	Transcription
	Summarizing
	ToSummarization
	ShowSummarization
	EndSummarization
	FadeOutSummarization
)

var stageNames = map[Stage]string{
	EndTranslation:       "end_translation",
	ShowTranslation:      "show_translation",
	ToTranslation:        "to_translation",
	Translation:          "translation",
	Transcription:        "transcription",
	Summarizing:          "summarizing",
	ToSummarization:      "to_summarization",
	ShowSummarization:    "show_summarization",
	EndSummarization:     "end_summarization",
	FadeOutSummarization: "fade_out_summarization",
}

// String returns the snake_case stage name used in frames and metrics.
func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// MarshalText implements [encoding.TextMarshaler].
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Durations configures the cycle.
type Durations struct {
	FadeIn         time.Duration `yaml:"fade_in"`
	Move           time.Duration `yaml:"move"`
	FadeOut        time.Duration `yaml:"fade_out"`
	SummaryTimeout time.Duration `yaml:"summary_timeout"`
	// MaxLines scales SummaryTimeout: a summary of n lines is shown for
	// SummaryTimeout / MaxLines * n.
	MaxLines           int           `yaml:"max_lines"`
	TranslationFade    time.Duration `yaml:"translation_fade"`
	TranslationStay    time.Duration `yaml:"translation_stay"`
	SummarizingTimeout time.Duration `yaml:"summarizing_timeout"`
}

// DefaultDurations returns the stock timings.
func DefaultDurations() Durations {
	return Durations{
		FadeIn:             200 * time.Millisecond,
		Move:               800 * time.Millisecond,
		FadeOut:            200 * time.Millisecond,
		SummaryTimeout:     6000 * time.Millisecond,
		MaxLines:           5,
		TranslationFade:    800 * time.Millisecond,
		TranslationStay:    2000 * time.Millisecond,
		SummarizingTimeout: 15 * time.Second,
	}
}

// ShowTimeout is how long a summary of the given number of lines stays on
// screen. At least one line is assumed.
func (d Durations) ShowTimeout(lines int) time.Duration {
	maxLines := max(d.MaxLines, 1)
	return d.SummaryTimeout / time.Duration(maxLines) * time.Duration(max(lines, 1))
}

// Machine is the stage state machine. It is not safe for concurrent use.
type Machine struct {
	d          Durations
	stage      Stage
	enteredAt  time.Time
	ready      bool
	readyAt    time.Time
	lines      int
	percentage float64
}

// New returns a machine in [Transcription].
func New(d Durations) *Machine {
	return &Machine{d: d, stage: Transcription}
}

// SetDurations replaces the timings. The current stage keeps its entry time.
func (m *Machine) SetDurations(d Durations) { m.d = d }

// Stage returns the active stage.
func (m *Machine) Stage() Stage { return m.stage }

// Percentage returns the progress of the active stage in [0, 1] as of the
// last Tick. Fading-out and moving-back stages count down from 1.
func (m *Machine) Percentage() float64 { return m.percentage }

// Lines returns the summary line count reported by SummaryReady.
func (m *Machine) Lines() int { return m.lines }

// Reset returns to Transcription and forgets any summary.
func (m *Machine) Reset() {
	*m = Machine{d: m.d, stage: Transcription}
}

// StartSummarizing begins a summary cycle. It only succeeds from
// Transcription.
func (m *Machine) StartSummarizing(now time.Time) bool {
	if m.stage != Transcription {
		return false
	}
	m.enter(Summarizing, now)
	m.ready = false
	m.lines = 0
	return true
}

// SummaryReady records that the summarizer produced a summary of the given
// number of lines. It is ignored outside Summarizing.
func (m *Machine) SummaryReady(now time.Time, lines int) bool {
	if m.stage != Summarizing || m.ready {
		return false
	}
	m.ready = true
	m.readyAt = now
	m.lines = lines
	return true
}

// Abort leaves Summarizing without showing a summary.
func (m *Machine) Abort(now time.Time) bool {
	if m.stage != Summarizing {
		return false
	}
	m.enter(Transcription, now)
	return true
}

// StartTranslation begins a translation cycle from Transcription or
// Translation.
func (m *Machine) StartTranslation(now time.Time) bool {
	if m.stage != Transcription && m.stage != Translation {
		return false
	}
	m.enter(ToTranslation, now)
	return true
}

// Tick advances the machine to now and returns the stages entered, in order.
// Each stage starts at the boundary where the previous one ended, so a late
// tick can pass through several stages at once.
func (m *Machine) Tick(now time.Time) []Stage {
	var entered []Stage
	for {
		next, at, ok := m.step(now)
		if !ok {
			break
		}
		m.enter(next, at)
		entered = append(entered, next)
	}
	m.percentage = m.progress(now)
	return entered
}

// step reports the transition due at now, if any, and when it happened.
func (m *Machine) step(now time.Time) (Stage, time.Time, bool) {
	elapsed := m.elapsed(now)
	switch m.stage {
	case Summarizing:
		if m.ready {
			at := m.enteredAt.Add(m.d.FadeIn)
			if m.readyAt.After(at) {
				at = m.readyAt
			}
			if !now.Before(at) {
				return ToSummarization, at, true
			}
		}
		if m.d.SummarizingTimeout > 0 && elapsed > m.d.SummarizingTimeout {
			return Transcription, m.enteredAt.Add(m.d.SummarizingTimeout), true
		}
	case ToSummarization:
		return m.after(elapsed, m.d.Move, ShowSummarization)
	case ShowSummarization:
		return m.after(elapsed, m.d.ShowTimeout(m.lines), EndSummarization)
	case EndSummarization:
		return m.after(elapsed, m.d.Move, FadeOutSummarization)
	case FadeOutSummarization:
		return m.after(elapsed, m.d.FadeOut, Transcription)
	case ToTranslation:
		return m.after(elapsed, m.d.TranslationFade, ShowTranslation)
	case ShowTranslation:
		return m.after(elapsed, m.d.TranslationStay, EndTranslation)
	case EndTranslation:
		return m.after(elapsed, m.d.TranslationFade, Translation)
	}
	return 0, time.Time{}, false
}

func (m *Machine) after(elapsed, d time.Duration, next Stage) (Stage, time.Time, bool) {
	if elapsed > d {
		return next, m.enteredAt.Add(d), true
	}
	return 0, time.Time{}, false
}

func (m *Machine) progress(now time.Time) float64 {
	e := m.elapsed(now)
	switch m.stage {
	case Summarizing:
		return ratio(e, m.d.FadeIn)
	case ToSummarization:
		return ratio(e, m.d.Move)
	case ShowSummarization:
		return ratio(e, m.d.ShowTimeout(m.lines))
	case EndSummarization:
		return 1 - ratio(e, m.d.Move)
	case FadeOutSummarization:
		return 1 - ratio(e, m.d.FadeOut)
	case ToTranslation:
		return ratio(e, m.d.TranslationFade)
	case ShowTranslation:
		return ratio(e, m.d.TranslationStay)
	case EndTranslation:
		return 1 - ratio(e, m.d.TranslationFade)
	}
	return 0
}

func (m *Machine) enter(s Stage, at time.Time) {
	m.stage = s
	m.enteredAt = at
	if s != Summarizing {
		m.ready = false
	}
}

// elapsed saturates at zero for clocks that step backwards.
func (m *Machine) elapsed(now time.Time) time.Duration {
	return max(now.Sub(m.enteredAt), 0)
}

func ratio(e, d time.Duration) float64 {
	if d <= 0 {
		return 1
	}
	return min(max(float64(e)/float64(d), 0), 1)
}

// ── predicates ──────────────────────────────────────────────────────────────

// SummaryShown reports whether the summary occupies the overlay.
func (m *Machine) SummaryShown() bool {
	return m.stage >= ToSummarization && m.stage < FadeOutSummarization
}

// Summarizing reports whether a summary is being produced.
func (m *Machine) Summarizing() bool { return m.stage == Summarizing }

// SummaryFading reports whether the transcript fades for a summary.
func (m *Machine) SummaryFading() bool {
	return m.stage == Summarizing || m.stage == FadeOutSummarization
}

// SummaryMoving reports whether the summary panel moves in or out.
func (m *Machine) SummaryMoving() bool {
	return m.stage == ToSummarization || m.stage == EndSummarization
}

// Translating reports whether a translation cycle is running.
func (m *Machine) Translating() bool {
	return m.stage >= EndTranslation && m.stage <= ToTranslation
}
