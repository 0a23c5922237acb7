package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/captionlens/internal/layout"
	"github.com/MrWong99/captionlens/internal/stage"
	"github.com/MrWong99/captionlens/pkg/types"
)

// Labels are the caption strings shown next to the icon.
type Labels struct {
	Transcription string `yaml:"transcription"`
	Listening     string `yaml:"listening"`
	Summarizing   string `yaml:"summarizing"`
	Summary       string `yaml:"summary"`
}

// DefaultLabels returns the English caption strings.
func DefaultLabels() Labels {
	return Labels{
		Transcription: "English",
		Listening:     "Listening...",
		Summarizing:   "Summarizing...",
		Summary:       "Summary",
	}
}

// Options configure a [Session]. They can be replaced between ticks with
// [Session.SetOptions].
type Options struct {
	Layout    layout.Options
	Durations stage.Durations

	SummaryMode types.SummaryMode

	// ClearTimeout moves an unchanged hypothesis into history.
	ClearTimeout time.Duration
	// BreakTimeout appends a soft line break to an unchanged hypothesis.
	BreakTimeout time.Duration
	// MaxHistoryTokens caps the history. Zero keeps everything.
	MaxHistoryTokens int

	// ScrollingSpeed is the fraction of the remaining scroll distance
	// covered per tick.
	ScrollingSpeed float64

	// SummaryDelay is the interval of automatic summaries.
	SummaryDelay time.Duration
	// PauseTrigger is the silence that requests a summary in summary-only mode.
	PauseTrigger time.Duration
	// SummaryMinWords is how many new words a summary request needs.
	SummaryMinWords int
	// SummaryMaxWords bounds the text sent to the summarizer.
	SummaryMaxWords int

	// Capitalize maps spoken forms to their proper spelling.
	Capitalize map[string]string
	// Vocabulary lists terms that recognizer output is corrected towards.
	Vocabulary []string

	Labels Labels
}

// DefaultOptions returns the stock session options.
func DefaultOptions() Options {
	return Options{
		Layout:           layout.DefaultOptions(),
		Durations:        stage.DefaultDurations(),
		SummaryMode:      types.SummaryOnTap,
		ClearTimeout:     3000 * time.Millisecond,
		BreakTimeout:     1000 * time.Millisecond,
		MaxHistoryTokens: 2000,
		ScrollingSpeed:   0.16,
		SummaryDelay:     8000 * time.Millisecond,
		PauseTrigger:     1000 * time.Millisecond,
		SummaryMinWords:  25,
		SummaryMaxWords:  150,
		Labels:           DefaultLabels(),
	}
}

// Validate checks o and returns every problem found.
func (o Options) Validate() error {
	var errs []error
	if !o.SummaryMode.IsValid() {
		errs = append(errs, fmt.Errorf("session: unknown summary mode %q", o.SummaryMode))
	}
	if o.ClearTimeout <= 0 || o.BreakTimeout <= 0 {
		errs = append(errs, errors.New("session: clear and break timeouts must be positive"))
	}
	if o.BreakTimeout >= o.ClearTimeout {
		errs = append(errs, fmt.Errorf("session: break timeout %s must be shorter than clear timeout %s", o.BreakTimeout, o.ClearTimeout))
	}
	if o.ScrollingSpeed <= 0 || o.ScrollingSpeed > 1 {
		errs = append(errs, fmt.Errorf("session: scrolling speed %v must be in (0, 1]", o.ScrollingSpeed))
	}
	if o.Layout.MaxLines < 1 {
		errs = append(errs, fmt.Errorf("session: max lines %d must be at least 1", o.Layout.MaxLines))
	}
	if o.SummaryMaxWords < 0 || o.SummaryMinWords < 0 {
		errs = append(errs, errors.New("session: summary word limits must not be negative"))
	}
	return errors.Join(errs...)
}
