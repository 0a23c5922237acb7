package config

import (
	"github.com/MrWong99/captionlens/internal/session"
	"github.com/MrWong99/captionlens/internal/stage"
	"github.com/MrWong99/captionlens/internal/transcript"
)

// SessionOptions converts the caption and timing sections into the options
// a new session starts with.
func (c *Config) SessionOptions() session.Options {
	o := session.DefaultOptions()
	o.Layout = c.Captions.Layout
	o.Durations = c.Durations()
	o.SummaryMode = c.Captions.SummaryMode
	o.ClearTimeout = c.Timing.ClearTimeout
	o.BreakTimeout = c.Timing.BreakTimeout
	o.MaxHistoryTokens = c.Captions.MaxHistoryTokens
	o.ScrollingSpeed = c.Captions.ScrollingSpeed
	o.SummaryDelay = c.Timing.SummaryDelay
	o.PauseTrigger = c.Timing.PauseTrigger
	o.SummaryMinWords = c.Captions.SummaryMinWords
	o.SummaryMaxWords = c.Captions.SummaryMaxWords
	o.Capitalize = c.Captions.Capitalize
	o.Vocabulary = c.Captions.Vocabulary
	o.Labels = c.Captions.Labels
	return o
}

// Durations returns the stage machine timings.
func (c *Config) Durations() stage.Durations {
	t := c.Timing
	return stage.Durations{
		FadeIn:             t.FadeIn,
		Move:               t.Move,
		FadeOut:            t.FadeOut,
		SummaryTimeout:     t.SummaryTimeout,
		MaxLines:           c.Captions.Layout.MaxLines,
		TranslationFade:    t.TranslationFade,
		TranslationStay:    t.TranslationStay,
		SummarizingTimeout: t.SummarizingTimeout,
	}
}

// PhraseRewriter compiles the configured phrase rules. The rules were
// checked by [Validate].
func (c *Config) PhraseRewriter() (*transcript.PhraseRewriter, error) {
	return transcript.NewPhraseRewriter(phraseRules(c.Captions.Phrases))
}
