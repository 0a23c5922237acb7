// Package types defines the value types shared between the captionlens
// providers, the caption engine and the transport layer.
//
// They live here so that provider packages under pkg/ can be used without
// importing anything from internal/.
package types

import "time"

// Hypothesis is one speech-recognition result. Recognizers re-emit the whole
// utterance on every partial result, so Text is the full current guess and
// earlier words may differ from the previous hypothesis.
type Hypothesis struct {
	// Text is the recognized utterance so far.
	Text string

	// IsFinal reports whether the recognizer committed this utterance.
	IsFinal bool

	// Confidence is the recognizer's score in [0, 1]. Zero when not reported.
	Confidence float64

	// Words holds per-word timing when the recognizer provides it.
	Words []WordDetail

	// ReceivedAt is when the hypothesis arrived at the server.
	ReceivedAt time.Time
}

// WordDetail holds per-word metadata from recognizers that report it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// CaptionMode selects where incoming transcript text comes from.
type CaptionMode string

const (
	// CaptionRecognizer uses the speech recognizer's hypotheses. The option
	// is called "Disabled" because meeting captions are disabled.
	CaptionRecognizer CaptionMode = "Disabled"

	// CaptionSelf uses the meeting captions of the local speaker only.
	CaptionSelf CaptionMode = "Yourself"

	// CaptionEveryone uses the meeting captions of all participants.
	CaptionEveryone CaptionMode = "Everyone"
)

// IsValid reports whether m is a recognised caption mode.
func (m CaptionMode) IsValid() bool {
	switch m {
	case CaptionRecognizer, CaptionSelf, CaptionEveryone:
		return true
	}
	return false
}

// SummaryMode selects when summaries are requested.
type SummaryMode string

const (
	SummaryDisabled  SummaryMode = "Disabled"
	SummaryAutomatic SummaryMode = "Automatic"
	SummaryOnly      SummaryMode = "SummaryOnly"
	SummaryOnTap     SummaryMode = "OnTap"
)

// IsValid reports whether m is a recognised summary mode.
func (m SummaryMode) IsValid() bool {
	switch m {
	case SummaryDisabled, SummaryAutomatic, SummaryOnly, SummaryOnTap:
		return true
	}
	return false
}

// Rect is an axis-aligned rectangle in overlay pixels.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}
