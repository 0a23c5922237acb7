package stt

import (
	"strings"
	"time"

	"github.com/MrWong99/captionlens/pkg/types"
)

// UtteranceBuilder turns segment-wise recognizer results into whole-utterance
// hypotheses. Committed segments are kept until the recognizer reports the
// end of the utterance; the interim segment is appended to them.
//
// It is not safe for concurrent use.
type UtteranceBuilder struct {
	committed []string
	words     []types.WordDetail
}

// Add folds one segment result into the utterance and returns the resulting
// hypothesis. segmentFinal commits the segment; utteranceEnd additionally
// closes the utterance, marks the hypothesis final and starts a new one.
func (b *UtteranceBuilder) Add(text string, confidence float64, words []types.WordDetail, segmentFinal, utteranceEnd bool, at time.Time) types.Hypothesis {
	text = strings.TrimSpace(text)
	parts := b.committed
	if text != "" {
		parts = append(parts[:len(parts):len(parts)], text)
	}
	h := types.Hypothesis{
		Text:       strings.Join(parts, " "),
		IsFinal:    utteranceEnd,
		Confidence: confidence,
		Words:      append(b.words[:len(b.words):len(b.words)], words...),
		ReceivedAt: at,
	}

	switch {
	case utteranceEnd:
		b.Reset()
	case segmentFinal && text != "":
		b.committed = append(b.committed, text)
		b.words = append(b.words, words...)
	}
	return h
}

// Reset drops the current utterance.
func (b *UtteranceBuilder) Reset() {
	b.committed = nil
	b.words = nil
}
