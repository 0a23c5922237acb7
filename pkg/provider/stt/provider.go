// Package stt defines the streaming speech-to-text interface that feeds the
// caption engine.
//
// A Stream accepts raw 16-bit PCM audio and emits recognizer hypotheses. Each
// hypothesis carries the whole current utterance, the way browser speech
// recognition reports results: the text grows and earlier words may change
// until a final hypothesis closes the utterance. Backends that report
// segments instead use [UtteranceBuilder] to produce that shape.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"

	"github.com/MrWong99/captionlens/pkg/types"
)

// ErrClosed is returned by [Stream.SendAudio] after the stream was closed.
var ErrClosed = errors.New("stt: stream is closed")

// StreamConfig describes the audio format and recognition hints for a new
// stream.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Zero uses the provider
	// default.
	SampleRate int
	// Channels is the number of interleaved audio channels. Zero means mono.
	Channels int
	// Language is the BCP-47 tag to recognize, e.g. "en-US". Empty uses the
	// provider default.
	Language string
	// Keywords are vocabulary hints such as product names.
	Keywords []string
}

// Stream is an open recognition stream. Callers must call Close.
type Stream interface {
	// SendAudio delivers a chunk of PCM audio. It returns [ErrClosed] after
	// Close.
	SendAudio(chunk []byte) error
	// Hypotheses emits recognizer results. The channel is closed when the
	// stream ends.
	Hypotheses() <-chan types.Hypothesis
	// Close ends the stream and releases its resources. It is safe to call
	// more than once.
	Close() error
}

// Provider opens recognition streams.
type Provider interface {
	StartStream(ctx context.Context, cfg StreamConfig) (Stream, error)
}
