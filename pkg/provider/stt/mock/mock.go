// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller starts streams with the expected
// StreamConfig. Use Stream to feed controlled hypotheses and inspect which
// audio chunks were delivered.
//
// Example:
//
//	s := mock.NewStream(4)
//	p := &mock.Provider{Stream: s}
//	st, _ := p.StartStream(ctx, cfg)
//	s.Emit(types.Hypothesis{Text: "hello"})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/captionlens/pkg/provider/stt"
	"github.com/MrWong99/captionlens/pkg/types"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	Ctx context.Context
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Stream is returned by StartStream. If nil, a new Stream with a
	// buffered hypothesis channel is returned.
	Stream *Stream

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	calls []StartStreamCall
}

var _ stt.Provider = (*Provider)(nil)

// StartStream records the call and returns Stream, StartStreamErr.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	if p.Stream == nil {
		p.Stream = NewStream(16)
	}
	return p.Stream, nil
}

// Calls returns a copy of the recorded StartStream calls.
func (p *Provider) Calls() []StartStreamCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StartStreamCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// Stream is a mock implementation of stt.Stream.
type Stream struct {
	mu     sync.Mutex
	ch     chan types.Hypothesis
	audio  [][]byte
	closed bool
	closes int

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error
}

var _ stt.Stream = (*Stream)(nil)

// NewStream returns a Stream whose hypothesis channel holds buffer entries.
func NewStream(buffer int) *Stream {
	return &Stream{ch: make(chan types.Hypothesis, buffer)}
}

// Emit delivers h to the consumer. It blocks when the buffer is full and is
// a no-op after Close.
func (s *Stream) Emit(h types.Hypothesis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ch <- h
}

// SendAudio records a copy of chunk.
func (s *Stream) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stt.ErrClosed
	}
	if s.SendAudioErr != nil {
		return s.SendAudioErr
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.audio = append(s.audio, cp)
	return nil
}

// Hypotheses returns the hypothesis channel.
func (s *Stream) Hypotheses() <-chan types.Hypothesis { return s.ch }

// Close closes the hypothesis channel once and counts every call.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// Audio returns copies of the chunks passed to SendAudio.
func (s *Stream) Audio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.audio))
	copy(out, s.audio)
	return out
}

// Closes returns how often Close was called.
func (s *Stream) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}
