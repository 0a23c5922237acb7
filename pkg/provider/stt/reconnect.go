package stt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/captionlens/pkg/types"
)

// Default reconnection parameters.
const (
	defaultMaxRetries = 10
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// ErrReconnecting is returned by [ReconnectingStream.SendAudio] while the
// underlying stream is being reopened. Audio sent meanwhile is lost.
var ErrReconnecting = errors.New("stt: stream is reconnecting")

// ReconnectConfig configures [Reconnecting].
type ReconnectConfig struct {
	// MaxRetries is the number of attempts per drop before giving up.
	// Defaults to 10 if zero.
	MaxRetries int

	// Backoff is the wait before the first retry. It doubles each attempt up
	// to MaxBackoff. Defaults to 1s if zero.
	Backoff time.Duration

	// MaxBackoff caps the wait between retries. Defaults to 30s if zero.
	MaxBackoff time.Duration

	// OnReconnect is called after a dropped stream was reopened.
	OnReconnect func(attempt int)

	// Logger receives reconnect progress. Defaults to slog.Default().
	Logger *slog.Logger
}

// ReconnectingStream is a [Stream] that reopens its underlying provider
// stream when the provider ends it. Hosted recognizers drop idle or long
// running connections; the caption engine should not notice.
//
// All methods are safe for concurrent use.
type ReconnectingStream struct {
	p          Provider
	cfg        StreamConfig
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	onConnect  func(int)
	log        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	out    chan types.Hypothesis
	done   chan struct{}

	mu     sync.Mutex
	cur    Stream // nil while reconnecting
	closed bool
}

var _ Stream = (*ReconnectingStream)(nil)

// Reconnecting opens a stream on p and keeps it open until Close is called,
// ctx ends or a drop cannot be recovered within MaxRetries attempts. The
// initial StartStream error is returned as is.
func Reconnecting(ctx context.Context, p Provider, cfg StreamConfig, rc ReconnectConfig) (*ReconnectingStream, error) {
	s, err := p.StartStream(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if rc.MaxRetries <= 0 {
		rc.MaxRetries = defaultMaxRetries
	}
	if rc.Backoff <= 0 {
		rc.Backoff = defaultBackoff
	}
	if rc.MaxBackoff <= 0 {
		rc.MaxBackoff = defaultMaxBackoff
	}
	if rc.Logger == nil {
		rc.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &ReconnectingStream{
		p:          p,
		cfg:        cfg,
		maxRetries: rc.MaxRetries,
		backoff:    rc.Backoff,
		maxBackoff: rc.MaxBackoff,
		onConnect:  rc.OnReconnect,
		log:        rc.Logger,
		ctx:        ctx,
		cancel:     cancel,
		out:        make(chan types.Hypothesis, 16),
		done:       make(chan struct{}),
		cur:        s,
	}
	go r.run(s)
	return r, nil
}

// SendAudio implements [Stream]. It returns [ErrReconnecting] while a
// dropped stream is being reopened.
func (r *ReconnectingStream) SendAudio(chunk []byte) error {
	r.mu.Lock()
	cur, closed := r.cur, r.closed
	r.mu.Unlock()
	switch {
	case closed:
		return ErrClosed
	case cur == nil:
		return ErrReconnecting
	}
	return cur.SendAudio(chunk)
}

// Hypotheses implements [Stream]. The channel outlives individual provider
// streams and is closed once the stream is given up or closed.
func (r *ReconnectingStream) Hypotheses() <-chan types.Hypothesis { return r.out }

// Close implements [Stream].
func (r *ReconnectingStream) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return nil
	}
	r.closed = true
	cur := r.cur
	r.cur = nil
	r.mu.Unlock()

	r.cancel()
	var err error
	if cur != nil {
		err = cur.Close()
	}
	<-r.done
	return err
}

func (r *ReconnectingStream) run(s Stream) {
	defer close(r.done)
	defer close(r.out)

	for {
		r.forward(s)
		if r.ctx.Err() != nil {
			return
		}

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return
		}
		r.cur = nil
		r.mu.Unlock()
		_ = s.Close()

		r.log.Warn("stt: stream ended, reconnecting")
		next, attempt, err := r.reopen()
		if err != nil {
			r.log.Error("stt: giving up on stream", "err", err)
			r.mu.Lock()
			r.closed = true
			r.mu.Unlock()
			return
		}

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			_ = next.Close()
			return
		}
		r.cur = next
		r.mu.Unlock()

		r.log.Info("stt: stream reconnected", "attempt", attempt)
		if r.onConnect != nil {
			r.onConnect(attempt)
		}
		s = next
	}
}

// forward copies hypotheses from s until s ends or the stream is closed.
func (r *ReconnectingStream) forward(s Stream) {
	ch := s.Hypotheses()
	for {
		select {
		case <-r.ctx.Done():
			return
		case h, ok := <-ch:
			if !ok {
				return
			}
			select {
			case r.out <- h:
			case <-r.ctx.Done():
				return
			}
		}
	}
}

func (r *ReconnectingStream) reopen() (Stream, int, error) {
	wait := r.backoff
	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		select {
		case <-r.ctx.Done():
			return nil, attempt, r.ctx.Err()
		case <-time.After(wait):
		}

		s, err := r.p.StartStream(r.ctx, r.cfg)
		if err == nil {
			return s, attempt, nil
		}
		lastErr = err
		r.log.Warn("stt: reconnect attempt failed", "attempt", attempt, "err", err)

		wait *= 2
		if wait > r.maxBackoff {
			wait = r.maxBackoff
		}
	}
	return nil, r.maxRetries, fmt.Errorf("stt: reconnect failed after %d attempts: %w", r.maxRetries, lastErr)
}
