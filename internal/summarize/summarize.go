// Package summarize runs summary requests against a language model in the
// background so the render tick never waits on the network.
//
// The session calls [Summarizer.Request] when a summary is due and
// [Summarizer.Poll] on every tick until the reply is in.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/captionlens/internal/observe"
	"github.com/MrWong99/captionlens/internal/transcript"
	"github.com/MrWong99/captionlens/pkg/provider/llm"
)

// ErrBusy is returned by [Summarizer.Request] while a request is in flight.
var ErrBusy = errors.New("summarize: a summary is already in flight")

// DefaultPrompt is the system prompt used when [Config.Prompt] is empty.
// {max_words} is replaced by the configured word limit.
const DefaultPrompt = "You summarize live conversation transcripts for a caption display. " +
	"Reply with one short paragraph of at most {max_words} words. " +
	"Do not add a preamble, do not quote the transcript and do not use lists."

// Config tunes a [Summarizer].
type Config struct {
	// Prompt is the system prompt. Defaults to [DefaultPrompt].
	Prompt string
	// MaxWords limits the reply length. Default: 150.
	MaxWords int
	// Timeout bounds a single request including provider failover.
	// Default: 15s.
	Timeout time.Duration
	// Temperature is passed to the provider; zero keeps the backend default.
	Temperature float64
}

func (c *Config) applyDefaults() {
	if c.Prompt == "" {
		c.Prompt = DefaultPrompt
	}
	if c.MaxWords <= 0 {
		c.MaxWords = 150
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
}

// Summarizer turns transcript text into a short summary, one request at a
// time. It is safe for concurrent use.
type Summarizer struct {
	provider llm.Provider
	cfg      Config
	log      *slog.Logger
	metrics  *observe.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	gen      uint64
	inflight bool
	ready    bool
	result   string
}

// Option configures a [Summarizer].
type Option func(*Summarizer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Summarizer) { s.log = l }
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Summarizer) { s.metrics = m }
}

// New returns a Summarizer that asks p for summaries.
func New(p llm.Provider, cfg Config, opts ...Option) *Summarizer {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Summarizer{provider: p, cfg: cfg, ctx: ctx, cancel: cancel}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Request starts summarizing text in the background. Any unread result of an
// earlier request is discarded.
func (s *Summarizer) Request(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("summarize: empty text")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return fmt.Errorf("summarize: closed")
	}
	if s.inflight {
		return ErrBusy
	}
	s.gen++
	s.inflight = true
	s.ready = false
	s.result = ""

	gen := s.gen
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		summary := s.run(text)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.inflight = false
		if gen != s.gen {
			return
		}
		s.result, s.ready = summary, true
	}()
	return nil
}

// Poll returns the finished summary exactly once. An empty summary means the
// request failed.
func (s *Summarizer) Poll() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return "", false
	}
	s.ready = false
	return s.result, true
}

// Discard drops the result of the current request when it arrives. The
// request itself keeps running; a new [Summarizer.Request] is possible once it
// returns.
func (s *Summarizer) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.ready = false
	s.result = ""
}

// Busy reports whether a request is in flight.
func (s *Summarizer) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight
}

// Close cancels an in-flight request and waits for it to return.
func (s *Summarizer) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *Summarizer) run(text string) string {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: s.prompt(),
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: text}},
		Temperature:  s.cfg.Temperature,
		MaxTokens:    s.cfg.MaxWords * 2,
	})
	s.metrics.SummarizerDuration.Record(s.ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordProviderRequest(s.ctx, "llm", "summary", "error")
		s.metrics.RecordProviderError(s.ctx, "llm", "summary")
		s.metrics.RecordSummary(s.ctx, "error")
		if s.ctx.Err() == nil {
			s.log.Warn("summary request failed", "err", err, "words", transcript.CountWords(text))
		}
		return ""
	}
	s.metrics.RecordProviderRequest(s.ctx, "llm", "summary", "ok")

	summary := transcript.CleanSummaryReply(resp.Content)
	s.log.Debug("summary ready",
		"words_in", transcript.CountWords(text),
		"words_out", transcript.CountWords(summary),
		"tokens", resp.Usage.TotalTokens,
		"took", time.Since(start))
	return summary
}

func (s *Summarizer) prompt() string {
	return strings.ReplaceAll(s.cfg.Prompt, "{max_words}", strconv.Itoa(s.cfg.MaxWords))
}
