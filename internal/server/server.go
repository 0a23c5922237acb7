// Package server exposes caption sessions over a websocket. Every
// connection gets its own session: the extension streams hypotheses,
// captions and audio in and receives one rendered frame per tick.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/captionlens/internal/layout"
	"github.com/MrWong99/captionlens/internal/observe"
	"github.com/MrWong99/captionlens/internal/scene"
	"github.com/MrWong99/captionlens/internal/session"
	"github.com/MrWong99/captionlens/internal/source"
	"github.com/MrWong99/captionlens/internal/store"
	"github.com/MrWong99/captionlens/internal/transcript"
	"github.com/MrWong99/captionlens/pkg/audio"
	"github.com/MrWong99/captionlens/pkg/provider/stt"
	"github.com/MrWong99/captionlens/pkg/types"
)

// Summarizer is a per-connection summary source that must be closed.
type Summarizer interface {
	session.SummarySource
	Close() error
}

// Config holds the per-connection settings that are fixed at connect time.
type Config struct {
	// TickRate is the number of frames per second. Default: 60.
	TickRate int
	// AllowedOrigins are websocket origin patterns accepted besides the
	// request host.
	AllowedOrigins []string

	CaptionMode types.CaptionMode

	RecognizerOutdate   time.Duration
	RecognizerPollEvery int

	// STT is the format and hints each recognizer stream is opened with.
	STT stt.StreamConfig

	// AudioIn is the PCM format clients send. It is converted to the STT
	// format when both are set and differ.
	AudioIn audio.Format

	Images scene.ImageOptions

	// StoreQueueSize is the per-session archive queue length.
	StoreQueueSize int
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics sets the metrics sink. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithSTT enables binary audio messages. Each connection opens one stream.
func WithSTT(p stt.Provider) Option {
	return func(s *Server) { s.stt = p }
}

// WithSummarizer enables summaries. newSummarizer is called once per
// connection.
func WithSummarizer(newSummarizer func() Summarizer) Option {
	return func(s *Server) { s.newSummarizer = newSummarizer }
}

// WithStore archives transcript lines and summaries.
func WithStore(st store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithMeasurer sets the text measurer shared by all sessions.
func WithMeasurer(m layout.Measurer) Option {
	return func(s *Server) { s.measurer = m }
}

// WithPhraseRewriter rewrites recognizer hypotheses.
func WithPhraseRewriter(pr *transcript.PhraseRewriter) Option {
	return func(s *Server) { s.phrases = pr }
}

// Server accepts caption sessions. It implements [http.Handler] for the
// websocket endpoint.
type Server struct {
	cfg           Config
	log           *slog.Logger
	metrics       *observe.Metrics
	stt           stt.Provider
	newSummarizer func() Summarizer
	store         store.Store
	measurer      layout.Measurer
	phrases       *transcript.PhraseRewriter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	opts        session.Options
	captionMode types.CaptionMode
	conns       map[*conn]struct{}
}

// New creates a Server whose sessions start with opts.
func New(cfg Config, opts session.Options, deps ...Option) (*Server, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = 60
	}
	if cfg.RecognizerOutdate <= 0 {
		cfg.RecognizerOutdate = source.DefaultOutdate
	}
	if cfg.RecognizerPollEvery <= 0 {
		cfg.RecognizerPollEvery = source.DefaultPollEvery
	}
	if cfg.Images == (scene.ImageOptions{}) {
		cfg.Images = scene.DefaultImageOptions()
	}
	s := &Server{
		cfg:         cfg,
		opts:        opts,
		captionMode: cfg.CaptionMode,
		conns:       make(map[*conn]struct{}),
	}
	for _, o := range deps {
		o(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.measurer == nil {
		s.measurer = layout.NewFontMeasurer(nil)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// Register adds the websocket and transcript routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.Handle("GET /ws", s)
	mux.HandleFunc("GET /sessions/{id}/transcript", s.handleTranscript)
}

// ServeHTTP upgrades the request and runs a session until the client
// disconnects or the server is closed.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	opts, mode := s.opts, s.captionMode
	s.mu.Unlock()
	defer s.wg.Done()

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "err", err)
		return
	}
	defer ws.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	c, err := s.newConn(ctx, ws, opts, mode)
	if err != nil {
		s.log.Error("session setup failed", "err", err)
		ws.Close(websocket.StatusInternalError, "session setup failed")
		return
	}
	s.track(c, true)
	defer s.track(c, false)

	err = c.run(ctx)
	c.close()
	switch {
	case err == nil, errors.Is(err, errPeerClosed):
		ws.Close(websocket.StatusNormalClosure, "")
	case s.ctx.Err() != nil:
		ws.Close(websocket.StatusGoingAway, "server shutting down")
	case r.Context().Err() != nil:
	default:
		c.log.Warn("session ended with error", "err", err)
		ws.Close(websocket.StatusInternalError, "session failed")
	}
}

func (s *Server) track(c *conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

// UpdateOptions replaces the options of every live session and of sessions
// started later. Sessions that reject them keep their current options.
func (s *Server) UpdateOptions(opts session.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = opts
	for c := range s.conns {
		c.pushOptions(opts)
	}
	return nil
}

// SetCaptionMode switches the text source of every live session and of
// sessions started later.
func (s *Server) SetCaptionMode(mode types.CaptionMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captionMode = mode
	for c := range s.conns {
		c.selector.SetMode(mode)
	}
}

// Sessions returns the number of connected sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close ends every session and waits until they archived their transcript.
func (s *Server) Close() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}
