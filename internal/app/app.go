// Package app wires all captionlens subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until its context ends, and Shutdown tears
// everything down in order.
//
// For testing, inject implementations via functional options (WithStore,
// WithMeasurer, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/MrWong99/captionlens/internal/config"
	"github.com/MrWong99/captionlens/internal/health"
	"github.com/MrWong99/captionlens/internal/layout"
	"github.com/MrWong99/captionlens/internal/observe"
	"github.com/MrWong99/captionlens/internal/resilience"
	"github.com/MrWong99/captionlens/internal/scene"
	"github.com/MrWong99/captionlens/internal/server"
	"github.com/MrWong99/captionlens/internal/store"
	"github.com/MrWong99/captionlens/internal/store/memory"
	"github.com/MrWong99/captionlens/internal/store/postgres"
	"github.com/MrWong99/captionlens/internal/summarize"
	"github.com/MrWong99/captionlens/pkg/audio"
	"github.com/MrWong99/captionlens/pkg/provider/llm"
	"github.com/MrWong99/captionlens/pkg/provider/stt"
)

// NamedLLM is an LLM provider together with the name it is logged under.
type NamedLLM struct {
	Name     string
	Provider llm.Provider
}

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	// LLM writes summaries. Fallbacks are only used when LLM is set.
	LLM          llm.Provider
	LLMFallbacks []NamedLLM
	STT          stt.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	log      *slog.Logger
	level    *slog.LevelVar
	metrics  *observe.Metrics
	measurer layout.Measurer
	store    store.Store
	llm      *resilience.LLMFallback
	server   *server.Server
	health   *health.Handler
	handler  http.Handler

	metricsHandler http.Handler

	httpMu   sync.Mutex
	http     *http.Server
	listener net.Listener

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects an archive store instead of creating one from config.
// The App does not close an injected store.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMeasurer injects a text measurer instead of loading the configured
// font.
func WithMeasurer(m layout.Measurer) Option {
	return func(a *App) { a.measurer = m }
}

// WithMetrics sets the metrics sink. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithLevelVar lets a config reload change the log level.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Archive store ─────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Text measurer ─────────────────────────────────────────────────
	if a.measurer == nil {
		m, err := layout.NewMeasurer(cfg.Captions.Layout, cfg.Captions.FontFile)
		if err != nil {
			a.closeAll()
			return nil, fmt.Errorf("app: init measurer: %w", err)
		}
		a.measurer = m
	}

	// ── 3. Summaries ─────────────────────────────────────────────────────
	a.initLLM()

	// ── 4. Caption server ────────────────────────────────────────────────
	if err := a.initServer(); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init server: %w", err)
	}

	// ── 5. Health and routes ─────────────────────────────────────────────
	a.initHealth()
	a.initRoutes()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore opens PostgreSQL when a DSN is configured and keeps the archive
// in memory otherwise.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	if dsn := a.cfg.Store.PostgresDSN; dsn != "" {
		st, err := postgres.New(ctx, dsn)
		if err != nil {
			return err
		}
		a.store = st
		a.log.Info("archive store connected", "backend", "postgres")
	} else {
		a.store = memory.New(a.cfg.Store.HistoryLimit)
		a.log.Info("archive store ready", "backend", "memory", "history_limit", a.cfg.Store.HistoryLimit)
	}
	st := a.store
	a.closers = append(a.closers, func() error { st.Close(); return nil })
	return nil
}

// initLLM puts the summary providers behind circuit breakers.
func (a *App) initLLM() {
	if a.providers.LLM == nil {
		a.log.Info("summaries disabled: no llm provider configured")
		return
	}
	a.llm = resilience.NewLLMFallback(a.providers.LLM, a.cfg.Providers.LLM.Name, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, from, to resilience.State) {
				a.log.Warn("llm circuit breaker changed", "provider", name, "from", from.String(), "to", to.String())
			},
		},
		Logger: a.log,
	})
	for _, fb := range a.providers.LLMFallbacks {
		a.llm.AddFallback(fb.Name, fb.Provider)
	}
	a.log.Info("summaries enabled", "backends", a.llm.Backends())
}

func (a *App) initServer() error {
	phrases, err := a.cfg.PhraseRewriter()
	if err != nil {
		return err
	}
	c := a.cfg.Captions
	t := a.cfg.Timing
	cfg := server.Config{
		TickRate:            a.cfg.Server.TickRate,
		AllowedOrigins:      a.cfg.Server.AllowedOrigins,
		CaptionMode:         c.CaptionMode,
		RecognizerOutdate:   t.RecognizerOutdate,
		RecognizerPollEvery: t.RecognizerPollEvery,
		STT: stt.StreamConfig{
			SampleRate: a.cfg.Audio.RecognizerSampleRate,
			Channels:   1,
			Language:   c.Language,
			Keywords:   c.Vocabulary,
		},
		AudioIn: audio.Format{
			SampleRate: a.cfg.Audio.SampleRate,
			Channels:   a.cfg.Audio.Channels,
		},
		Images:         a.imageOptions(),
		StoreQueueSize: a.cfg.Store.QueueSize,
	}
	deps := []server.Option{
		server.WithLogger(a.log),
		server.WithMetrics(a.metrics),
		server.WithMeasurer(a.measurer),
		server.WithPhraseRewriter(phrases),
		server.WithStore(a.store),
	}
	if a.providers.STT != nil {
		deps = append(deps, server.WithSTT(a.providers.STT))
	}
	if a.llm != nil {
		deps = append(deps, server.WithSummarizer(a.newSummarizer))
	}
	a.server, err = server.New(cfg, a.cfg.SessionOptions(), deps...)
	return err
}

func (a *App) newSummarizer() server.Summarizer {
	c := a.cfg.Captions
	return summarize.New(a.llm, summarize.Config{
		Prompt:      c.SummaryPrompt,
		MaxWords:    c.SummaryMaxWords,
		Timeout:     a.cfg.Timing.SummarizingTimeout,
		Temperature: c.Temperature,
	}, summarize.WithLogger(a.log), summarize.WithMetrics(a.metrics))
}

func (a *App) imageOptions() scene.ImageOptions {
	o := scene.DefaultImageOptions()
	img := a.cfg.Captions.Images
	o.Threshold = img.Threshold
	o.Lifetime = img.Lifetime
	o.MaxImages = img.MaxImages
	o.Size = img.Size
	return o
}

func (a *App) initHealth() {
	checkers := []health.Checker{
		{Name: "store", Check: a.store.Ping},
	}
	if a.llm != nil {
		checkers = append(checkers, health.Checker{Name: "llm", Check: a.llm.Check, Optional: true})
	}
	a.health = health.New(checkers)
}

func (a *App) initRoutes() {
	mux := http.NewServeMux()
	a.server.Register(mux)
	a.health.Register(mux)
	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}
	a.handler = observe.Middleware(a.metrics)(mux)
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP on the configured address and blocks until ctx is
// cancelled or the listener fails. When ctx is done, Run returns
// context.Canceled (or the underlying cause).
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	a.httpMu.Lock()
	a.http, a.listener = srv, ln
	a.httpMu.Unlock()

	errc := make(chan error, 1)
	go func() {
		a.log.Info("listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errc <- err
	}()

	// The server keeps serving after ctx ends so Shutdown can drain it.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	}
}

// Addr returns the address Run listens on, or nil before Run started.
func (a *App) Addr() net.Addr {
	a.httpMu.Lock()
	defer a.httpMu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// Reload applies the hot-reloadable parts of next and returns what changed.
// Sections that need a restart are only logged.
func (a *App) Reload(next *config.Config) config.ConfigDiff {
	d := config.Diff(a.cfg, next)
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(SlogLevel(d.NewLogLevel))
		a.log.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.CaptionsChanged {
		if err := a.server.UpdateOptions(next.SessionOptions()); err != nil {
			a.log.Warn("caption options not applied", "err", err)
		} else {
			a.log.Info("caption options applied", "sessions", a.server.Sessions())
		}
	}
	if d.CaptionModeChanged {
		a.server.SetCaptionMode(next.Captions.CaptionMode)
		a.log.Info("caption mode changed", "mode", next.Captions.CaptionMode)
	}
	if len(d.RestartRequired) > 0 {
		a.log.Warn("config sections changed that need a restart", "sections", d.RestartRequired)
	}
	a.cfg = next
	return d
}

// SlogLevel converts a config log level to an slog level.
func SlogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown ends all caption sessions, stops the HTTP server and then runs
// the closers. It respects the context deadline: if ctx expires before all
// closers finish, remaining closers are skipped and the context error is
// returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "sessions", a.server.Sessions(), "closers", len(a.closers))

		// Sessions archive their transcript before the store goes away.
		a.server.Close()

		a.httpMu.Lock()
		srv := a.http
		a.httpMu.Unlock()
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				a.log.Warn("http shutdown error", "err", err)
				shutdownErr = err
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}

		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) closeAll() {
	for _, closer := range a.closers {
		_ = closer()
	}
}
