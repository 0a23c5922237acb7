package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/captionlens/internal/observe"
	"github.com/MrWong99/captionlens/internal/scene"
	"github.com/MrWong99/captionlens/internal/session"
	"github.com/MrWong99/captionlens/internal/source"
	"github.com/MrWong99/captionlens/internal/store"
	"github.com/MrWong99/captionlens/pkg/audio"
	"github.com/MrWong99/captionlens/pkg/provider/stt"
	"github.com/MrWong99/captionlens/pkg/types"
)

const (
	writeTimeout = 5 * time.Second
	inputBuffer  = 64
)

// errPeerClosed ends a connection the client closed normally.
var errPeerClosed = errors.New("server: connection closed by peer")

// conn is one websocket session. The tick goroutine owns the session and
// scene manager; the reader only touches the concurrency-safe sources and
// the STT stream.
type conn struct {
	srv *Server
	ws  *websocket.Conn
	log *slog.Logger

	rec      *source.Recognizer
	caps     *source.Captions
	selector *source.Selector
	sess     *session.Session
	scenes   *scene.Manager

	summarizer Summarizer
	writer     *store.Writer
	stream     stt.Stream
	pcm        *audio.Converter

	inputs  chan Inbound
	options chan session.Options
}

func (s *Server) newConn(ctx context.Context, ws *websocket.Conn, opts session.Options, mode types.CaptionMode) (*conn, error) {
	c := &conn{
		srv:     s,
		ws:      ws,
		log:     s.log,
		caps:    &source.Captions{},
		inputs:  make(chan Inbound, inputBuffer),
		options: make(chan session.Options, 1),
	}
	c.rec = source.NewRecognizer(
		source.WithOutdate(s.cfg.RecognizerOutdate),
		source.WithPollEvery(s.cfg.RecognizerPollEvery),
		source.WithPhraseRewriter(s.phrases),
	)
	c.selector = source.NewSelector(mode, c.rec, c.caps)

	id := uuid.NewString()
	log := observe.Logger(ctx, s.log)
	c.log = log.With("session_id", id)
	deps := []session.Option{
		session.WithID(id),
		session.WithLogger(log),
		session.WithMetrics(s.metrics),
		session.WithMeasurer(s.measurer),
		session.WithTextSource(c.selector),
	}
	if s.newSummarizer != nil {
		c.summarizer = s.newSummarizer()
		deps = append(deps, session.WithSummarySource(c.summarizer))
	}
	if s.store != nil {
		c.writer = store.NewWriter(s.store, id,
			store.WithLogger(log),
			store.WithQueueSize(s.cfg.StoreQueueSize),
		)
		deps = append(deps, session.WithArchiver(c.writer))
	}
	sess, err := session.New(opts, deps...)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("server: new session: %w", err)
	}
	c.sess = sess

	c.scenes = scene.NewManager(c.log,
		scene.NewTranscription(c.sess),
		scene.NewInteractiveImage(c.sess, s.cfg.Images),
		scene.PassThrough{},
	)

	if s.stt != nil {
		stream, err := stt.Reconnecting(ctx, s.stt, s.cfg.STT, stt.ReconnectConfig{
			Logger: c.log,
			// Every reconnect follows a stream the provider dropped.
			OnReconnect: func(int) { s.metrics.RecordProviderError(ctx, "stt", "stream") },
		})
		if err != nil {
			// Clients can still send their own hypotheses.
			c.log.Warn("speech recognition unavailable", "err", err)
		} else {
			c.stream = stream
			c.pcm = audio.NewConverter(s.cfg.AudioIn, audio.Format{
				SampleRate: s.cfg.STT.SampleRate,
				Channels:   max(s.cfg.STT.Channels, 1),
			}, c.log)
		}
	}
	return c, nil
}

// run serves the connection until ctx ends, the client leaves or a write
// fails.
func (c *conn) run(ctx context.Context) error {
	c.log.Info("session started", "audio", c.stream != nil)
	hello := Hello{
		Type:      MsgHello,
		SessionID: c.sess.ID(),
		TickRate:  c.srv.cfg.TickRate,
		Scenes:    []string{scene.NameTranscription, scene.NameInteractiveImage, scene.NamePassThrough},
		Audio:     c.stream != nil,
	}
	if err := c.write(ctx, hello); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readLoop(ctx) })
	g.Go(func() error { return c.tickLoop(ctx) })
	if c.stream != nil {
		g.Go(func() error {
			err := c.rec.Pump(ctx, c.stream.Hypotheses())
			if err == nil {
				c.log.Warn("speech recognition stream ended")
			}
			return nil
		})
	}
	return g.Wait()
}

func (c *conn) readLoop(ctx context.Context) error {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return errPeerClosed
			}
			return err
		}
		if typ == websocket.MessageBinary {
			c.audio(data)
			continue
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Debug("malformed message", "err", err)
			continue
		}
		switch msg.Type {
		case MsgHypothesis:
			c.rec.Push(types.Hypothesis{Text: msg.Text, IsFinal: msg.IsFinal, Confidence: msg.Confidence})
		case MsgCaptions:
			c.caps.Set(msg.Enabled, msg.Self, msg.Everyone)
		default:
			select {
			case c.inputs <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (c *conn) audio(chunk []byte) {
	if c.stream == nil {
		return
	}
	if chunk = c.pcm.Convert(chunk); len(chunk) == 0 {
		return
	}
	err := c.stream.SendAudio(chunk)
	if err != nil && !errors.Is(err, stt.ErrClosed) && !errors.Is(err, stt.ErrReconnecting) {
		c.log.Debug("audio dropped", "err", err)
	}
}

func (c *conn) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(c.srv.cfg.TickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case o := <-c.options:
			if err := c.sess.SetOptions(o); err != nil {
				c.log.Warn("options rejected", "err", err)
			}
		case msg := <-c.inputs:
			if reply := c.apply(msg, time.Now()); reply != nil {
				if err := c.write(ctx, reply); err != nil {
					return err
				}
			}
		case now := <-ticker.C:
			start := time.Now()
			f := c.scenes.Tick(now)
			c.srv.metrics.TickDuration.Record(ctx, time.Since(start).Seconds())
			if err := c.write(ctx, FrameMessage{Type: MsgFrame, Scene: c.scenes.Current().Name(), Frame: f}); err != nil {
				return err
			}
		}
	}
}

// apply handles a message that changes the session. It returns the reply to
// send, if any.
func (c *conn) apply(msg Inbound, now time.Time) any {
	fail := func(err error) any {
		return ErrorMessage{Type: MsgError, For: msg.Type, Error: err.Error()}
	}
	switch msg.Type {
	case MsgTap:
		c.sess.Tap()
	case MsgLoudness:
		c.sess.SetLoudness(msg.Value)
	case MsgScene:
		if err := c.scenes.Switch(msg.Name, now); err != nil {
			return fail(err)
		}
	case MsgOptions:
		if msg.Options == nil {
			return fail(errors.New("missing options"))
		}
		if err := c.applyOptions(*msg.Options); err != nil {
			return fail(err)
		}
	case MsgImage:
		o, ok := c.scenes.ImageOverlay()
		if !ok {
			return fail(fmt.Errorf("scene %q does not show images", c.scenes.Current().Name()))
		}
		h, added := o.ShowImage(scene.Image{Label: msg.Label, URL: msg.URL}, now)
		return ImageShown{Type: MsgImageShown, Handle: h, Added: added}
	case MsgRemoveImage:
		o, ok := c.scenes.ImageOverlay()
		if !ok || !o.RemoveImage(msg.Handle) {
			return fail(fmt.Errorf("unknown image %s", msg.Handle))
		}
	default:
		return fail(fmt.Errorf("unknown message type %q", msg.Type))
	}
	return nil
}

func (c *conn) applyOptions(p OptionsPatch) error {
	if p.CaptionMode != nil && !p.CaptionMode.IsValid() {
		return fmt.Errorf("unknown caption mode %q", *p.CaptionMode)
	}
	o := c.sess.Options()
	if p.SummaryMode != nil {
		o.SummaryMode = *p.SummaryMode
	}
	if p.MaxLines != nil {
		o.Layout.MaxLines = *p.MaxLines
		o.Durations.MaxLines = *p.MaxLines
	}
	if p.ZoomRatio != nil {
		o.Layout.ZoomRatio = *p.ZoomRatio
	}
	if err := c.sess.SetOptions(o); err != nil {
		return err
	}
	if p.CaptionMode != nil {
		c.selector.SetMode(*p.CaptionMode)
	}
	return nil
}

// pushOptions hands new options to the tick goroutine, replacing any that
// were not applied yet.
func (c *conn) pushOptions(o session.Options) {
	for {
		select {
		case c.options <- o:
			return
		default:
		}
		select {
		case <-c.options:
		default:
		}
	}
}

func (c *conn) write(ctx context.Context, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.ws, v)
}

// close releases everything the session holds. The remaining transcript is
// archived before the archive writer is flushed.
func (c *conn) close() {
	if c.stream != nil {
		_ = c.stream.Close()
	}
	if c.sess != nil {
		c.sess.Close()
		c.log.Info("session closed")
	}
	if c.summarizer != nil {
		_ = c.summarizer.Close()
	}
	if c.writer != nil {
		c.writer.Close()
		if n := c.writer.Dropped(); n > 0 {
			c.log.Warn("archive writes dropped", "batches", n)
		}
	}
}
