// Package deepgram provides an stt.Provider backed by the Deepgram streaming
// WebSocket API.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/captionlens/pkg/provider/stt"
	"github.com/MrWong99/captionlens/pkg/types"
)

const (
	defaultEndpoint   = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000
	defaultBoost      = 2
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the default language code, e.g. "en" or "de-DE".
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithSampleRate sets the default audio sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithKeywordBoost sets the boost applied to every keyword hint.
func WithKeywordBoost(boost float64) Option {
	return func(p *Provider) { p.boost = boost }
}

// WithEndpoint overrides the streaming endpoint, e.g. for a self-hosted
// Deepgram deployment.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey     string
	endpoint   string
	model      string
	language   string
	sampleRate int
	boost      float64
}

var _ stt.Provider = (*Provider)(nil)

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		model:      defaultModel,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
		boost:      defaultBoost,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a streaming recognition session. The stream lives until
// Close is called or ctx ends.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	wsURL, err := p.buildURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &stream{
		conn:       conn,
		cancel:     cancel,
		hypotheses: make(chan types.Hypothesis, 64),
		audio:      make(chan []byte, 256),
		done:       make(chan struct{}),
		readDone:   make(chan struct{}),
		now:        time.Now,
	}
	s.writeWG.Add(1)
	go s.writeLoop(sctx)
	go s.readLoop(sctx)
	return s, nil
}

func (p *Provider) buildURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("encoding", "linear16")
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("sample_rate", strconv.Itoa(sr))
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}
	for _, kw := range cfg.Keywords {
		q.Add("keywords", fmt.Sprintf("%s:%g", kw, p.boost))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ── stream ──────────────────────────────────────────────────────────────────

// response is the JSON structure of a Deepgram Results event.
type response struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// closeTimeout bounds how long Close waits for Deepgram to flush.
const closeTimeout = 2 * time.Second

type stream struct {
	conn       *websocket.Conn
	cancel     context.CancelFunc
	hypotheses chan types.Hypothesis
	audio      chan []byte
	now        func() time.Time

	done     chan struct{}
	readDone chan struct{}
	once     sync.Once
	writeWG  sync.WaitGroup

	builder stt.UtteranceBuilder
}

func (s *stream) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return stt.ErrClosed
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return stt.ErrClosed
	}
}

func (s *stream) Hypotheses() <-chan types.Hypothesis { return s.hypotheses }

// Close asks Deepgram to flush pending results, waits briefly for them and
// closes the connection.
func (s *stream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.writeWG.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		_ = s.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		select {
		case <-s.readDone:
		case <-ctx.Done():
		}
		s.cancel()
		<-s.readDone
		_ = s.conn.Close(websocket.StatusNormalClosure, "stream closed")
	})
	return nil
}

func (s *stream) writeLoop(ctx context.Context) {
	defer s.writeWG.Done()
	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-s.done:
			for {
				select {
				case chunk := <-s.audio:
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *stream) readLoop(ctx context.Context) {
	defer close(s.readDone)
	defer close(s.hypotheses)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			return
		}
		h, ok := s.parse(msg)
		if !ok {
			continue
		}
		select {
		case s.hypotheses <- h:
		case <-ctx.Done():
			return
		}
	}
}

// parse folds a Results event into the current utterance. Other events and
// empty interim results are ignored.
func (s *stream) parse(data []byte) (types.Hypothesis, bool) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return types.Hypothesis{}, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return types.Hypothesis{}, false
	}

	alt := resp.Channel.Alternatives[0]
	if alt.Transcript == "" && !resp.IsFinal {
		return types.Hypothesis{}, false
	}
	words := make([]types.WordDetail, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, types.WordDetail{
			Word:       w.Word,
			Start:      time.Duration(w.Start * float64(time.Second)),
			End:        time.Duration(w.End * float64(time.Second)),
			Confidence: w.Confidence,
		})
	}
	h := s.builder.Add(alt.Transcript, alt.Confidence, words, resp.IsFinal, resp.SpeechFinal, s.now())
	if h.Text == "" {
		return types.Hypothesis{}, false
	}
	return h, true
}
