package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/captionlens/internal/config"
	"github.com/MrWong99/captionlens/pkg/provider/llm"
	llmmock "github.com/MrWong99/captionlens/pkg/provider/llm/mock"
	"github.com/MrWong99/captionlens/pkg/types"
)

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader(empty): %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Captions.SummaryMode != types.SummaryOnTap {
		t.Errorf("summary_mode: got %q, want %q", cfg.Captions.SummaryMode, types.SummaryOnTap)
	}
	if cfg.Captions.CaptionMode != types.CaptionRecognizer {
		t.Errorf("caption_mode: got %q, want %q", cfg.Captions.CaptionMode, types.CaptionRecognizer)
	}
	if cfg.Captions.Layout.MaxLines != 5 {
		t.Errorf("layout.max_lines: got %d, want 5", cfg.Captions.Layout.MaxLines)
	}
	if cfg.Timing.ClearTimeout != 3*time.Second || cfg.Timing.BreakTimeout != time.Second {
		t.Errorf("timing: got clear=%s break=%s", cfg.Timing.ClearTimeout, cfg.Timing.BreakTimeout)
	}
	if cfg.Timing.RecognizerOutdate != 7400*time.Millisecond {
		t.Errorf("recognizer_outdate: got %s, want 7.4s", cfg.Timing.RecognizerOutdate)
	}
	if cfg.Captions.Labels.Listening != "Listening..." {
		t.Errorf("labels.listening: got %q", cfg.Captions.Labels.Listening)
	}
	if want := (config.AudioConfig{SampleRate: 48000, Channels: 1, RecognizerSampleRate: 16000}); cfg.Audio != want {
		t.Errorf("audio: got %+v, want %+v", cfg.Audio, want)
	}
}

func TestLoadFromReader_Values(t *testing.T) {
	t.Parallel()

	const doc = `
server:
  listen_addr: ":9000"
  tick_rate: 30
providers:
  llm:
    name: openai
    model: gpt-4o-mini
  llm_fallbacks:
    - name: ollama
      model: llama3
captions:
  summary_mode: Automatic
  caption_mode: Everyone
  layout:
    max_lines: 3
    max_summary_lines: 6
    zoom_ratio: 1
  capitalize:
    kubernetes: Kubernetes
  vocabulary: [Grafana, Prometheus]
  phrases:
    - pattern: "\\bcaption lens\\b"
      replacement: captionlens
timing:
  clear_timeout: 4s
  break_timeout: 1500ms
  summary_delay: 10s
store:
  postgres_dsn: "postgres://localhost/captions"
`
	cfg, err := config.LoadFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.TickRate != 30 {
		t.Errorf("tick_rate: got %d, want 30", cfg.Server.TickRate)
	}
	if len(cfg.Providers.LLMFallbacks) != 1 || cfg.Providers.LLMFallbacks[0].Name != "ollama" {
		t.Errorf("llm_fallbacks: got %+v", cfg.Providers.LLMFallbacks)
	}

	o := cfg.SessionOptions()
	if o.SummaryMode != types.SummaryAutomatic {
		t.Errorf("SessionOptions().SummaryMode: got %q", o.SummaryMode)
	}
	if o.Layout.ScreenWidth != 600 {
		t.Errorf("SessionOptions().Layout.ScreenWidth: got %v, want the default 600", o.Layout.ScreenWidth)
	}
	if o.Layout.MaxLines != 3 || o.Durations.MaxLines != 3 {
		t.Errorf("SessionOptions max lines: got layout=%d durations=%d, want 3", o.Layout.MaxLines, o.Durations.MaxLines)
	}
	if o.ClearTimeout != 4*time.Second || o.BreakTimeout != 1500*time.Millisecond {
		t.Errorf("SessionOptions timeouts: got %s/%s", o.ClearTimeout, o.BreakTimeout)
	}
	if o.SummaryDelay != 10*time.Second {
		t.Errorf("SessionOptions().SummaryDelay: got %s", o.SummaryDelay)
	}
	if o.Capitalize["kubernetes"] != "Kubernetes" || len(o.Vocabulary) != 2 {
		t.Errorf("SessionOptions corrections: got %v %v", o.Capitalize, o.Vocabulary)
	}
	if err := o.Validate(); err != nil {
		t.Errorf("SessionOptions().Validate(): %v", err)
	}

	pr, err := cfg.PhraseRewriter()
	if err != nil {
		t.Fatalf("PhraseRewriter: %v", err)
	}
	if got := pr.Rewrite("welcome to caption lens"); got != "welcome to captionlens" {
		t.Errorf("Rewrite: got %q", got)
	}
}

func TestLoadFromReader_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "unknown field",
			doc:  "server:\n  port: 80\n",
			want: []string{"field port not found"},
		},
		{
			name: "bad enums",
			doc:  "server:\n  log_level: loud\ncaptions:\n  summary_mode: Sometimes\n  caption_mode: Nobody\n",
			want: []string{"server.log_level", "captions.summary_mode", "captions.caption_mode"},
		},
		{
			name: "break after clear",
			doc:  "timing:\n  clear_timeout: 1s\n  break_timeout: 2s\n",
			want: []string{"timing.break_timeout"},
		},
		{
			name: "bad phrase",
			doc:  "captions:\n  phrases:\n    - pattern: \"(unclosed\"\n",
			want: []string{"captions.phrases"},
		},
		{
			name: "fallback without primary",
			doc:  "providers:\n  llm_fallbacks:\n    - name: ollama\n",
			want: []string{"requires providers.llm"},
		},
		{
			name: "tick rate",
			doc:  "server:\n  tick_rate: 1000\n",
			want: []string{"server.tick_rate"},
		},
		{
			name: "audio format",
			doc:  "audio:\n  sample_rate: 100\n  channels: 12\n",
			want: []string{"audio sample rates", "audio.channels"},
		},
		{
			name: "half tls",
			doc:  "server:\n  tls:\n    cert_file: cert.pem\n",
			want: []string{"server.tls"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.doc))
			if err == nil {
				t.Fatalf("LoadFromReader(%s): got nil error", tt.name)
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("LoadFromReader(%s): error %q does not mention %q", tt.name, err, w)
				}
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "captionlens.yaml")
	if err := os.WriteFile(path, []byte("server:\n  log_level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q): %v", path, err)
	}
	if cfg.Server.LogLevel != config.LogWarn {
		t.Errorf("Load(%q): got log level %q, want %q", path, cfg.Server.LogLevel, config.LogWarn)
	}
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing): got nil error")
	}
}

func TestLoad_Example(t *testing.T) {
	t.Parallel()

	path := filepath.Join("..", "..", "configs", "example.yaml")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q): %v", path, err)
	}
	if cfg.Providers.STT.Name != "deepgram" || cfg.Providers.LLM.Name != "openai" {
		t.Errorf("providers: got stt %q llm %q", cfg.Providers.STT.Name, cfg.Providers.LLM.Name)
	}
	if cfg.Timing.PauseTrigger != 1500*time.Millisecond {
		t.Errorf("pause_trigger: got %v, want 1.5s", cfg.Timing.PauseTrigger)
	}
	if cfg.Captions.Layout.MaxLines != 5 {
		t.Errorf("layout.max_lines: got %d, want default 5", cfg.Captions.Layout.MaxLines)
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	base := config.Default()
	tests := []struct {
		name   string
		modify func(c *config.Config)
		check  func(t *testing.T, d config.ConfigDiff)
	}{
		{
			name:   "identical",
			modify: func(*config.Config) {},
			check: func(t *testing.T, d config.ConfigDiff) {
				if d.LogLevelChanged || d.CaptionsChanged || d.CaptionModeChanged || len(d.RestartRequired) != 0 {
					t.Errorf("Diff: got %+v, want no changes", d)
				}
			},
		},
		{
			name:   "log level",
			modify: func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
					t.Errorf("Diff: got %+v", d)
				}
			},
		},
		{
			name:   "timing",
			modify: func(c *config.Config) { c.Timing.FadeIn = time.Second },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.CaptionsChanged {
					t.Error("Diff: timing change not reported")
				}
			},
		},
		{
			name:   "caption mode only",
			modify: func(c *config.Config) { c.Captions.CaptionMode = types.CaptionSelf },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.CaptionModeChanged || d.CaptionsChanged {
					t.Errorf("Diff: got %+v, want only the caption mode", d)
				}
			},
		},
		{
			name: "providers, audio and store",
			modify: func(c *config.Config) {
				c.Providers.LLM.Name = "openai"
				c.Audio.Channels = 2
				c.Store.PostgresDSN = "postgres://db"
			},
			check: func(t *testing.T, d config.ConfigDiff) {
				if strings.Join(d.RestartRequired, ",") != "providers,audio,store" {
					t.Errorf("RestartRequired: got %v", d.RestartRequired)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			next := config.Default()
			tt.modify(next)
			tt.check(t, config.Diff(base, next))
		})
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	want := &llmmock.Provider{}
	r.RegisterLLM("mock", func(e config.ProviderEntry) (llm.Provider, error) {
		if e.Model != "tiny" {
			t.Errorf("factory: got model %q, want %q", e.Model, "tiny")
		}
		return want, nil
	})

	got, err := r.CreateLLM(config.ProviderEntry{Name: "mock", Model: "tiny"})
	if err != nil {
		t.Fatalf("CreateLLM(mock): %v", err)
	}
	if got != want {
		t.Error("CreateLLM(mock): got a different provider")
	}

	if _, err := r.CreateLLM(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateLLM(nope): got %v, want ErrProviderNotRegistered", err)
	}
	if _, err := r.CreateSTT(config.ProviderEntry{Name: "deepgram"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateSTT(deepgram): got %v, want ErrProviderNotRegistered", err)
	}

	errKey := errors.New("missing api key")
	r.RegisterLLM("broken", func(config.ProviderEntry) (llm.Provider, error) { return nil, errKey })
	if _, err := r.CreateLLM(config.ProviderEntry{Name: "broken"}); !errors.Is(err, errKey) {
		t.Errorf("CreateLLM(broken): got %v, want wrapped factory error", err)
	}
	if got := strings.Join(r.LLMNames(), ","); got != "broken,mock" {
		t.Errorf("LLMNames: got %q, want %q", got, "broken,mock")
	}
	if got := r.STTNames(); len(got) != 0 {
		t.Errorf("STTNames: got %q, want none", got)
	}
}
