package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/captionlens/internal/layout"
	"github.com/MrWong99/captionlens/internal/session"
	"github.com/MrWong99/captionlens/internal/source"
	"github.com/MrWong99/captionlens/internal/stage"
	"github.com/MrWong99/captionlens/internal/transcript"
	"github.com/MrWong99/captionlens/internal/visual"
	"github.com/MrWong99/captionlens/pkg/types"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"deepgram"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the default config. Keys
// missing from captions.layout keep their defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	cfg.Captions.Layout = layout.DefaultOptions()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every zero value of cfg with its default.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddr == "" {
		s.ListenAddr = ":8080"
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.TickRate == 0 {
		s.TickRate = 60
	}

	so := session.DefaultOptions()
	c := &cfg.Captions
	if c.Layout == (layout.Options{}) {
		c.Layout = layout.DefaultOptions()
	}
	if c.Language == "" {
		c.Language = "en-US"
	}
	if c.SummaryMode == "" {
		c.SummaryMode = so.SummaryMode
	}
	if c.CaptionMode == "" {
		c.CaptionMode = types.CaptionRecognizer
	}
	if c.SummaryMinWords == 0 {
		c.SummaryMinWords = so.SummaryMinWords
	}
	if c.SummaryMaxWords == 0 {
		c.SummaryMaxWords = so.SummaryMaxWords
	}
	if c.ScrollingSpeed == 0 {
		c.ScrollingSpeed = so.ScrollingSpeed
	}
	if c.MaxHistoryTokens == 0 {
		c.MaxHistoryTokens = so.MaxHistoryTokens
	}
	defLabels := session.DefaultLabels()
	if c.Labels.Transcription == "" {
		c.Labels.Transcription = defLabels.Transcription
	}
	if c.Labels.Listening == "" {
		c.Labels.Listening = defLabels.Listening
	}
	if c.Labels.Summarizing == "" {
		c.Labels.Summarizing = defLabels.Summarizing
	}
	if c.Labels.Summary == "" {
		c.Labels.Summary = defLabels.Summary
	}
	if c.Images.Threshold == 0 {
		c.Images.Threshold = visual.DefaultThreshold
	}
	setDuration(&c.Images.Lifetime, 12*time.Second)
	if c.Images.MaxImages == 0 {
		c.Images.MaxImages = 3
	}
	if c.Images.Size == 0 {
		c.Images.Size = 160
	}

	d := stage.DefaultDurations()
	t := &cfg.Timing
	setDuration(&t.ClearTimeout, so.ClearTimeout)
	setDuration(&t.BreakTimeout, so.BreakTimeout)
	setDuration(&t.FadeIn, d.FadeIn)
	setDuration(&t.Move, d.Move)
	setDuration(&t.FadeOut, d.FadeOut)
	setDuration(&t.SummaryTimeout, d.SummaryTimeout)
	setDuration(&t.SummarizingTimeout, d.SummarizingTimeout)
	setDuration(&t.TranslationFade, d.TranslationFade)
	setDuration(&t.TranslationStay, d.TranslationStay)
	setDuration(&t.SummaryDelay, so.SummaryDelay)
	setDuration(&t.PauseTrigger, so.PauseTrigger)
	setDuration(&t.RecognizerOutdate, source.DefaultOutdate)
	if t.RecognizerPollEvery == 0 {
		t.RecognizerPollEvery = source.DefaultPollEvery
	}

	a := &cfg.Audio
	if a.SampleRate == 0 {
		a.SampleRate = 48000
	}
	if a.Channels == 0 {
		a.Channels = 1
	}
	if a.RecognizerSampleRate == 0 {
		a.RecognizerSampleRate = 16000
	}

	if cfg.Store.HistoryLimit == 0 {
		cfg.Store.HistoryLimit = 1000
	}
	if cfg.Store.QueueSize == 0 {
		cfg.Store.QueueSize = 256
	}
}

func setDuration[T ~int64](field *T, def T) {
	if *field == 0 {
		*field = def
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TickRate < 1 || cfg.Server.TickRate > 240 {
		errs = append(errs, fmt.Errorf("server.tick_rate %d is out of range [1, 240]", cfg.Server.TickRate))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("llm", fb.Name)
	}
	if cfg.Providers.LLM.Name == "" && len(cfg.Providers.LLMFallbacks) > 0 {
		errs = append(errs, errors.New("providers.llm_fallbacks requires providers.llm"))
	}
	if cfg.Providers.LLM.Name == "" && cfg.Captions.SummaryMode != types.SummaryDisabled {
		slog.Warn("no LLM provider configured; summaries will not be available",
			"summary_mode", cfg.Captions.SummaryMode)
	}

	// Captions
	c := cfg.Captions
	if !c.SummaryMode.IsValid() {
		errs = append(errs, fmt.Errorf("captions.summary_mode %q is invalid; valid values: Disabled, Automatic, SummaryOnly, OnTap", c.SummaryMode))
	}
	if !c.CaptionMode.IsValid() {
		errs = append(errs, fmt.Errorf("captions.caption_mode %q is invalid; valid values: Disabled, Yourself, Everyone", c.CaptionMode))
	}
	if c.Layout.MaxLines < 1 {
		errs = append(errs, fmt.Errorf("captions.layout.max_lines %d must be at least 1", c.Layout.MaxLines))
	}
	if c.Layout.MaxSummaryLines < c.Layout.MaxLines {
		slog.Warn("captions.layout.max_summary_lines is smaller than max_lines; summaries will be cut short",
			"max_summary_lines", c.Layout.MaxSummaryLines, "max_lines", c.Layout.MaxLines)
	}
	if c.Layout.ZoomRatio <= 0 {
		errs = append(errs, fmt.Errorf("captions.layout.zoom_ratio %v must be positive", c.Layout.ZoomRatio))
	}
	if c.ScrollingSpeed <= 0 || c.ScrollingSpeed > 1 {
		errs = append(errs, fmt.Errorf("captions.scrolling_speed %v is out of range (0, 1]", c.ScrollingSpeed))
	}
	if c.SummaryMinWords < 0 || c.SummaryMaxWords < 0 {
		errs = append(errs, errors.New("captions.summary_min_words and summary_max_words must not be negative"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("captions.temperature %v is out of range [0, 2]", c.Temperature))
	}
	if c.Images.Threshold <= 0 || c.Images.Threshold >= 1 {
		errs = append(errs, fmt.Errorf("captions.images.threshold %v is out of range (0, 1)", c.Images.Threshold))
	}
	if _, err := transcript.NewPhraseRewriter(phraseRules(c.Phrases)); err != nil {
		errs = append(errs, fmt.Errorf("captions.phrases: %w", err))
	}
	if c.FontFile != "" {
		if _, err := os.Stat(c.FontFile); err != nil {
			errs = append(errs, fmt.Errorf("captions.font_file: %w", err))
		}
	}

	// Timing
	t := cfg.Timing
	if t.BreakTimeout >= t.ClearTimeout {
		errs = append(errs, fmt.Errorf("timing.break_timeout %s must be shorter than clear_timeout %s", t.BreakTimeout, t.ClearTimeout))
	}
	for name, d := range map[string]int64{
		"clear_timeout":       int64(t.ClearTimeout),
		"break_timeout":       int64(t.BreakTimeout),
		"fade_in":             int64(t.FadeIn),
		"move":                int64(t.Move),
		"fade_out":            int64(t.FadeOut),
		"summary_timeout":     int64(t.SummaryTimeout),
		"summarizing_timeout": int64(t.SummarizingTimeout),
		"recognizer_outdate":  int64(t.RecognizerOutdate),
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("timing.%s must not be negative", name))
		}
	}
	if t.RecognizerPollEvery < 1 {
		errs = append(errs, fmt.Errorf("timing.recognizer_poll_every %d must be at least 1", t.RecognizerPollEvery))
	}

	// Audio
	if a := cfg.Audio; a.SampleRate < 8000 || a.RecognizerSampleRate < 8000 {
		errs = append(errs, fmt.Errorf("audio sample rates %d and %d must be at least 8000", a.SampleRate, a.RecognizerSampleRate))
	}
	if cfg.Audio.Channels < 1 || cfg.Audio.Channels > 8 {
		errs = append(errs, fmt.Errorf("audio.channels %d is out of range [1, 8]", cfg.Audio.Channels))
	}

	// Store
	if cfg.Store.PostgresDSN == "" {
		slog.Debug("store.postgres_dsn is empty; transcripts are archived in memory only")
	}
	if cfg.Store.HistoryLimit < 0 || cfg.Store.QueueSize < 0 {
		errs = append(errs, errors.New("store.history_limit and store.queue_size must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

func phraseRules(in []PhraseRule) []transcript.PhraseRule {
	out := make([]transcript.PhraseRule, len(in))
	for i, r := range in {
		out[i] = transcript.PhraseRule{Pattern: r.Pattern, Replacement: r.Replacement}
	}
	return out
}
