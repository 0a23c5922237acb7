// Package scene defines what the overlay shows. A scene is ticked once per
// frame; the [Manager] owns the active one.
//
// Scene-specific features are exposed as capability interfaces. Callers
// query them with a type assertion instead of checking concrete types:
//
//	if o, ok := mgr.Current().(scene.SupportsImageOverlay); ok {
//		o.ShowImage(img, now)
//	}
package scene

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/captionlens/internal/session"
	"github.com/MrWong99/captionlens/internal/visual"
)

// Scene names.
const (
	NameTranscription    = "transcription"
	NameInteractiveImage = "interactive_image"
	NamePassThrough      = "pass_through"
)

// ErrUnknownScene is returned by [Manager.Switch] for a scene that was not
// registered.
var ErrUnknownScene = errors.New("scene: unknown scene")

// Scene is one overlay mode.
type Scene interface {
	Name() string
	// Start is called when the scene becomes active.
	Start(now time.Time)
	// Stop is called when another scene takes over. It must reset all state
	// so a later Start begins from scratch.
	Stop()
	Tick(now time.Time) session.Frame
}

// Image is an image suggestion to overlay.
type Image struct {
	Label string
	URL   string
}

// SupportsImageOverlay is implemented by scenes that can overlay images.
type SupportsImageOverlay interface {
	// ShowImage adds img unless an image with a similar label is already
	// shown, in which case the existing handle is returned with false.
	ShowImage(img Image, now time.Time) (visual.Handle, bool)
	RemoveImage(h visual.Handle) bool
	Images() []session.Image
}

// Manager switches between registered scenes. It is safe for concurrent
// use; ticks and switches are serialized.
type Manager struct {
	mu      sync.Mutex
	scenes  map[string]Scene
	current Scene
	log     *slog.Logger
}

// NewManager registers scenes. The first one becomes active once
// [Manager.Switch] or [Manager.Tick] is called.
func NewManager(log *slog.Logger, scenes ...Scene) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{scenes: make(map[string]Scene, len(scenes)), log: log}
	for _, s := range scenes {
		m.scenes[s.Name()] = s
	}
	if len(scenes) > 0 {
		m.current = scenes[0]
	}
	return m
}

// Current returns the active scene, or nil when none is registered.
func (m *Manager) Current() Scene {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Switch stops the active scene and starts the named one. Switching to the
// active scene is a no-op.
func (m *Manager) Switch(name string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, ok := m.scenes[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScene, name)
	}
	if next == m.current {
		return nil
	}
	if m.current != nil {
		m.current.Stop()
	}
	next.Start(now)
	m.log.Info("scene switched", "scene", name)
	m.current = next
	return nil
}

// Tick ticks the active scene.
func (m *Manager) Tick(now time.Time) session.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return session.Frame{}
	}
	return m.current.Tick(now)
}

// ImageOverlay returns the active scene's image overlay capability.
func (m *Manager) ImageOverlay() (SupportsImageOverlay, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.current.(SupportsImageOverlay)
	return o, ok
}

// Stop stops the active scene.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Stop()
	}
}

// ── transcription ───────────────────────────────────────────────────────────

// Transcription shows the live transcript and summaries.
type Transcription struct {
	sess *session.Session
}

// NewTranscription wraps sess.
func NewTranscription(sess *session.Session) *Transcription {
	return &Transcription{sess: sess}
}

// Name implements [Scene].
func (t *Transcription) Name() string { return NameTranscription }

// Start implements [Scene].
func (t *Transcription) Start(time.Time) {}

// Stop implements [Scene].
func (t *Transcription) Stop() { t.sess.Stop() }

// Tick implements [Scene].
func (t *Transcription) Tick(now time.Time) session.Frame { return t.sess.Tick(now) }

// Session returns the wrapped session.
func (t *Transcription) Session() *session.Session { return t.sess }

// ── pass-through ────────────────────────────────────────────────────────────

// PassThrough shows the camera image without any overlay.
type PassThrough struct{}

// Name implements [Scene].
func (PassThrough) Name() string { return NamePassThrough }

// Start implements [Scene].
func (PassThrough) Start(time.Time) {}

// Stop implements [Scene].
func (PassThrough) Stop() {}

// Tick implements [Scene].
func (PassThrough) Tick(time.Time) session.Frame { return session.Frame{} }
