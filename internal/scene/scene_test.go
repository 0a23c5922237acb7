package scene_test

import (
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/captionlens/internal/layout"
	"github.com/MrWong99/captionlens/internal/observe"
	"github.com/MrWong99/captionlens/internal/scene"
	"github.com/MrWong99/captionlens/internal/session"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type staticText string

func (s staticText) Text(time.Time) string { return string(s) }

func newSession(t *testing.T, text string) *session.Session {
	t.Helper()
	met, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	s, err := session.New(session.DefaultOptions(),
		session.WithMetrics(met),
		session.WithMeasurer(layout.Monospace{Advance: 10}),
		session.WithTextSource(staticText(text)),
	)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	return s
}

func TestManager_Switch(t *testing.T) {
	t.Parallel()

	sess := newSession(t, "hello there")
	tr := scene.NewTranscription(sess)
	img := scene.NewInteractiveImage(sess, scene.DefaultImageOptions())
	m := scene.NewManager(nil, tr, img, scene.PassThrough{})

	if got := m.Current().Name(); got != scene.NameTranscription {
		t.Errorf("Current: got %q, want %q", got, scene.NameTranscription)
	}
	if f := m.Tick(t0); f.Text != "Hello there" {
		t.Errorf("Tick: got %q", f.Text)
	}
	if _, ok := m.ImageOverlay(); ok {
		t.Error("ImageOverlay on transcription scene: got ok")
	}

	if err := m.Switch(scene.NameInteractiveImage, t0); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if len(sess.Buffer().Live()) != 0 {
		t.Error("Switch did not stop the previous scene")
	}
	if _, ok := m.ImageOverlay(); !ok {
		t.Error("ImageOverlay on interactive image scene: got !ok")
	}

	err := m.Switch("karaoke", t0)
	if !errors.Is(err, scene.ErrUnknownScene) {
		t.Errorf("Switch(karaoke): got %v, want ErrUnknownScene", err)
	}

	if err := m.Switch(scene.NamePassThrough, t0); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if f := m.Tick(t0.Add(time.Second)); f.Text != "" || f.Images != nil {
		t.Errorf("pass-through Tick: got %+v", f)
	}
}

func TestInteractiveImage_Dedupes(t *testing.T) {
	t.Parallel()

	s := scene.NewInteractiveImage(newSession(t, ""), scene.DefaultImageOptions())
	h1, added := s.ShowImage(scene.Image{Label: "a red fox jumps"}, t0)
	if !added {
		t.Fatal("ShowImage: first image not added")
	}
	h2, added := s.ShowImage(scene.Image{Label: "a red fox jumping"}, t0)
	if added || h2 != h1 {
		t.Errorf("ShowImage(similar): got %v %v, want existing handle", h2, added)
	}
	if _, added := s.ShowImage(scene.Image{Label: "a blue whale"}, t0); !added {
		t.Error("ShowImage(different): not added")
	}
	if n := len(s.Images()); n != 2 {
		t.Errorf("Images: got %d, want 2", n)
	}
}

func TestInteractiveImage_RemoveAndExpire(t *testing.T) {
	t.Parallel()

	opts := scene.DefaultImageOptions()
	opts.Lifetime = 5 * time.Second
	s := scene.NewInteractiveImage(newSession(t, ""), opts)

	h, _ := s.ShowImage(scene.Image{Label: "eiffel tower"}, t0)
	s.ShowImage(scene.Image{Label: "golden gate bridge"}, t0.Add(2*time.Second))

	if !s.RemoveImage(h) {
		t.Fatal("RemoveImage: got false")
	}
	if s.RemoveImage(h) {
		t.Error("RemoveImage twice: got true")
	}
	h3, _ := s.ShowImage(scene.Image{Label: "statue of liberty"}, t0.Add(3*time.Second))
	if h3 == h {
		t.Error("reused slot returned the stale handle")
	}

	f := s.Tick(t0.Add(7500 * time.Millisecond))
	if len(f.Images) != 1 || f.Images[0].Label != "statue of liberty" {
		t.Errorf("Tick: got images %+v, want only the statue", f.Images)
	}
}

func TestInteractiveImage_MaxImages(t *testing.T) {
	t.Parallel()

	opts := scene.DefaultImageOptions()
	opts.MaxImages = 2
	s := scene.NewInteractiveImage(newSession(t, ""), opts)

	first, _ := s.ShowImage(scene.Image{Label: "mountain"}, t0)
	s.ShowImage(scene.Image{Label: "river"}, t0.Add(time.Second))
	s.ShowImage(scene.Image{Label: "forest"}, t0.Add(2*time.Second))

	imgs := s.Images()
	if len(imgs) != 2 {
		t.Fatalf("Images: got %d, want 2", len(imgs))
	}
	for _, img := range imgs {
		if img.Handle == first.String() {
			t.Error("oldest image was not replaced")
		}
	}
}

func TestInteractiveImage_GlidesIntoSlot(t *testing.T) {
	t.Parallel()

	opts := scene.DefaultImageOptions()
	s := scene.NewInteractiveImage(newSession(t, ""), opts)
	s.ShowImage(scene.Image{Label: "sunset"}, t0)

	target := opts.ScreenWidth - opts.Margin - opts.Size
	f := s.Tick(t0.Add(16 * time.Millisecond))
	x := f.Images[0].Rect.X
	if x <= target || x >= opts.ScreenWidth {
		t.Errorf("first tick: got x=%v, want between %v and %v", x, target, opts.ScreenWidth)
	}
	for i := 2; i < 300; i++ {
		f = s.Tick(t0.Add(time.Duration(i*16) * time.Millisecond))
	}
	if d := f.Images[0].Rect.X - target; d > 1 || d < -1 {
		t.Errorf("settled x: got %v, want %v", f.Images[0].Rect.X, target)
	}
}

func TestInteractiveImage_StopClears(t *testing.T) {
	t.Parallel()

	s := scene.NewInteractiveImage(newSession(t, ""), scene.DefaultImageOptions())
	h, _ := s.ShowImage(scene.Image{Label: "sunset"}, t0)
	s.Stop()
	if len(s.Images()) != 0 {
		t.Error("images left after Stop")
	}
	if s.RemoveImage(h) {
		t.Error("handle resolves after Stop")
	}
}
