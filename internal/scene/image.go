package scene

import (
	"time"

	"github.com/MrWong99/captionlens/internal/filter"
	"github.com/MrWong99/captionlens/internal/session"
	"github.com/MrWong99/captionlens/internal/visual"
	"github.com/MrWong99/captionlens/pkg/types"
)

// ImageOptions configure [InteractiveImage].
type ImageOptions struct {
	// Threshold is the label similarity above which a suggestion counts as
	// already shown.
	Threshold float64
	// Lifetime is how long an image stays before it is dropped.
	Lifetime time.Duration
	// MaxImages bounds how many images are shown at once. The oldest image
	// makes room for a new one.
	MaxImages int
	// Size is the edge length of an image in pixels.
	Size float64
	// Margin is the gap between images and the screen edge in pixels.
	Margin float64
	// ScreenWidth is the width of the overlay in pixels.
	ScreenWidth float64
	// MinCutoff and Beta tune the position smoothing.
	MinCutoff float64
	Beta      float64
}

// DefaultImageOptions returns the stock image overlay settings.
func DefaultImageOptions() ImageOptions {
	return ImageOptions{
		Threshold:   visual.DefaultThreshold,
		Lifetime:    12 * time.Second,
		MaxImages:   3,
		Size:        160,
		Margin:      16,
		ScreenWidth: 1280,
		MinCutoff:   1,
		Beta:        0.007,
	}
}

type widget struct {
	img     Image
	shownAt time.Time
	pos     *filter.PositionFilter
	current [filter.Dim]float64
}

// InteractiveImage shows the transcript with image suggestions stacked
// along the right edge. Images glide into their slot when others leave.
type InteractiveImage struct {
	*Transcription
	opts    ImageOptions
	widgets visual.Arena[*widget]
}

var _ SupportsImageOverlay = (*InteractiveImage)(nil)

// NewInteractiveImage wraps sess.
func NewInteractiveImage(sess *session.Session, opts ImageOptions) *InteractiveImage {
	return &InteractiveImage{Transcription: NewTranscription(sess), opts: opts}
}

// Name implements [Scene].
func (s *InteractiveImage) Name() string { return NameInteractiveImage }

// Stop implements [Scene].
func (s *InteractiveImage) Stop() {
	s.widgets.Clear()
	s.Transcription.Stop()
}

// ShowImage implements [SupportsImageOverlay].
func (s *InteractiveImage) ShowImage(img Image, now time.Time) (visual.Handle, bool) {
	var dup visual.Handle
	s.widgets.Each(func(h visual.Handle, w *widget) bool {
		if visual.IsSimilar(w.img.Label, img.Label, s.opts.Threshold) {
			dup = h
			return false
		}
		return true
	})
	if !dup.IsZero() {
		return dup, false
	}

	if s.opts.MaxImages > 0 && s.widgets.Len() >= s.opts.MaxImages {
		s.removeOldest()
	}
	pos, err := filter.NewPositionFilter(60, s.opts.MinCutoff, s.opts.Beta, 1)
	if err != nil {
		// Invalid smoothing settings: images jump straight to their slot.
		pos = nil
	}
	w := &widget{img: img, shownAt: now, pos: pos}
	h := s.widgets.Insert(w)
	w.current = s.slot(s.widgets.Len()-1, true)
	if pos != nil {
		pos.Filter(w.current, now)
	}
	return h, true
}

// RemoveImage implements [SupportsImageOverlay].
func (s *InteractiveImage) RemoveImage(h visual.Handle) bool {
	if !s.widgets.Remove(h) {
		return false
	}
	s.widgets.Compact()
	return true
}

func (s *InteractiveImage) removeOldest() {
	var (
		oldest visual.Handle
		at     time.Time
	)
	s.widgets.Each(func(h visual.Handle, w *widget) bool {
		if oldest.IsZero() || w.shownAt.Before(at) {
			oldest, at = h, w.shownAt
		}
		return true
	})
	s.widgets.Remove(oldest)
	s.widgets.Compact()
}

// Images implements [SupportsImageOverlay].
func (s *InteractiveImage) Images() []session.Image {
	var out []session.Image
	s.widgets.Each(func(h visual.Handle, w *widget) bool {
		out = append(out, session.Image{
			Handle: h.String(),
			Label:  w.img.Label,
			URL:    w.img.URL,
			Rect:   types.Rect{X: w.current[0], Y: w.current[1], W: w.current[2], H: w.current[2]},
		})
		return true
	})
	return out
}

// Tick implements [Scene]. Expired images are dropped and the rest move
// towards their slots.
func (s *InteractiveImage) Tick(now time.Time) session.Frame {
	f := s.Transcription.Tick(now)

	s.widgets.Each(func(h visual.Handle, w *widget) bool {
		if s.opts.Lifetime > 0 && now.Sub(w.shownAt) > s.opts.Lifetime {
			s.widgets.Remove(h)
		}
		return true
	})
	s.widgets.Compact()

	i := 0
	s.widgets.Each(func(_ visual.Handle, w *widget) bool {
		target := s.slot(i, false)
		if w.pos != nil {
			w.current = w.pos.Filter(target, now)
		} else {
			w.current = target
		}
		i++
		return true
	})
	f.Images = s.Images()
	return f
}

// slot returns x, y and size of the i-th image. Entering images start just
// outside the right edge.
func (s *InteractiveImage) slot(i int, entering bool) [filter.Dim]float64 {
	o := s.opts
	x := o.ScreenWidth - o.Margin - o.Size
	if entering {
		x = o.ScreenWidth
	}
	y := o.Margin + float64(i)*(o.Size+o.Margin)
	return [filter.Dim]float64{x, y, o.Size}
}
