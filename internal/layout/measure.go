// Package layout wraps transcript text into width-constrained lines and
// computes where the caption overlay places its icon, caption and text.
//
// Text width comes from a [Measurer] supplied by the rendering surface. The
// package ships a [Monospace] measurer for tests and headless use, and a
// [FontMeasurer] that measures with a real font face.
package layout

import (
	"fmt"
	"os"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/MrWong99/captionlens/internal/transcript"
)

// Measurer reports the rendered width of a string in pixels.
type Measurer interface {
	Measure(s string) float64
}

// MeasureFunc adapts a plain function to [Measurer].
type MeasureFunc func(s string) float64

// Measure calls f(s).
func (f MeasureFunc) Measure(s string) float64 { return f(s) }

// Monospace measures every rune with a fixed advance. Eastern-script
// characters use EasternAdvance, or twice Advance when it is zero.
type Monospace struct {
	Advance        float64
	EasternAdvance float64
}

// Measure implements [Measurer].
func (m Monospace) Measure(s string) float64 {
	east := m.EasternAdvance
	if east == 0 {
		east = 2 * m.Advance
	}
	var w float64
	for _, r := range s {
		if r >= 0x3400 && r <= 0x9FBF {
			w += east
		} else {
			w += m.Advance
		}
	}
	return w
}

// FontMeasurer measures strings with a font face. Faces cache glyph data and
// are not safe for concurrent use, so calls are serialized.
type FontMeasurer struct {
	mu   sync.Mutex
	face font.Face
}

// NewFontMeasurer returns a measurer for face. A nil face selects the
// built-in 7x13 bitmap face.
func NewFontMeasurer(face font.Face) *FontMeasurer {
	if face == nil {
		face = basicfont.Face7x13
	}
	return &FontMeasurer{face: face}
}

// Measure implements [Measurer].
func (m *FontMeasurer) Measure(s string) float64 {
	m.mu.Lock()
	adv := font.MeasureString(m.face, s)
	m.mu.Unlock()
	return float64(adv) / 64
}

// LoadFontFace reads a TrueType font file and returns a face of the given
// pixel size.
func LoadFontFace(path string, size float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("layout: read font %q: %w", path, err)
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("layout: parse font %q: %w", path, err)
	}
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}

// NewMeasurer returns the measurer for o. With a font file, lines are
// measured with that font at the rendered text size; without one every
// character is assumed to be a bit more than half the font size wide.
func NewMeasurer(o Options, fontFile string) (Measurer, error) {
	size := o.FontSize * o.ZoomRatio
	if fontFile == "" {
		return Monospace{Advance: 0.55 * size, EasternAdvance: size}, nil
	}
	face, err := LoadFontFace(fontFile, size)
	if err != nil {
		return nil, err
	}
	return NewFontMeasurer(face), nil
}

// isEastern is shared with the tokenizer so both agree on script detection.
var isEastern = transcript.IsEastern
