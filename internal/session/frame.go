package session

import (
	"github.com/MrWong99/captionlens/internal/layout"
	"github.com/MrWong99/captionlens/internal/stage"
	"github.com/MrWong99/captionlens/pkg/types"
)

// Frame is everything a renderer needs to paint one tick.
type Frame struct {
	Stage      stage.Stage `json:"stage"`
	Percentage float64     `json:"percentage"`

	// Text is the visible transcript, one line per "\n".
	Text  string   `json:"text"`
	Lines []string `json:"lines"`
	// ScrollOffset is how far the text has scrolled up towards the next
	// line, in pixels.
	ScrollOffset float64 `json:"scroll_offset"`

	Caption  string          `json:"caption"`
	Geometry layout.Geometry `json:"geometry"`

	Underline Underline `json:"underline"`
	Loudness  Loudness  `json:"loudness"`

	// Summary holds the formatted summary lines while one is shown.
	Summary []string `json:"summary,omitempty"`

	// Images is filled by scenes that overlay images.
	Images []Image `json:"images,omitempty"`
}

// Underline marks the word that was spoken last, or the slot after it.
type Underline struct {
	Visible bool       `json:"visible"`
	Rect    types.Rect `json:"rect"`
	// Opacity fades out once nothing new was said for a while.
	Opacity float64 `json:"opacity"`
	// Alpha is Opacity as a two-digit hex string for CSS colors.
	Alpha string `json:"alpha"`
	// WordOpacity fades the last word in.
	WordOpacity float64 `json:"word_opacity"`
}

// Loudness is the smoothed microphone level and the bar heights derived
// from it.
type Loudness struct {
	Level float64    `json:"level"`
	Bars  [3]float64 `json:"bars"`
	Width float64    `json:"bar_width"`
}

// Image is an overlay image placed by a scene.
type Image struct {
	Handle string     `json:"handle"`
	Label  string     `json:"label"`
	URL    string     `json:"url"`
	Rect   types.Rect `json:"rect"`
}
