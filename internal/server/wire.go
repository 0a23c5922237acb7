package server

import (
	"github.com/MrWong99/captionlens/internal/session"
	"github.com/MrWong99/captionlens/internal/visual"
	"github.com/MrWong99/captionlens/pkg/types"
)

// Client → server message types.
const (
	MsgHypothesis  = "hypothesis"
	MsgCaptions    = "captions"
	MsgTap         = "tap"
	MsgOptions     = "options"
	MsgScene       = "scene"
	MsgImage       = "image"
	MsgRemoveImage = "remove_image"
	MsgLoudness    = "loudness"
)

// Server → client message types.
const (
	MsgHello      = "hello"
	MsgFrame      = "frame"
	MsgImageShown = "image_shown"
	MsgError      = "error"
)

// Inbound is a JSON message sent by the extension. Only the fields of its
// Type are set.
type Inbound struct {
	Type string `json:"type"`

	// hypothesis
	Text       string  `json:"text,omitempty"`
	IsFinal    bool    `json:"is_final,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`

	// captions
	Enabled  bool   `json:"enabled,omitempty"`
	Self     string `json:"self,omitempty"`
	Everyone string `json:"everyone,omitempty"`

	// options
	Options *OptionsPatch `json:"options,omitempty"`

	// scene
	Name string `json:"name,omitempty"`

	// image, remove_image
	Label  string        `json:"label,omitempty"`
	URL    string        `json:"url,omitempty"`
	Handle visual.Handle `json:"handle,omitzero"`

	// loudness
	Value float64 `json:"value,omitempty"`
}

// OptionsPatch changes individual session options. Nil fields keep their
// value.
type OptionsPatch struct {
	SummaryMode *types.SummaryMode `json:"summary_mode,omitempty"`
	CaptionMode *types.CaptionMode `json:"caption_mode,omitempty"`
	MaxLines    *int               `json:"max_lines,omitempty"`
	ZoomRatio   *float64           `json:"zoom_ratio,omitempty"`
}

// Hello is the first message of every connection.
type Hello struct {
	Type      string   `json:"type"`
	SessionID string   `json:"session_id"`
	TickRate  int      `json:"tick_rate"`
	Scenes    []string `json:"scenes"`
	Audio     bool     `json:"audio"`
}

// FrameMessage carries one rendered frame.
type FrameMessage struct {
	Type  string `json:"type"`
	Scene string `json:"scene"`
	session.Frame
}

// ImageShown answers an image message.
type ImageShown struct {
	Type   string        `json:"type"`
	Handle visual.Handle `json:"handle"`
	Added  bool          `json:"added"`
}

// ErrorMessage reports a rejected client message. The connection stays open.
type ErrorMessage struct {
	Type  string `json:"type"`
	For   string `json:"for,omitempty"`
	Error string `json:"error"`
}
