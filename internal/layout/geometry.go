package layout

import "github.com/MrWong99/captionlens/pkg/types"

// Options are the overlay dimensions in unified units. Unified values are
// scaled by ZoomRatio; ScreenX and ScreenY are already in pixels.
type Options struct {
	Top            float64 `yaml:"unified_top"`
	Left           float64 `yaml:"unified_left"`
	ScreenPadding  float64 `yaml:"unified_screen_padding"`
	IconSize       float64 `yaml:"unified_icon_size"`
	BaseFontSize   float64 `yaml:"unified_font_size"`
	LineSpacing    float64 `yaml:"unified_line_spacing"`
	CaptionSpacing float64 `yaml:"unified_caption_spacing"`
	CaptionOffset  float64 `yaml:"unified_caption_offset"`
	ScreenWidth    float64 `yaml:"unified_screen_width"`
	ScreenHeight   float64 `yaml:"unified_screen_height"`
	ZoomRatio      float64 `yaml:"zoom_ratio"`
	ScreenX        float64 `yaml:"screen_x"`
	ScreenY        float64 `yaml:"screen_y"`
	FontSize       float64 `yaml:"font_size"`
	CaptionSize    float64 `yaml:"caption_size"`

	// MaxLines is how many transcript lines are visible.
	MaxLines int `yaml:"max_lines"`
	// MaxSummaryLines is the height reserved while a summary is shown.
	MaxSummaryLines int `yaml:"max_summary_lines"`
	// MinLines is the collapsed height the icon rises from.
	MinLines int `yaml:"min_lines"`
}

// DefaultOptions returns the stock overlay dimensions.
func DefaultOptions() Options {
	return Options{
		Top:             24,
		Left:            24,
		ScreenPadding:   48,
		IconSize:        72,
		BaseFontSize:    48,
		LineSpacing:     14,
		CaptionSpacing:  30,
		CaptionOffset:   10,
		ScreenWidth:     600,
		ScreenHeight:    600,
		ZoomRatio:       0.6,
		ScreenX:         150,
		ScreenY:         10,
		FontSize:        56,
		CaptionSize:     40,
		MaxLines:        5,
		MaxSummaryLines: 7,
		MinLines:        0,
	}
}

// State is the per-tick input to [Compute].
type State struct {
	// Lines is the number of transcript lines on screen.
	Lines int
	// Expanded reserves the full summary height. It is set while a summary
	// is shown and always in summary-only mode.
	Expanded bool
	// ScrollY is the eased text top. Zero means no scrolling is in progress.
	ScrollY float64
}

// Geometry holds the pixel rectangles of one frame.
type Geometry struct {
	Icon    types.Rect `json:"icon"`
	Caption types.Rect `json:"caption"`
	Text    types.Rect `json:"text"`

	// IconMinY and CaptionMinY are the positions at the collapsed height.
	IconMinY    float64 `json:"icon_min_y"`
	CaptionMinY float64 `json:"caption_min_y"`

	// TargetTextY is where the text top settles once scrolling ends.
	TargetTextY float64 `json:"target_text_y"`

	FontSize        float64 `json:"font_size"`
	CaptionFontSize float64 `json:"caption_font_size"`
	LineHeight      float64 `json:"line_height"`
}

// TextWidth is the width available to a transcript line in pixels.
func (o Options) TextWidth() float64 {
	return (o.ScreenWidth - 3*o.ScreenPadding) * o.ZoomRatio
}

// Compute places icon, caption and text for one frame. The overlay grows
// upwards from the bottom of the screen as lines are added.
func Compute(o Options, s State) Geometry {
	textRatio, captionRatio := 1.0, 1.0
	if o.BaseFontSize > 0 {
		textRatio = o.FontSize / o.BaseFontSize
		captionRatio = o.CaptionSize / o.BaseFontSize
	}
	z := o.ZoomRatio
	screenHeight := o.ScreenHeight * z
	unifiedLine := o.BaseFontSize*textRatio + o.LineSpacing
	chrome := o.Top*2 + o.CaptionSpacing + o.IconSize*captionRatio

	var hidden, minHidden float64
	if s.Expanded {
		hidden = screenHeight - (chrome+unifiedLine*float64(o.MaxSummaryLines))*z
		minHidden = screenHeight - (chrome+unifiedLine*float64(o.MinLines))*z
	} else {
		lines := min(o.MaxLines, max(s.Lines, 0))
		hidden = screenHeight - (chrome+unifiedLine*float64(lines))*z
		minHidden = hidden
	}

	iconTop := (o.Top + o.LineSpacing/2) * z
	iconSize := o.IconSize * z * captionRatio
	g := Geometry{
		Icon: types.Rect{
			X: o.ScreenX + o.Left*z,
			Y: o.ScreenY + hidden + iconTop,
			W: iconSize,
			H: iconSize,
		},
		IconMinY:        o.ScreenY + minHidden + iconTop,
		FontSize:        o.BaseFontSize * textRatio * z,
		CaptionFontSize: o.BaseFontSize * z,
		LineHeight:      unifiedLine * z,
	}
	g.Caption = types.Rect{
		X: o.ScreenX + iconSize + (o.Left+o.CaptionOffset)*z,
		Y: g.Icon.Y + o.CaptionOffset*z,
		W: o.TextWidth() - iconSize,
		H: g.CaptionFontSize,
	}
	g.CaptionMinY = g.IconMinY + o.CaptionOffset*z

	g.TargetTextY = g.Icon.Y + iconSize + o.CaptionSpacing*z
	g.Text = types.Rect{
		X: o.ScreenX + o.Left*z,
		Y: g.TargetTextY,
		W: o.TextWidth(),
		H: g.LineHeight * float64(visibleLines(o, s)),
	}

	if s.ScrollY != 0 && !s.Expanded {
		shift := s.ScrollY - g.TargetTextY
		g.Text.Y = s.ScrollY
		g.Icon.Y += shift
		g.Caption.Y += shift
	}
	return g
}

func visibleLines(o Options, s State) int {
	if s.Expanded {
		return o.MaxSummaryLines
	}
	return min(o.MaxLines, max(s.Lines, 0))
}
