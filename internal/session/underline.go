package session

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/captionlens/internal/filter"
	"github.com/MrWong99/captionlens/internal/layout"
	"github.com/MrWong99/captionlens/internal/transcript"
	"github.com/MrWong99/captionlens/pkg/types"
)

const (
	underlineSmoothing   = 4
	underlineOffsetY     = 10
	underlineMoveAfter   = 800 * time.Millisecond
	underlineNextOffsetX = 10
	underlineMaxNext     = 100
	underlineFadeAfter   = 3000 * time.Millisecond
	underlineFadeFor     = 500 * time.Millisecond
	wordFadeIn           = 350 * time.Millisecond
)

// underliner tracks the last spoken word. Once the word stays the same for
// a while the underline moves to the empty slot after it, inviting the
// speaker to continue.
type underliner struct {
	word  string
	since time.Time
	lastY float64
	x     *filter.MovingAverage
	y     *filter.MovingAverage
	w     *filter.MovingAverage
}

func newUnderliner() *underliner {
	return &underliner{
		x: filter.NewMovingAverage(underlineSmoothing),
		y: filter.NewMovingAverage(underlineSmoothing),
		w: filter.NewMovingAverage(underlineSmoothing),
	}
}

func (u *underliner) reset() {
	u.word, u.since, u.lastY = "", time.Time{}, 0
	u.resetAverages()
}

func (u *underliner) resetAverages() {
	u.x.Reset()
	u.y.Reset()
	u.w.Reset()
}

// update places the underline below the last word of line, whose top is at
// lineY.
func (u *underliner) update(now time.Time, line string, lineY float64, g layout.Geometry, zoom float64, m layout.Measurer) Underline {
	line = strings.TrimRight(line, " ")
	rest, word := lastWord(line)
	if word == "" {
		u.reset()
		return Underline{}
	}
	if key := strings.ToLower(strings.Trim(word, `.,!?;:"'()`)); key != u.word {
		u.word, u.since = key, now
	}
	idle := max(now.Sub(u.since), 0)

	x := g.Text.X + m.Measure(rest)
	y := lineY + g.LineHeight - underlineOffsetY*zoom
	w := m.Measure(word)
	if idle > underlineMoveAfter {
		x += w + underlineNextOffsetX*zoom
		w = max(min(underlineMaxNext*zoom, g.Text.W-m.Measure(line)), 0)
	}

	if y != u.lastY {
		u.resetAverages()
		u.lastY = y
	}
	u.x.Add(x)
	u.y.Add(y)
	u.w.Add(w)

	opacity := 1.0
	if idle > underlineFadeAfter {
		opacity = max(1-float64(idle-underlineFadeAfter)/float64(underlineFadeFor), 0)
	}
	return Underline{
		Visible:     opacity > 0,
		Rect:        types.Rect{X: u.x.Value(), Y: u.y.Value(), W: u.w.Value(), H: max(2*zoom, 1)},
		Opacity:     opacity,
		Alpha:       filter.PercentToHex(opacity),
		WordOpacity: min(float64(idle)/float64(wordFadeIn), 1),
	}
}

// lastWord splits line into everything before its last word and the word.
// For Eastern text the last character is the word.
func lastWord(line string) (rest, word string) {
	if line == "" {
		return "", ""
	}
	if transcript.IsEastern(line) {
		_, n := utf8.DecodeLastRuneInString(line)
		return line[:len(line)-n], line[len(line)-n:]
	}
	i := strings.LastIndexByte(line, ' ')
	return line[:i+1], line[i+1:]
}
