package filter

import (
	"fmt"
	"math"
)

// PercentToHex converts an opacity in [0, 1] into a two-digit lower-case hex
// alpha suffix ("00" to "ff"). Values outside the range are clamped.
func PercentToHex(p float64) string {
	p = min(max(p, 0), 1)
	return fmt.Sprintf("%02x", int(math.Floor(p*255)))
}

// Lerp interpolates from a to b by t in [0, 1].
func Lerp(a, b, t float64) float64 {
	t = min(max(t, 0), 1)
	return a + (b-a)*t
}
