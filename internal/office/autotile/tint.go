package autotile

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/umfhero/pixel-agents/internal/office/tiles"
)

// Sprite is a pre-decoded pixel grid, rows of "#rrggbb" colours; "" is transparent.
type Sprite [][]string

// ApplyTint returns the sprite with t applied to every opaque pixel.
// Absent and neutral tints return s itself.
func ApplyTint(s Sprite, t *tiles.Tint) Sprite {
	if s == nil || t.IsNeutral() {
		return s
	}
	tc := t.Clamp()
	out := make(Sprite, len(s))
	for y, row := range s {
		out[y] = make([]string, len(row))
		for x, px := range row {
			out[y][x] = tintPixel(px, tc)
		}
	}
	return out
}

func tintPixel(px string, t tiles.Tint) string {
	if px == "" {
		return px
	}
	c, err := colorful.Hex(px)
	if err != nil {
		// Not a colour we understand; leave it alone.
		return px
	}
	h, s, v := c.Hsv()
	h = math.Mod(h+float64(t.H), 360)
	if h < 0 {
		h += 360
	}
	s = clamp01(s + float64(t.S)/100)
	v = clamp01(v + float64(t.B)/100)
	if t.C != 0 {
		v = clamp01((v-0.5)*(1+float64(t.C)/100) + 0.5)
	}
	return colorful.Hsv(h, s, v).Clamped().Hex()
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
