package tiles

// Tint shifts a sprite's colours in hue/saturation/brightness space.
// H is in degrees [-180,180]; S, B and C are percentages [-100,100].
// A nil *Tint means the tile uses its native colours.
type Tint struct {
	H int `json:"h"`
	S int `json:"s"`
	B int `json:"b"`
	C int `json:"c"`
}

const (
	MaxHue   = 180
	MaxShift = 100
)

func (t *Tint) IsNeutral() bool {
	return t == nil || (t.H == 0 && t.S == 0 && t.B == 0 && t.C == 0)
}

// Clamp returns a copy with every component in range.
func (t Tint) Clamp() Tint {
	return Tint{
		H: clamp(t.H, -MaxHue, MaxHue),
		S: clamp(t.S, -MaxShift, MaxShift),
		B: clamp(t.B, -MaxShift, MaxShift),
		C: clamp(t.C, -MaxShift, MaxShift),
	}
}

// InRange reports whether no component needs clamping.
func (t Tint) InRange() bool { return t == t.Clamp() }

// Neutral returns a fresh zero tint.
func Neutral() *Tint { return &Tint{} }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
