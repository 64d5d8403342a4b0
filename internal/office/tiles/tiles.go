package tiles

import "fmt"

// Kind is a tile type as stored in layout files.
type Kind int

const (
	Wall   Kind = 0
	Floor1 Kind = 1
	Floor2 Kind = 2
	Floor3 Kind = 3
	Floor4 Kind = 4
	Floor5 Kind = 5
	Floor6 Kind = 6
	Floor7 Kind = 7
	Void   Kind = 8
)

// FloorCount is the number of floor patterns (FLOOR_1..FLOOR_7).
const FloorCount = 7

func (k Kind) Valid() bool   { return k >= Wall && k <= Void }
func (k Kind) IsWall() bool  { return k == Wall }
func (k Kind) IsFloor() bool { return k >= Floor1 && k <= Floor7 }

// FloorIndex returns the zero-based floor pattern index, or -1 for non-floor tiles.
func (k Kind) FloorIndex() int {
	if !k.IsFloor() {
		return -1
	}
	return int(k - Floor1)
}

func (k Kind) String() string {
	switch {
	case k == Wall:
		return "WALL"
	case k == Void:
		return "VOID"
	case k.IsFloor():
		return fmt.Sprintf("FLOOR_%d", int(k))
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind accepts the symbolic names used by tools ("WALL", "FLOOR_3", "VOID").
func ParseKind(s string) (Kind, error) {
	switch s {
	case "WALL":
		return Wall, nil
	case "VOID":
		return Void, nil
	}
	var n int
	if _, err := fmt.Sscanf(s, "FLOOR_%d", &n); err == nil && n >= 1 && n <= FloorCount {
		return Kind(n), nil
	}
	return Void, fmt.Errorf("unknown tile kind %q", s)
}

// Grid is the extent of a row-major tile array.
type Grid struct {
	Cols int
	Rows int
}

func (g Grid) Len() int { return g.Cols * g.Rows }

func (g Grid) InBounds(col, row int) bool {
	return col >= 0 && row >= 0 && col < g.Cols && row < g.Rows
}

// Index returns the row-major index of (col,row). The caller checks bounds.
func (g Grid) Index(col, row int) int { return row*g.Cols + col }

func (g Grid) Pos(i int) (col, row int) { return i % g.Cols, i / g.Cols }
