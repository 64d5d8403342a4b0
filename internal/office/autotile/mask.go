package autotile

import "github.com/umfhero/pixel-agents/internal/office/tiles"

// Wall adjacency bits.
const (
	North uint8 = 1
	East  uint8 = 2
	South uint8 = 4
	West  uint8 = 8
)

// WallVariants is the number of wall sprites (one per mask value).
const WallVariants = 16

// WallMask returns the 4-neighbour wall bitmask of the tile at (col,row).
// Neighbours outside the grid count as non-wall.
func WallMask(kinds []tiles.Kind, g tiles.Grid, col, row int) uint8 {
	isWall := func(c, r int) bool {
		if !g.InBounds(c, r) {
			return false
		}
		return kinds[g.Index(c, r)].IsWall()
	}
	var m uint8
	if isWall(col, row-1) {
		m |= North
	}
	if isWall(col+1, row) {
		m |= East
	}
	if isWall(col, row+1) {
		m |= South
	}
	if isWall(col-1, row) {
		m |= West
	}
	return m
}

// Masks computes WallMask for every tile; non-wall tiles get -1.
func Masks(kinds []tiles.Kind, g tiles.Grid) []int {
	out := make([]int, len(kinds))
	for i, k := range kinds {
		if !k.IsWall() {
			out[i] = -1
			continue
		}
		c, r := g.Pos(i)
		out[i] = int(WallMask(kinds, g, c, r))
	}
	return out
}

// SpriteCell maps a mask onto the 4-column wall sprite sheet.
func SpriteCell(mask uint8) (col, row int) {
	m := int(mask & 0x0f)
	return m % 4, m / 4
}
