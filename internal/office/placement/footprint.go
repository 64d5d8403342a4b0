package placement

import (
	"github.com/umfhero/pixel-agents/internal/office/catalogs"
	"github.com/umfhero/pixel-agents/internal/office/layout"
)

// Rect is a footprint in tile coordinates, anchored at its top-left tile.
type Rect struct {
	Col, Row int
	W, H     int
}

func footprint(p layout.Placement, def catalogs.FurnitureDef) Rect {
	return Rect{Col: p.Col, Row: p.Row, W: def.FootprintW, H: def.FootprintH}
}

func (r Rect) Intersects(o Rect) bool {
	return r.Col < o.Col+o.W && o.Col < r.Col+r.W &&
		r.Row < o.Row+o.H && o.Row < r.Row+r.H
}

func (r Rect) Contains(col, row int) bool {
	return col >= r.Col && col < r.Col+r.W && row >= r.Row && row < r.Row+r.H
}

// Tiles calls fn for every tile of the footprint, row by row.
func (r Rect) Tiles(fn func(col, row int)) {
	for y := r.Row; y < r.Row+r.H; y++ {
		for x := r.Col; x < r.Col+r.W; x++ {
			fn(x, y)
		}
	}
}
