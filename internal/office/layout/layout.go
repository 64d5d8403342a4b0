package layout

import "github.com/umfhero/pixel-agents/internal/office/tiles"

const (
	CurrentVersion = 2

	MaxCols = 64
	MaxRows = 64
)

// Layout is the authoritative room description.
type Layout struct {
	Version    int           `json:"version"`
	Cols       int           `json:"cols"`
	Rows       int           `json:"rows"`
	Tiles      []tiles.Kind  `json:"tiles"`
	TileColors []*tiles.Tint `json:"tileColors"`
	Furniture  []Placement   `json:"furniture"`
}

// Placement is one furniture instance. A group anchor has GroupID == UID;
// group members carry their anchor's UID.
type Placement struct {
	UID     string      `json:"uid"`
	Type    string      `json:"type"`
	Col     int         `json:"col"`
	Row     int         `json:"row"`
	GroupID string      `json:"groupId,omitempty"`
	Color   *tiles.Tint `json:"color,omitempty"`
}

func (p Placement) IsGroupAnchor() bool { return p.GroupID != "" && p.GroupID == p.UID }
func (p Placement) IsGroupMember() bool { return p.GroupID != "" && p.GroupID != p.UID }

// New returns a current-version layout filled with one tile kind and no tints.
func New(cols, rows int, fill tiles.Kind) *Layout {
	n := cols * rows
	l := &Layout{
		Version:    CurrentVersion,
		Cols:       cols,
		Rows:       rows,
		Tiles:      make([]tiles.Kind, n),
		TileColors: make([]*tiles.Tint, n),
		Furniture:  []Placement{},
	}
	for i := range l.Tiles {
		l.Tiles[i] = fill
	}
	return l
}

func (l *Layout) Grid() tiles.Grid { return tiles.Grid{Cols: l.Cols, Rows: l.Rows} }

// Kind returns the tile at (col,row); out-of-grid positions read as VOID.
func (l *Layout) Kind(col, row int) tiles.Kind {
	g := l.Grid()
	if !g.InBounds(col, row) {
		return tiles.Void
	}
	return l.Tiles[g.Index(col, row)]
}

// SetTile writes a tile and its tint. It reports false when out of grid.
func (l *Layout) SetTile(col, row int, k tiles.Kind, t *tiles.Tint) bool {
	g := l.Grid()
	if !g.InBounds(col, row) {
		return false
	}
	i := g.Index(col, row)
	l.Tiles[i] = k
	l.TileColors[i] = cloneTint(t)
	return true
}

// FindPlacement returns the index of the placement with uid, or -1.
func (l *Layout) FindPlacement(uid string) int {
	for i := range l.Furniture {
		if l.Furniture[i].UID == uid {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy.
func (l *Layout) Clone() *Layout {
	if l == nil {
		return nil
	}
	out := &Layout{
		Version:    l.Version,
		Cols:       l.Cols,
		Rows:       l.Rows,
		Tiles:      append([]tiles.Kind(nil), l.Tiles...),
		TileColors: make([]*tiles.Tint, len(l.TileColors)),
		Furniture:  make([]Placement, len(l.Furniture)),
	}
	for i, t := range l.TileColors {
		out.TileColors[i] = cloneTint(t)
	}
	for i, p := range l.Furniture {
		p.Color = cloneTint(p.Color)
		out.Furniture[i] = p
	}
	return out
}

func cloneTint(t *tiles.Tint) *tiles.Tint {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
