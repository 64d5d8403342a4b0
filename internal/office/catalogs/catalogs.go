package catalogs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed default_furniture.json
var defaultFurniture []byte

// Catalog is the ordered furniture vocabulary. Its internal consistency
// (e.g. that group members exist) is trusted.
type Catalog struct {
	Entries []FurnitureDef
	Index   map[string]int
	Digest  string
}

type FurnitureDef struct {
	ID                 string        `json:"id"`
	Label              string        `json:"label,omitempty"`
	Category           string        `json:"category,omitempty"`
	FootprintW         int           `json:"footprint_w"`
	FootprintH         int           `json:"footprint_h"`
	CanPlaceOnWalls    bool          `json:"can_place_on_walls,omitempty"`
	CanPlaceOnSurfaces bool          `json:"can_place_on_surfaces,omitempty"`
	Group              []GroupMember `json:"group,omitempty"`
}

// GroupMember is a piece that is always placed with its anchor, offset
// from the anchor's top-left tile.
type GroupMember struct {
	Type string `json:"type"`
	DX   int    `json:"dx"`
	DY   int    `json:"dy"`
}

func (d FurnitureDef) IsGroupAnchor() bool { return len(d.Group) > 0 }

// Load reads a catalog file. An empty path selects the embedded default.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultFurniture)
	if err != nil {
		panic(fmt.Sprintf("embedded furniture catalog: %v", err))
	}
	return c
}

func Parse(raw []byte) (*Catalog, error) {
	var defs []FurnitureDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("furniture catalog: %w", err)
	}
	c := &Catalog{
		Entries: defs,
		Index:   make(map[string]int, len(defs)),
		Digest:  sha256Hex(raw),
	}
	for i, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("furniture catalog: entry %d: empty id", i)
		}
		if _, dup := c.Index[d.ID]; dup {
			return nil, fmt.Errorf("furniture catalog: duplicate id %s", d.ID)
		}
		if d.FootprintW <= 0 {
			c.Entries[i].FootprintW = 1
		}
		if d.FootprintH <= 0 {
			c.Entries[i].FootprintH = 1
		}
		c.Index[d.ID] = i
	}
	return c, nil
}

func (c *Catalog) Lookup(id string) (FurnitureDef, bool) {
	if c == nil {
		return FurnitureDef{}, false
	}
	i, ok := c.Index[id]
	if !ok {
		return FurnitureDef{}, false
	}
	return c.Entries[i], true
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
