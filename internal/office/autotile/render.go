package autotile

import (
	"fmt"

	"github.com/umfhero/pixel-agents/internal/office/tiles"
)

// SpriteSet is the immutable sprite dictionary supplied by the asset loader.
// Walls are indexed by mask, Floors by FLOOR_n-1. Missing entries are nil.
type SpriteSet struct {
	Walls  [WallVariants]Sprite
	Floors [tiles.FloorCount]Sprite
}

// Cell is one resolved tile. Mask is -1 for non-wall tiles; Sprite is nil
// for VOID tiles and for tiles whose sprite was not loaded.
type Cell struct {
	Kind   tiles.Kind `json:"kind"`
	Mask   int        `json:"mask"`
	Sprite Sprite     `json:"sprite,omitempty"`
}

type cacheKey struct {
	sprite string
	tint   tiles.Tint
}

// Renderer resolves tiles into sprites. Tinted sprites are cached per
// (sprite, tint) pair; the cache is only valid for one SpriteSet.
type Renderer struct {
	set   *SpriteSet
	cache map[cacheKey]Sprite
}

func NewRenderer(set *SpriteSet) *Renderer {
	return &Renderer{set: set, cache: map[cacheKey]Sprite{}}
}

// Resolve produces one Cell per tile. colors may be shorter than kinds;
// missing entries are treated as absent.
func (r *Renderer) Resolve(kinds []tiles.Kind, colors []*tiles.Tint, g tiles.Grid) []Cell {
	masks := Masks(kinds, g)
	out := make([]Cell, len(kinds))
	for i, k := range kinds {
		out[i] = Cell{Kind: k, Mask: masks[i]}
		var t *tiles.Tint
		if i < len(colors) {
			t = colors[i]
		}
		out[i].Sprite = r.sprite(k, masks[i], t)
	}
	return out
}

func (r *Renderer) sprite(k tiles.Kind, mask int, t *tiles.Tint) Sprite {
	if r == nil || r.set == nil {
		return nil
	}
	var base Sprite
	var key string
	switch {
	case k.IsWall():
		base = r.set.Walls[mask&0x0f]
		key = fmt.Sprintf("wall:%d", mask)
	case k.IsFloor():
		base = r.set.Floors[k.FloorIndex()]
		key = fmt.Sprintf("floor:%d", k.FloorIndex())
	default:
		return nil
	}
	if base == nil || t.IsNeutral() {
		return base
	}
	ck := cacheKey{sprite: key, tint: *t}
	if s, ok := r.cache[ck]; ok {
		return s
	}
	s := ApplyTint(base, t)
	r.cache[ck] = s
	return s
}

// CacheSize is exposed for tests and diagnostics.
func (r *Renderer) CacheSize() int { return len(r.cache) }
