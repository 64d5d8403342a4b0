package placement

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/umfhero/pixel-agents/internal/office/catalogs"
	"github.com/umfhero/pixel-agents/internal/office/layout"
	"github.com/umfhero/pixel-agents/internal/office/tiles"
)

var (
	ErrUnknownType = errors.New("unknown furniture type")
	ErrOutOfBounds = errors.New("footprint out of bounds")
	ErrSurface     = errors.New("footprint on unsupported surface")
	ErrCollision   = errors.New("footprint collision")
	ErrNotFound    = errors.New("placement not found")
	ErrGroupMember = errors.New("group member cannot be edited on its own")
	ErrBadTint     = errors.New("tint out of range")
	ErrBadTile     = errors.New("invalid tile kind")
)

// Validator enforces placement invariants against one catalog. Every
// operation either fully applies to the layout or leaves it untouched.
type Validator struct {
	cat   *catalogs.Catalog
	newID func() string
}

func New(cat *catalogs.Catalog) *Validator {
	return &Validator{cat: cat, newID: uuid.NewString}
}

// CanPlace reports whether type (with its group members) fits at (col,row).
func (v *Validator) CanPlace(l *layout.Layout, typ string, col, row int) bool {
	_, err := v.plan(l, typ, col, row)
	return err == nil
}

// Place creates a placement and, for group anchors, all its members.
// It returns the created placements, anchor first.
func (v *Validator) Place(l *layout.Layout, typ string, col, row int) ([]layout.Placement, error) {
	created, err := v.plan(l, typ, col, row)
	if err != nil {
		return nil, err
	}
	l.Furniture = append(l.Furniture, created...)
	return created, nil
}

func (v *Validator) plan(l *layout.Layout, typ string, col, row int) ([]layout.Placement, error) {
	def, ok := v.cat.Lookup(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
	anchor := layout.Placement{UID: v.newID(), Type: typ, Col: col, Row: row}
	created := []layout.Placement{anchor}
	if def.IsGroupAnchor() {
		created[0].GroupID = anchor.UID
		for _, m := range def.Group {
			if _, ok := v.cat.Lookup(m.Type); !ok {
				return nil, fmt.Errorf("%w: %s (member of %s)", ErrUnknownType, m.Type, typ)
			}
			created = append(created, layout.Placement{
				UID:     v.newID(),
				Type:    m.Type,
				Col:     col + m.DX,
				Row:     row + m.DY,
				GroupID: anchor.UID,
			})
		}
	}

	next := l.Clone()
	next.Furniture = append(next.Furniture, created...)
	changed := make([]string, 0, len(created))
	for _, p := range created {
		changed = append(changed, p.UID)
	}
	if err := v.recheck(l, next, changed); err != nil {
		return nil, err
	}
	return created, nil
}

// Move relocates a placement. Moving a group anchor moves every member by
// the same offset; members cannot be moved on their own.
func (v *Validator) Move(l *layout.Layout, uid string, col, row int) error {
	i := l.FindPlacement(uid)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, uid)
	}
	p := l.Furniture[i]
	if p.IsGroupMember() {
		return fmt.Errorf("%w: %s belongs to %s", ErrGroupMember, uid, p.GroupID)
	}
	dx, dy := col-p.Col, row-p.Row
	next := l.Clone()
	var changed []string
	for j := range next.Furniture {
		q := &next.Furniture[j]
		if q.UID == uid || (p.IsGroupAnchor() && q.GroupID == p.UID) {
			q.Col += dx
			q.Row += dy
			changed = append(changed, q.UID)
		}
	}
	if err := v.recheck(l, next, changed); err != nil {
		return err
	}
	l.Furniture = next.Furniture
	return nil
}

// Remove deletes a placement; removing a group anchor removes the group.
// It returns the removed uids.
func (v *Validator) Remove(l *layout.Layout, uid string) ([]string, error) {
	i := l.FindPlacement(uid)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uid)
	}
	p := l.Furniture[i]
	if p.IsGroupMember() {
		return nil, fmt.Errorf("%w: %s belongs to %s", ErrGroupMember, uid, p.GroupID)
	}
	next := l.Clone()
	next.Furniture = next.Furniture[:0]
	var removed []string
	for _, q := range l.Furniture {
		if q.UID == uid || (p.IsGroupAnchor() && q.GroupID == p.UID) {
			removed = append(removed, q.UID)
			continue
		}
		next.Furniture = append(next.Furniture, q)
	}
	if err := v.recheck(l, next, removed); err != nil {
		return nil, err
	}
	l.Furniture = next.Furniture
	return removed, nil
}

// Recolor sets or clears a placement's tint. Geometry is unchanged so no
// placement rule can be violated.
func (v *Validator) Recolor(l *layout.Layout, uid string, t *tiles.Tint) error {
	i := l.FindPlacement(uid)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, uid)
	}
	if t != nil && !t.InRange() {
		return fmt.Errorf("%w: %+v", ErrBadTint, *t)
	}
	if t.IsNeutral() {
		l.Furniture[i].Color = nil
		return nil
	}
	c := *t
	l.Furniture[i].Color = &c
	return nil
}

// PaintTile changes one tile. It is rejected when furniture standing on the
// tile would no longer have a valid surface.
func (v *Validator) PaintTile(l *layout.Layout, col, row int, k tiles.Kind, t *tiles.Tint) error {
	if !l.Grid().InBounds(col, row) {
		return fmt.Errorf("%w: tile (%d,%d)", ErrOutOfBounds, col, row)
	}
	if !k.Valid() {
		return fmt.Errorf("%w: %d", ErrBadTile, int(k))
	}
	if t != nil && !t.InRange() {
		return fmt.Errorf("%w: %+v", ErrBadTint, *t)
	}
	next := l.Clone()
	next.SetTile(col, row, k, t)
	for _, p := range next.Furniture {
		def, ok := v.cat.Lookup(p.Type)
		if !ok || !footprint(p, def).Contains(col, row) {
			continue
		}
		if err := v.checkOne(next, p); err != nil {
			return err
		}
	}
	l.Tiles = next.Tiles
	l.TileColors = next.TileColors
	return nil
}

// recheck validates the changed placements and every placement whose
// footprint touched one of them in either the old or the new layout.
func (v *Validator) recheck(old, next *layout.Layout, changed []string) error {
	isChanged := make(map[string]bool, len(changed))
	for _, uid := range changed {
		isChanged[uid] = true
	}
	var touched []Rect
	for _, l := range []*layout.Layout{old, next} {
		for _, p := range l.Furniture {
			if !isChanged[p.UID] {
				continue
			}
			def, ok := v.cat.Lookup(p.Type)
			if !ok {
				return fmt.Errorf("%w: %s", ErrUnknownType, p.Type)
			}
			touched = append(touched, footprint(p, def))
		}
	}

	var toCheck []layout.Placement
	for _, p := range next.Furniture {
		if isChanged[p.UID] {
			toCheck = append(toCheck, p)
			continue
		}
		def, ok := v.cat.Lookup(p.Type)
		if !ok {
			continue
		}
		r := footprint(p, def)
		for _, t := range touched {
			if r.Intersects(t) {
				toCheck = append(toCheck, p)
				break
			}
		}
	}
	// Report changed pieces first so errors describe what the caller did.
	sort.SliceStable(toCheck, func(i, j int) bool {
		return isChanged[toCheck[i].UID] && !isChanged[toCheck[j].UID]
	})
	for _, p := range toCheck {
		if err := v.checkOne(next, p); err != nil {
			return err
		}
	}
	return nil
}

// Check validates every placement of a layout.
func (v *Validator) Check(l *layout.Layout) []error {
	var errs []error
	for _, p := range l.Furniture {
		if err := v.checkOne(l, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// checkOne applies the placement rules to p as it sits in l.
func (v *Validator) checkOne(l *layout.Layout, p layout.Placement) error {
	def, ok := v.cat.Lookup(p.Type)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, p.Type)
	}
	r := footprint(p, def)
	g := l.Grid()
	if !g.InBounds(r.Col, r.Row) || !g.InBounds(r.Col+r.W-1, r.Row+r.H-1) {
		return fmt.Errorf("%w: %s at (%d,%d) size %dx%d", ErrOutOfBounds, p.Type, p.Col, p.Row, r.W, r.H)
	}

	// Resolve the stacking base first; surface problems are reported before
	// collisions.
	var (
		base    *Rect
		collErr error
	)
	for _, q := range l.Furniture {
		if q.UID == p.UID {
			continue
		}
		qdef, ok := v.cat.Lookup(q.Type)
		if !ok {
			continue
		}
		qr := footprint(q, qdef)
		if !r.Intersects(qr) {
			continue
		}
		switch {
		case qdef.CanPlaceOnSurfaces && !def.CanPlaceOnSurfaces:
			// q rests on p; q's own check covers it.
		case def.CanPlaceOnSurfaces && !qdef.CanPlaceOnSurfaces && base == nil:
			base = &qr
		default:
			if collErr == nil {
				collErr = fmt.Errorf("%w: %s at (%d,%d) overlaps %s (%s)", ErrCollision, p.Type, p.Col, p.Row, q.UID, q.Type)
			}
		}
	}

	var surfaceErr error
	r.Tiles(func(col, row int) {
		if surfaceErr != nil {
			return
		}
		if base != nil && base.Contains(col, row) {
			return
		}
		k := l.Kind(col, row)
		if k.IsFloor() || (k.IsWall() && def.CanPlaceOnWalls) {
			return
		}
		surfaceErr = fmt.Errorf("%w: %s needs floor at (%d,%d), found %s", ErrSurface, p.Type, col, row, k)
	})
	if surfaceErr != nil {
		return surfaceErr
	}
	return collErr
}
