// Package roster tracks the visualized agents by identity. Animation state is
// not stored here; every agent shows the office-wide presence state.
package roster

import (
	"context"
	"sort"
)

// Store persists the set of agent ids across restarts.
type Store interface {
	LoadRoster(ctx context.Context) ([]int, error)
	SaveRoster(ctx context.Context, ids []int) error
}

type Roster struct {
	ids  map[int]struct{}
	next int
}

func New() *Roster {
	return &Roster{ids: map[int]struct{}{}, next: 1}
}

// Add allocates the next id. Ids grow monotonically while any agent exists.
func (r *Roster) Add() int {
	id := r.next
	r.next++
	r.ids[id] = struct{}{}
	return id
}

func (r *Roster) Remove(id int) bool {
	if _, ok := r.ids[id]; !ok {
		return false
	}
	delete(r.ids, id)
	if len(r.ids) == 0 {
		r.next = 1
	}
	return true
}

func (r *Roster) Has(id int) bool {
	_, ok := r.ids[id]
	return ok
}

func (r *Roster) Len() int { return len(r.ids) }

// IDs returns the ids in ascending order.
func (r *Roster) IDs() []int {
	out := make([]int, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Restore replaces the roster with persisted ids. Non-positive ids are
// dropped.
func (r *Roster) Restore(ids []int) {
	r.ids = make(map[int]struct{}, len(ids))
	r.next = 1
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		r.ids[id] = struct{}{}
		if id >= r.next {
			r.next = id + 1
		}
	}
}
