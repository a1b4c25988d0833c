package task

import (
	"sort"
	"strings"
)

// Triangle is a sub-problem scope: a set of slots. Equality is the sorted
// slot-name multiset (duplicates collapse, since it is a set).
type Triangle struct {
	Slots []string
	key   string
}

// BuildTriangle canonicalizes a slot-name list into a deduplicated, sorted
// Triangle.
func BuildTriangle(names []string) *Triangle {
	seen := make(map[string]bool, len(names))
	unique := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			unique = append(unique, n)
		}
	}
	sort.Strings(unique)
	t := &Triangle{Slots: unique}
	t.key = strings.Join(unique, ",")
	return t
}

func (t *Triangle) Key() string {
	if t.key == "" {
		t.key = strings.Join(t.Slots, ",")
	}
	return t.key
}

func (t *Triangle) Equal(other *Triangle) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Key() == other.Key()
}

func (t *Triangle) Contains(name string) bool {
	for _, s := range t.Slots {
		if s == name {
			return true
		}
	}
	return false
}

// TriangleFromSlots builds a Triangle from a World's current full slot set
// (SCM's triangle is always "every slot").
func TriangleFromSlots(w *World) *Triangle {
	names := make([]string, len(w.Slots))
	for i, s := range w.Slots {
		names[i] = s.Name
	}
	return BuildTriangle(names)
}

// CloseUnderPosNeighborhood expands a slot-name set to include every pos
// slot any member is bound to, and every slot whose pos backref is in the
// set, iterating to a fixed point. This implements "Triangle from moves":
// union of endpoints closed under the pin<->pos neighborhood.
func CloseUnderPosNeighborhood(w *World, names []string) []string {
	set := map[string]bool{}
	for _, n := range names {
		set[n] = true
	}
	changed := true
	for changed {
		changed = false
		for _, s := range w.Slots {
			if !set[s.Name] {
				continue
			}
			if s.PosBackref != NoSlot {
				posName := w.Slot(s.PosBackref).Name
				if !set[posName] {
					set[posName] = true
					changed = true
				}
			}
			for _, b := range s.Bound {
				boundName := w.Slot(b).Name
				if !set[boundName] {
					set[boundName] = true
					changed = true
				}
			}
		}
		for _, s := range w.Slots {
			if s.PosBackref != NoSlot && set[w.Slot(s.PosBackref).Name] && !set[s.Name] {
				set[s.Name] = true
				changed = true
			}
		}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
