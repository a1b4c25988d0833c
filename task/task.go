// Package task implements the reversible world model the planner searches
// over: Slots, Objects and Handles held in an index-addressed arena (per the
// cyclic-reference design note), plus the Task wrapper that tracks initial,
// current and final snapshots and a one-step rollback shadow.
package task

import "github.com/corrigan-labs/aps/problem"

// SlotID and ObjectID index into a World's arenas. NoSlot/NoObject mark
// "none" without resorting to pointers, keeping World trivially copyable.
type SlotID int
type ObjectID int

const (
	NoSlot   SlotID   = -1
	NoObject ObjectID = -1
)

// SlotType is immutable problem data shared by every Slot of that type.
type SlotType struct {
	Name          string
	LayerCapacity int
	Ordered       bool
	GradientAsc   map[string]bool
	GradientDesc  map[string]bool
	NoNegSum      map[string]bool
	NoPosSum      map[string]bool
}

// ObjectType is immutable problem data shared by every Object of that type.
type ObjectType struct {
	Name       string
	Properties []string
}

// Endpoint is a Handle's "initial" or "final" binding: either a specific
// Slot name or a SlotType name.
type Endpoint struct {
	IsSlotName bool
	Name       string
}

// Handle is an action template. Modulate is "object" or the name of a
// channel slot (e.g. "hand", "boat").
type Handle struct {
	Name     string
	Modulate string
	Initial  Endpoint
	Final    Endpoint
}

func (h Handle) MovesObject() bool { return h.Modulate == "object" }

// Object is a movable payload. Properties are numeric, keyed by name.
type Object struct {
	Name       string
	Type       string
	Properties map[string]float64
	Slot       SlotID
}

// Slot is a container: a peg, a bank, or a movable channel like a hand or
// boat. PosBackref names the position-slot this (stationary) slot sits at.
// Bound lists reachable position slots for a movable/channel slot; such a
// slot is movable when len(Bound) > 1, and CurrentPos tracks where it is.
type Slot struct {
	Name       string
	Type       string
	Holds      []ObjectID
	PosBackref SlotID
	Bound      []SlotID
	Score      float64
	CurrentPos SlotID
}

func (s *Slot) IsMovable() bool { return len(s.Bound) > 1 }

// World is one named snapshot (initial, current or final) of Slots and
// Objects, arena-addressed, with name indices for boundary lookups.
type World struct {
	Slots       []Slot
	Objects     []Object
	SlotIndex   map[string]SlotID
	ObjectIndex map[string]ObjectID
}

func NewWorld() *World {
	return &World{
		SlotIndex:   map[string]SlotID{},
		ObjectIndex: map[string]ObjectID{},
	}
}

func (w *World) SlotByName(name string) (SlotID, bool) {
	id, ok := w.SlotIndex[name]
	return id, ok
}

func (w *World) ObjectByName(name string) (ObjectID, bool) {
	id, ok := w.ObjectIndex[name]
	return id, ok
}

func (w *World) Slot(id SlotID) *Slot {
	if id == NoSlot {
		return nil
	}
	return &w.Slots[id]
}

func (w *World) Object(id ObjectID) *Object {
	if id == NoObject {
		return nil
	}
	return &w.Objects[id]
}

// Clone deep-copies a World so it can be mutated independently.
func (w *World) Clone() *World {
	out := &World{
		Slots:       make([]Slot, len(w.Slots)),
		Objects:     make([]Object, len(w.Objects)),
		SlotIndex:   make(map[string]SlotID, len(w.SlotIndex)),
		ObjectIndex: make(map[string]ObjectID, len(w.ObjectIndex)),
	}
	for i, s := range w.Slots {
		out.Slots[i] = s
		out.Slots[i].Holds = append([]ObjectID(nil), s.Holds...)
		out.Slots[i].Bound = append([]SlotID(nil), s.Bound...)
	}
	for i, o := range w.Objects {
		out.Objects[i] = o
		props := make(map[string]float64, len(o.Properties))
		for k, v := range o.Properties {
			props[k] = v
		}
		out.Objects[i].Properties = props
	}
	for k, v := range w.SlotIndex {
		out.SlotIndex[k] = v
	}
	for k, v := range w.ObjectIndex {
		out.ObjectIndex[k] = v
	}
	return out
}

// Task is a mutable snapshot of the world together with the immutable
// initial/final reference worlds and an undo journal for single-move
// rollback.
type Task struct {
	SlotTypes   map[string]*SlotType
	ObjectTypes map[string]*ObjectType
	Handles     map[string]*Handle

	Initial *World
	Current *World
	Final   *World

	journal []func()
}

// Record appends one undo step to the journal Snapshot is currently
// collecting. Exterior is the sole caller: a move's precondition checks all
// run before anything is written, so only a move that actually committed
// ever reaches Record, and it records exactly the fields it just changed.
func (t *Task) Record(undo func()) {
	t.journal = append(t.journal, undo)
}

// Snapshot begins collecting an undo journal for the next attempted move,
// discarding whatever the previous journal held.
func (t *Task) Snapshot() {
	t.journal = nil
}

// Revert undoes every mutation recorded since the last Snapshot, most
// recent first, and clears the journal. A no-op if nothing was recorded.
func (t *Task) Revert() {
	for i := len(t.journal) - 1; i >= 0; i-- {
		t.journal[i]()
	}
	t.journal = nil
}

// Clone deep-copies the whole Task. SlotTypes, ObjectTypes and Handles are
// immutable problem data and are shared, not copied. The undo journal does
// not survive a clone: its closures close over the original World's Slot/
// Object pointers, which a clone intentionally does not share.
func (t *Task) Clone() *Task {
	return &Task{
		SlotTypes:   t.SlotTypes,
		ObjectTypes: t.ObjectTypes,
		Handles:     t.Handles,
		Initial:     t.Initial,
		Current:     t.Current.Clone(),
		Final:       t.Final,
	}
}

// ScoreLookup resolves a slot's metric weight by name from the Current
// world, for use by Metric/Distance (see package task's metric.go).
func (t *Task) ScoreLookup() func(string) float64 {
	return func(name string) float64 {
		id, ok := t.Current.SlotByName(name)
		if !ok {
			return 0
		}
		return t.Current.Slot(id).Score
	}
}

// FromSpec builds the immutable problem entities and the initial/current/
// final worlds from a parsed problem.Spec.
func FromSpec(spec *problem.Spec) (*Task, error) {
	return fromSpec(spec)
}
