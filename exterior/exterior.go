// Package exterior implements layer L0: applying one primitive move to a
// task's current world. Exterior is the only layer that ever mutates Slot
// Holds or Object/Slot position fields; every higher layer proposes moves,
// Exterior is the sole arbiter of whether one is legal.
package exterior

import "github.com/corrigan-labs/aps/task"

// Movable names either the object or the channel slot a move relocates,
// matching Exterior's "modulate" dispatch: exactly one of Object/Slot is
// set, selected by handle.Modulate.
type Movable struct {
	Object task.ObjectID
	Slot   task.SlotID
}

// Apply attempts one primitive move against t.Current. On success it
// mutates t.Current and returns true. On any precondition failure it
// returns false having made no change at all: every precondition is
// checked before anything is written, so there is nothing to roll back.
func Apply(t *task.Task, handle *task.Handle, slotIn task.SlotID, movable Movable, slotOut task.SlotID) bool {
	if handle.MovesObject() {
		return applyObjectMove(t, handle, slotIn, movable.Object, slotOut)
	}
	return applyChannelMove(t, handle, slotIn, movable.Slot, slotOut)
}

func endpointMatches(ep task.Endpoint, slot *task.Slot) bool {
	if ep.IsSlotName {
		return slot.Name == ep.Name
	}
	return slot.Type == ep.Name
}

func sumProperty(w *task.World, holds []task.ObjectID, prop string) float64 {
	sum := 0.0
	for _, oid := range holds {
		sum += w.Object(oid).Properties[prop]
	}
	return sum
}

func applyObjectMove(t *task.Task, handle *task.Handle, slotIn task.SlotID, movable task.ObjectID, slotOut task.SlotID) bool {
	w := t.Current
	out := w.Slot(slotOut)
	in := w.Slot(slotIn)
	obj := w.Object(movable)

	outType, ok := t.SlotTypes[out.Type]
	if !ok {
		return false
	}
	inType, ok := t.SlotTypes[in.Type]
	if !ok {
		return false
	}

	// 1. slot_out must not be a pos slot and must have spare capacity.
	if out.Type == "pos" || len(out.Holds) >= outType.LayerCapacity {
		return false
	}

	// 2. handle.final binding.
	if !endpointMatches(handle.Final, out) {
		return false
	}

	// 3. gradient constraints at slot_out, checked against the top object.
	if len(out.Holds) > 0 {
		top := w.Object(out.Holds[len(out.Holds)-1])
		for p := range outType.GradientAsc {
			if !(top.Properties[p] < obj.Properties[p]) {
				return false
			}
		}
		for p := range outType.GradientDesc {
			if !(top.Properties[p] > obj.Properties[p]) {
				return false
			}
		}
	}

	// 4. sum constraints at slot_out after adding movable.
	for p := range outType.NoNegSum {
		if sumProperty(w, out.Holds, p)+obj.Properties[p] < 0 {
			return false
		}
	}
	for p := range outType.NoPosSum {
		if sumProperty(w, out.Holds, p)+obj.Properties[p] > 0 {
			return false
		}
	}

	// 5. movable's current slot must be slot_in, and slot_in matches handle.initial.
	if obj.Slot != slotIn {
		return false
	}
	if !endpointMatches(handle.Initial, in) {
		return false
	}

	// 6. sum constraints at slot_in after removal.
	remaining := removeObject(in.Holds, movable)
	for p := range inType.NoNegSum {
		if sumProperty(w, remaining, p) < 0 {
			return false
		}
	}
	for p := range inType.NoPosSum {
		if sumProperty(w, remaining, p) > 0 {
			return false
		}
	}

	// 7. ordered slot_in: movable must be topmost.
	if inType.Ordered {
		if len(in.Holds) == 0 || in.Holds[len(in.Holds)-1] != movable {
			return false
		}
	}

	// 8. channel-slot position consistency.
	if out.IsMovable() {
		if out.CurrentPos != in.PosBackref {
			return false
		}
	}
	if in.IsMovable() {
		if in.CurrentPos != out.PosBackref {
			return false
		}
	}

	// Commit.
	prevInHolds := in.Holds
	prevOutLen := len(out.Holds)
	prevObjSlot := obj.Slot
	in.Holds = remaining
	out.Holds = append(out.Holds, movable)
	obj.Slot = slotOut
	t.Record(func() {
		in.Holds = prevInHolds
		out.Holds = out.Holds[:prevOutLen]
		obj.Slot = prevObjSlot
	})
	return true
}

func applyChannelMove(t *task.Task, handle *task.Handle, slotIn task.SlotID, movable task.SlotID, slotOut task.SlotID) bool {
	w := t.Current
	out := w.Slot(slotOut)
	in := w.Slot(slotIn)
	ch := w.Slot(movable)

	if handle.Initial.Name != "pos" || handle.Final.Name != "pos" {
		return false
	}
	if out.Type != "pos" {
		return false
	}
	if in.Type != "pos" {
		return false
	}
	if !slotBound(ch, slotOut) {
		return false
	}
	if ch.CurrentPos != slotIn {
		return false
	}

	prevPos := ch.CurrentPos
	ch.CurrentPos = slotOut
	t.Record(func() {
		ch.CurrentPos = prevPos
	})
	return true
}

func slotBound(ch *task.Slot, target task.SlotID) bool {
	for _, b := range ch.Bound {
		if b == target {
			return true
		}
	}
	return false
}

func removeObject(holds []task.ObjectID, target task.ObjectID) []task.ObjectID {
	out := make([]task.ObjectID, 0, len(holds))
	for _, o := range holds {
		if o != target {
			out = append(out, o)
		}
	}
	return out
}
