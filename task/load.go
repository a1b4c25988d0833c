package task

import (
	"fmt"

	"github.com/corrigan-labs/aps/problem"
)

func stringSet(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

func buildSlotTypes(spec *problem.Spec) map[string]*SlotType {
	out := make(map[string]*SlotType, len(spec.SlotTypes))
	for _, st := range spec.SlotTypes {
		out[st.Name] = &SlotType{
			Name:          st.Name,
			LayerCapacity: st.NumberOfLayers,
			Ordered:       st.IsOrdered(),
			GradientAsc:   stringSet(st.GradientAsc),
			GradientDesc:  stringSet(st.GradientDesc),
			NoNegSum:      stringSet(st.NoNegSum),
			NoPosSum:      stringSet(st.NoPosSum),
		}
	}
	for _, c := range spec.Task.Constraints {
		if st, ok := out[c.Slot]; ok {
			if c.GradientAsc != nil {
				st.GradientAsc = stringSet(c.GradientAsc)
			}
			if c.GradientDesc != nil {
				st.GradientDesc = stringSet(c.GradientDesc)
			}
			if c.NoNegSum != nil {
				st.NoNegSum = stringSet(c.NoNegSum)
			}
			if c.NoPosSum != nil {
				st.NoPosSum = stringSet(c.NoPosSum)
			}
		}
	}
	return out
}

func buildObjectTypes(spec *problem.Spec) map[string]*ObjectType {
	out := make(map[string]*ObjectType, len(spec.ObjectTypes))
	for _, ot := range spec.ObjectTypes {
		out[ot.Name] = &ObjectType{Name: ot.Name, Properties: append([]string(nil), ot.Properties...)}
	}
	return out
}

func buildHandles(spec *problem.Spec) map[string]*Handle {
	out := make(map[string]*Handle, len(spec.Handles))
	for _, h := range spec.Handles {
		out[h.Name] = &Handle{
			Name:     h.Name,
			Modulate: h.Modulate,
			Initial:  parseEndpoint(h.Initial, spec),
			Final:    parseEndpoint(h.Final, spec),
		}
	}
	return out
}

// parseEndpoint decides whether a handle endpoint names a specific Slot or
// a SlotType, by checking the task's declared slot names first.
func parseEndpoint(name string, spec *problem.Spec) Endpoint {
	for _, s := range spec.Task.Slots {
		if s.Name == name {
			return Endpoint{IsSlotName: true, Name: name}
		}
	}
	return Endpoint{IsSlotName: false, Name: name}
}

// baseWorld builds the shared slot/object skeleton (types, bounds, scores)
// with empty Holds; callers populate Holds per initial/final ref lists.
func baseWorld(spec *problem.Spec) (*World, error) {
	w := NewWorld()
	w.Objects = make([]Object, len(spec.Task.Objects))
	for i, os := range spec.Task.Objects {
		w.Objects[i] = Object{
			Name:       os.Name,
			Type:       os.Type,
			Properties: os.Properties,
			Slot:       NoSlot,
		}
		w.ObjectIndex[os.Name] = ObjectID(i)
	}

	w.Slots = make([]Slot, len(spec.Task.Slots))
	for i, ss := range spec.Task.Slots {
		w.Slots[i] = Slot{
			Name:       ss.Name,
			Type:       ss.Type,
			Score:      ss.Score,
			PosBackref: NoSlot,
			CurrentPos: NoSlot,
		}
		w.SlotIndex[ss.Name] = SlotID(i)
	}
	for i, ss := range spec.Task.Slots {
		if ss.Pos != "" {
			id, ok := w.SlotByName(ss.Pos)
			if !ok {
				return nil, fmt.Errorf("slot %q: unknown pos %q", ss.Name, ss.Pos)
			}
			w.Slots[i].PosBackref = id
		}
		bound := make([]SlotID, 0, len(ss.Bound))
		for _, b := range ss.Bound {
			id, ok := w.SlotByName(b)
			if !ok {
				return nil, fmt.Errorf("slot %q: unknown bound slot %q", ss.Name, b)
			}
			bound = append(bound, id)
		}
		w.Slots[i].Bound = bound
		if len(bound) > 1 && w.Slots[i].PosBackref == NoSlot {
			// Movable/channel slot: its current position defaults to its
			// own declared pos, if any, else the first bound slot.
			w.Slots[i].CurrentPos = bound[0]
		}
	}
	return w, nil
}

func populateHolds(w *World, refs []problem.SlotRef) error {
	for _, ref := range refs {
		slotID, ok := w.SlotByName(ref.Name)
		if !ok {
			return fmt.Errorf("unknown slot %q in holds list", ref.Name)
		}
		holds := make([]ObjectID, 0, len(ref.Holds))
		for _, objName := range ref.Holds {
			objID, ok := w.ObjectByName(objName)
			if !ok {
				return fmt.Errorf("unknown object %q in slot %q", objName, ref.Name)
			}
			holds = append(holds, objID)
			w.Objects[objID].Slot = slotID
		}
		w.Slots[slotID].Holds = holds
	}
	// A channel slot that declares its own pos slot starts positioned there.
	for i := range w.Slots {
		s := &w.Slots[i]
		if s.IsMovable() && s.PosBackref != NoSlot {
			s.CurrentPos = s.PosBackref
		}
	}
	return nil
}

func fromSpec(spec *problem.Spec) (*Task, error) {
	slotTypes := buildSlotTypes(spec)
	objectTypes := buildObjectTypes(spec)
	handles := buildHandles(spec)

	initial, err := baseWorld(spec)
	if err != nil {
		return nil, fmt.Errorf("task: building initial world: %w", err)
	}
	if err := populateHolds(initial, spec.Task.Initial); err != nil {
		return nil, fmt.Errorf("task: populating initial holds: %w", err)
	}

	final, err := baseWorld(spec)
	if err != nil {
		return nil, fmt.Errorf("task: building final world: %w", err)
	}
	if err := populateHolds(final, spec.Task.Final); err != nil {
		return nil, fmt.Errorf("task: populating final holds: %w", err)
	}

	current := initial.Clone()

	return &Task{
		SlotTypes:   slotTypes,
		ObjectTypes: objectTypes,
		Handles:     handles,
		Initial:     initial,
		Current:     current,
		Final:       final,
	}, nil
}
