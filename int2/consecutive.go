// Package int2 implements layer L2, INT: a consecutive path of LCT moves
// that ends on a pin-type slot. Named int2 to avoid shadowing the builtin
// int.
package int2

import (
	"github.com/corrigan-labs/aps/cache"
	"github.com/corrigan-labs/aps/task"
)

// consecutive implements the L2 adjacency rule: object-move followed by
// channel-move requires the channel move to depart from a pos slot bound to
// the object move's destination, and symmetrically for the other ordering;
// two object moves must hand off on the same slot and movable; two channel
// moves in a row are never consecutive.
func consecutive(w *task.World, handles map[string]*task.Handle, prev, cand *cache.StrategyLct) bool {
	if prev == nil {
		return true
	}
	ph, ok := handles[prev.Handle]
	if !ok {
		return false
	}
	ch, ok := handles[cand.Handle]
	if !ok {
		return false
	}
	pObj, cObj := ph.MovesObject(), ch.MovesObject()

	switch {
	case pObj && cObj:
		return prev.SlotOut == cand.SlotIn && prev.Movable == cand.Movable
	case pObj && !cObj:
		inSlot, ok := w.SlotByName(cand.SlotIn)
		if !ok || w.Slot(inSlot).Type != "pos" {
			return false
		}
		outSlot, ok := w.SlotByName(prev.SlotOut)
		if !ok {
			return false
		}
		return boundContains(w.Slot(outSlot).Bound, inSlot)
	case !pObj && cObj:
		outSlot, ok := w.SlotByName(prev.SlotOut)
		if !ok || w.Slot(outSlot).Type != "pos" {
			return false
		}
		inSlot, ok := w.SlotByName(cand.SlotIn)
		if !ok {
			return false
		}
		return boundContains(w.Slot(inSlot).Bound, outSlot)
	default:
		return false
	}
}

func boundContains(bound []task.SlotID, target task.SlotID) bool {
	for _, b := range bound {
		if b == target {
			return true
		}
	}
	return false
}

// landsOnPin reports whether move is an object move whose destination slot
// is of type "pin", the terminal condition for a closed INT path.
func landsOnPin(w *task.World, handles map[string]*task.Handle, move *cache.StrategyLct) bool {
	h, ok := handles[move.Handle]
	if !ok || !h.MovesObject() {
		return false
	}
	sid, ok := w.SlotByName(move.SlotOut)
	if !ok {
		return false
	}
	return w.Slot(sid).Type == "pin"
}

// TouchedObject exposes touchedObject for ICM's path synthesis, which needs
// to know which single object an already-closed StrategyInt relocated.
func TouchedObject(handles map[string]*task.Handle, s *cache.StrategyInt) (string, bool) {
	return touchedObject(handles, s)
}

func touchedObject(handles map[string]*task.Handle, s *cache.StrategyInt) (string, bool) {
	for _, m := range s.Moves {
		if h, ok := handles[m.Handle]; ok && h.MovesObject() {
			return m.Movable, true
		}
	}
	return "", false
}
