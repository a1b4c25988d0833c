package cache

import "github.com/corrigan-labs/aps/task"

// TriangleFromIntMoves builds the slot-name set an ICM instance's
// "tensoral" Triangle covers: the union of every LCT endpoint referenced
// by the given INT moves, closed under the pin<->pos neighborhood.
func TriangleFromIntMoves(w *task.World, moves []*StrategyInt) []string {
	names := map[string]bool{}
	for _, m := range moves {
		names[m.SlotIn] = true
		names[m.SlotOut] = true
		for _, lm := range m.Moves {
			names[lm.SlotIn] = true
			names[lm.SlotOut] = true
		}
	}
	flat := make([]string, 0, len(names))
	for n := range names {
		flat = append(flat, n)
	}
	return task.CloseUnderPosNeighborhood(w, flat)
}
