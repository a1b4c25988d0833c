package lct

import (
	"github.com/corrigan-labs/aps/cache"
	"github.com/corrigan-labs/aps/task"
)

// ChannelMoveTest builds the isChannelMove predicate ReduceLctMoves needs,
// resolved against a task's handle definitions.
func ChannelMoveTest(handles map[string]*task.Handle) func(*cache.StrategyLct) bool {
	return func(s *cache.StrategyLct) bool {
		h, ok := handles[s.Handle]
		return ok && !h.MovesObject()
	}
}

// Optimize applies ReduceLctMoves using a cache's own interning, the
// "optimize(posteriors)" step INT/ICM/SCM storage calls before persisting
// a macro strategy.
func Optimize(c *cache.Cache, handles map[string]*task.Handle, moves []*cache.StrategyLct) []*cache.StrategyLct {
	return ReduceLctMoves(moves, ChannelMoveTest(handles), c.PermanentizeLct)
}

// ReduceLctMoves is the LCT path reducer (spec §4.7): find four consecutive
// moves a,b,c,d where a and d share handle and movable, b.SlotOut ==
// c.SlotIn, and a is a channel move; replace the window with a single
// synthesized move (a.Handle, a.SlotIn, a.Movable, d.SlotOut), interned via
// intern, and recurse to a fixed point.
func ReduceLctMoves(moves []*cache.StrategyLct, isChannelMove func(*cache.StrategyLct) bool, intern func(*cache.StrategyLct) *cache.StrategyLct) []*cache.StrategyLct {
	for {
		reduced, changed := reduceOnce(moves, isChannelMove, intern)
		if !changed {
			return reduced
		}
		moves = reduced
	}
}

func reduceOnce(moves []*cache.StrategyLct, isChannelMove func(*cache.StrategyLct) bool, intern func(*cache.StrategyLct) *cache.StrategyLct) ([]*cache.StrategyLct, bool) {
	for i := 0; i+3 < len(moves); i++ {
		a, b, c, d := moves[i], moves[i+1], moves[i+2], moves[i+3]
		if a.Handle == d.Handle && a.Movable == d.Movable && b.SlotOut == c.SlotIn && isChannelMove(a) {
			merged := intern(&cache.StrategyLct{
				Handle:  a.Handle,
				SlotIn:  a.SlotIn,
				Movable: a.Movable,
				SlotOut: d.SlotOut,
			})
			out := make([]*cache.StrategyLct, 0, len(moves)-3)
			out = append(out, moves[:i]...)
			out = append(out, merged)
			out = append(out, moves[i+4:]...)
			return out, true
		}
	}
	return moves, false
}
