package int2

import (
	"github.com/corrigan-labs/aps/cache"
	"github.com/corrigan-labs/aps/lct"
	"github.com/corrigan-labs/aps/task"
)

// ReduceIntPath is the INT path reducer (spec §4.7): within a window of
// w=2..precision INT moves, if the first and last touch the same unique
// non-channel object, nothing in between touches that object, and
// first.SlotOut == last.SlotIn, the pair collapses into one merged INT
// move, keeping the in-between moves. Recurses to a fixed point.
func ReduceIntPath(c *cache.Cache, handles map[string]*task.Handle, path []*cache.StrategyInt, precision int) []*cache.StrategyInt {
	for {
		reduced, changed := reduceIntOnce(c, handles, path, precision)
		if !changed {
			return reduced
		}
		path = reduced
	}
}

func reduceIntOnce(c *cache.Cache, handles map[string]*task.Handle, path []*cache.StrategyInt, precision int) ([]*cache.StrategyInt, bool) {
	for w := 2; w <= precision; w++ {
		for i := 0; i+w <= len(path); i++ {
			first, last := path[i], path[i+w-1]
			fObj, fOK := touchedObject(handles, first)
			lObj, lOK := touchedObject(handles, last)
			if !fOK || !lOK || fObj != lObj {
				continue
			}
			if first.SlotOut != last.SlotIn {
				continue
			}
			if windowTouches(handles, path[i+1:i+w-1], fObj) {
				continue
			}
			combined := append(append([]*cache.StrategyLct{}, first.Moves...), last.Moves...)
			combined = lct.Optimize(c, handles, combined)
			merged := c.PermanentizeInt(&cache.StrategyInt{
				SlotIn:  first.SlotIn,
				Moves:   combined,
				SlotOut: last.SlotOut,
			})
			out := make([]*cache.StrategyInt, 0, len(path)-w+2)
			out = append(out, path[:i]...)
			out = append(out, merged)
			out = append(out, path[i+1:i+w-1]...)
			out = append(out, path[i+w:]...)
			return out, true
		}
	}
	return path, false
}

func windowTouches(handles map[string]*task.Handle, window []*cache.StrategyInt, object string) bool {
	for _, m := range window {
		if obj, ok := touchedObject(handles, m); ok && obj == object {
			return true
		}
	}
	return false
}
