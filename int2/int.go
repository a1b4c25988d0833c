package int2

import (
	"math/rand"

	"github.com/corrigan-labs/aps/cache"
	"github.com/corrigan-labs/aps/detect"
	"github.com/corrigan-labs/aps/lct"
	"github.com/corrigan-labs/aps/task"
	"github.com/corrigan-labs/aps/tuning"
)

// Int is one L2 instance: a consecutive path of LCT moves scoped to a
// triangle, closing when it lands on a pin-type slot.
type Int struct {
	rng     *rand.Rand
	cache   *cache.Cache
	tuning  tuning.Tuning
	lct     *lct.Lct
	handles map[string]*task.Handle

	triangle *task.Triangle
	fnmf     *task.Config

	priors     []*cache.StrategyLct
	posteriors []*cache.StrategyLct

	before *task.World

	recentMoves []*cache.StrategyInt
	history     []*task.World

	numTruncs int
	deadEnd   bool
	isFinal   bool
}

func New(rng *rand.Rand, c *cache.Cache, tuning tuning.Tuning, l *lct.Lct, handles map[string]*task.Handle) *Int {
	return &Int{rng: rng, cache: c, tuning: tuning, lct: l, handles: handles}
}

// Reset scopes this INT instance to a new triangle and goal config, called
// by ICM/SCM each time they hand INT a (possibly different) sub-problem.
func (it *Int) Reset(t *task.Task, triangle *task.Triangle, fnmf *task.Config) {
	it.triangle = triangle
	it.fnmf = fnmf
	it.priors = nil
	it.posteriors = nil
	it.before = t.Current.Clone()
	it.numTruncs = 0
	it.deadEnd = false
	it.isFinal = false
}

func (it *Int) IsFinal() bool  { return it.isFinal }
func (it *Int) DeadEnd() bool  { return it.deadEnd }
func (it *Int) NumTruncs() int { return it.numTruncs }

// Do advances INT by one LCT move. With no plan in progress it adopts
// topDown, or synthesizes a path when topDown is nil. LCT then applies the
// plan's next move, or an unguided one once the plan is used up. A move
// already in posteriors is blocked and reverted; a move matching the plan's
// head is consumed; any other outcome goes to evaluate.
func (it *Int) Do(t *task.Task, topDown []*cache.StrategyLct) (bool, *cache.StrategyInt) {
	if !it.deadEnd && len(it.priors) == 0 && len(it.posteriors) == 0 {
		if topDown != nil {
			it.priors = topDown
		} else {
			it.synthesizePath(t)
			if it.priors == nil {
				it.deadEnd = true
				return false, nil
			}
		}
	}

	var head *cache.StrategyLct
	if len(it.priors) > 0 {
		head = it.priors[0]
	}

	t.Snapshot()
	ok, used := it.lct.Do(t, head, false)
	if !ok {
		return it.evaluate(t)
	}

	if it.inPosteriors(used) {
		it.lct.Block(used)
		t.Revert()
		return true, nil
	}

	it.posteriors = append(it.posteriors, used)
	if len(it.priors) > 0 && used.Key() == it.priors[0].Key() {
		it.priors = it.priors[1:]
		return true, nil
	}
	return it.evaluate(t)
}

func (it *Int) inPosteriors(s *cache.StrategyLct) bool {
	for _, p := range it.posteriors {
		if p.Key() == s.Key() {
			return true
		}
	}
	return false
}

func (it *Int) evaluate(t *task.Task) (bool, *cache.StrategyInt) {
	if it.fnmf != nil {
		now := task.BuildConfig(t.Current, t.SlotTypes)
		if task.Distance(it.fnmf, now, t.ScoreLookup()) == 0 {
			it.isFinal = true
			return false, it.store(t)
		}
	}

	names := make([]string, len(it.recentMoves))
	for i, m := range it.recentMoves {
		names[i] = m.StrategyName()
	}
	if pattern, found := detect.FindMovePattern(names, it.tuning.SizePattern); found {
		if idx := detect.StartsLoop(names, pattern); idx >= 0 {
			it.truncateToMove(t, idx)
			return true, nil
		}
	}

	if len(it.posteriors) > 0 {
		last := it.posteriors[len(it.posteriors)-1]
		if landsOnPin(t.Current, it.handles, last) {
			return false, it.store(t)
		}
	}

	if len(it.posteriors) >= it.tuning.MaxMovesInt {
		it.truncateSoft(t, false)
		return true, nil
	}

	it.truncateSoft(t, true)
	it.numTruncs++
	if it.numTruncs >= it.tuning.MaxTruncsInt {
		it.deadEnd = true
		it.numTruncs = 0
		return false, nil
	}
	return true, nil
}

func (it *Int) truncateSoft(t *task.Task, blockFirst bool) {
	if blockFirst && len(it.posteriors) > 0 {
		it.lct.Block(it.posteriors[0])
	}
	t.Current = it.before.Clone()
	it.priors = nil
	it.posteriors = nil
}

func (it *Int) truncateToMove(t *task.Task, idx int) {
	var prev cache.StrategyRef
	if idx > 0 {
		prev = it.recentMoves[idx-1]
	}
	cur := it.recentMoves[idx]
	cfg := task.BuildConfig(t.Current, t.SlotTypes)
	it.cache.Learn(cfg, prev, cur, false)

	t.Current = it.history[idx].Clone()
	it.before = it.history[idx].Clone()
	it.history = it.history[:idx]
	it.recentMoves = it.recentMoves[:idx]
	it.priors = nil
	it.posteriors = nil
}

func (it *Int) store(t *task.Task) *cache.StrategyInt {
	if len(it.posteriors) == 0 {
		return nil
	}
	optimized := lct.Optimize(it.cache, it.handles, it.posteriors)
	strat := it.cache.PermanentizeInt(&cache.StrategyInt{
		SlotIn:  it.posteriors[0].SlotIn,
		Moves:   optimized,
		SlotOut: it.posteriors[len(it.posteriors)-1].SlotOut,
	})
	it.finishMove(t, strat)
	return strat
}

func (it *Int) finishMove(t *task.Task, strat *cache.StrategyInt) {
	it.history = append(it.history, t.Current.Clone())
	it.recentMoves = append(it.recentMoves, strat)
	it.before = t.Current.Clone()
	it.priors = nil
	it.posteriors = nil
	it.lct.ClearBlocked()
}

// synthesizePath is select_strategy_new_move: build a random consecutive
// LCT path, bounded by maxRecsInt tries with an inner maxMovesInt cap,
// terminating on a pin-type slot.
func (it *Int) synthesizePath(t *task.Task) {
	for attempt := 0; attempt < it.tuning.MaxRecsInt; attempt++ {
		virtual := t.Clone()
		path := []*cache.StrategyLct{}
		var prev *cache.StrategyLct
		closed := false

		for step := 0; step < it.tuning.MaxMovesInt; step++ {
			cand := it.lct.Candidate(virtual)
			if cand == nil {
				break
			}
			if !consecutive(virtual.Current, it.handles, prev, cand) {
				continue
			}
			if !it.lct.Apply(virtual, cand) {
				continue
			}
			path = append(path, cand)
			prev = cand
			if landsOnPin(virtual.Current, it.handles, cand) {
				closed = true
				break
			}
		}

		if closed {
			it.priors = path
			return
		}
	}
	it.priors = nil
}
