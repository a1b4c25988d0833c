// Package icm implements layer L3: sequences of INT moves that each
// relocate one object within an extended triangle of slots.
package icm

import (
	"math/rand"

	"github.com/corrigan-labs/aps/cache"
	"github.com/corrigan-labs/aps/int2"
	"github.com/corrigan-labs/aps/outcome"
	"github.com/corrigan-labs/aps/task"
	"github.com/corrigan-labs/aps/tuning"
)

// Icm is one L3 instance, scoped to its own extended triangle.
type Icm struct {
	rng     *rand.Rand
	cache   *cache.Cache
	tuning  tuning.Tuning
	int     *int2.Int
	handles map[string]*task.Handle

	triangle *task.Triangle
	nmf      *task.Config

	priors     []*cache.ThreefoldWay
	posteriors []*cache.StrategyInt

	move *cache.ThreefoldWay

	seen       []*task.Config
	before     *task.World
	hardReload bool
	outcome    outcome.Outcome
}

func New(rng *rand.Rand, c *cache.Cache, tuning tuning.Tuning, intLayer *int2.Int, handles map[string]*task.Handle) *Icm {
	return &Icm{rng: rng, cache: c, tuning: tuning, int: intLayer, handles: handles}
}

func (icm *Icm) Reset(t *task.Task, triangle *task.Triangle, nmf *task.Config) {
	icm.triangle = triangle
	icm.nmf = nmf
	icm.priors = nil
	icm.posteriors = nil
	icm.move = nil
	icm.seen = nil
	icm.before = t.Current.Clone()
	icm.hardReload = false
	icm.outcome = outcome.Continue
}

// IsFinal and DeadEnd are read off the single Outcome the last evaluate()
// produced, rather than kept as independently mutable flags.
func (icm *Icm) IsFinal() bool { return icm.outcome == outcome.DoneSuccess }
func (icm *Icm) DeadEnd() bool { return icm.outcome == outcome.DeadEnd }

// Do reloads INT's scope to move.Tensoral if the current ICM move names
// one, else to ICM's own triangle, delegates one INT move, and evaluates.
func (icm *Icm) Do(t *task.Task, topDown *cache.ThreefoldWay) (bool, *cache.ThreefoldWay) {
	if topDown != nil {
		icm.move = topDown
	}

	if icm.move == nil && len(icm.priors) == 0 {
		icm.synthesizePath(t)
		if icm.priors == nil {
			icm.outcome = outcome.DeadEnd
			return false, nil
		}
		icm.move = icm.priors[0]
		icm.priors = icm.priors[1:]
	}

	triangle := icm.triangle
	if icm.move != nil && icm.move.Tensoral != nil {
		triangle = icm.move.Tensoral
	}
	icm.int.Reset(t, triangle, nil)

	var topDownMoves []*cache.StrategyLct
	if icm.move != nil {
		topDownMoves = flattenLct(icm.move.Conceptual)
	}

	_, used := icm.int.Do(t, topDownMoves)

	if used == nil {
		return icm.truncate(t, icm.int.DeadEnd())
	}

	if icm.usedBefore(used) {
		return icm.truncate(t, false)
	}
	icm.posteriors = append(icm.posteriors, used)
	icm.move = nil

	return icm.evaluate(t)
}

func (icm *Icm) usedBefore(s *cache.StrategyInt) bool {
	for _, p := range icm.posteriors {
		if p.Key() == s.Key() {
			return true
		}
	}
	return false
}

func (icm *Icm) evaluate(t *task.Task) (bool, *cache.ThreefoldWay) {
	now := task.BuildConfig(t.Current, t.SlotTypes)

	if icm.int.IsFinal() && icm.nmf != nil && now.Equal(icm.nmf) {
		icm.outcome = outcome.DoneSuccess
		return false, icm.store(t)
	}

	gradient := task.Distance(now, task.BuildConfig(icm.before, t.SlotTypes), t.ScoreLookup())
	if len(icm.posteriors) >= 1 && gradient != 0 && !icm.alreadySeen(now) {
		icm.seen = append(icm.seen, now)
		return false, icm.store(t)
	}

	if len(icm.posteriors) >= icm.tuning.MaxMovesIcm {
		icm.truncateSoft(t)
		return true, nil
	}

	if icm.int.DeadEnd() || icm.int.NumTruncs() >= icm.tuning.MaxTruncsIcm {
		icm.outcome = outcome.DeadEnd
		icm.hardReload = true
		icm.seen = nil
		return false, nil
	}

	icm.truncateSoft(t)
	return true, nil
}

func (icm *Icm) alreadySeen(cfg *task.Config) bool {
	for _, s := range icm.seen {
		if s.Equal(cfg) {
			return true
		}
	}
	return false
}

// truncate handles an INT failure (dead end or unrecoverable divergence).
// INT already blocks and reverts its own LCT-level state internally; ICM's
// part is to drop its own plan and, on a hard reload, signal upward.
func (icm *Icm) truncate(t *task.Task, hardReload bool) (bool, *cache.ThreefoldWay) {
	if hardReload {
		icm.outcome = outcome.DeadEnd
		icm.hardReload = true
		icm.seen = nil
		icm.truncateSoft(t)
		return false, nil
	}
	icm.truncateSoft(t)
	return true, nil
}

func (icm *Icm) truncateSoft(t *task.Task) {
	t.Current = icm.before.Clone()
	icm.priors = nil
	icm.move = nil
}

func (icm *Icm) store(t *task.Task) *cache.ThreefoldWay {
	if len(icm.posteriors) == 0 {
		return nil
	}
	tensoral := task.BuildTriangle(cache.TriangleFromIntMoves(t.Current, icm.posteriors))
	tensoral = icm.cache.PermanentizeTriangle(tensoral)
	way := icm.cache.PermanentizeIcm(&cache.ThreefoldWay{
		Tensoral:   tensoral,
		Conceptual: append([]*cache.StrategyInt(nil), icm.posteriors...),
	})
	icm.before = t.Current.Clone()
	icm.posteriors = nil
	return way
}

// synthesizePath builds a candidate list of INT moves covering the ICM's
// triangle by repeatedly letting INT run bottom-up against a scratch task,
// collecting its closed moves until every object currently held in the
// triangle's slots has been relocated at least once.
func (icm *Icm) synthesizePath(t *task.Task) {
	for attempt := 0; attempt < icm.tuning.MaxRecsIcm; attempt++ {
		virtual := t.Clone()
		tri := icm.triangle
		icm.int.Reset(virtual, tri, nil)

		var conceptual []*cache.StrategyInt
		touched := map[string]bool{}
		for step := 0; step < icm.tuning.MaxMovesIcm; step++ {
			ok, used := icm.int.Do(virtual, nil)
			if used != nil {
				conceptual = append(conceptual, used)
				if obj, has := int2.TouchedObject(icm.handles, used); has {
					touched[obj] = true
				}
				if allTriangleObjectsTouched(virtual.Current, tri, touched) {
					break
				}
			}
			if !ok && used == nil {
				break
			}
		}

		if len(conceptual) > 0 && allTriangleObjectsTouched(virtual.Current, tri, touched) {
			icm.priors = []*cache.ThreefoldWay{{Tensoral: tri, Conceptual: conceptual}}
			return
		}
	}
	icm.priors = nil
}

func allTriangleObjectsTouched(w *task.World, tri *task.Triangle, touched map[string]bool) bool {
	for _, name := range tri.Slots {
		sid, ok := w.SlotByName(name)
		if !ok {
			continue
		}
		for _, oid := range w.Slot(sid).Holds {
			if !touched[w.Object(oid).Name] {
				return false
			}
		}
	}
	return true
}

func flattenLct(moves []*cache.StrategyInt) []*cache.StrategyLct {
	out := []*cache.StrategyLct{}
	for _, m := range moves {
		out = append(out, m.Moves...)
	}
	return out
}
