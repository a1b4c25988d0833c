// Package lct implements layer L0's caller, L1: selecting or synthesizing
// one primitive move, applying it via exterior, and learning StrategyLct
// entries in the cache.
package lct

import (
	"math/rand"

	"github.com/corrigan-labs/aps/cache"
	"github.com/corrigan-labs/aps/exterior"
	"github.com/corrigan-labs/aps/task"
	"github.com/corrigan-labs/aps/tuning"
)

// Lct is one L1 instance. It holds no task of its own; every do() call is
// given the task it operates on, matching the teacher's preference for
// passing state explicitly rather than stashing it on the receiver.
type Lct struct {
	rng     *rand.Rand
	cache   *cache.Cache
	tuning  tuning.Tuning
	recent  []*cache.StrategyLct
	blocked []*cache.StrategyLct
	last    *cache.StrategyLct
}

func New(rng *rand.Rand, c *cache.Cache, tuning tuning.Tuning) *Lct {
	return &Lct{rng: rng, cache: c, tuning: tuning}
}

// Last is the most recently committed move, or nil.
func (l *Lct) Last() *cache.StrategyLct { return l.last }

// Block adds s to the blocked set; INT calls this after a precondition or
// loop failure so LCT never reselects the same move within this attempt.
func (l *Lct) Block(s *cache.StrategyLct) {
	if s == nil {
		return
	}
	l.blocked = append(l.blocked, s)
}

// ClearBlocked resets the blocked set, called by INT's finish_move.
func (l *Lct) ClearBlocked() { l.blocked = nil }

// Do runs the L1 contract: select a plan (or accept one handed down from
// L2), apply it, and on success commit it to recent_moves and the cache.
// probe suppresses commit and the internal retry recursion — the move is
// still actually applied to t on success, matching Exterior's mutate-on-
// success semantics; the caller decides whether to keep or revert it. A
// topDown hint that fails to apply is dropped and Do falls back to
// bottom-up selection within the same tick, bounded by MaxRecsLct below.
func (l *Lct) Do(t *task.Task, topDown *cache.StrategyLct, probe bool) (bool, *cache.StrategyLct) {
	if topDown != nil {
		l.recent = nil
		if l.tryApply(t, topDown) {
			if !probe {
				l.commit(topDown)
			}
			return true, topDown
		}
	}

	for i := 0; i < l.tuning.MaxRecsLct; i++ {
		s := l.selectStrategy(t)
		if s == nil {
			return false, nil
		}
		if l.tryApply(t, s) {
			if !probe {
				l.commit(s)
			}
			return true, s
		}
		l.recent = append(l.recent, s)
		if probe {
			return false, nil
		}
	}
	return false, nil
}

func (l *Lct) commit(s *cache.StrategyLct) {
	interned := l.cache.PermanentizeLct(s)
	l.recent = append(l.recent, interned)
	l.last = interned
}

func (l *Lct) tryApply(t *task.Task, s *cache.StrategyLct) bool {
	return l.Apply(t, s)
}

// Apply resolves a StrategyLct against t and applies it via exterior, with
// no bookkeeping side effects on l. INT's path synthesis uses this to try
// candidates against a scratch task without disturbing recent/blocked state.
func (l *Lct) Apply(t *task.Task, s *cache.StrategyLct) bool {
	handle, slotIn, movable, slotOut, ok := l.resolve(t, s)
	if !ok {
		return false
	}
	return exterior.Apply(t, handle, slotIn, movable, slotOut)
}

// Candidate runs strategy selection (cache scan or synthesis) without
// applying or committing anything, for callers building a path of moves to
// try against a scratch task of their own.
func (l *Lct) Candidate(t *task.Task) *cache.StrategyLct {
	return l.selectStrategy(t)
}

func (l *Lct) resolve(t *task.Task, s *cache.StrategyLct) (*task.Handle, task.SlotID, exterior.Movable, task.SlotID, bool) {
	handle, ok := t.Handles[s.Handle]
	if !ok {
		return nil, task.NoSlot, exterior.Movable{}, task.NoSlot, false
	}
	in, ok := t.Current.SlotByName(s.SlotIn)
	if !ok {
		return nil, task.NoSlot, exterior.Movable{}, task.NoSlot, false
	}
	out, ok := t.Current.SlotByName(s.SlotOut)
	if !ok {
		return nil, task.NoSlot, exterior.Movable{}, task.NoSlot, false
	}
	var mv exterior.Movable
	if handle.MovesObject() {
		oid, ok := t.Current.ObjectByName(s.Movable)
		if !ok {
			return nil, task.NoSlot, exterior.Movable{}, task.NoSlot, false
		}
		mv = exterior.Movable{Object: oid}
	} else {
		sid, ok := t.Current.SlotByName(s.Movable)
		if !ok {
			return nil, task.NoSlot, exterior.Movable{}, task.NoSlot, false
		}
		mv = exterior.Movable{Slot: sid}
	}
	return handle, in, mv, out, true
}

func (l *Lct) selectStrategy(t *task.Task) *cache.StrategyLct {
	if l.rng.Float64() >= l.tuning.ProbRedoLct {
		for _, s := range l.cache.AllLct() {
			if l.isRecentOrBlocked(s) {
				continue
			}
			return s
		}
	}
	return l.synthesizeRandom(t)
}

func (l *Lct) isRecentOrBlocked(s *cache.StrategyLct) bool {
	for _, r := range l.recent {
		if r.Key() == s.Key() {
			return true
		}
	}
	for _, b := range l.blocked {
		if b.Key() == s.Key() {
			return true
		}
	}
	return false
}

func (l *Lct) synthesizeRandom(t *task.Task) *cache.StrategyLct {
	for i := 0; i < l.tuning.MaxRecsLct; i++ {
		candidate := l.buildRandomCandidate(t)
		if candidate == nil {
			continue
		}
		if l.isRecentOrBlocked(candidate) {
			continue
		}
		if l.existsInCache(candidate) {
			continue
		}
		return candidate
	}
	return nil
}

func (l *Lct) existsInCache(s *cache.StrategyLct) bool {
	for _, existing := range l.cache.AllLct() {
		if existing.Key() == s.Key() {
			return true
		}
	}
	return false
}

func (l *Lct) buildRandomCandidate(t *task.Task) *cache.StrategyLct {
	names := make([]string, 0, len(t.Handles))
	for n := range t.Handles {
		names = append(names, n)
	}
	if len(names) == 0 {
		return nil
	}
	handle := t.Handles[names[l.rng.Intn(len(names))]]

	if handle.MovesObject() {
		return l.buildRandomObjectMove(t, handle)
	}
	return l.buildRandomChannelMove(t, handle)
}

func (l *Lct) buildRandomObjectMove(t *task.Task, handle *task.Handle) *cache.StrategyLct {
	w := t.Current
	candidates := l.candidateObjects(w, handle.Initial)
	if len(candidates) == 0 {
		return nil
	}
	obj := w.Object(candidates[l.rng.Intn(len(candidates))])
	if obj.Slot == task.NoSlot {
		return nil
	}
	slotInName := w.Slot(obj.Slot).Name

	outSlots := l.candidateSlots(w, handle.Final, obj.Slot)
	if len(outSlots) == 0 {
		return nil
	}
	slotOutName := w.Slot(outSlots[l.rng.Intn(len(outSlots))]).Name

	return &cache.StrategyLct{
		Handle:  handle.Name,
		SlotIn:  slotInName,
		Movable: obj.Name,
		SlotOut: slotOutName,
	}
}

func (l *Lct) buildRandomChannelMove(t *task.Task, handle *task.Handle) *cache.StrategyLct {
	w := t.Current
	ch, ok := w.SlotByName(handle.Modulate)
	if !ok {
		return nil
	}
	chSlot := w.Slot(ch)
	if chSlot.CurrentPos == task.NoSlot {
		return nil
	}
	candidates := make([]task.SlotID, 0, len(chSlot.Bound))
	for _, b := range chSlot.Bound {
		if b != chSlot.CurrentPos {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	slotOut := candidates[l.rng.Intn(len(candidates))]

	return &cache.StrategyLct{
		Handle:  handle.Name,
		SlotIn:  w.Slot(chSlot.CurrentPos).Name,
		Movable: chSlot.Name,
		SlotOut: w.Slot(slotOut).Name,
	}
}

func (l *Lct) candidateSlots(w *task.World, ep task.Endpoint, exclude task.SlotID) []task.SlotID {
	out := []task.SlotID{}
	for i := range w.Slots {
		sid := task.SlotID(i)
		if sid == exclude {
			continue
		}
		if endpointMatches(ep, &w.Slots[i]) {
			out = append(out, sid)
		}
	}
	return out
}

func (l *Lct) candidateObjects(w *task.World, ep task.Endpoint) []task.ObjectID {
	out := []task.ObjectID{}
	for i := range w.Slots {
		if !endpointMatches(ep, &w.Slots[i]) {
			continue
		}
		out = append(out, w.Slots[i].Holds...)
	}
	return out
}

func endpointMatches(ep task.Endpoint, slot *task.Slot) bool {
	if ep.IsSlotName {
		return slot.Name == ep.Name
	}
	return slot.Type == ep.Name
}
