// Package scm implements layer L4, the outermost strategy layer: sequences
// of ICM moves driving the whole task from its initial to its final Config.
package scm

import (
	"math/rand"

	"github.com/corrigan-labs/aps/cache"
	"github.com/corrigan-labs/aps/icm"
	"github.com/corrigan-labs/aps/int2"
	"github.com/corrigan-labs/aps/lct"
	"github.com/corrigan-labs/aps/outcome"
	"github.com/corrigan-labs/aps/task"
	"github.com/corrigan-labs/aps/tuning"
)

// Scm is the single top-level instance driving one task to completion.
type Scm struct {
	rng    *rand.Rand
	cache  *cache.Cache
	tuning tuning.Tuning
	icm    *icm.Icm

	nmf        *task.Config
	posteriors []*cache.ThreefoldWay
	before     *task.World
	outcome    outcome.Outcome
}

// New wires a full layer stack (lct -> int2 -> icm -> scm) sharing one rng
// and cache, for the Control loop to drive.
func New(rng *rand.Rand, c *cache.Cache, tuning tuning.Tuning, handles map[string]*task.Handle) *Scm {
	l := lct.New(rng, c, tuning)
	i := int2.New(rng, c, tuning, l, handles)
	m := icm.New(rng, c, tuning, i, handles)
	return &Scm{rng: rng, cache: c, tuning: tuning, icm: m}
}

// IsFinal is read off the single Outcome the last evaluate() produced,
// rather than kept as an independently mutable flag.
func (s *Scm) IsFinal() bool { return s.outcome == outcome.DoneSuccess }

// Begin scopes this SCM instance to the whole task: its triangle is every
// current slot, and nmf is the task's goal Config.
func (s *Scm) Begin(t *task.Task) {
	nmf := task.BuildConfig(t.Final, t.SlotTypes)
	s.nmf = nmf
	s.posteriors = nil
	s.before = t.Current.Clone()
	s.outcome = outcome.Continue
	triangle := task.TriangleFromSlots(t.Current)
	s.icm.Reset(t, triangle, nmf)
}

// Do runs one outer tick: a top-down pick if one applies, else delegate to
// ICM bottom-up once, then evaluate. Each call advances the downstream ICM
// layer exactly one step; repeated ticks are the outer Control loop's job.
func (s *Scm) Do(t *task.Task) bool {
	topDown := s.selectTopDown(t)

	ok, used := s.icm.Do(t, topDown)
	if used != nil {
		s.posteriors = append(s.posteriors, used)
	}

	return s.evaluate(t, ok)
}

func (s *Scm) evaluate(t *task.Task, icmOK bool) bool {
	now := task.BuildConfig(t.Current, t.SlotTypes)

	if s.icm.IsFinal() && now.Equal(s.nmf) {
		s.outcome = outcome.DoneSuccess
		s.store(t)
		return false
	}

	if len(s.posteriors) >= s.tuning.MaxMovesScm {
		s.hardTruncate(t)
		return false
	}

	if s.icm.DeadEnd() {
		s.outcome = outcome.DeadEnd
		s.hardTruncate(t)
		return true
	}

	return true
}

func (s *Scm) hardTruncate(t *task.Task) {
	t.Current = s.before.Clone()
	s.posteriors = nil
}

// selectTopDown scans learned StrategyIc ascending by score; a candidate
// applies only if its ConfigIn matches the task's current Config, and only
// if probing it against a scratch copy succeeds. Probe is stubbed false in
// this revision (no triangular top-down exchange), so this always returns
// nil for now; the scan and match logic stay in place as the extension
// point for when probe is implemented.
func (s *Scm) selectTopDown(t *task.Task) *cache.ThreefoldWay {
	now := task.BuildConfig(t.Current, t.SlotTypes)
	for _, candidate := range s.cache.AllScmSortedByScore() {
		if candidate.ConfigIn == nil || !candidate.ConfigIn.Equal(now) {
			continue
		}
		if !candidate.Probe() {
			continue
		}
		if len(candidate.Moves) > 0 {
			return candidate.Moves[0]
		}
	}
	return nil
}

func (s *Scm) store(t *task.Task) {
	if len(s.posteriors) == 0 {
		return
	}
	flat := cache.FlattenThreefoldWays(s.posteriors)
	reduced := int2.ReduceIntPath(s.cache, handlesOf(t), flat, s.tuning.Precision)
	way := s.cache.PermanentizeIcm(&cache.ThreefoldWay{
		Tensoral:   task.TriangleFromSlots(t.Current),
		Conceptual: reduced,
	})
	strat := &cache.StrategyIc{
		ConfigIn:  task.BuildConfig(s.before, t.SlotTypes),
		Moves:     []*cache.ThreefoldWay{way},
		ConfigOut: task.BuildConfig(t.Current, t.SlotTypes),
	}
	s.cache.PermanentizeScm(strat)
}

func handlesOf(t *task.Task) map[string]*task.Handle { return t.Handles }
