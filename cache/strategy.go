// Package cache holds the learned, content-addressed long-term memory: the
// four strategy collections (LCT/INT/ICM/SCM), the Condition index, and the
// Config/Triangle intern tables every other layer shares. Nothing here is
// ever mutated or evicted after being interned (Invariant 1/2).
package cache

import (
	"strings"

	"github.com/corrigan-labs/aps/task"
)

// StrategyKind tags which collection a learned strategy belongs to, used by
// Condition equality (prev/strategy compare by kind, then structure) and by
// the fixed lct->int->icm->scm lookup order of FindStrategy.
type StrategyKind string

const (
	KindLct StrategyKind = "lct"
	KindInt StrategyKind = "int"
	KindIcm StrategyKind = "icm"
	KindScm StrategyKind = "scm"
)

// StrategyRef is anything that can sit on either side of a Condition: a
// learned strategy of any kind, or nil (the zero value of the interface).
type StrategyRef interface {
	Kind() StrategyKind
	Key() string
	StrategyName() string
}

// StrategyLct: handle, slot-in, movable, slot-out; equal iff all four names
// match.
type StrategyLct struct {
	Name    string
	Handle  string
	SlotIn  string
	Movable string
	SlotOut string
}

func (s *StrategyLct) Kind() StrategyKind  { return KindLct }
func (s *StrategyLct) StrategyName() string { return s.Name }
func (s *StrategyLct) Key() string {
	return strings.Join([]string{s.Handle, s.SlotIn, s.Movable, s.SlotOut}, "|")
}

// StrategyInt: an ordered list of LCT strategies plus its own endpoints;
// equal iff the move list and both endpoints match.
type StrategyInt struct {
	Name    string
	Moves   []*StrategyLct
	SlotIn  string
	SlotOut string
}

func (s *StrategyInt) Kind() StrategyKind  { return KindInt }
func (s *StrategyInt) StrategyName() string { return s.Name }
func (s *StrategyInt) Key() string {
	names := make([]string, len(s.Moves))
	for i, m := range s.Moves {
		names[i] = m.Name
	}
	return s.SlotIn + ">" + strings.Join(names, ",") + ">" + s.SlotOut
}

// Score treats an INT move as a unit leaf of value 1, per the "leaf score =
// 1 for INT" rule that higher layers' scores are built from.
func (s *StrategyInt) Score() int { return 1 }

// ThreefoldWay: tensoral (Triangle scope), conceptual (ordered INT list),
// symbolic (reserved, always empty). Equal iff tensoral + conceptual match.
type ThreefoldWay struct {
	Name       string
	Tensoral   *task.Triangle
	Conceptual []*StrategyInt
	Symbolic   []struct{} // reserved, never populated
}

func (s *ThreefoldWay) Kind() StrategyKind  { return KindIcm }
func (s *ThreefoldWay) StrategyName() string { return s.Name }
func (s *ThreefoldWay) Key() string {
	names := make([]string, len(s.Conceptual))
	for i, m := range s.Conceptual {
		names[i] = m.Name
	}
	tri := ""
	if s.Tensoral != nil {
		tri = s.Tensoral.Key()
	}
	return tri + ">" + strings.Join(names, ",")
}

// Score is the sum of its children's scores, each INT leaf worth 1.
func (s *ThreefoldWay) Score() int {
	sum := 0
	for _, m := range s.Conceptual {
		sum += m.Score()
	}
	return sum
}

// StrategyIc: config-in, ordered ThreefoldWay list, config-out. Equal iff
// the list and both endpoints match.
type StrategyIc struct {
	Name      string
	ConfigIn  *task.Config
	Moves     []*ThreefoldWay
	ConfigOut *task.Config
}

func (s *StrategyIc) Kind() StrategyKind  { return KindScm }
func (s *StrategyIc) StrategyName() string { return s.Name }
func (s *StrategyIc) Key() string {
	names := make([]string, len(s.Moves))
	for i, m := range s.Moves {
		names[i] = m.Name
	}
	in, out := "", ""
	if s.ConfigIn != nil {
		in = s.ConfigIn.Key()
	}
	if s.ConfigOut != nil {
		out = s.ConfigOut.Key()
	}
	return in + ">" + strings.Join(names, ",") + ">" + out
}

// Score is the sum of its children's (ThreefoldWay) scores.
func (s *StrategyIc) Score() int {
	sum := 0
	for _, m := range s.Moves {
		sum += m.Score()
	}
	return sum
}

// Probe is always false: the triangular top-down exchange at SCM level is
// unimplemented in this revision. The interface exists so callers can write
// the intended call site without special-casing it; see DESIGN.md.
func (s *StrategyIc) Probe() bool { return false }

func refKind(r StrategyRef) string {
	if r == nil {
		return ""
	}
	return string(r.Kind())
}

func refKey(r StrategyRef) string {
	if r == nil {
		return ""
	}
	return r.Key()
}

// refEqual compares by kind first, then structural key: an INT-level move
// is never equal to an LCT-level move of identical fields (Open Question,
// load-bearing per spec).
func refEqual(a, b StrategyRef) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Kind() == b.Kind() && a.Key() == b.Key()
}
