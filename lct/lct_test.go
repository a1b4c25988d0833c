package lct

import (
	"math/rand"
	"testing"

	"github.com/corrigan-labs/aps/cache"
	"github.com/corrigan-labs/aps/problem"
	"github.com/corrigan-labs/aps/task"
	"github.com/corrigan-labs/aps/tuning"
)

func hanoiSpec() *problem.Spec {
	return &problem.Spec{
		SlotTypes: []problem.SlotTypeSpec{
			{Name: "pin", NumberOfLayers: 1, Ordered: 1, GradientDesc: []string{"size"}},
			{Name: "pos", NumberOfLayers: 1},
			{Name: "hand", NumberOfLayers: 1},
		},
		Handles: []problem.HandleSpec{
			{Name: "pickup", Initial: "pin", Final: "hand", Modulate: "object"},
			{Name: "putdown", Initial: "hand", Final: "pin", Modulate: "object"},
			{Name: "move_hand", Initial: "pos", Final: "pos", Modulate: "hand"},
		},
		Task: problem.TaskSpec{
			Objects: []problem.ObjectSpec{
				{Name: "disk1", Type: "disk", Properties: map[string]float64{"size": 1}},
			},
			Slots: []problem.SlotSpec{
				{Name: "pegA", Type: "pin", Score: 1, Pos: "posA", Bound: []string{}},
				{Name: "pegB", Type: "pin", Score: 1, Pos: "posB", Bound: []string{}},
				{Name: "posA", Type: "pos", Score: 0, Bound: []string{}},
				{Name: "posB", Type: "pos", Score: 0, Bound: []string{}},
				{Name: "hand", Type: "hand", Score: 0, Bound: []string{"posA", "posB"}},
			},
			Initial: []problem.SlotRef{
				{Name: "pegA", Holds: []string{"disk1"}},
				{Name: "pegB", Holds: []string{}},
				{Name: "hand", Holds: []string{}},
			},
			Final: []problem.SlotRef{
				{Name: "pegA", Holds: []string{}},
				{Name: "pegB", Holds: []string{"disk1"}},
				{Name: "hand", Holds: []string{}},
			},
		},
	}
}

func mustTask(t *testing.T) *task.Task {
	t.Helper()
	ta, err := task.FromSpec(hanoiSpec())
	if err != nil {
		t.Fatalf("FromSpec: %v", err)
	}
	return ta
}

func TestDoAppliesAndCommitsTopDown(t *testing.T) {
	ta := mustTask(t)
	c := cache.New()
	l := New(rand.New(rand.NewSource(1)), c, tuning.Defaults())

	move := &cache.StrategyLct{Handle: "pickup", SlotIn: "pegA", Movable: "disk1", SlotOut: "hand"}
	ok, committed := l.Do(ta, move, false)
	if !ok {
		t.Fatal("expected the pickup move to apply")
	}
	if committed == nil {
		t.Fatal("expected a committed move")
	}
	if c.NumLct() != 1 {
		t.Fatalf("NumLct = %d, want 1", c.NumLct())
	}
	if l.Last() != committed {
		t.Fatal("Last() should be the just-committed move")
	}
}

// TestDoFallsBackToBottomUpWhenTopDownFails covers the retry contract: a
// topDown hint that can't apply is dropped, and Do falls back to selecting
// from the cache within the same call rather than failing outright.
func TestDoFallsBackToBottomUpWhenTopDownFails(t *testing.T) {
	ta := mustTask(t)
	c := cache.New()
	tu := tuning.Defaults()
	tu.ProbRedoLct = 0 // force a cache scan over synthesis, for a deterministic fallback
	good := c.PermanentizeLct(&cache.StrategyLct{Handle: "pickup", SlotIn: "pegA", Movable: "disk1", SlotOut: "hand"})
	l := New(rand.New(rand.NewSource(1)), c, tu)

	// disk1 is on pegA, not pegB: this hinted move cannot apply.
	badMove := &cache.StrategyLct{Handle: "pickup", SlotIn: "pegB", Movable: "disk1", SlotOut: "hand"}
	ok, committed := l.Do(ta, badMove, false)
	if !ok {
		t.Fatal("Do should fall back to bottom-up selection and succeed")
	}
	if committed == nil || committed.Key() != good.Key() {
		t.Fatal("expected the fallback to commit the cached applicable move, not the failed hint")
	}
	if c.NumLct() != 1 {
		t.Fatalf("NumLct = %d, want 1 (only the fallback move interned, not the failed hint)", c.NumLct())
	}
}

// TestDoFailsWhenNoFallbackApplies confirms Do still reports failure once a
// topDown hint fails and bottom-up selection/synthesis can find nothing
// applicable either.
func TestDoFailsWhenNoFallbackApplies(t *testing.T) {
	ta := mustTask(t)
	c := cache.New()
	tu := tuning.Defaults()
	tu.ProbRedoLct = 0 // force a cache scan; the cache is empty, so this exhausts to synthesis
	l := New(rand.New(rand.NewSource(1)), c, tu)

	// Block every reachable candidate strategy to exhaust synthesis
	// deterministically regardless of RNG draw order.
	l.Block(&cache.StrategyLct{Handle: "pickup", SlotIn: "pegA", Movable: "disk1", SlotOut: "hand"})
	l.Block(&cache.StrategyLct{Handle: "move_hand", SlotIn: "posA", Movable: "hand", SlotOut: "posB"})
	l.Block(&cache.StrategyLct{Handle: "move_hand", SlotIn: "posB", Movable: "hand", SlotOut: "posA"})

	badMove := &cache.StrategyLct{Handle: "pickup", SlotIn: "pegB", Movable: "disk1", SlotOut: "hand"}
	ok, committed := l.Do(ta, badMove, false)
	if ok || committed != nil {
		t.Fatal("expected Do to fail once every reachable candidate is blocked")
	}
	if c.NumLct() != 0 {
		t.Fatalf("NumLct = %d, want 0 after an exhausted fallback", c.NumLct())
	}
}

func TestDoProbeAppliesButDoesNotCommit(t *testing.T) {
	ta := mustTask(t)
	c := cache.New()
	l := New(rand.New(rand.NewSource(1)), c, tuning.Defaults())

	move := &cache.StrategyLct{Handle: "pickup", SlotIn: "pegA", Movable: "disk1", SlotOut: "hand"}
	ok, _ := l.Do(ta, move, true)
	if !ok {
		t.Fatal("probe should still report success")
	}
	if c.NumLct() != 0 {
		t.Fatal("probe must not intern the move into the cache")
	}
	hand, _ := ta.Current.SlotByName("hand")
	disk1, _ := ta.Current.ObjectByName("disk1")
	if ta.Current.Object(disk1).Slot != hand {
		t.Fatal("probe still mutates the task on success, per exterior's apply-on-success contract")
	}
}

func TestBlockPreventsReselectionFromCache(t *testing.T) {
	ta := mustTask(t)
	c := cache.New()
	l := New(rand.New(rand.NewSource(7)), c, tuning.Defaults())

	move := c.PermanentizeLct(&cache.StrategyLct{Handle: "pickup", SlotIn: "pegA", Movable: "disk1", SlotOut: "hand"})
	l.Block(move)

	candidate := l.Candidate(ta)
	if candidate != nil && candidate.Key() == move.Key() {
		t.Fatal("a blocked strategy must not be reselected from the cache")
	}
}

func TestClearBlockedAllowsReselection(t *testing.T) {
	ta := mustTask(t)
	c := cache.New()
	tu := tuning.Defaults()
	tu.ProbRedoLct = 0 // always prefer a cache scan over synthesis
	l := New(rand.New(rand.NewSource(7)), c, tu)

	move := c.PermanentizeLct(&cache.StrategyLct{Handle: "pickup", SlotIn: "pegA", Movable: "disk1", SlotOut: "hand"})
	l.Block(move)
	l.ClearBlocked()

	candidate := l.Candidate(ta)
	if candidate == nil || candidate.Key() != move.Key() {
		t.Fatal("with blocked cleared and a single cached move, Candidate should return it")
	}
}

func TestApplyResolvesByNameWithoutSideEffects(t *testing.T) {
	ta := mustTask(t)
	c := cache.New()
	l := New(rand.New(rand.NewSource(1)), c, tuning.Defaults())

	move := &cache.StrategyLct{Handle: "pickup", SlotIn: "pegA", Movable: "disk1", SlotOut: "hand"}
	if !l.Apply(ta, move) {
		t.Fatal("Apply should succeed against the live task")
	}
	if c.NumLct() != 0 {
		t.Fatal("Apply must not touch the cache; only commit (via Do) interns")
	}
}
