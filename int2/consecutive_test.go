package int2

import (
	"testing"

	"github.com/corrigan-labs/aps/cache"
	"github.com/corrigan-labs/aps/problem"
	"github.com/corrigan-labs/aps/task"
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

func TestConsecutiveNilPrevAlwaysTrue(t *testing.T) {
	ta := mustTask(t)
	cand := &cache.StrategyLct{Handle: "pickup", SlotIn: "pegA", Movable: "disk1", SlotOut: "hand"}
	if !consecutive(ta.Current, ta.Handles, nil, cand) {
		t.Fatal("a nil prior should always be consecutive")
	}
}

func TestConsecutiveObjectThenObjectRequiresHandoff(t *testing.T) {
	ta := mustTask(t)
	prev := &cache.StrategyLct{Handle: "pickup", SlotIn: "pegA", Movable: "disk1", SlotOut: "hand"}
	good := &cache.StrategyLct{Handle: "putdown", SlotIn: "hand", Movable: "disk1", SlotOut: "pegB"}
	bad := &cache.StrategyLct{Handle: "putdown", SlotIn: "pegB", Movable: "disk1", SlotOut: "pegA"}

	if !consecutive(ta.Current, ta.Handles, prev, good) {
		t.Fatal("putdown from hand after pickup into hand should be consecutive")
	}
	if consecutive(ta.Current, ta.Handles, prev, bad) {
		t.Fatal("a putdown not departing from prev's destination must not be consecutive")
	}
}

func TestConsecutiveObjectThenChannelRequiresBoundPos(t *testing.T) {
	ta := mustTask(t)
	prev := &cache.StrategyLct{Handle: "pickup", SlotIn: "pegA", Movable: "disk1", SlotOut: "hand"}
	cand := &cache.StrategyLct{Handle: "move_hand", SlotIn: "posA", Movable: "hand", SlotOut: "posB"}

	if !consecutive(ta.Current, ta.Handles, prev, cand) {
		t.Fatal("moving the hand from a pos bound to its pickup destination should be consecutive")
	}

	// pegB binds no pos slots, so no hand move departs from a pos bound to it.
	putPrev := &cache.StrategyLct{Handle: "putdown", SlotIn: "hand", Movable: "disk1", SlotOut: "pegB"}
	if consecutive(ta.Current, ta.Handles, putPrev, cand) {
		t.Fatal("the channel move must depart from a pos slot bound to the object move's destination")
	}
}

func TestConsecutiveChannelThenChannelNeverConsecutive(t *testing.T) {
	ta := mustTask(t)
	prev := &cache.StrategyLct{Handle: "move_hand", SlotIn: "posA", Movable: "hand", SlotOut: "posB"}
	cand := &cache.StrategyLct{Handle: "move_hand", SlotIn: "posB", Movable: "hand", SlotOut: "posA"}
	if consecutive(ta.Current, ta.Handles, prev, cand) {
		t.Fatal("two channel moves in a row are never consecutive")
	}
}

func TestLandsOnPinTrueForObjectMoveToPinSlot(t *testing.T) {
	ta := mustTask(t)
	move := &cache.StrategyLct{Handle: "putdown", SlotIn: "hand", Movable: "disk1", SlotOut: "pegB"}
	if !landsOnPin(ta.Current, ta.Handles, move) {
		t.Fatal("putdown onto pegB (a pin slot) should land on pin")
	}
}

func TestLandsOnPinFalseForChannelMove(t *testing.T) {
	ta := mustTask(t)
	move := &cache.StrategyLct{Handle: "move_hand", SlotIn: "posA", Movable: "hand", SlotOut: "posB"}
	if landsOnPin(ta.Current, ta.Handles, move) {
		t.Fatal("a channel move never lands on pin")
	}
}
