package control

import (
	"math/rand"

	"github.com/corrigan-labs/aps/cache"
	"github.com/corrigan-labs/aps/scm"
	"github.com/corrigan-labs/aps/task"
	"github.com/corrigan-labs/aps/tuning"
)

// IterationObserver receives a record of one outer tick. telemetry.Logger
// implements this; tests can supply a stub.
type IterationObserver interface {
	Record(iteration int, t *task.Task, stop bool, success bool)
}

// Control is the outer driver: for step in 0..MaxIts, run one SCM tick and
// stop at the first tick SCM returns false (on success or when it gives up)
// or when the budget runs out.
type Control struct {
	tuning tuning.Tuning
	scm    *scm.Scm
}

func New(rng *rand.Rand, c *cache.Cache, t tuning.Tuning, handles map[string]*task.Handle) *Control {
	return &Control{tuning: t, scm: scm.New(rng, c, t, handles)}
}

// Run drives the outer loop to completion or exhaustion and reports whether
// the task closed successfully.
func (ctl *Control) Run(t *task.Task, observer IterationObserver) bool {
	ctl.scm.Begin(t)
	for step := 0; step < ctl.tuning.MaxIts; step++ {
		keepGoing := ctl.scm.Do(t)
		success := ctl.scm.IsFinal()
		stop := !keepGoing
		if observer != nil {
			observer.Record(step, t, stop, success)
		}
		if stop {
			return success
		}
	}
	return false
}
