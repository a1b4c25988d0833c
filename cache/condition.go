package cache

import "github.com/corrigan-labs/aps/task"

// Condition is a learned applicability predicate keyed by (config, prev,
// strategy): only one Condition may exist per exact key (Invariant 3).
type Condition struct {
	Config     *task.Config
	Prev       StrategyRef
	Strategy   StrategyRef
	IsPositive bool
}

// conditionKey is the content address of a Condition's identity triple,
// independent of IsPositive so that learning a new verdict for the same
// triple replaces rather than duplicates (only one Condition per key).
func conditionKey(cfg *task.Config, prev, strategy StrategyRef) string {
	return cfg.Key() + "||" + refKind(prev) + ":" + refKey(prev) + "||" + refKind(strategy) + ":" + refKey(strategy)
}

// Matches reports whether this Condition was learned for the exact
// (cfg, prev, strategy) triple, using refEqual's kind-sensitive identity
// rather than raw Key() string comparison: an INT-level move must never be
// treated as the same triple as an LCT-level move with identical fields.
// A map lookup by conditionKey already narrows to this Condition; Matches
// re-checks the triple directly as a guard against the string key itself
// ever colliding across kinds.
func (cond *Condition) Matches(cfg *task.Config, prev, strategy StrategyRef) bool {
	return cond.Config.Equal(cfg) && refEqual(cond.Prev, prev) && refEqual(cond.Strategy, strategy)
}
