package task

import "math"

// ScoreLookup resolves a slot's metric weight by name. Config is a pure
// content address and deliberately carries no numeric weights, so Metric
// and Distance take the lookup from whichever Task/World is in scope
// (see Task.ScoreLookup).
type ScoreLookup func(slotName string) float64

// Metric sums (score(slot) * |holds|)^2 over a config's entries and takes
// the square root, per spec §4.7.
func Metric(c *Config, score ScoreLookup) float64 {
	sum := 0.0
	for _, e := range c.Entries {
		w := score(e.SlotName) * float64(len(e.Holds))
		sum += w * w
	}
	return math.Sqrt(sum)
}

// Distance is signed: metric(A restricted to names shared with B) minus
// metric(B restricted to names shared with A). Two configs over disjoint
// slots can legitimately produce a negative value; callers only test for
// zero, so this is benign by design (see Open Questions).
func Distance(a, b *Config, score ScoreLookup) float64 {
	bNames := b.names()
	aNames := a.names()
	aRestricted := &Config{Entries: a.restrict(bNames)}
	bRestricted := &Config{Entries: b.restrict(aNames)}
	return Metric(aRestricted, score) - Metric(bRestricted, score)
}
