package cache

import (
	"fmt"

	"github.com/corrigan-labs/aps/task"
)

// Cache is the globally-visible, append-only learned-memory substrate.
// Every collection is a set under its equality relation (Invariant 1);
// PermanentizeX methods are the only way to add to them and always return
// the canonical, possibly pre-existing, instance.
type Cache struct {
	configs   map[string]*task.Config
	triangles map[string]*task.Triangle

	ConfigOrder   []string
	TriangleOrder []string

	lctByKey map[string]*StrategyLct
	intByKey map[string]*StrategyInt
	icmByKey map[string]*ThreefoldWay
	scmByKey map[string]*StrategyIc

	byName map[string]StrategyRef

	LctOrder []string
	IntOrder []string
	IcmOrder []string
	ScmOrder []string

	conditions map[string]*Condition
}

func New() *Cache {
	return &Cache{
		configs:    map[string]*task.Config{},
		triangles:  map[string]*task.Triangle{},
		lctByKey:   map[string]*StrategyLct{},
		intByKey:   map[string]*StrategyInt{},
		icmByKey:   map[string]*ThreefoldWay{},
		scmByKey:   map[string]*StrategyIc{},
		byName:     map[string]StrategyRef{},
		conditions: map[string]*Condition{},
	}
}

// PermanentizeConfig interns a Config, returning the canonical instance.
func (c *Cache) PermanentizeConfig(cfg *task.Config) *task.Config {
	if existing, ok := c.configs[cfg.Key()]; ok {
		return existing
	}
	c.configs[cfg.Key()] = cfg
	c.ConfigOrder = append(c.ConfigOrder, cfg.Key())
	return cfg
}

// PermanentizeTriangle interns a Triangle, returning the canonical instance.
func (c *Cache) PermanentizeTriangle(t *task.Triangle) *task.Triangle {
	if existing, ok := c.triangles[t.Key()]; ok {
		return existing
	}
	c.triangles[t.Key()] = t
	c.TriangleOrder = append(c.TriangleOrder, t.Key())
	return t
}

// ConfigByKey/TriangleByKey look up an interned Config/Triangle by its
// content-address key, used by persistence to resolve by-name references.
func (c *Cache) ConfigByKey(key string) (*task.Config, bool) {
	cfg, ok := c.configs[key]
	return cfg, ok
}

func (c *Cache) TriangleByKey(key string) (*task.Triangle, bool) {
	t, ok := c.triangles[key]
	return t, ok
}

// AllConfigs/AllTriangles return interned entries in insertion order, keyed
// by their own content-address (their persistence "name").
func (c *Cache) AllConfigs() []*task.Config {
	out := make([]*task.Config, 0, len(c.ConfigOrder))
	for _, k := range c.ConfigOrder {
		out = append(out, c.configs[k])
	}
	return out
}

func (c *Cache) AllTriangles() []*task.Triangle {
	out := make([]*task.Triangle, 0, len(c.TriangleOrder))
	for _, k := range c.TriangleOrder {
		out = append(out, c.triangles[k])
	}
	return out
}

// AllConditions returns every learned Condition, in no particular order
// (Conditions are an unordered index per spec).
func (c *Cache) AllConditions() []*Condition {
	out := make([]*Condition, 0, len(c.conditions))
	for _, cond := range c.conditions {
		out = append(out, cond)
	}
	return out
}

// PermanentizeLct interns a StrategyLct, naming it on first insertion.
func (c *Cache) PermanentizeLct(s *StrategyLct) *StrategyLct {
	if existing, ok := c.lctByKey[s.Key()]; ok {
		return existing
	}
	if s.Name == "" {
		s.Name = fmt.Sprintf("lct-%d", len(c.LctOrder))
	}
	c.lctByKey[s.Key()] = s
	c.byName[s.Name] = s
	c.LctOrder = append(c.LctOrder, s.Name)
	return s
}

// PermanentizeInt interns a StrategyInt, naming it on first insertion.
func (c *Cache) PermanentizeInt(s *StrategyInt) *StrategyInt {
	if existing, ok := c.intByKey[s.Key()]; ok {
		return existing
	}
	if s.Name == "" {
		s.Name = fmt.Sprintf("int-%d", len(c.IntOrder))
	}
	c.intByKey[s.Key()] = s
	c.byName[s.Name] = s
	c.IntOrder = append(c.IntOrder, s.Name)
	return s
}

// PermanentizeIcm interns a ThreefoldWay, naming it on first insertion.
func (c *Cache) PermanentizeIcm(s *ThreefoldWay) *ThreefoldWay {
	if existing, ok := c.icmByKey[s.Key()]; ok {
		return existing
	}
	if s.Name == "" {
		s.Name = fmt.Sprintf("icm-%d", len(c.IcmOrder))
	}
	c.icmByKey[s.Key()] = s
	c.byName[s.Name] = s
	c.IcmOrder = append(c.IcmOrder, s.Name)
	return s
}

// PermanentizeScm interns a StrategyIc, naming it on first insertion.
func (c *Cache) PermanentizeScm(s *StrategyIc) *StrategyIc {
	if existing, ok := c.scmByKey[s.Key()]; ok {
		return existing
	}
	if s.Name == "" {
		s.Name = fmt.Sprintf("scm-%d", len(c.ScmOrder))
	}
	c.scmByKey[s.Key()] = s
	c.byName[s.Name] = s
	c.ScmOrder = append(c.ScmOrder, s.Name)
	return s
}

// Learn records (or overwrites) the Condition for a (config, prev, strategy)
// triple (Invariant 3: at most one Condition per key).
func (c *Cache) Learn(cfg *task.Config, prev, strategy StrategyRef, isPositive bool) {
	cfg = c.PermanentizeConfig(cfg)
	c.conditions[conditionKey(cfg, prev, strategy)] = &Condition{
		Config:     cfg,
		Prev:       prev,
		Strategy:   strategy,
		IsPositive: isPositive,
	}
}

// Applies looks up a learned Condition by (config, prev, strategy); with no
// match it defaults to true (spec §4.7).
func (c *Cache) Applies(cfg *task.Config, prev, strategy StrategyRef) bool {
	cond, ok := c.Condition(cfg, prev, strategy)
	if !ok {
		return true
	}
	return cond.IsPositive
}

// Condition returns the learned Condition for a triple, if any, for tests
// that need to assert on IsPositive directly. The map lookup by
// conditionKey is verified against the triple via Matches, so a string-key
// collision across StrategyRef kinds can never surface a wrong Condition.
func (c *Cache) Condition(cfg *task.Config, prev, strategy StrategyRef) (*Condition, bool) {
	cond, ok := c.conditions[conditionKey(cfg, prev, strategy)]
	if !ok || !cond.Matches(cfg, prev, strategy) {
		return nil, false
	}
	return cond, true
}

// FindStrategy looks up a strategy by its persisted name. Names are unique
// across all four collections at assignment time (PermanentizeX), so a
// single map lookup already respects the fixed lct->int->icm->scm scan
// order those collections are built in.
func (c *Cache) FindStrategy(name string) (StrategyRef, bool) {
	s, ok := c.byName[name]
	return s, ok
}

func (c *Cache) NumConfigs() int    { return len(c.configs) }
func (c *Cache) NumTriangles() int  { return len(c.triangles) }
func (c *Cache) NumLct() int        { return len(c.lctByKey) }
func (c *Cache) NumInt() int        { return len(c.intByKey) }
func (c *Cache) NumIcm() int        { return len(c.icmByKey) }
func (c *Cache) NumScm() int        { return len(c.scmByKey) }
func (c *Cache) NumConditions() int { return len(c.conditions) }

// AllLct/AllInt/AllIcm/AllScm return the strategies in insertion order, the
// iteration order LCT.selectStrategy and ICM/SCM top-down scans rely on.
func (c *Cache) AllLct() []*StrategyLct {
	out := make([]*StrategyLct, 0, len(c.LctOrder))
	for _, n := range c.LctOrder {
		out = append(out, c.byName[n].(*StrategyLct))
	}
	return out
}

func (c *Cache) AllInt() []*StrategyInt {
	out := make([]*StrategyInt, 0, len(c.IntOrder))
	for _, n := range c.IntOrder {
		out = append(out, c.byName[n].(*StrategyInt))
	}
	return out
}

func (c *Cache) AllIcm() []*ThreefoldWay {
	out := make([]*ThreefoldWay, 0, len(c.IcmOrder))
	for _, n := range c.IcmOrder {
		out = append(out, c.byName[n].(*ThreefoldWay))
	}
	return out
}

// AllScmSortedByScore returns StrategyIc entries ascending by score, the
// order SCM's top-down selection scans them in.
func (c *Cache) AllScmSortedByScore() []*StrategyIc {
	out := make([]*StrategyIc, 0, len(c.ScmOrder))
	for _, n := range c.ScmOrder {
		out = append(out, c.byName[n].(*StrategyIc))
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Score() < out[j-1].Score(); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
