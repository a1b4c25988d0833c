// Package persistence implements the on-disk cache format: one JSON file
// per collection under cache/<run>/, loaded and saved in the fixed order
// cfg, tri, lct, int, icm, scm, cnd so later collections can resolve
// references to earlier ones by name (Invariant 2, referential closure).
package persistence

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/corrigan-labs/aps/cache"
	"github.com/corrigan-labs/aps/task"
)

// entry is the {name, payload} shape every collection file is a list of.
type entry struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

type configPayload struct {
	Entries []configEntryPayload `json:"entries"`
}

type configEntryPayload struct {
	SlotName   string   `json:"slotName"`
	ChannelPos string   `json:"channelPos"`
	Holds      []string `json:"holds"`
}

type trianglePayload struct {
	Slots []string `json:"slots"`
}

type lctPayload struct {
	Handle  string `json:"handle"`
	SlotIn  string `json:"slotIn"`
	Movable string `json:"movable"`
	SlotOut string `json:"slotOut"`
}

type intPayload struct {
	Moves   []string `json:"moves"`
	SlotIn  string   `json:"slotIn"`
	SlotOut string   `json:"slotOut"`
}

type icmPayload struct {
	Tensoral   string   `json:"tensoral"`
	Conceptual []string `json:"conceptual"`
}

type scmPayload struct {
	ConfigIn  string   `json:"configIn"`
	Moves     []string `json:"moves"`
	ConfigOut string   `json:"configOut"`
}

type cndPayload struct {
	Config       string `json:"config"`
	PrevKind     string `json:"prevKind,omitempty"`
	PrevName     string `json:"prevName,omitempty"`
	StrategyKind string `json:"strategyKind"`
	StrategyName string `json:"strategyName"`
	IsPositive   bool   `json:"isPositive"`
}

// Load populates c from {cfg,tri,lct,int,icm,scm,cnd}.json directly in dir
// (a run's cache/<run>/ directory). reset mirrors simulation.reset == 1: when true, Load is a no-op and
// the cache starts empty. A missing directory or missing individual file is
// not an error — a fresh run simply has nothing to load.
func Load(dir string, reset bool, c *cache.Cache) error {
	if reset {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	if err := loadConfigs(dir, c); err != nil {
		return err
	}
	if err := loadTriangles(dir, c); err != nil {
		return err
	}
	if err := loadLct(dir, c); err != nil {
		return err
	}
	if err := loadInt(dir, c); err != nil {
		return err
	}
	if err := loadIcm(dir, c); err != nil {
		return err
	}
	if err := loadScm(dir, c); err != nil {
		return err
	}
	if err := loadConditions(dir, c); err != nil {
		return err
	}
	return nil
}

func readEntries(dir, kind string) ([]entry, error) {
	path := filepath.Join(dir, kind+".json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persistence: reading %s: %w", path, err)
	}
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("persistence: parsing %s: %w", path, err)
	}
	return entries, nil
}

func loadConfigs(dir string, c *cache.Cache) error {
	entries, err := readEntries(dir, "cfg")
	if err != nil {
		return err
	}
	for _, e := range entries {
		var p configPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			log.Printf("persistence: cfg %q: malformed payload, dropping: %v", e.Name, err)
			continue
		}
		cfgEntries := make([]task.ConfigEntry, len(p.Entries))
		for i, ce := range p.Entries {
			cfgEntries[i] = task.ConfigEntry{SlotName: ce.SlotName, ChannelPos: ce.ChannelPos, Holds: ce.Holds}
		}
		c.PermanentizeConfig(&task.Config{Entries: cfgEntries})
	}
	return nil
}

func loadTriangles(dir string, c *cache.Cache) error {
	entries, err := readEntries(dir, "tri")
	if err != nil {
		return err
	}
	for _, e := range entries {
		var p trianglePayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			log.Printf("persistence: tri %q: malformed payload, dropping: %v", e.Name, err)
			continue
		}
		c.PermanentizeTriangle(task.BuildTriangle(p.Slots))
	}
	return nil
}

func loadLct(dir string, c *cache.Cache) error {
	entries, err := readEntries(dir, "lct")
	if err != nil {
		return err
	}
	for _, e := range entries {
		var p lctPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			log.Printf("persistence: lct %q: malformed payload, dropping: %v", e.Name, err)
			continue
		}
		c.PermanentizeLct(&cache.StrategyLct{
			Name:    e.Name,
			Handle:  p.Handle,
			SlotIn:  p.SlotIn,
			Movable: p.Movable,
			SlotOut: p.SlotOut,
		})
	}
	return nil
}

func loadInt(dir string, c *cache.Cache) error {
	entries, err := readEntries(dir, "int")
	if err != nil {
		return err
	}
	for _, e := range entries {
		var p intPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			log.Printf("persistence: int %q: malformed payload, dropping: %v", e.Name, err)
			continue
		}
		moves := make([]*cache.StrategyLct, 0, len(p.Moves))
		ok := true
		for _, name := range p.Moves {
			ref, found := c.FindStrategy(name)
			lct, isLct := ref.(*cache.StrategyLct)
			if !found || !isLct {
				log.Printf("persistence: int %q: unknown lct move %q, dropping entry", e.Name, name)
				ok = false
				break
			}
			moves = append(moves, lct)
		}
		if !ok {
			continue
		}
		c.PermanentizeInt(&cache.StrategyInt{
			Name:    e.Name,
			Moves:   moves,
			SlotIn:  p.SlotIn,
			SlotOut: p.SlotOut,
		})
	}
	return nil
}

func loadIcm(dir string, c *cache.Cache) error {
	entries, err := readEntries(dir, "icm")
	if err != nil {
		return err
	}
	for _, e := range entries {
		var p icmPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			log.Printf("persistence: icm %q: malformed payload, dropping: %v", e.Name, err)
			continue
		}
		var tensoral *task.Triangle
		if p.Tensoral != "" {
			var ok bool
			tensoral, ok = c.TriangleByKey(p.Tensoral)
			if !ok {
				log.Printf("persistence: icm %q: unknown triangle %q, dropping entry", e.Name, p.Tensoral)
				continue
			}
		}
		conceptual := make([]*cache.StrategyInt, 0, len(p.Conceptual))
		ok := true
		for _, name := range p.Conceptual {
			ref, found := c.FindStrategy(name)
			move, isInt := ref.(*cache.StrategyInt)
			if !found || !isInt {
				log.Printf("persistence: icm %q: unknown int move %q, dropping entry", e.Name, name)
				ok = false
				break
			}
			conceptual = append(conceptual, move)
		}
		if !ok {
			continue
		}
		c.PermanentizeIcm(&cache.ThreefoldWay{
			Name:       e.Name,
			Tensoral:   tensoral,
			Conceptual: conceptual,
		})
	}
	return nil
}

func loadScm(dir string, c *cache.Cache) error {
	entries, err := readEntries(dir, "scm")
	if err != nil {
		return err
	}
	for _, e := range entries {
		var p scmPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			log.Printf("persistence: scm %q: malformed payload, dropping: %v", e.Name, err)
			continue
		}
		configIn, inOK := c.ConfigByKey(p.ConfigIn)
		configOut, outOK := c.ConfigByKey(p.ConfigOut)
		if (p.ConfigIn != "" && !inOK) || (p.ConfigOut != "" && !outOK) {
			log.Printf("persistence: scm %q: unknown config reference, dropping entry", e.Name)
			continue
		}
		moves := make([]*cache.ThreefoldWay, 0, len(p.Moves))
		ok := true
		for _, name := range p.Moves {
			ref, found := c.FindStrategy(name)
			way, isIcm := ref.(*cache.ThreefoldWay)
			if !found || !isIcm {
				log.Printf("persistence: scm %q: unknown icm move %q, dropping entry", e.Name, name)
				ok = false
				break
			}
			moves = append(moves, way)
		}
		if !ok {
			continue
		}
		c.PermanentizeScm(&cache.StrategyIc{
			Name:      e.Name,
			ConfigIn:  configIn,
			Moves:     moves,
			ConfigOut: configOut,
		})
	}
	return nil
}

func loadConditions(dir string, c *cache.Cache) error {
	entries, err := readEntries(dir, "cnd")
	if err != nil {
		return err
	}
	for _, e := range entries {
		var p cndPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			log.Printf("persistence: cnd %q: malformed payload, dropping: %v", e.Name, err)
			continue
		}
		cfg, ok := c.ConfigByKey(p.Config)
		if !ok {
			log.Printf("persistence: cnd %q: unknown config %q, dropping entry", e.Name, p.Config)
			continue
		}
		var prev cache.StrategyRef
		if p.PrevName != "" {
			ref, found := c.FindStrategy(p.PrevName)
			if !found {
				log.Printf("persistence: cnd %q: unknown prev strategy %q, dropping entry", e.Name, p.PrevName)
				continue
			}
			prev = ref
		}
		strategy, found := c.FindStrategy(p.StrategyName)
		if !found {
			log.Printf("persistence: cnd %q: unknown strategy %q, dropping entry", e.Name, p.StrategyName)
			continue
		}
		c.Learn(cfg, prev, strategy, p.IsPositive)
	}
	return nil
}

// Save writes every interned collection under dir, one file per kind, in
// the same fixed order Load reads them back in.
func Save(dir string, c *cache.Cache) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persistence: creating %s: %w", dir, err)
	}

	if err := saveConfigs(dir, c); err != nil {
		return err
	}
	if err := saveTriangles(dir, c); err != nil {
		return err
	}
	if err := saveLct(dir, c); err != nil {
		return err
	}
	if err := saveInt(dir, c); err != nil {
		return err
	}
	if err := saveIcm(dir, c); err != nil {
		return err
	}
	if err := saveScm(dir, c); err != nil {
		return err
	}
	return saveConditions(dir, c)
}

func writeEntries(dir, kind string, entries []entry) error {
	if entries == nil {
		entries = []entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: encoding %s: %w", kind, err)
	}
	path := filepath.Join(dir, kind+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("persistence: writing %s: %w", path, err)
	}
	return nil
}

func saveConfigs(dir string, c *cache.Cache) error {
	var entries []entry
	for _, cfg := range c.AllConfigs() {
		payload := configPayload{}
		for _, ce := range cfg.Entries {
			payload.Entries = append(payload.Entries, configEntryPayload{
				SlotName: ce.SlotName, ChannelPos: ce.ChannelPos, Holds: ce.Holds,
			})
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		entries = append(entries, entry{Name: cfg.Key(), Payload: raw})
	}
	return writeEntries(dir, "cfg", entries)
}

func saveTriangles(dir string, c *cache.Cache) error {
	var entries []entry
	for _, t := range c.AllTriangles() {
		raw, err := json.Marshal(trianglePayload{Slots: t.Slots})
		if err != nil {
			return err
		}
		entries = append(entries, entry{Name: t.Key(), Payload: raw})
	}
	return writeEntries(dir, "tri", entries)
}

func saveLct(dir string, c *cache.Cache) error {
	var entries []entry
	for _, s := range c.AllLct() {
		raw, err := json.Marshal(lctPayload{Handle: s.Handle, SlotIn: s.SlotIn, Movable: s.Movable, SlotOut: s.SlotOut})
		if err != nil {
			return err
		}
		entries = append(entries, entry{Name: s.Name, Payload: raw})
	}
	return writeEntries(dir, "lct", entries)
}

func saveInt(dir string, c *cache.Cache) error {
	var entries []entry
	for _, s := range c.AllInt() {
		moves := make([]string, len(s.Moves))
		for i, m := range s.Moves {
			moves[i] = m.Name
		}
		raw, err := json.Marshal(intPayload{Moves: moves, SlotIn: s.SlotIn, SlotOut: s.SlotOut})
		if err != nil {
			return err
		}
		entries = append(entries, entry{Name: s.Name, Payload: raw})
	}
	return writeEntries(dir, "int", entries)
}

func saveIcm(dir string, c *cache.Cache) error {
	var entries []entry
	for _, s := range c.AllIcm() {
		tensoral := ""
		if s.Tensoral != nil {
			tensoral = s.Tensoral.Key()
		}
		conceptual := make([]string, len(s.Conceptual))
		for i, m := range s.Conceptual {
			conceptual[i] = m.Name
		}
		raw, err := json.Marshal(icmPayload{Tensoral: tensoral, Conceptual: conceptual})
		if err != nil {
			return err
		}
		entries = append(entries, entry{Name: s.Name, Payload: raw})
	}
	return writeEntries(dir, "icm", entries)
}

func saveScm(dir string, c *cache.Cache) error {
	var entries []entry
	for _, s := range c.AllScmSortedByScore() {
		in, out := "", ""
		if s.ConfigIn != nil {
			in = s.ConfigIn.Key()
		}
		if s.ConfigOut != nil {
			out = s.ConfigOut.Key()
		}
		moves := make([]string, len(s.Moves))
		for i, m := range s.Moves {
			moves[i] = m.Name
		}
		raw, err := json.Marshal(scmPayload{ConfigIn: in, Moves: moves, ConfigOut: out})
		if err != nil {
			return err
		}
		entries = append(entries, entry{Name: s.Name, Payload: raw})
	}
	return writeEntries(dir, "scm", entries)
}

func saveConditions(dir string, c *cache.Cache) error {
	var entries []entry
	for i, cond := range c.AllConditions() {
		p := cndPayload{
			Config:       cond.Config.Key(),
			StrategyName: cond.Strategy.StrategyName(),
			StrategyKind: string(cond.Strategy.Kind()),
			IsPositive:   cond.IsPositive,
		}
		if cond.Prev != nil {
			p.PrevName = cond.Prev.StrategyName()
			p.PrevKind = string(cond.Prev.Kind())
		}
		raw, err := json.Marshal(p)
		if err != nil {
			return err
		}
		entries = append(entries, entry{Name: fmt.Sprintf("cnd-%d", i), Payload: raw})
	}
	return writeEntries(dir, "cnd", entries)
}
