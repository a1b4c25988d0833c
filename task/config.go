package task

import (
	"sort"
	"strings"
)

// ConfigEntry is one slot's canonical contribution to a Config: its name,
// the name of the position slot a channel occupies (empty if the slot isn't
// a channel), and its held object names (sorted unless the slot is ordered).
type ConfigEntry struct {
	SlotName   string
	ChannelPos string
	Holds      []string
}

// Config is the canonical serialization of a World's slot contents: the
// content address used for caching and Condition lookups. Equality is
// structural on the canonical form, cached as key for O(1) comparison.
type Config struct {
	Entries []ConfigEntry
	key     string
}

// BuildConfig canonicalizes a World into a Config: slots sorted by name,
// holds sorted unless the slot's type is declared ordered.
func BuildConfig(w *World, slotTypes map[string]*SlotType) *Config {
	entries := make([]ConfigEntry, 0, len(w.Slots))
	for _, s := range w.Slots {
		holds := make([]string, len(s.Holds))
		for i, oid := range s.Holds {
			holds[i] = w.Object(oid).Name
		}
		ordered := false
		if st, ok := slotTypes[s.Type]; ok {
			ordered = st.Ordered
		}
		if !ordered {
			sort.Strings(holds)
		}
		channelPos := ""
		if s.IsMovable() && s.CurrentPos != NoSlot {
			channelPos = w.Slot(s.CurrentPos).Name
		}
		entries = append(entries, ConfigEntry{
			SlotName:   s.Name,
			ChannelPos: channelPos,
			Holds:      holds,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].SlotName < entries[j].SlotName })
	c := &Config{Entries: entries}
	c.key = c.computeKey()
	return c
}

func (c *Config) computeKey() string {
	var b strings.Builder
	for _, e := range c.Entries {
		b.WriteString(e.SlotName)
		b.WriteByte('|')
		b.WriteString(e.ChannelPos)
		b.WriteByte('|')
		b.WriteString(strings.Join(e.Holds, ","))
		b.WriteByte(';')
	}
	return b.String()
}

// Key returns the canonical string used as the content-address / map key for
// interning and Condition lookups.
func (c *Config) Key() string {
	if c.key == "" {
		c.key = c.computeKey()
	}
	return c.key
}

// Equal reports structural equality on the canonical form.
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.Key() == other.Key()
}

// entryByName finds an entry by slot name, or nil.
func (c *Config) entryByName(name string) *ConfigEntry {
	for i := range c.Entries {
		if c.Entries[i].SlotName == name {
			return &c.Entries[i]
		}
	}
	return nil
}

// names returns the set of slot names present in this config.
func (c *Config) names() map[string]bool {
	out := make(map[string]bool, len(c.Entries))
	for _, e := range c.Entries {
		out[e.SlotName] = true
	}
	return out
}

// restrict returns a copy of c's entries limited to the given slot names.
func (c *Config) restrict(names map[string]bool) []ConfigEntry {
	out := make([]ConfigEntry, 0, len(c.Entries))
	for _, e := range c.Entries {
		if names[e.SlotName] {
			out = append(out, e)
		}
	}
	return out
}
