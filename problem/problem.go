// Package problem parses the JSON problem description into the immutable
// entity set the core planner operates on. It is the default, concrete
// implementation of the "JSON input parsing" external collaborator named in
// the system's scope: nothing downstream depends on how this package reads
// bytes off disk, only on the Spec it produces.
package problem

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/corrigan-labs/aps/tuning"
)

// ObjectTypeSpec describes one entry of the "objectTypes" array.
type ObjectTypeSpec struct {
	Name       string   `json:"name"`
	Properties []string `json:"properties"`
}

// SlotTypeSpec describes one entry of the "slotTypes" array.
type SlotTypeSpec struct {
	Name           string   `json:"name"`
	NumberOfLayers int      `json:"numberOfLayers"`
	Ordered        int      `json:"ordered"`
	GradientAsc    []string `json:"gradientAsc"`
	GradientDesc   []string `json:"gradientDesc"`
	NoNegSum       []string `json:"noNegSum"`
	NoPosSum       []string `json:"noPosSum"`
}

// HandleSpec describes one entry of the "handles" array.
type HandleSpec struct {
	Name     string `json:"name"`
	Initial  string `json:"initial"`
	Final    string `json:"final"`
	Modulate string `json:"modulate"`
	Type     string `json:"type,omitempty"`
}

// ObjectSpec describes one entry of "task.objects". Beyond name/type, any
// other key is a numeric property value, so it needs a custom unmarshaler.
type ObjectSpec struct {
	Name       string
	Type       string
	Properties map[string]float64
}

func (o *ObjectSpec) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw["name"], &o.Name); err != nil {
		return fmt.Errorf("object missing name: %w", err)
	}
	if err := json.Unmarshal(raw["type"], &o.Type); err != nil {
		return fmt.Errorf("object %q missing type: %w", o.Name, err)
	}
	o.Properties = make(map[string]float64, len(raw))
	for k, v := range raw {
		if k == "name" || k == "type" {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err == nil {
			o.Properties[k] = f
		}
	}
	return nil
}

// SlotSpec describes one entry of "task.slots".
type SlotSpec struct {
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Holds []string `json:"holds"`
	Score float64  `json:"score"`
	Pos   string   `json:"pos,omitempty"`
	Bound []string `json:"bound"`
}

// SlotRef names a slot and the objects it holds, used for "initial"/"final".
type SlotRef struct {
	Name  string   `json:"name"`
	Holds []string `json:"holds"`
}

// ConstraintOverride overrides a single slot's constraint sets, keyed by
// slot name at the JSON level: {"<slot>": {...overrides}}.
type ConstraintOverride struct {
	Slot         string
	GradientAsc  []string
	GradientDesc []string
	NoNegSum     []string
	NoPosSum     []string
}

func (c *ConstraintOverride) UnmarshalJSON(data []byte) error {
	outer := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &outer); err != nil {
		return err
	}
	for slotName, body := range outer {
		c.Slot = slotName
		inner := struct {
			GradientAsc  []string `json:"gradientAsc"`
			GradientDesc []string `json:"gradientDesc"`
			NoNegSum     []string `json:"noNegSum"`
			NoPosSum     []string `json:"noPosSum"`
		}{}
		if err := json.Unmarshal(body, &inner); err != nil {
			return err
		}
		c.GradientAsc = inner.GradientAsc
		c.GradientDesc = inner.GradientDesc
		c.NoNegSum = inner.NoNegSum
		c.NoPosSum = inner.NoPosSum
	}
	return nil
}

// TaskSpec is the "task" object of the problem JSON.
type TaskSpec struct {
	Objects     []ObjectSpec         `json:"objects"`
	Slots       []SlotSpec           `json:"slots"`
	Initial     []SlotRef            `json:"initial"`
	Final       []SlotRef            `json:"final"`
	Constraints []ConstraintOverride `json:"constraints"`
}

// SimulationSpec is the "simulation" object: layer budgets and randomness
// biases. Zero values mean "not set"; tuning.Tuning's Merge fills
// them from config.LoadDefaults' values.
type SimulationSpec struct {
	Reset        int     `json:"reset"`
	MaxIts       int     `json:"maxIts"`
	MaxMovesInt  int     `json:"maxMovesInt"`
	MaxMovesIcm  int     `json:"maxMovesIcm"`
	MaxMovesScm  int     `json:"maxMovesScm"`
	MaxRecsLct   int     `json:"maxRecsLct"`
	MaxRecsInt   int     `json:"maxRecsInt"`
	MaxRecsIcm   int     `json:"maxRecsIcm"`
	MaxTruncsInt int     `json:"maxTruncsInt"`
	MaxTruncsIcm int     `json:"maxTruncsIcm"`
	ProbRedoLct  float64 `json:"probRedoLct"`
	ProbRedoInt  float64 `json:"probRedoInt"`
	ProbRedoIcm  float64 `json:"probRedoIcm"`
	SizePattern  int     `json:"sizePattern"`
	Precision    int     `json:"precision"`
}

// Spec is the whole problem JSON document.
type Spec struct {
	ObjectTypes []ObjectTypeSpec `json:"objectTypes"`
	SlotTypes   []SlotTypeSpec   `json:"slotTypes"`
	Handles     []HandleSpec     `json:"handles"`
	Task        TaskSpec         `json:"task"`
	Simulation  SimulationSpec   `json:"simulation"`
}

// Load reads and parses a problem description. Invalid or incomplete JSON
// is a fatal, load-time error: the caller must abort before the first tick.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("problem: reading %s: %w", path, err)
	}
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("problem: parsing %s: %w", path, err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("problem: %s: %w", path, err)
	}
	return &spec, nil
}

func (s *Spec) validate() error {
	if len(s.SlotTypes) == 0 {
		return fmt.Errorf("missing slotTypes")
	}
	if len(s.Handles) == 0 {
		return fmt.Errorf("missing handles")
	}
	if len(s.Task.Slots) == 0 {
		return fmt.Errorf("missing task.slots")
	}
	if len(s.Task.Initial) == 0 {
		return fmt.Errorf("missing task.initial")
	}
	if len(s.Task.Final) == 0 {
		return fmt.Errorf("missing task.final")
	}
	for _, h := range s.Handles {
		if h.Modulate == "" {
			return fmt.Errorf("handle %q missing modulate", h.Name)
		}
		if h.Initial == "" || h.Final == "" {
			return fmt.Errorf("handle %q missing initial/final", h.Name)
		}
	}
	return nil
}

// IsOrdered reports whether the slot type is declared ordered (holds is a
// stack rather than an unordered set).
func (s SlotTypeSpec) IsOrdered() bool { return s.Ordered != 0 }

// ToTuning converts the problem JSON's simulation block into a tuning.Tuning
// value. Fields the JSON left at zero are not distinguishable here from
// fields genuinely set to zero; tuning.Tuning's Merge resolves that by
// always preferring a non-zero fallback, which matches every budget/bias
// this system defines (none is meaningfully zero).
func (s SimulationSpec) ToTuning() tuning.Tuning {
	return tuning.Tuning{
		MaxIts:       s.MaxIts,
		MaxMovesInt:  s.MaxMovesInt,
		MaxMovesIcm:  s.MaxMovesIcm,
		MaxMovesScm:  s.MaxMovesScm,
		MaxRecsLct:   s.MaxRecsLct,
		MaxRecsInt:   s.MaxRecsInt,
		MaxRecsIcm:   s.MaxRecsIcm,
		MaxTruncsInt: s.MaxTruncsInt,
		MaxTruncsIcm: s.MaxTruncsIcm,
		ProbRedoLct:  s.ProbRedoLct,
		ProbRedoInt:  s.ProbRedoInt,
		ProbRedoIcm:  s.ProbRedoIcm,
		SizePattern:  s.SizePattern,
		Precision:    s.Precision,
	}
}
