// Package config loads fallback simulation budgets from an optional YAML
// file, mirroring the teacher's viper-locate/yaml.v3-unmarshal two-stage
// pattern for training configuration.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/corrigan-labs/aps/tuning"
)

// outerConfig mirrors the teacher's {kind, def} envelope so a tuning file
// can sit alongside other config kinds in the same directory.
type outerConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// LoadDefaults reads path (default "./aps.yaml") as a {kind, def} envelope
// and unmarshals its def section into a tuning.Tuning; fields the file
// leaves unset come from tuning.Defaults(). A missing file is not an error —
// callers get tuning.Defaults() back and the problem JSON's own simulation
// block supplies everything else.
func LoadDefaults(path string) (tuning.Tuning, error) {
	if path == "" {
		path = "./aps.yaml"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return tuning.Defaults(), nil
	}

	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	if err := vp.ReadInConfig(); err != nil {
		return tuning.Tuning{}, err
	}

	// viper folds every key to lower case, which would lose tuning's
	// camelCase yaml keys, so the envelope is decoded by yaml.v3 from the
	// file viper read.
	raw, err := os.ReadFile(vp.ConfigFileUsed())
	if err != nil {
		return tuning.Tuning{}, err
	}
	outer := &outerConfig{}
	if err := yaml.Unmarshal(raw, outer); err != nil {
		return tuning.Tuning{}, err
	}

	spec, err := yaml.Marshal(outer.Def)
	if err != nil {
		return tuning.Tuning{}, err
	}

	loaded := tuning.Tuning{}
	if err := yaml.Unmarshal(spec, &loaded); err != nil {
		return tuning.Tuning{}, err
	}

	return loaded.Merge(tuning.Defaults()), nil
}
