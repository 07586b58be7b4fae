package rules

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type packRule struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
	Enabled     *bool  `yaml:"enabled"`
}

type packFile struct {
	Version int        `yaml:"version"`
	Rules   []packRule `yaml:"rules"`
}

// Load reads a YAML rule pack and returns its enabled rules in file order.
// Entries default to enabled; unknown fields are rejected.
func Load(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule pack %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var pack packFile
	if err := dec.Decode(&pack); err != nil {
		return nil, fmt.Errorf("failed to parse rule pack %s: %w", path, err)
	}

	if pack.Version != 1 {
		return nil, fmt.Errorf("unsupported rule pack version %d in %s", pack.Version, path)
	}

	list := make([]Rule, 0, len(pack.Rules))
	for i, r := range pack.Rules {
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule %d in %s has an empty pattern", i+1, path)
		}
		if r.Enabled != nil && !*r.Enabled {
			continue
		}
		list = append(list, Rule{
			Name:        r.Name,
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
		})
	}

	return list, nil
}
