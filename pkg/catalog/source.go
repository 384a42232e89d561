package catalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Source defines how plans are loaded into the catalog.
type Source interface {
	Load() (map[string]Plan, error)
}

// StaticSource serves a fixed set of plans defined in code.
type StaticSource struct {
	plans []Plan
}

// NewStaticSource creates a source backed by the given plans.
func NewStaticSource(plans ...Plan) *StaticSource {
	return &StaticSource{plans: plans}
}

func (s *StaticSource) Load() (map[string]Plan, error) {
	if len(s.plans) == 0 {
		return nil, errors.New("static source has no plans")
	}
	plans := make(map[string]Plan, len(s.plans))
	for _, p := range s.plans {
		plans[p.ID] = p
	}
	return plans, nil
}

// YAMLSource loads plans from a YAML file. Useful when pricing is managed
// outside the binary and deployed as configuration.
type YAMLSource struct {
	path string
}

// NewYAMLSource creates a source reading plans from the file at path.
func NewYAMLSource(path string) *YAMLSource {
	return &YAMLSource{path: path}
}

func (s *YAMLSource) Load() (map[string]Plan, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plans file %s: %w", s.path, err)
	}

	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse plans file %s: %w", s.path, err)
	}

	plans := make(map[string]Plan, len(doc.Plans))
	for _, p := range doc.Plans {
		plans[p.ID] = p
	}
	return plans, nil
}
