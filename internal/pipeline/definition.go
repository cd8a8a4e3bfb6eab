package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Definition is a declarative pipeline: the trigger and the job graph.
//
// The YAML form follows the CI workflow layout it replaces:
//
//	trigger:
//	  tags: ["v*"]
//	jobs:
//	  build_packages: {}
//	  release:
//	    needs: build_packages
//	    continue-on-error: true
type Definition struct {
	Trigger Trigger                  `yaml:"trigger"`
	Jobs    map[string]JobDefinition `yaml:"jobs"`
}

// Trigger selects the refs that start a run.
type Trigger struct {
	Tags []string `yaml:"tags"`
}

// JobDefinition is the YAML form of a JobSpec.
type JobDefinition struct {
	Needs           StringList `yaml:"needs,omitempty"`
	ContinueOnError bool       `yaml:"continue-on-error,omitempty"`
}

// StringList accepts either a scalar or a sequence of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	case yaml.SequenceNode:
		var ss []string
		if err := value.Decode(&ss); err != nil {
			return err
		}
		*l = ss
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list of strings", value.Line)
	}
}

// ParseDefinition decodes a YAML definition. Unknown fields are rejected.
func ParseDefinition(data []byte) (Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("parse pipeline definition: %w", err)
	}
	if len(def.Jobs) == 0 {
		return Definition{}, invalidf("definition has no jobs")
	}
	return def, nil
}

// LoadDefinition reads and parses a YAML definition file.
func LoadDefinition(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, err
	}
	return ParseDefinition(data)
}

// Specs returns the job specs in lexical order.
func (d Definition) Specs() []JobSpec {
	names := make([]string, 0, len(d.Jobs))
	for name := range d.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]JobSpec, 0, len(names))
	for _, name := range names {
		j := d.Jobs[name]
		specs = append(specs, JobSpec{
			Name:            name,
			Needs:           append([]string(nil), j.Needs...),
			ContinueOnError: j.ContinueOnError,
		})
	}
	return specs
}

// Graph validates the definition and builds its graph.
func (d Definition) Graph() (*Graph, error) {
	return NewGraph(d.Specs())
}

// Marshal encodes the definition as YAML.
func (d Definition) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}
