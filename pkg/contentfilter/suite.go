// Package contentfilter sends the same prompts to agents that differ only in
// their content filter policy and reports where the outcomes diverge.
package contentfilter

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
)

var (
	ErrNoCases    = errors.New("suite has no cases")
	ErrNoVariants = errors.New("suite has no variants")
)

// Case is one prompt sent to every variant
type Case struct {
	ID       string `yaml:"id" json:"id"`
	Prompt   string `yaml:"prompt" json:"prompt"`
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
}

// Variant is an agent configuration under comparison, typically deployed
// against a model with a different content filter policy
type Variant struct {
	Name        string               `yaml:"name" json:"name"`
	Description string               `yaml:"description,omitempty" json:"description,omitempty"`
	Agent       interfaces.AgentSpec `yaml:"agent" json:"agent"`
}

// Suite is a set of cases and the variants to run them against
type Suite struct {
	Name string `yaml:"name" json:"name"`
	// Model and Instructions fill in variants that leave them empty
	Model        string    `yaml:"model,omitempty" json:"model,omitempty"`
	Instructions string    `yaml:"instructions,omitempty" json:"instructions,omitempty"`
	Cases        []Case    `yaml:"cases" json:"cases"`
	Variants     []Variant `yaml:"variants" json:"variants"`
}

// LoadSuite reads a suite from a YAML file. model is the fallback for
// variants and suites that name none.
func LoadSuite(path, model string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	return ParseSuite(data, model)
}

// ParseSuite decodes a YAML suite, applies defaults and validates it
func ParseSuite(data []byte, model string) (*Suite, error) {
	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse suite: %w", err)
	}
	suite.ApplyDefaults(model)
	if err := suite.Validate(); err != nil {
		return nil, err
	}
	return &suite, nil
}

// ApplyDefaults fills case ids, variant agent names, models and instructions.
// model is used when neither the variant nor the suite names one.
func (s *Suite) ApplyDefaults(model string) {
	if s.Model == "" {
		s.Model = model
	}
	for i := range s.Cases {
		if s.Cases[i].ID == "" {
			s.Cases[i].ID = fmt.Sprintf("case-%d", i+1)
		}
	}
	for i := range s.Variants {
		v := &s.Variants[i]
		if v.Agent.Model == "" {
			v.Agent.Model = s.Model
		}
		if v.Agent.Instructions == "" {
			v.Agent.Instructions = s.Instructions
		}
		if v.Agent.Name == "" {
			v.Agent.Name = "filter-" + v.Name
		}
	}
}

// Validate checks the suite can be run
func (s *Suite) Validate() error {
	if len(s.Cases) == 0 {
		return ErrNoCases
	}
	if len(s.Variants) == 0 {
		return ErrNoVariants
	}

	ids := make(map[string]bool, len(s.Cases))
	for _, c := range s.Cases {
		if strings.TrimSpace(c.Prompt) == "" {
			return fmt.Errorf("case %q has an empty prompt", c.ID)
		}
		if ids[c.ID] {
			return fmt.Errorf("duplicate case id %q", c.ID)
		}
		ids[c.ID] = true
	}

	names := make(map[string]bool, len(s.Variants))
	for _, v := range s.Variants {
		if v.Name == "" {
			return errors.New("variant name is required")
		}
		if names[v.Name] {
			return fmt.Errorf("duplicate variant %q", v.Name)
		}
		names[v.Name] = true
		if v.Agent.Model == "" {
			return fmt.Errorf("variant %q has no model", v.Name)
		}
	}
	return nil
}

// VariantNames returns the variant names in suite order
func (s *Suite) VariantNames() []string {
	names := make([]string, len(s.Variants))
	for i, v := range s.Variants {
		names[i] = v.Name
	}
	return names
}
