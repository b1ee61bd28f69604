package persona

import (
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/ideaforge/internal/scorecard"
)

// Registry maps each persona to its profile. The set of personas is fixed;
// a registry only changes how they are presented and weighted.
type Registry struct {
	profiles map[Persona]Profile
}

// DefaultRegistry returns a registry with the built-in profiles.
func DefaultRegistry() *Registry {
	r := &Registry{profiles: make(map[Persona]Profile, len(defaultProfiles))}
	for _, p := range defaultProfiles {
		p.Weights = maps.Clone(p.Weights)
		r.profiles[p.Persona] = p
	}
	return r
}

// Profile returns the profile for p. Unknown personas get a bare profile
// named after the identifier so callers never have to handle absence.
func (r *Registry) Profile(p Persona) Profile {
	if pr, ok := r.profiles[p]; ok {
		return pr
	}
	return Profile{Persona: p, DisplayName: string(p)}
}

// DisplayName is shorthand for Profile(p).DisplayName.
func (r *Registry) DisplayName(p Persona) string {
	return r.Profile(p).DisplayName
}

// LinkedCategories returns the two categories p's advice bears on most.
func (r *Registry) LinkedCategories(p Persona) []scorecard.Category {
	return r.Profile(p).TopCategories(2)
}

// OverrideFile is the YAML shape of a persona overrides file:
//
//	personas:
//	  investor:
//	    display_name: "Seed Investor"
//	    icon: "$"
//	    weights:
//	      marketAnalysis: 5
//	      revenue_model: 5
type OverrideFile struct {
	Personas map[string]Override `yaml:"personas"`
}

// Override replaces the non-empty fields of a built-in profile.
type Override struct {
	DisplayName string         `yaml:"display_name,omitempty"`
	Icon        string         `yaml:"icon,omitempty"`
	Focus       string         `yaml:"focus,omitempty"`
	Weights     map[string]int `yaml:"weights,omitempty"`
}

// LoadRegistry returns the default registry with the overrides in path
// applied. An empty path yields the default registry.
func LoadRegistry(path string) (*Registry, error) {
	r := DefaultRegistry()
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading persona overrides: %w", err)
	}
	var file OverrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing persona overrides: %w", err)
	}
	if err := r.Apply(file); err != nil {
		return nil, fmt.Errorf("invalid persona overrides: %w", err)
	}
	return r, nil
}

// Apply merges overrides into the registry. Unknown personas or categories
// and weights outside 0..5 are rejected and leave r unchanged.
func (r *Registry) Apply(file OverrideFile) error {
	next := make(map[Persona]Profile, len(r.profiles))
	for k, v := range r.profiles {
		next[k] = v
	}

	for name, o := range file.Personas {
		p, err := Parse(name)
		if err != nil {
			return err
		}
		pr := next[p]
		if o.DisplayName != "" {
			pr.DisplayName = o.DisplayName
		}
		if o.Icon != "" {
			pr.Icon = o.Icon
		}
		if o.Focus != "" {
			pr.Focus = o.Focus
		}
		if len(o.Weights) > 0 {
			weights := make(map[scorecard.Category]int, len(o.Weights))
			for key, w := range o.Weights {
				c, err := scorecard.Parse(key)
				if err != nil {
					return fmt.Errorf("persona %s: %w", p, err)
				}
				if w < 0 || w > 5 {
					return fmt.Errorf("persona %s: weight for %s must be between 0 and 5, got %d", p, c, w)
				}
				weights[c] = w
			}
			pr.Weights = weights
		}
		next[p] = pr
	}

	r.profiles = next
	return nil
}
