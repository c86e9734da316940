package config

import "github.com/promptdeck/prism/internal/types"

type ModelsConfig struct {
	Models  map[string]ModelMapping `yaml:"models"`
	Pricing map[string]PriceEntry   `yaml:"pricing"`
}

// ModelMapping routes a public model name to a provider and lists which
// operations the model serves.
type ModelMapping struct {
	DisplayName string   `yaml:"display_name"`
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	Operations  []string `yaml:"operations"`
}

// Supports reports whether the mapping serves the given operation.
func (m ModelMapping) Supports(op types.Operation) bool {
	for _, o := range m.Operations {
		if o == string(op) {
			return true
		}
	}
	return false
}

// PriceEntry holds per-token USD rates. Pricing is configuration, not logic:
// changing a rate is a table edit in models.yaml.
type PriceEntry struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}
