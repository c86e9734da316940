// Package normalize reduces provider responses to the gateway's uniform
// result shape and prices token usage in USD.
package normalize

import (
	"strings"

	"github.com/promptdeck/prism/internal/config"
	"github.com/promptdeck/prism/internal/types"
)

// Normalizer prices results against a per-token rate table keyed by the
// provider-native model name. The table is read through an accessor on
// every estimate so a models.yaml reload takes effect immediately.
// Models without a pricing entry cost zero.
type Normalizer struct {
	pricing func() map[string]config.PriceEntry
}

func New(pricing func() map[string]config.PriceEntry) *Normalizer {
	return &Normalizer{pricing: pricing}
}

// NewStatic wraps a fixed rate table.
func NewStatic(pricing map[string]config.PriceEntry) *Normalizer {
	return New(func() map[string]config.PriceEntry { return pricing })
}

// EstimateCost returns the USD cost of the given usage for a model.
// Zero usage costs zero; a larger completion never costs less.
func (n *Normalizer) EstimateCost(model string, usage types.Usage) float64 {
	entry, ok := n.lookup(model)
	if !ok {
		return 0
	}
	return float64(usage.PromptTokens)*entry.Input + float64(usage.CompletionTokens)*entry.Output
}

// Apply fills in the estimated cost and trims surrounding whitespace from
// text results. It mutates and returns the same result for chaining.
func (n *Normalizer) Apply(res *types.Result) *types.Result {
	if res == nil {
		return nil
	}
	if res.Kind == types.KindText {
		res.Text = strings.TrimSpace(res.Text)
	}
	res.EstimatedCostUSD = n.EstimateCost(res.Model, res.Usage)
	return res
}

// lookup matches the exact model name first, then the longest matching
// prefix, so dated snapshots (gpt-4o-2024-08-06) price as their family
// and gpt-4o-mini variants never fall into the gpt-4o bucket.
func (n *Normalizer) lookup(model string) (config.PriceEntry, bool) {
	pricing := n.pricing()
	if entry, ok := pricing[model]; ok {
		return entry, true
	}
	var best string
	var bestEntry config.PriceEntry
	for name, entry := range pricing {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
			bestEntry = entry
		}
	}
	return bestEntry, best != ""
}
