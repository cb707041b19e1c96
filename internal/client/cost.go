package client

import "strings"

// modelPricing holds USD cost per 1M tokens.
type modelPricing struct {
	inputPerM  float64
	outputPerM float64
}

// pricingTable maps model name prefixes to pricing. Local models cost nothing.
var pricingTable = map[string]modelPricing{
	"gemini-3-flash": {inputPerM: 0.50, outputPerM: 3.00},
	"gemini-3-pro":   {inputPerM: 2.00, outputPerM: 12.00},
	"gemini-2.5":     {inputPerM: 0.30, outputPerM: 2.50},
}

// costUSD estimates the cost for the given usage on the given model.
func costUSD(model string, usage Usage) float64 {
	for prefix, p := range pricingTable {
		if strings.HasPrefix(model, prefix) {
			return float64(usage.InputTokens)/1e6*p.inputPerM +
				float64(usage.OutputTokens)/1e6*p.outputPerM
		}
	}
	return 0
}
