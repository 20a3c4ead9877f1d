package domain

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelPrice holds per-model token rates in USD per 1,000,000 tokens.
type ModelPrice struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// defaultPrices covers the vision-capable models the provider registry
// ships with. Rates are advisory; billing-grade accuracy is not a goal.
var defaultPrices = map[string]ModelPrice{
	// OpenAI
	"gpt-4o":       {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini":  {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gpt-4.1":      {InputPerMillion: 2.00, OutputPerMillion: 8.00},
	"gpt-4.1-mini": {InputPerMillion: 0.40, OutputPerMillion: 1.60},

	// Anthropic
	"claude-3-5-sonnet-20241022": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-3-5-haiku-20241022":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
	"claude-sonnet-4-20250514":   {InputPerMillion: 3.00, OutputPerMillion: 15.00},

	// Google
	"gemini-2.0-flash": {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	"gemini-2.5-flash": {InputPerMillion: 0.30, OutputPerMillion: 2.50},
	"gemini-2.5-pro":   {InputPerMillion: 1.25, OutputPerMillion: 10.00},
	"gemini-1.5-flash": {InputPerMillion: 0.075, OutputPerMillion: 0.30},
}

// PriceTable maps model identifiers to token rates. The zero value is
// usable and prices everything at zero.
type PriceTable struct {
	prices map[string]ModelPrice
}

// NewPriceTable returns the built-in price table.
func NewPriceTable() *PriceTable {
	prices := make(map[string]ModelPrice, len(defaultPrices))
	for model, price := range defaultPrices {
		prices[model] = price
	}
	return &PriceTable{prices: prices}
}

// LoadPriceOverrides merges model rates from a YAML file into the table,
// replacing built-in entries for models that appear in both. The file
// maps model identifiers to input/output rates per million tokens.
func (t *PriceTable) LoadPriceOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read price table %s: %w", path, err)
	}

	var overrides map[string]ModelPrice
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("failed to parse price table %s: %w", path, err)
	}

	for model, price := range overrides {
		t.prices[model] = price
	}
	return nil
}

// EstimateCost returns the estimated USD cost of the given token usage
// for a model, rounded to 6 decimal places. Unknown models cost zero:
// cost estimation is advisory and must never block a verification.
func (t *PriceTable) EstimateCost(model string, usage TokenUsage) float64 {
	if t == nil || t.prices == nil {
		return 0
	}
	price, ok := t.prices[model]
	if !ok {
		return 0
	}

	cost := float64(usage.InputTokens)/1_000_000*price.InputPerMillion +
		float64(usage.OutputTokens)/1_000_000*price.OutputPerMillion

	return math.Round(cost*1e6) / 1e6
}
