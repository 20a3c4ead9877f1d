package vision

import (
	"fmt"
	"strings"

	"github.com/fieldproof/fieldproof/internal/domain"
)

// systemPrompt fixes the output contract across all providers: structured
// JSON only, decimal confidences, no prose outside the object. Keeping it
// identical per provider makes responses parseable by one code path.
const systemPrompt = `You are a photo verification assistant. Analyze the supplied photograph against the listed criteria and respond with a single JSON object only, no surrounding prose or markdown.

The JSON object must have this shape:
{
  "criteria_results": [
    {
      "criterion_id": "<id from the criteria list>",
      "passed": <true|false>,
      "observed_value": <what you observed: true/false for boolean criteria, a number for count criteria, a short string for text criteria>,
      "confidence": <decimal between 0.0 and 1.0>,
      "reasoning": "<one sentence explaining the verdict>"
    }
  ],
  "overall_confidence": <decimal between 0.0 and 1.0>,
  "summary": "<one sentence describing the photograph>"
}

Include exactly one entry in criteria_results for every criterion listed, in the same order. Confidence must be a decimal between 0.0 and 1.0, never a percentage.`

// BuildSystemPrompt returns the system instruction establishing the
// structured response contract.
func BuildSystemPrompt() string { return systemPrompt }

// BuildUserPrompt enumerates every configured criterion with its id,
// label, kind, and constraints so the model knows exactly what to report.
func BuildUserPrompt(config domain.VerifyConfig) string {
	var b strings.Builder

	if config.PromptText != "" {
		b.WriteString(config.PromptText)
		b.WriteString("\n\n")
	}

	b.WriteString("Evaluate the photograph against these criteria:\n")
	for i, c := range config.Criteria {
		fmt.Fprintf(&b, "%d. id=%q label=%q type=%s", i+1, c.ID, c.Label, c.Kind)
		if c.Required {
			b.WriteString(" (required)")
		}
		switch c.Kind {
		case domain.KindBoolean:
			if c.Expected != nil {
				fmt.Fprintf(&b, " expected_value=%t", *c.Expected)
			}
		case domain.KindCount:
			if c.Min != nil {
				fmt.Fprintf(&b, " min=%g", *c.Min)
			}
			if c.Max != nil {
				fmt.Fprintf(&b, " max=%g", *c.Max)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("\nReport one result per criterion using the JSON shape from the system instruction.")
	return b.String()
}
