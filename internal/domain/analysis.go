package domain

import "fmt"

// ImageInput identifies the photograph to analyze. Exactly one of URL or
// Base64 must be set; the orchestrator enforces this before any provider
// is invoked. MediaType is optional and only meaningful for inline bytes.
type ImageInput struct {
	URL       string `json:"url,omitempty"`
	Base64    string `json:"base64,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// Validate enforces the exactly-one-source invariant.
func (img ImageInput) Validate() error {
	if img.URL == "" && img.Base64 == "" {
		return fmt.Errorf("%w: either image_url or image_base64 is required", ErrValidation)
	}
	if img.URL != "" && img.Base64 != "" {
		return fmt.Errorf("%w: image_url and image_base64 are mutually exclusive", ErrValidation)
	}
	return nil
}

// Reference returns the value persisted in the image_url column: the URL
// when one exists, otherwise a truncated marker for inline data so the
// audit trail never stores megabytes of base64.
func (img ImageInput) Reference() string {
	if img.URL != "" {
		return img.URL
	}
	data := img.Base64
	if len(data) > 32 {
		data = data[:32]
	}
	return "inline:" + data + "..."
}

// Finding is the provider's raw per-criterion observation before the
// evaluator applies any overrides.
type Finding struct {
	CriterionID   string        `json:"criterion_id" validate:"required"`
	Passed        bool          `json:"passed"`
	ObservedValue ObservedValue `json:"observed_value"`
	Confidence    float64       `json:"confidence" validate:"min=0,max=1"`
	Reasoning     string        `json:"reasoning"`
}

// VisionAnalysis is the structured payload parsed from a provider's
// response. CriteriaResults is mandatory; a response without it is
// malformed and retried by the orchestrator.
type VisionAnalysis struct {
	CriteriaResults   []Finding `json:"criteria_results" validate:"dive"`
	OverallConfidence *float64  `json:"overall_confidence,omitempty" validate:"omitempty,min=0,max=1"`
	Summary           string    `json:"summary,omitempty"`
}

// FindingByID returns the finding for the given criterion id, if reported.
func (a VisionAnalysis) FindingByID(id string) (Finding, bool) {
	for _, f := range a.CriteriaResults {
		if f.CriterionID == id {
			return f, true
		}
	}
	return Finding{}, false
}

// TokenUsage tracks model input/output tokens consumed by provider
// invocations. Failed attempts may still report partial usage, so the
// accumulator is correct even when no attempt succeeds.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another attempt's usage into the running total.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}
