// Package domain contains the core value types and pure logic of the photo
// verification engine: verification criteria, provider analysis results,
// the criteria evaluator, and the model cost table.
//
// Nothing in this package performs I/O. The orchestrator in
// internal/application wires these types to providers and storage.
package domain

import (
	"fmt"
	"time"
)

// CriterionKind discriminates the tagged union of criterion payloads.
// The evaluator dispatches on this tag rather than inspecting runtime types.
type CriterionKind string

const (
	// KindBoolean expects a true/false observation, optionally compared
	// against an expected value.
	KindBoolean CriterionKind = "boolean"
	// KindCount expects a numeric observation, optionally bounded by
	// Min and Max.
	KindCount CriterionKind = "count"
	// KindText expects a free-form observation; the provider's verdict
	// passes through unchanged.
	KindText CriterionKind = "text"
)

// Valid reports whether the kind is one of the supported discriminators.
func (k CriterionKind) Valid() bool {
	switch k {
	case KindBoolean, KindCount, KindText:
		return true
	}
	return false
}

// Criterion is one declarative check to apply to a photograph.
// IDs must be unique within a config. Min/Max are only meaningful for
// KindCount; Expected only for KindBoolean.
type Criterion struct {
	ID       string        `json:"id" validate:"required"`
	Label    string        `json:"label" validate:"required"`
	Kind     CriterionKind `json:"kind" validate:"required,oneof=boolean count text"`
	Required bool          `json:"required"`
	Expected *bool         `json:"expected_value,omitempty"`
	Min      *float64      `json:"min,omitempty"`
	Max      *float64      `json:"max,omitempty"`
}

// VerifyConfig is the declarative recipe for a single photo verification:
// what to ask the model, which backend answers, and how strictly to judge
// the findings. It is owned by a Task in internal mode or supplied inline
// per-request in external mode.
type VerifyConfig struct {
	PromptText          string      `json:"prompt_text"`
	Criteria            []Criterion `json:"criteria" validate:"required,min=1,dive"`
	Provider            string      `json:"provider"`
	Model               string      `json:"model"`
	MaxRetries          int         `json:"max_retries" validate:"min=0"`
	FallbackToManual    bool        `json:"fallback_to_manual"`
	ConfidenceThreshold float64     `json:"confidence_threshold" validate:"min=0,max=1"`
}

// Validate checks the structural invariants that the orchestrator depends on.
// The go-playground validator handles field-level constraints; this method
// covers the cross-field rules the tag syntax cannot express.
func (c VerifyConfig) Validate() error {
	if len(c.Criteria) == 0 {
		return fmt.Errorf("%w: config must declare at least one criterion", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.Criteria))
	for _, crit := range c.Criteria {
		if crit.ID == "" {
			return fmt.Errorf("%w: criterion missing id", ErrInvalidConfig)
		}
		if _, dup := seen[crit.ID]; dup {
			return fmt.Errorf("%w: duplicate criterion id %q", ErrInvalidConfig, crit.ID)
		}
		seen[crit.ID] = struct{}{}
		if !crit.Kind.Valid() {
			return fmt.Errorf("%w: criterion %q has unknown kind %q", ErrInvalidConfig, crit.ID, crit.Kind)
		}
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence threshold must be within [0,1]", ErrInvalidConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// VerificationMode distinguishes task ownership for a verification.
type VerificationMode string

const (
	// ModeInternal verifies a task stored by this engine.
	ModeInternal VerificationMode = "internal"
	// ModeExternal verifies against an opaque task reference owned elsewhere.
	ModeExternal VerificationMode = "external"
)

// NotEvaluated is the observed-value sentinel emitted when the provider's
// response omits a configured criterion.
const NotEvaluated = "NOT_EVALUATED"

// CriterionResult is the evaluator's final verdict for one configured
// criterion, after type-specific overrides and the confidence gate.
type CriterionResult struct {
	CriterionID   string  `json:"criterion_id"`
	Label         string  `json:"label"`
	Passed        bool    `json:"passed"`
	ObservedValue string  `json:"observed_value"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
}

// VerificationResult is the immutable outcome of one verification run.
// The persistence layer snapshots it, together with the tenant scope and
// the config used, into a Verification record.
type VerificationResult struct {
	Passed            bool              `json:"passed"`
	OverallConfidence float64           `json:"overall_confidence"`
	CriteriaResults   []CriterionResult `json:"criteria_results"`
	ModelUsed         string            `json:"model_used"`
	ProcessingTimeMs  int64             `json:"processing_time_ms"`
	ProcessedAt       time.Time         `json:"processed_at"`
	RetryCount        int               `json:"retry_count"`
	InputTokens       int               `json:"input_tokens"`
	OutputTokens      int               `json:"output_tokens"`
	EstimatedCostUSD  float64           `json:"estimated_cost_usd"`
	Mode              VerificationMode  `json:"mode"`
	TaskReference     string            `json:"task_reference"`
}
