package domain

// Evaluation is the outcome of judging a provider's findings against a
// config: one result per configured criterion plus the overall verdict.
type Evaluation struct {
	Results           []CriterionResult
	Passed            bool
	OverallConfidence float64
}

// Evaluate maps a provider's raw findings and a verification config to
// typed pass/fail results and an overall verdict. It is a pure function:
// the orchestrator never retries it, and a defect here is fatal rather
// than downgraded to a provider failure.
//
// Rules, applied per criterion in config order:
//   - findings the provider omitted fail with confidence 0 and the
//     NOT_EVALUATED sentinel;
//   - count criteria with bounds force failure when the observed number
//     falls outside [min, max], regardless of the provider's verdict;
//   - boolean criteria with an expected value replace the provider's
//     verdict with observed == expected;
//   - text criteria pass the provider's verdict through unchanged;
//   - any criterion whose confidence falls below the config threshold is
//     forced to fail (the confidence gate).
//
// The overall verdict passes only when the overall confidence meets the
// threshold and every required criterion passed. Optional criteria are
// reported but never block the verdict.
func Evaluate(analysis VisionAnalysis, config VerifyConfig) Evaluation {
	results := make([]CriterionResult, 0, len(config.Criteria))
	requiredPassed := true

	for _, criterion := range config.Criteria {
		result := evaluateCriterion(analysis, criterion, config.ConfidenceThreshold)
		if criterion.Required && !result.Passed {
			requiredPassed = false
		}
		results = append(results, result)
	}

	overall := overallConfidence(analysis, results)

	return Evaluation{
		Results:           results,
		Passed:            overall >= config.ConfidenceThreshold && requiredPassed,
		OverallConfidence: overall,
	}
}

func evaluateCriterion(analysis VisionAnalysis, criterion Criterion, threshold float64) CriterionResult {
	finding, reported := analysis.FindingByID(criterion.ID)
	if !reported {
		return CriterionResult{
			CriterionID:   criterion.ID,
			Label:         criterion.Label,
			Passed:        false,
			ObservedValue: NotEvaluated,
			Confidence:    0,
			Reasoning:     "not evaluated",
		}
	}

	passed := finding.Passed

	switch criterion.Kind {
	case KindCount:
		if criterion.Min != nil || criterion.Max != nil {
			n, ok := finding.ObservedValue.Number()
			if !ok {
				passed = false
			} else if criterion.Min != nil && n < *criterion.Min {
				passed = false
			} else if criterion.Max != nil && n > *criterion.Max {
				passed = false
			}
		}
	case KindBoolean:
		if criterion.Expected != nil {
			observed, ok := finding.ObservedValue.Bool()
			passed = ok && observed == *criterion.Expected
		}
	case KindText:
		// Provider verdict and reasoning pass through unchanged.
	}

	// Confidence gate applies to every kind, after type-specific overrides.
	if finding.Confidence < threshold {
		passed = false
	}

	return CriterionResult{
		CriterionID:   criterion.ID,
		Label:         criterion.Label,
		Passed:        passed,
		ObservedValue: finding.ObservedValue.String(),
		Confidence:    finding.Confidence,
		Reasoning:     finding.Reasoning,
	}
}

// overallConfidence prefers the provider's self-reported overall value and
// falls back to the mean confidence across all configured criteria, where
// criteria the provider skipped contribute zero.
func overallConfidence(analysis VisionAnalysis, results []CriterionResult) float64 {
	if analysis.OverallConfidence != nil {
		return *analysis.OverallConfidence
	}
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Confidence
	}
	return sum / float64(len(results))
}
