package vision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fieldproof/fieldproof/internal/domain"
)

var analysisValidator = validator.New()

// ParseAnalysis parses a provider's raw textual response into a
// VisionAnalysis. Models frequently wrap JSON in markdown code fences
// despite instructions; enclosing fences are stripped before parsing.
// Unparseable output or a missing criteria_results collection returns an
// error wrapping domain.ErrMalformedResponse, which the orchestrator
// treats as a retryable provider failure.
func ParseAnalysis(raw string) (domain.VisionAnalysis, error) {
	cleaned := StripCodeFences(raw)
	if cleaned == "" {
		return domain.VisionAnalysis{}, fmt.Errorf("%w: empty response body", domain.ErrMalformedResponse)
	}

	var analysis domain.VisionAnalysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return domain.VisionAnalysis{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	if analysis.CriteriaResults == nil {
		return domain.VisionAnalysis{}, fmt.Errorf("%w: missing criteria_results", domain.ErrMalformedResponse)
	}

	if err := analysisValidator.Struct(analysis); err != nil {
		return domain.VisionAnalysis{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	return analysis, nil
}

// StripCodeFences removes an enclosing markdown code fence, with or
// without a language identifier, returning the trimmed inner content.
// Text without fences is returned trimmed.
func StripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)

	start := strings.Index(s, "```")
	if start == -1 {
		return s
	}

	// Skip the opening fence and an optional language identifier.
	rest := s[start+3:]
	if nl := strings.Index(rest, "\n"); nl != -1 {
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine != "" && !strings.HasPrefix(firstLine, "{") && !strings.HasPrefix(firstLine, "[") {
			rest = rest[nl+1:]
		} else if firstLine == "" {
			rest = rest[nl+1:]
		}
	}

	if end := strings.Index(rest, "```"); end != -1 {
		rest = rest[:end]
	}

	return strings.TrimSpace(rest)
}
