package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldproof/fieldproof/internal/domain"
)

func TestParseAnalysis_PlainJSON(t *testing.T) {
	// Given a well-formed response
	raw := `{
		"criteria_results": [
			{"criterion_id": "has_products", "passed": true, "observed_value": true, "confidence": 0.92, "reasoning": "shelf is stocked"}
		],
		"overall_confidence": 0.9,
		"summary": "a stocked retail shelf"
	}`

	// When parsing
	analysis, err := ParseAnalysis(raw)

	// Then the findings come through typed
	require.NoError(t, err)
	require.Len(t, analysis.CriteriaResults, 1)
	finding := analysis.CriteriaResults[0]
	assert.Equal(t, "has_products", finding.CriterionID)
	assert.True(t, finding.Passed)
	b, ok := finding.ObservedValue.Bool()
	require.True(t, ok)
	assert.True(t, b)
	assert.InDelta(t, 0.92, finding.Confidence, 1e-9)
	require.NotNil(t, analysis.OverallConfidence)
	assert.InDelta(t, 0.9, *analysis.OverallConfidence, 1e-9)
}

func TestParseAnalysis_CodeFencedJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "json language fence",
			raw:  "```json\n{\"criteria_results\": [], \"overall_confidence\": 0.8}\n```",
		},
		{
			name: "bare fence",
			raw:  "```\n{\"criteria_results\": [], \"overall_confidence\": 0.8}\n```",
		},
		{
			name: "prose around the fence",
			raw:  "Here is the analysis:\n```json\n{\"criteria_results\": [], \"overall_confidence\": 0.8}\n```\nLet me know if you need more.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis, err := ParseAnalysis(tt.raw)

			require.NoError(t, err, "fenced JSON should parse")
			assert.NotNil(t, analysis.CriteriaResults)
		})
	}
}

func TestParseAnalysis_MixedObservedValueTypes(t *testing.T) {
	// Given findings whose observed values are a bool, a number, and a string
	raw := `{"criteria_results": [
		{"criterion_id": "a", "passed": true, "observed_value": true, "confidence": 0.9},
		{"criterion_id": "b", "passed": true, "observed_value": 4, "confidence": 0.8},
		{"criterion_id": "c", "passed": false, "observed_value": "blurry", "confidence": 0.7}
	]}`

	analysis, err := ParseAnalysis(raw)

	require.NoError(t, err)
	require.Len(t, analysis.CriteriaResults, 3)
	_, boolOK := analysis.CriteriaResults[0].ObservedValue.Bool()
	n, numOK := analysis.CriteriaResults[1].ObservedValue.Number()
	assert.True(t, boolOK)
	assert.True(t, numOK)
	assert.Equal(t, 4.0, n)
	assert.Equal(t, "blurry", analysis.CriteriaResults[2].ObservedValue.String())
}

func TestParseAnalysis_MalformedInputs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty response", raw: ""},
		{name: "whitespace only", raw: "   \n  "},
		{name: "not json", raw: "I could not analyze the photo."},
		{name: "missing criteria_results", raw: `{"overall_confidence": 0.9}`},
		{name: "confidence out of range", raw: `{"criteria_results": [{"criterion_id": "a", "passed": true, "confidence": 1.5}]}`},
		{name: "finding without id", raw: `{"criteria_results": [{"passed": true, "confidence": 0.9}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAnalysis(tt.raw)

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrMalformedResponse,
				"all parse failures must wrap the malformed-response sentinel")
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "no fences", raw: `{"a": 1}`, want: `{"a": 1}`},
		{name: "json fence", raw: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "bare fence", raw: "```\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "fence on one line", raw: "```{\"a\": 1}```", want: `{"a": 1}`},
		{name: "unterminated fence", raw: "```json\n{\"a\": 1}", want: `{"a": 1}`},
		{name: "surrounding whitespace", raw: "  \n{\"a\": 1}\n  ", want: `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFences(tt.raw))
		})
	}
}
