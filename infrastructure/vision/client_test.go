package vision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldproof/fieldproof/internal/domain"
)

func testConfig() domain.VerifyConfig {
	return domain.VerifyConfig{
		Criteria: []domain.Criterion{
			{ID: "has_products", Label: "Products visible", Kind: domain.KindBoolean, Required: true},
		},
		ConfidenceThreshold: 0.7,
	}
}

func TestClient_AnalyzeParsesResponse(t *testing.T) {
	// Given a core returning a valid structured response
	mock := NewMockCoreVision()
	mock.Response = `{"criteria_results": [{"criterion_id": "has_products", "passed": true, "observed_value": true, "confidence": 0.9}], "overall_confidence": 0.88}`
	client := &Client{core: mock, maxTokens: DefaultMaxTokens}

	// When analyzing
	analysis, usage, err := client.Analyze(context.Background(), domain.ImageInput{URL: "https://example.com/a.jpg"}, testConfig())

	// Then findings and token usage come through
	require.NoError(t, err)
	require.Len(t, analysis.CriteriaResults, 1)
	assert.Equal(t, "has_products", analysis.CriteriaResults[0].CriterionID)
	assert.Equal(t, 10, usage.InputTokens)
	assert.Equal(t, 20, usage.OutputTokens)
}

func TestClient_AnalyzeBuildsPrompts(t *testing.T) {
	// Given any successful core
	mock := NewMockCoreVision()
	mock.Response = `{"criteria_results": []}`
	client := &Client{core: mock, maxTokens: 1234}

	// When analyzing
	_, _, err := client.Analyze(context.Background(), domain.ImageInput{URL: "https://example.com/a.jpg"}, testConfig())
	require.NoError(t, err)

	// Then the request carries the contract, the criteria, and the budget
	req := mock.LastRequest
	assert.Equal(t, BuildSystemPrompt(), req.System)
	assert.Contains(t, req.Prompt, `id="has_products"`)
	assert.Equal(t, "https://example.com/a.jpg", req.Image.URL)
	assert.Equal(t, 1234, req.MaxTokens)
}

func TestClient_AnalyzeReturnsUsageOnProviderError(t *testing.T) {
	// Given a core that fails but reports partial usage
	mock := NewMockCoreVision()
	mock.Error = NewProviderError("openai", ErrorTypeServerError, 503, "upstream overloaded", nil)
	client := &Client{core: mock, maxTokens: DefaultMaxTokens}

	// When analyzing
	_, usage, err := client.Analyze(context.Background(), domain.ImageInput{URL: "https://example.com/a.jpg"}, testConfig())

	// Then the error propagates without hiding the usage
	require.Error(t, err)
	assert.Zero(t, usage.InputTokens+usage.OutputTokens)
}

func TestClient_AnalyzeMalformedResponse(t *testing.T) {
	// Given a core returning prose instead of JSON
	mock := NewMockCoreVision()
	mock.Response = "I see a shelf with products on it."
	client := &Client{core: mock, maxTokens: DefaultMaxTokens}

	// When analyzing
	_, usage, err := client.Analyze(context.Background(), domain.ImageInput{URL: "https://example.com/a.jpg"}, testConfig())

	// Then the malformed-response sentinel surfaces with the usage intact
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	assert.Equal(t, 10, usage.InputTokens, "usage was consumed even though parsing failed")
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient("openai", ClientConfig{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyAPIKey)
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient("nonexistent", ClientConfig{APIKey: "key"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown vision provider")
}

func TestNewClient_MiddlewareOrder(t *testing.T) {
	// Given two middleware entries recording their wrap order
	var order []string
	record := func(name string) Middleware {
		return func(next CoreVision) CoreVision {
			return &recordingVision{next: next, name: name, order: &order}
		}
	}

	RegisterProviderFactory("order-test", func(config ClientConfig) (CoreVision, error) {
		return NewMockCoreVision(), nil
	})
	client, err := NewClient("order-test", ClientConfig{
		APIKey:     "key",
		Middleware: []Middleware{record("outer"), record("inner")},
	})
	require.NoError(t, err)

	// When analyzing
	_, _, err = client.Analyze(context.Background(), domain.ImageInput{URL: "https://example.com/a.jpg"}, testConfig())
	require.NoError(t, err)

	// Then the first configured entry runs outermost
	assert.Equal(t, []string{"outer", "inner"}, order)
}

type recordingVision struct {
	next  CoreVision
	name  string
	order *[]string
}

func (r *recordingVision) DoAnalyze(ctx context.Context, req Request) (string, int, int, error) {
	*r.order = append(*r.order, r.name)
	return r.next.DoAnalyze(ctx, req)
}

func (r *recordingVision) GetModel() string { return r.next.GetModel() }
