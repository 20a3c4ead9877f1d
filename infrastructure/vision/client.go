// Package vision provides a unified interface over interchangeable
// vision-model backends (OpenAI, Anthropic, Google) for photo
// verification.
//
// The package abstracts provider-specific image handling and response
// formats behind a common interface while adding cross-cutting concerns
// through a middleware pattern. A client builds the verification prompt
// from a criteria config, invokes the remote model once, parses the
// structured response, and reports token usage. Retry policy lives in
// the orchestrator, not here: a failed invocation propagates immediately.
//
// Basic usage:
//
//	client, err := vision.NewClient("openai", vision.ClientConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o-mini",
//	})
//	analysis, usage, err := client.Analyze(ctx, image, config)
package vision

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldproof/fieldproof/internal/domain"
	"github.com/fieldproof/fieldproof/internal/ports"
)

// Request is one prepared provider invocation: the fixed output-contract
// system instruction, the per-criterion user instruction, and the image.
type Request struct {
	// System fixes the structured-output contract.
	System string

	// Prompt enumerates the criteria to evaluate.
	Prompt string

	// Image is the photograph, by URL or inline bytes.
	Image domain.ImageInput

	// MaxTokens bounds the response length.
	MaxTokens int

	// Temperature overrides the provider default when non-nil.
	Temperature *float64
}

// CoreVision is the minimal interface a vision backend must implement.
// It abstracts the raw model invocation so the middleware chain can wrap
// any conforming implementation. Returns the raw textual response and
// provider-reported input/output token counts; counts may be non-zero
// even on error when the provider reports partial usage.
type CoreVision interface {
	DoAnalyze(ctx context.Context, req Request) (response string, tokensIn, tokensOut int, err error)

	// GetModel returns the configured model identifier.
	GetModel() string
}

// Middleware wraps a CoreVision implementation to add cross-cutting
// functionality such as metrics, tracing, pacing, or timeouts without
// modifying provider logic.
type Middleware func(CoreVision) CoreVision

// ClientConfig holds configuration for creating a vision client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model specifies the provider-specific model identifier.
	// Empty selects the provider's default vision model.
	Model string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// Timeout bounds individual requests. Zero means no timeout.
	Timeout time.Duration

	// MaxTokens bounds response length. Zero selects DefaultMaxTokens.
	MaxTokens int

	// Middleware is applied in order, first entry outermost.
	Middleware []Middleware
}

// DefaultMaxTokens bounds the structured response. Criteria findings are
// compact JSON; this leaves generous headroom for reasoning text.
const DefaultMaxTokens = 2048

// Client implements ports.VisionClient. It composes prompt construction,
// the middleware-wrapped provider call, and response parsing. Clients are
// immutable after creation and safe for concurrent reuse.
type Client struct {
	core      CoreVision
	maxTokens int
}

var _ ports.VisionClient = (*Client)(nil)

// NewClient creates a vision client for the given provider type.
// The provider is selected from the factory registry; middleware is
// assembled so the first configured entry is outermost.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown vision provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", providerType, err)
	}

	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Client{core: core, maxTokens: maxTokens}, nil
}

// Analyze invokes the vision model once against the image and criteria
// config and parses the structured findings. Parse failures return
// ErrMalformedResponse wrapped errors; they are not retried here.
func (c *Client) Analyze(
	ctx context.Context,
	image domain.ImageInput,
	config domain.VerifyConfig,
) (domain.VisionAnalysis, domain.TokenUsage, error) {
	req := Request{
		System:    BuildSystemPrompt(),
		Prompt:    BuildUserPrompt(config),
		Image:     image,
		MaxTokens: c.maxTokens,
	}

	raw, tokensIn, tokensOut, err := c.core.DoAnalyze(ctx, req)
	usage := domain.TokenUsage{InputTokens: tokensIn, OutputTokens: tokensOut}
	if err != nil {
		return domain.VisionAnalysis{}, usage, err
	}

	analysis, err := ParseAnalysis(raw)
	if err != nil {
		return domain.VisionAnalysis{}, usage, err
	}

	return analysis, usage, nil
}

// Model returns the model identifier of the underlying provider.
func (c *Client) Model() string { return c.core.GetModel() }

// ProviderFactory creates a CoreVision implementation from configuration.
type ProviderFactory func(ClientConfig) (CoreVision, error)

// providerFactories maps provider type names to their constructors.
// Providers register themselves at init; the map is read-only afterward.
var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a custom vision provider factory,
// enabling additional backends without modifying this package.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
