package vision

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fieldproof/fieldproof/internal/ports"
)

// ProviderConfig holds per-provider registry settings.
type ProviderConfig struct {
	// Type selects the provider implementation (openai, anthropic, google).
	Type string

	// EnvVar names the environment variable holding the API key.
	EnvVar string

	// DefaultModel is used when a verification config omits the model.
	DefaultModel string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// Middleware is applied to clients of this provider in addition to
	// the registry-wide defaults.
	Middleware []Middleware
}

// DefaultProviders is the standard provider set with vision-capable
// default models.
var DefaultProviders = map[string]ProviderConfig{
	"openai": {
		Type:         "openai",
		EnvVar:       "OPENAI_API_KEY",
		DefaultModel: OpenAIDefaultModel,
	},
	"anthropic": {
		Type:         "anthropic",
		EnvVar:       "ANTHROPIC_API_KEY",
		DefaultModel: AnthropicDefaultModel,
	},
	"google": {
		Type:         "google",
		EnvVar:       "GOOGLE_API_KEY",
		DefaultModel: GoogleDefaultModel,
	},
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Providers defines the available providers. Nil selects
	// DefaultProviders.
	Providers map[string]ProviderConfig

	// DefaultProvider is used when a verification config omits the
	// provider.
	DefaultProvider string

	// DefaultTimeout bounds individual provider requests.
	DefaultTimeout time.Duration

	// DefaultMiddleware is applied to every client, outermost first.
	DefaultMiddleware []Middleware
}

// Registry resolves vision clients by provider and model. It is
// constructed once at process start and passed by reference wherever a
// client is needed; there is no hidden package-level client state.
// Clients are created lazily, cached per provider/model pair, and
// immutable after creation, making them safe for concurrent reuse.
type Registry struct {
	providers         map[string]ProviderConfig
	defaultProvider   string
	defaultTimeout    time.Duration
	defaultMiddleware []Middleware

	mu      sync.RWMutex
	clients map[string]*Client
}

var _ ports.VisionRegistry = (*Registry)(nil)

// NewRegistry creates a provider registry.
func NewRegistry(config RegistryConfig) (*Registry, error) {
	providers := config.Providers
	if providers == nil {
		providers = DefaultProviders
	}

	if config.DefaultProvider == "" {
		return nil, fmt.Errorf("default provider cannot be empty")
	}
	if _, ok := providers[config.DefaultProvider]; !ok {
		return nil, fmt.Errorf("default provider %q not found in provider configuration", config.DefaultProvider)
	}

	return &Registry{
		providers:         providers,
		defaultProvider:   config.DefaultProvider,
		defaultTimeout:    config.DefaultTimeout,
		defaultMiddleware: config.DefaultMiddleware,
		clients:           make(map[string]*Client),
	}, nil
}

// Client returns the cached client for a provider/model pair, creating it
// on first use. An empty provider selects the registry default; an empty
// model selects the provider's default model.
func (r *Registry) Client(provider, model string) (ports.VisionClient, error) {
	if provider == "" {
		provider = r.defaultProvider
	}

	providerConfig, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown vision provider %q", provider)
	}
	if model == "" {
		model = providerConfig.DefaultModel
	}

	key := provider + "/" + model

	r.mu.RLock()
	if client, ok := r.clients[key]; ok {
		r.mu.RUnlock()
		return client, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[key]; ok {
		return client, nil
	}

	apiKey := os.Getenv(providerConfig.EnvVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable not set for provider %q", providerConfig.EnvVar, provider)
	}

	middleware := append([]Middleware{}, r.defaultMiddleware...)
	middleware = append(middleware, providerConfig.Middleware...)

	client, err := NewClient(providerConfig.Type, ClientConfig{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    providerConfig.BaseURL,
		Timeout:    r.defaultTimeout,
		Middleware: middleware,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", provider, err)
	}

	r.clients[key] = client
	return client, nil
}
