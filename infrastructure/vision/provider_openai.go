package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fieldproof/fieldproof/internal/domain"
)

// OpenAIDefaultModel is the default OpenAI vision model.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// openAIProvider implements CoreVision for OpenAI's chat completions API.
// OpenAI accepts image URLs directly; inline bytes are embedded as data
// URLs, so no fetch conversion is needed in either direction.
type openAIProvider struct {
	client          *openai.Client
	model           string
	errorClassifier *ErrorClassifier
}

func newOpenAIProvider(config ClientConfig) (CoreVision, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &openAIProvider{
		client:          openai.NewClientWithConfig(clientConfig),
		model:           model,
		errorClassifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

// DoAnalyze sends one vision request to OpenAI and returns the raw
// response with token usage.
func (p *openAIProvider) DoAnalyze(ctx context.Context, req Request) (string, int, int, error) {
	imageURL, err := p.imageURL(req.Image)
	if err != nil {
		return "", 0, 0, err
	}

	chatReq := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: req.System,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: req.Prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	}

	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	if len(resp.Choices) == 0 {
		return "", resp.Usage.PromptTokens, resp.Usage.CompletionTokens, ErrNoResponseChoice
	}

	return resp.Choices[0].Message.Content, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, nil
}

// imageURL returns a URL the API accepts: the caller's URL unchanged, or
// inline bytes embedded as a data URL.
func (p *openAIProvider) imageURL(image domain.ImageInput) (string, error) {
	if image.URL != "" {
		return image.URL, nil
	}

	mediaType := image.MediaType
	if mediaType == "" {
		decoded, detected, err := DecodeBase64(image.Base64, "")
		if err != nil {
			return "", NewProviderError("openai", ErrorTypeBadRequest, 0, "invalid inline image", err)
		}
		_ = decoded
		mediaType = detected
	}

	return fmt.Sprintf("data:%s;base64,%s", mediaType, image.Base64), nil
}

func (p *openAIProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	return NewProviderError("openai", ErrorTypeUnknown, 0, "request failed", err)
}

// GetModel returns the configured OpenAI model.
func (p *openAIProvider) GetModel() string { return p.model }
