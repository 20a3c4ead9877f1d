package vision

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fieldproof/fieldproof/internal/domain"
)

// AnthropicDefaultModel is the default Claude vision model.
const AnthropicDefaultModel = "claude-3-5-sonnet-20241022"

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

// anthropicProvider implements CoreVision for Anthropic's Messages API.
// Claude takes images as inline base64 blocks, so URL inputs are fetched
// and encoded transparently.
type anthropicProvider struct {
	client          anthropic.Client
	model           string
	fetcher         *ImageFetcher
	errorClassifier *ErrorClassifier
}

func newAnthropicProvider(config ClientConfig) (CoreVision, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &anthropicProvider{
		client:          anthropic.NewClient(opts...),
		model:           model,
		fetcher:         NewImageFetcher(config.Timeout),
		errorClassifier: &ErrorClassifier{Provider: "anthropic"},
	}, nil
}

// DoAnalyze sends one vision request to Claude and returns the raw
// response with token usage.
func (p *anthropicProvider) DoAnalyze(ctx context.Context, req Request) (string, int, int, error) {
	imageBlock, err := p.imageBlock(ctx, req.Image)
	if err != nil {
		return "", 0, 0, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(req.MaxTokens),
		System:    []anthropic.TextBlockParam{{Text: req.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(imageBlock, anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	var text string
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			text += content.Text
		}
	}

	tokensIn := int(message.Usage.InputTokens)
	tokensOut := int(message.Usage.OutputTokens)

	if text == "" {
		return "", tokensIn, tokensOut, ErrEmptyResponse
	}
	return text, tokensIn, tokensOut, nil
}

// imageBlock converts either input form into the base64 image block the
// Messages API requires, fetching URL inputs first.
func (p *anthropicProvider) imageBlock(ctx context.Context, image domain.ImageInput) (anthropic.ContentBlockParamUnion, error) {
	if image.Base64 != "" {
		mediaType := image.MediaType
		if mediaType == "" {
			_, detected, err := DecodeBase64(image.Base64, "")
			if err != nil {
				return anthropic.ContentBlockParamUnion{},
					NewProviderError("anthropic", ErrorTypeBadRequest, 0, "invalid inline image", err)
			}
			mediaType = detected
		}
		return anthropic.NewImageBlockBase64(mediaType, image.Base64), nil
	}

	data, mediaType, err := p.fetcher.Fetch(ctx, image.URL)
	if err != nil {
		return anthropic.ContentBlockParamUnion{}, err
	}
	return anthropic.NewImageBlockBase64(mediaType, encodeBase64(data)), nil
}

func (p *anthropicProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return p.errorClassifier.ClassifyHTTPError(apiErr.StatusCode, fmt.Sprintf("%v", apiErr), err)
	}

	return NewProviderError("anthropic", ErrorTypeUnknown, 0, "request failed", err)
}

// GetModel returns the configured Claude model.
func (p *anthropicProvider) GetModel() string { return p.model }
