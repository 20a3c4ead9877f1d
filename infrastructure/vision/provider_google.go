package vision

import (
	"context"
	"errors"
	"fmt"
	"math"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/fieldproof/fieldproof/internal/domain"
)

// GoogleDefaultModel is the default Gemini vision model.
const GoogleDefaultModel = "gemini-2.0-flash"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements CoreVision for Google's Gemini API.
// Gemini takes images as inline byte parts, so URL inputs are fetched
// transparently. The API has no separate system role; the system
// instruction goes through GenerateContentConfig.
type googleProvider struct {
	client          *genai.Client
	model           string
	fetcher         *ImageFetcher
	errorClassifier *ErrorClassifier
}

func newGoogleProvider(config ClientConfig) (CoreVision, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		client:          client,
		model:           model,
		fetcher:         NewImageFetcher(config.Timeout),
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

// DoAnalyze sends one vision request to Gemini and returns the raw
// response with token usage.
func (p *googleProvider) DoAnalyze(ctx context.Context, req Request) (string, int, int, error) {
	data, mediaType, err := p.imageBytes(ctx, req.Image)
	if err != nil {
		return "", 0, 0, err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mediaType),
			genai.NewPartFromText(req.Prompt),
		}, genai.RoleUser),
	}

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
	}
	if req.MaxTokens > 0 {
		if req.MaxTokens > math.MaxInt32 {
			genConfig.MaxOutputTokens = math.MaxInt32
		} else {
			genConfig.MaxOutputTokens = int32(req.MaxTokens)
		}
	}
	if req.Temperature != nil {
		genConfig.Temperature = genai.Ptr(float32(*req.Temperature))
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, genConfig)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	var tokensIn, tokensOut int
	if resp.UsageMetadata != nil {
		tokensIn = int(resp.UsageMetadata.PromptTokenCount)
		tokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	text := resp.Text()
	if text == "" {
		return "", tokensIn, tokensOut, ErrEmptyResponse
	}
	return text, tokensIn, tokensOut, nil
}

// imageBytes converts either input form into inline bytes, fetching URL
// inputs first.
func (p *googleProvider) imageBytes(ctx context.Context, image domain.ImageInput) ([]byte, string, error) {
	if image.Base64 != "" {
		data, mediaType, err := DecodeBase64(image.Base64, image.MediaType)
		if err != nil {
			return nil, "", NewProviderError("google", ErrorTypeBadRequest, 0, "invalid inline image", err)
		}
		return data, mediaType, nil
	}
	return p.fetcher.Fetch(ctx, image.URL)
}

func (p *googleProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" && len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Message
		}
		if isContentPolicyError(apiErr) {
			return NewProviderError("google", ErrorTypeContentPolicy, apiErr.Code,
				"request blocked by safety filters", err)
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.Code, message, err)
	}

	return NewProviderError("google", ErrorTypeUnknown, 0, "request failed", err)
}

// isContentPolicyError detects safety-filter rejections, which are not
// retryable no matter how transient they look.
func isContentPolicyError(apiErr *googleapi.Error) bool {
	for _, e := range apiErr.Errors {
		if e.Reason == "SAFETY" || e.Reason == "BLOCKED" {
			return true
		}
	}
	return false
}

// GetModel returns the configured Gemini model.
func (p *googleProvider) GetModel() string { return p.model }
