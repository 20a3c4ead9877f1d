package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// maxImageBytes bounds fetched images; providers reject larger payloads
// anyway and unbounded downloads are a memory hazard.
const maxImageBytes = 20 << 20

// ImageFetcher downloads images for backends that only accept inline
// bytes when the caller supplied a URL. One fetcher is shared per
// provider; the underlying client is safe for concurrent use.
type ImageFetcher struct {
	client *resty.Client
}

// NewImageFetcher creates a fetcher with a bounded request timeout.
func NewImageFetcher(timeout time.Duration) *ImageFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0)
	return &ImageFetcher{client: client}
}

// Fetch downloads the image at url and returns its bytes and detected
// media type. Failures classify as network provider errors so the
// orchestrator's retry loop treats them as transient.
func (f *ImageFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, "", NewProviderError("image-fetch", ErrorTypeNetwork, 0,
			fmt.Sprintf("failed to fetch image %s", url), err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, "", NewProviderError("image-fetch", ErrorTypeNetwork, resp.StatusCode(),
			fmt.Sprintf("image fetch returned status %d", resp.StatusCode()), nil)
	}

	body := resp.Body()
	if len(body) == 0 {
		return nil, "", NewProviderError("image-fetch", ErrorTypeNetwork, 0, "image fetch returned empty body", nil)
	}
	if len(body) > maxImageBytes {
		return nil, "", NewProviderError("image-fetch", ErrorTypeBadRequest, 0,
			fmt.Sprintf("image exceeds %d byte limit", maxImageBytes), nil)
	}

	mediaType := resp.Header().Get("Content-Type")
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = http.DetectContentType(body)
	}

	return body, mediaType, nil
}

// encodeBase64 encodes fetched image bytes for providers that require
// inline base64 payloads.
func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes inline image data, tolerating both standard and
// URL-safe alphabets. The media type falls back to content sniffing when
// the caller did not supply one.
func DecodeBase64(data, mediaType string) ([]byte, string, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(data)
	}
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 image data: %w", err)
	}

	if mediaType == "" {
		mediaType = http.DetectContentType(decoded)
	}
	return decoded, mediaType, nil
}
