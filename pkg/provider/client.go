package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/verdant-ai/verdant/pkg/config"
	"github.com/verdant-ai/verdant/pkg/models"
)

// maxResponseBytes bounds how much of an endpoint response is read.
const maxResponseBytes = 1 << 20

// refusalPattern matches completions where the model declines to answer.
var refusalPattern = regexp.MustCompile(`(?i)^\W*(i'?m sorry|i am sorry|sorry, (but )?i|i cannot|i can'?t|i am unable|i'?m unable|i'?m not able|as an ai)\b`)

// Client posts inference requests to endpoints.
type Client struct {
	http *http.Client
}

// NewClient creates a Client. A nil httpClient selects a pooled default
// transport; per-attempt deadlines come from the caller's context.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   2,
				IdleConnTimeout:       30 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		}
	}
	return &Client{http: httpClient}
}

// Encode builds the JSON body for req. Bodies larger than maxBodyBytes are
// rejected with a content_too_large error.
func Encode(req models.IdentificationRequest, img *Image, model string, maxBodyBytes int) ([]byte, error) {
	parts := []models.ContentPart{{Type: "text", Text: Prompt(req.Feature)}}
	if ctx := strings.TrimSpace(req.ContextText); ctx != "" {
		parts = append(parts, models.ContentPart{Type: "text", Text: ctx})
	}
	if img != nil {
		part := models.ContentPart{Type: "image", Image: &models.ImagePart{URL: img.URL}}
		if len(img.Data) > 0 {
			part.Image = &models.ImagePart{
				MediaType: img.MediaType,
				Data:      base64.StdEncoding.EncodeToString(img.Data),
			}
		}
		parts = append(parts, part)
	}

	body, err := json.Marshal(models.InferenceRequest{
		Model:    model,
		Messages: []models.ChatMessage{{Role: "user", Content: parts}},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if maxBodyBytes > 0 && len(body) > maxBodyBytes {
		return nil, tooLarge("request body", len(body), maxBodyBytes)
	}
	return body, nil
}

// Complete posts body to ep and returns the completion text. Every failure
// is returned as an *Error.
func (c *Client) Complete(ctx context.Context, ep config.ProviderConfig, body []byte, requestID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return "", newError(KindTransport, 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Idempotency-Key", requestID)
	if ep.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", classifyTransport(ctx, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newError(KindProvider, resp.StatusCode, fmt.Errorf("%s", snippet(respBody)))
	}

	var envelope models.InferenceResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return "", newError(KindMalformed, resp.StatusCode, fmt.Errorf("decode envelope: %w", err))
	}
	if envelope.Completion == nil {
		return "", newError(KindMalformed, resp.StatusCode, errors.New("envelope has no completion"))
	}

	text := strings.TrimSpace(*envelope.Completion)
	if text == "" {
		return "", newError(KindEmpty, resp.StatusCode, nil)
	}
	if IsRefusal(text) {
		return "", newError(KindRefused, resp.StatusCode, fmt.Errorf("%s", snippet([]byte(text))))
	}
	return text, nil
}

// IsRefusal reports whether text is the model declining to answer.
func IsRefusal(text string) bool {
	return refusalPattern.MatchString(strings.TrimSpace(text))
}

func classifyTransport(ctx context.Context, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(KindTimeout, 0, err)
	}
	return newError(KindTransport, 0, err)
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
