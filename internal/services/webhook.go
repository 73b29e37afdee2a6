// Webhook client for the chat platform's incoming-message endpoint
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/trackbot/internal/shared"
)

// SecretHeader carries the shared webhook secret in both directions.
const SecretHeader = "X-Trackbot-Secret"

// WebhookService posts JSON payloads to a single webhook URL.
type WebhookService struct {
	url        string
	secret     string
	httpClient *http.Client
}

// NewWebhookService creates a webhook client. A nil client uses [http.DefaultClient].
func NewWebhookService(url, secret string, client *http.Client) *WebhookService {
	if client == nil {
		client = http.DefaultClient
	}

	return &WebhookService{
		url:        url,
		secret:     secret,
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

func (w *WebhookService) Name() string {
	return "Webhook"
}

// Post encodes payload as JSON and sends it to the webhook URL.
//
// Non-2xx responses are returned together with an error wrapping [shared.ErrAPIRequest].
func (w *WebhookService) Post(ctx context.Context, payload any) (*APIResponse, error) {
	if w.url == "" {
		return nil, fmt.Errorf("%w: webhook url", shared.ErrMissingConfig)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if w.secret != "" {
		req.Header.Set(SecretHeader, w.secret)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiResp, fmt.Errorf("%w: webhook status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	return apiResp, nil
}
