// Package payment talks to the payment authorization gateway. The gateway is
// opaque: we create an intent for an amount, confirm that the client completed
// authorization, and later capture or release the held funds.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/companionly/booking-server-go/internal/config"
)

var (
	// ErrIntentNotFound means the gateway does not know the intent id.
	ErrIntentNotFound = errors.New("payment intent not found")
	// ErrIntentConsumed means the intent was already attached to a booking
	// or already captured/released.
	ErrIntentConsumed = errors.New("payment intent already consumed")
)

type Intent struct {
	ID           string `json:"intentId"`
	ClientSecret string `json:"clientSecret"`
	Status       string `json:"status"`
}

type Client interface {
	// CreateIntent authorizes a hold for the given amount and returns the
	// handle the client uses to complete authorization.
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (*Intent, error)
	// ConfirmIntent verifies the intent is authorized and marks it consumed,
	// so the same handle cannot back two bookings.
	ConfirmIntent(ctx context.Context, intentID string) (*Intent, error)
	Capture(ctx context.Context, intentID string) error
	Release(ctx context.Context, intentID string) error
}

type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: config.PaymentGatewayTimeout,
		},
	}
}

func (c *HTTPClient) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string) (*Intent, error) {
	var intent Intent
	err := c.post(ctx, "/v1/intents", map[string]any{
		"amount":   amount,
		"currency": currency,
	}, &intent)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("intentId", intent.ID).
		Str("amount", amount.String()).
		Str("currency", currency).
		Msg("payment intent created")

	return &intent, nil
}

func (c *HTTPClient) ConfirmIntent(ctx context.Context, intentID string) (*Intent, error) {
	var intent Intent
	err := c.post(ctx, fmt.Sprintf("/v1/intents/%s/confirm", intentID), nil, &intent)
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (c *HTTPClient) Capture(ctx context.Context, intentID string) error {
	return c.post(ctx, fmt.Sprintf("/v1/intents/%s/capture", intentID), nil, nil)
}

func (c *HTTPClient) Release(ctx context.Context, intentID string) error {
	return c.post(ctx, fmt.Sprintf("/v1/intents/%s/release", intentID), nil, nil)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any, out any) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrIntentNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrIntentConsumed
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
