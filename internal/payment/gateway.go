package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

var ErrGatewayUnavailable = errors.New("payment gateway is unavailable")

type SessionRequest struct {
	OrderID        uuid.UUID
	Amount         float64
	Description    string
	IdempotencyKey string
}

type Session struct {
	Ref string `json:"id"`
	URL string `json:"url"`
}

// Gateway creates provider-side checkout sessions. Calls are idempotent on
// the request key and carry the client timeout, failing closed so the order
// stays pending when the provider cannot be reached.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	body := map[string]any{
		"order_id":    req.OrderID.String(),
		"amount":      req.Amount,
		"currency":    "usd",
		"description": req.Description,
	}

	var session Session
	if err := c.post(ctx, "/v1/checkout/sessions", req.IdempotencyKey, body, &session); err != nil {
		return nil, err
	}
	if session.Ref == "" {
		return nil, fmt.Errorf("%w: session response missing id", ErrGatewayUnavailable)
	}

	return &session, nil
}

func (c *Client) IssueRefund(ctx context.Context, orderID uuid.UUID, amount float64, idempotencyKey string) error {
	body := map[string]any{
		"order_id": orderID.String(),
		"amount":   amount,
	}

	return c.post(ctx, "/v1/refunds", idempotencyKey, body, nil)
}

func (c *Client) post(ctx context.Context, path, idempotencyKey string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("gateway: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("gateway: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", ErrGatewayUnavailable, err)
		}
	}

	return nil
}
