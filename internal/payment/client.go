package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Status values as classified by the provider. The provider owns the
// reconciliation of transferred amounts; we only branch on these codes.
type Status string

const (
	StatusSuccess   Status = "SUCCESS"
	StatusOverpaid  Status = "OVERPAID"
	StatusExpired   Status = "EXPIRED"
	StatusPending   Status = "PENDING"
	StatusUnderpaid Status = "UNDERPAID"
)

// Confirms reports whether the provider considers the transfer settled.
func (s Status) Confirms() bool {
	return s == StatusSuccess || s == StatusOverpaid
}

type CreatePaymentRequest struct {
	UserID     string `json:"user_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	ExternalID string `json:"external_id"`
	WebhookURL string `json:"webhook_url"`
	Motive     string `json:"motive"`
}

type Payment struct {
	ID         string `json:"id"`
	Status     Status `json:"payment_status"`
	CVU        string `json:"cvu"`
	Alias      string `json:"alias"`
	PaymentURL string `json:"payment_url"`
	ExpiresAt  string `json:"expiration_timestamp"`
}

// Client talks to the payment provider's REST API.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client
}

func NewClient(baseURL, clientID, clientSecret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         &http.Client{Timeout: timeout},
	}
}

func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	return c.do(httpReq)
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/"+paymentID, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(httpReq)

	return c.do(httpReq)
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("X-Client-Id", c.clientID)
	req.Header.Set("X-Client-Secret", c.clientSecret)
}

func (c *Client) do(req *http.Request) (*Payment, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("payment provider returned %d", resp.StatusCode)
	}

	var p Payment
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode payment response: %w", err)
	}
	return &p, nil
}
