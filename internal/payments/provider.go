// Package payments talks to the hosted checkout processor. The processor owns
// the money movement; this side only opens sessions and asks how they ended.
package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Session statuses reported by the processor.
const (
	StatusOpen    = "open"
	StatusPaid    = "paid"
	StatusExpired = "expired"
)

// SignatureHeader carries the hex HMAC-SHA256 of a webhook body.
const SignatureHeader = "X-Checkout-Signature"

// EventSessionCompleted is the webhook event sent when a session is paid.
const EventSessionCompleted = "checkout.session.completed"

var ErrSessionNotFound = errors.New("checkout session not found")

// CheckoutRequest opens a session for one order.
type CheckoutRequest struct {
	OrderID    string `json:"order_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// Session is the processor's view of a checkout.
type Session struct {
	ID        string     `json:"id"`
	OrderID   string     `json:"order_id"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	Status    string     `json:"status"`
	URL       string     `json:"url"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Paid reports whether the processor captured the payment.
func (s Session) Paid() bool { return s.Status == StatusPaid }

// Event is a webhook delivery.
type Event struct {
	ID   string  `json:"id"`
	Type string  `json:"type"`
	Data Session `json:"data"`
}

// Provider is the processor API the marketplace depends on.
type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (Session, error)
	SessionStatus(ctx context.Context, sessionID string) (Session, error)
}

// HostedProvider is the HTTP client for the processor.
type HostedProvider struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewHostedProvider(baseURL, apiKey string, timeout time.Duration) *HostedProvider {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HostedProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// CreateCheckout opens a session. The idempotency key is derived from the
// order so a repeated request returns the same open session.
func (p *HostedProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Session{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return Session{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", "order-"+req.OrderID)
	return p.do(httpReq)
}

func (p *HostedProvider) SessionStatus(ctx context.Context, sessionID string) (Session, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/sessions/"+sessionID, nil)
	if err != nil {
		return Session{}, err
	}
	return p.do(httpReq)
}

func (p *HostedProvider) do(req *http.Request) (Session, error) {
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.http.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("checkout request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Session{}, fmt.Errorf("read checkout response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return Session{}, ErrSessionNotFound
	}
	if resp.StatusCode >= 300 {
		return Session{}, fmt.Errorf("checkout returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("decode checkout session: %w", err)
	}
	return s, nil
}

// Sign returns the webhook signature of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a webhook signature in constant time.
func Verify(secret string, body []byte, signature string) bool {
	want, err := hex.DecodeString(signature)
	if err != nil || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}
