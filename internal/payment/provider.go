// Package payment holds the thin client for the external payment
// provider.  The protocol is deliberately opaque to the rest of the
// service: create a one-time charge, get a redirect URL back, and wait
// for the asynchronous success callback on the payments webhook.
package payment

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "time"

    "github.com/talebm/tutoring-enrollment/internal/enrollment"
)

// Client creates charges against the provider's checkout API.  Every
// call is bounded by the configured timeout: an unanswered request is
// treated as not-yet-succeeded and surfaces as an error, never as an
// assumed success.
type Client struct {
    BaseURL    string
    APIKey     string
    SuccessURL string
    CancelURL  string
    http       *http.Client
}

// NewClient constructs a Client with the given request timeout.
func NewClient(baseURL, apiKey, successURL, cancelURL string, timeout time.Duration) *Client {
    if timeout <= 0 {
        timeout = 10 * time.Second
    }
    return &Client{
        BaseURL:    baseURL,
        APIKey:     apiKey,
        SuccessURL: successURL,
        CancelURL:  cancelURL,
        http:       &http.Client{Timeout: timeout},
    }
}

type chargeBody struct {
    Reference   string   `json:"reference"`
    AmountCents uint32   `json:"amount_cents"`
    LineItems   []string `json:"line_items"`
    SuccessURL  string   `json:"success_url"`
    CancelURL   string   `json:"cancel_url"`
}

type chargeResp struct {
    RedirectURL string `json:"redirect_url"`
}

// CreateCharge stages a one-time charge and returns the hosted
// checkout URL the student should be redirected to.
func (c *Client) CreateCharge(ctx context.Context, req enrollment.ChargeRequest) (string, error) {
    body, err := json.Marshal(chargeBody{
        Reference:   req.SessionToken,
        AmountCents: req.AmountCents,
        LineItems:   req.LineItems,
        SuccessURL:  c.SuccessURL,
        CancelURL:   c.CancelURL,
    })
    if err != nil {
        return "", err
    }
    httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/charges", bytes.NewReader(body))
    if err != nil {
        return "", err
    }
    httpReq.Header.Set("Content-Type", "application/json")
    httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

    resp, err := c.http.Do(httpReq)
    if err != nil {
        return "", fmt.Errorf("payment provider unreachable: %w", err)
    }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
        return "", fmt.Errorf("payment provider returned status %d", resp.StatusCode)
    }
    var out chargeResp
    if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
        return "", fmt.Errorf("decode provider response: %w", err)
    }
    if out.RedirectURL == "" {
        return "", fmt.Errorf("provider response missing redirect_url")
    }
    return out.RedirectURL, nil
}

// compile-time interface check
var _ enrollment.PaymentProvider = (*Client)(nil)
