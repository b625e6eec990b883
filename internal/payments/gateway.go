// Package payments talks to the external payment gateway's refund API.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Gateway is an HTTP client for the payment provider. Refunds POST to
// {BaseURL}/refunds with the cancellation request id as the idempotency
// key, so a retried call after a timeout returns the original transaction
// instead of refunding twice.
type Gateway struct {
	BaseURL string
	client  *http.Client
}

// NewGateway returns a Gateway for the given base URL.
func NewGateway(baseURL string) *Gateway {
	return &Gateway{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type refundRequest struct {
	PaymentRef  string `json:"payment_ref"`
	AmountCents int64  `json:"amount_cents"`
}

type refundResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// Refund asks the gateway to return amountCents to the original payment
// method. requestID is sent as the Idempotency-Key header.
func (g *Gateway) Refund(ctx context.Context, paymentRef string, amountCents int64, requestID string) (string, error) {
	body, err := json.Marshal(refundRequest{PaymentRef: paymentRef, AmountCents: amountCents})
	if err != nil {
		return "", fmt.Errorf("marshal refund request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/refunds", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build refund request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", requestID)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("gateway returned %d: %s", resp.StatusCode, raw)
	}

	var out refundResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode gateway response: %w", err)
	}
	if out.TransactionID == "" {
		return "", fmt.Errorf("gateway accepted refund but returned no transaction id (status %q)", out.Status)
	}
	return out.TransactionID, nil
}
