// Package payment talks to the Razorpay orders API and verifies the
// signatures it sends back after checkout.
package payment

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
	"log"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

// ErrInvalidSignature means the gateway signature did not match.
// Verification fails closed: nothing downstream of a mismatch may
// grant access.
var ErrInvalidSignature = errors.New("invalid payment signature")

// Order is a gateway order as returned by the orders API
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Client is a Razorpay API client
type Client struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Razorpay client
func NewClient(keyID, keySecret string) *Client {
	return &Client{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// KeyID returns the public key id the checkout widget needs
func (c *Client) KeyID() string {
	return c.keyID
}

// CreateOrder creates a gateway order for the given amount in paise
func (c *Client) CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (*Order, error) {
	payload := map[string]any{
		"amount":   amountPaise,
		"currency": currency,
		"receipt":  receipt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[PAYMENT] Order creation request failed: %v", err)
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Printf("[PAYMENT] Gateway returned %d: %s", resp.StatusCode, data)
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	log.Printf("[PAYMENT] Created order %s for %d paise", order.ID, amountPaise)
	return &order, nil
}

// VerifySignature checks the checkout callback signature: HMAC-SHA256
// of "orderID|paymentID" keyed with the secret, hex encoded.
func (c *Client) VerifySignature(orderID, paymentID, signature string) error {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		log.Printf("[PAYMENT] Signature mismatch for order %s payment %s", orderID, paymentID)
		return ErrInvalidSignature
	}
	return nil
}
