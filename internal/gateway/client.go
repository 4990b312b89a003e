// Package gateway talks to the external payment gateway: it creates remote
// orders and verifies the signed confirmations clients send back.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/arena-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/arena-backend/pkg/errors"
)

type CreateOrderInput struct {
	Amount     decimal.Decimal
	Currency   string
	ReceiptRef string
	CustomerID uuid.UUID
}

type Order struct {
	ID      string `json:"id"`
	Receipt string `json:"receipt"`
	Amount  int64  `json:"amount"`
	Status  string `json:"status"`
}

type Confirmation struct {
	OrderID   string
	PaymentID string
	Signature string
}

type Client struct {
	keyID      string
	keySecret  string
	baseURL    string
	currency   string
	httpClient *http.Client
}

// NewClient never fails on missing credentials; CreateOrder reports them so
// the rest of the service can boot without a gateway.
func NewClient(cfg config.GatewayConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		keyID:      strings.TrimSpace(cfg.KeyID),
		keySecret:  strings.TrimSpace(cfg.KeySecret),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		currency:   cfg.Currency,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Currency() string {
	if c.currency == "" {
		return "INR"
	}
	return c.currency
}

// MinorUnits converts a decimal amount to the gateway's integer convention.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	if c.keyID == "" || c.keySecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGatewayConfig, "payment gateway credentials missing")
	}
	currency := in.Currency
	if currency == "" {
		currency = c.Currency()
	}
	body, err := json.Marshal(createOrderRequest{
		Amount:   MinorUnits(in.Amount),
		Currency: currency,
		Receipt:  in.ReceiptRef,
		Notes:    map[string]string{"customer_id": in.CustomerID.String()},
	})
	if err != nil {
		return nil, fmt.Errorf("error marshalling order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unreachable")
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var gwErr errorResponse
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &gwErr) == nil && gwErr.Error.Description != "" {
			msg = gwErr.Error.Description
		}
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway rejected order").
			WithDetails(map[string]any{"status": resp.StatusCode, "reason": msg})
	}

	var order Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway order")
	}
	if order.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway order has no id")
	}
	return &order, nil
}

// Sign computes the hex HMAC-SHA256 of "orderId|paymentId".
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature returns an INVALID_SIGNATURE error on mismatch.
func (c *Client) VerifySignature(conf Confirmation) error {
	if c.keySecret == "" {
		return pkgerrors.New(pkgerrors.CodeGatewayConfig, "payment gateway secret missing")
	}
	expected := Sign(c.keySecret, conf.OrderID, conf.PaymentID)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(conf.Signature)))) {
		return pkgerrors.New(pkgerrors.CodeInvalidSignature, "payment signature mismatch")
	}
	return nil
}
