// Package payment talks to the payment side of the content backend, which
// fronts the Razorpay gateway: order creation before checkout and signed
// callback verification after it.
package payment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cafe-robusta/backend/config"
	"github.com/cafe-robusta/backend/internal/models"
	"github.com/cafe-robusta/backend/pkg/restclient"
)

// Client is the payment gateway client.
type Client struct {
	rest     *restclient.Client
	keyID    string
	currency string
	verifier *SignatureVerifier // nil when no key secret configured
	logger   *zap.Logger
}

// NewClient creates a payment client from the Razorpay config.
func NewClient(rest *restclient.Client, cfg config.RazorpayConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	var verifier *SignatureVerifier
	if cfg.KeySecret != "" {
		verifier = NewSignatureVerifier(cfg.KeySecret)
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "INR"
	}
	return &Client{rest: rest, keyID: cfg.KeyID, currency: currency, verifier: verifier, logger: logger}
}

// createOrderRequest mirrors POST /payment/create-order.
type createOrderRequest struct {
	Amount        int    `json:"amount"` // paise
	Currency      string `json:"currency"`
	OrderID       string `json:"orderId"` // temp registration reference
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	IsWorkshop    bool   `json:"isWorkshop"`
}

type createOrderResponse struct {
	OrderID  string `json:"order_id"`
	Amount   int    `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"key_id"`
}

// CreateOrder creates a gateway order sized to the draft amount (whole
// rupees, converted to paise here), tied to the temporary registration.
func (c *Client) CreateOrder(ctx context.Context, amountRupees int, tempRegistrationID, customerName, customerEmail string) (*models.PaymentOrder, error) {
	req := createOrderRequest{
		Amount:        amountRupees * 100,
		Currency:      c.currency,
		OrderID:       tempRegistrationID,
		CustomerName:  customerName,
		CustomerEmail: customerEmail,
		IsWorkshop:    true,
	}
	var out createOrderResponse
	if err := c.rest.Post(ctx, "/payment/create-order", req, &out); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	order := &models.PaymentOrder{
		OrderID:  out.OrderID,
		Amount:   out.Amount,
		Currency: out.Currency,
		KeyID:    out.KeyID,
	}
	if order.Amount == 0 {
		order.Amount = req.Amount
	}
	if order.Currency == "" {
		order.Currency = c.currency
	}
	if order.KeyID == "" {
		order.KeyID = c.keyID
	}
	c.logger.Info("payment order created",
		zap.String("order_id", order.OrderID),
		zap.Int("amount_paise", order.Amount),
	)
	return order, nil
}

// verifyRequest mirrors POST /payment/verify-payment.
type verifyRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
	OrderID           string `json:"orderId"` // temp registration reference
	IsWorkshop        bool   `json:"isWorkshop"`
}

// VerifyPayment forwards the signed checkout callback for verification and
// booking finalization. When a key secret is configured the signature is
// checked locally first, so an obviously forged callback never leaves the
// process.
func (c *Client) VerifyPayment(ctx context.Context, cb models.PaymentCallback, tempRegistrationID string) error {
	if c.verifier != nil && !c.verifier.Verify(cb.OrderID, cb.PaymentID, cb.Signature) {
		return fmt.Errorf("local signature check: %w", models.ErrInvalidSignature)
	}
	req := verifyRequest{
		RazorpayOrderID:   cb.OrderID,
		RazorpayPaymentID: cb.PaymentID,
		RazorpaySignature: cb.Signature,
		OrderID:           tempRegistrationID,
		IsWorkshop:        true,
	}
	if err := c.rest.Post(ctx, "/payment/verify-payment", req, nil); err != nil {
		return fmt.Errorf("verify payment: %w", err)
	}
	c.logger.Info("payment verified", zap.String("razorpay_order_id", cb.OrderID))
	return nil
}
