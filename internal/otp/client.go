// Package otp talks to the email OTP service that verifies an address
// before a registration is finalized. The service keys each code to the
// email plus a snapshot of the pending registration, and is the component
// that actually books the seat on a successful verify.
package otp

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cafe-robusta/backend/internal/models"
	"github.com/cafe-robusta/backend/pkg/restclient"
)

// Client is the OTP service client.
type Client struct {
	rest   *restclient.Client
	logger *zap.Logger
}

// NewClient creates an OTP client.
func NewClient(rest *restclient.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{rest: rest, logger: logger}
}

// sendRequest mirrors POST /email/workshop/otp.
type sendRequest struct {
	Email            string                   `json:"email"`
	RegistrationData models.RegistrationDraft `json:"registrationData"`
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// Send asks the service to email a code for the pending draft. Resends use
// the same call with the same draft. Returns ErrDuplicateRegistration
// (wrapped) when the email already holds a seat for this workshop.
func (c *Client) Send(ctx context.Context, email string, draft models.RegistrationDraft) error {
	if err := c.rest.Post(ctx, "/email/workshop/otp", sendRequest{Email: email, RegistrationData: draft}, nil); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	c.logger.Info("otp sent", zap.String("workshop_id", draft.WorkshopID))
	return nil
}

// Verify checks the code and, on success, finalizes the booking for free
// and pay-at-entry registrations.
func (c *Client) Verify(ctx context.Context, email, code string) error {
	if err := c.rest.Post(ctx, "/email/workshop/verify", verifyRequest{Email: email, OTP: code}, nil); err != nil {
		return fmt.Errorf("verify otp: %w", err)
	}
	return nil
}

// VerifyOnly checks the code without any booking side effect. Used before
// an online payment so the seat is only held, not booked.
func (c *Client) VerifyOnly(ctx context.Context, email, code string) error {
	if err := c.rest.Post(ctx, "/email/workshop/verify-otp-only", verifyRequest{Email: email, OTP: code}, nil); err != nil {
		return fmt.Errorf("verify otp (no booking): %w", err)
	}
	return nil
}
