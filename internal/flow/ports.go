package flow

import (
	"context"

	"github.com/cafe-robusta/backend/internal/models"
)

// Catalog is the content-backend surface the flow needs: workshop lookup
// at submission time and temporary registration holds before payment.
type Catalog interface {
	GetWorkshop(ctx context.Context, id string) (*models.Workshop, error)
	CreateTempRegistration(ctx context.Context, draft models.RegistrationDraft) (string, error)
}

// OTPService sends and checks one-time codes keyed to an email plus the
// pending draft. Verify finalizes the booking; VerifyOnly does not.
type OTPService interface {
	Send(ctx context.Context, email string, draft models.RegistrationDraft) error
	Verify(ctx context.Context, email, code string) error
	VerifyOnly(ctx context.Context, email, code string) error
}

// PaymentGateway creates checkout orders and verifies signed callbacks.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountRupees int, tempRegistrationID, customerName, customerEmail string) (*models.PaymentOrder, error)
	VerifyPayment(ctx context.Context, cb models.PaymentCallback, tempRegistrationID string) error
}
