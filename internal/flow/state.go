package flow

import "github.com/cafe-robusta/backend/internal/models"

// State is the registration flow position. Exactly one is held per
// session; transient states exist only while a collaborator call is in
// flight.
type State string

const (
	StateIdle                    State = "idle"
	StateOTPSending              State = "otp_sending"
	StateOTPPending              State = "otp_pending"
	StatePaymentInitiating       State = "payment_initiating"
	StatePaymentAwaitingCallback State = "payment_awaiting_callback"
	StatePaymentVerifying        State = "payment_verifying"
	StateSucceeded               State = "succeeded"
	StateFailed                  State = "failed"
	StateCancelled               State = "cancelled"
)

// Terminal reports whether the flow is finished for this attempt.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Failure describes why a flow reached the failed state.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Snapshot is the persistable flow state: everything needed to rebuild a
// controller between stateless HTTP requests.
type Snapshot struct {
	State              State                     `json:"state"`
	Draft              *models.RegistrationDraft `json:"draft,omitempty"`
	TempRegistrationID string                    `json:"temp_registration_id,omitempty"`
	Order              *models.PaymentOrder      `json:"order,omitempty"`
	Failure            *Failure                  `json:"failure,omitempty"`
}

// Confirmation summarizes a finalized booking for the caller (response
// body, confirmation email).
type Confirmation struct {
	Name          string               `json:"name"`
	Email         string               `json:"email"`
	WorkshopID    string               `json:"workshop_id"`
	WorkshopTitle string               `json:"workshop_title"`
	WorkshopDate  string               `json:"workshop_date"`
	WorkshopTime  string               `json:"workshop_time"`
	Method        models.PaymentMethod `json:"payment_method"`
	Amount        int                  `json:"amount"`
}

// Result is the outcome of an OTP verification: either a finalized booking
// or a checkout intent for the online-payment leg.
type Result struct {
	State        State                  `json:"state"`
	Checkout     *models.CheckoutIntent `json:"checkout,omitempty"`
	Confirmation *Confirmation          `json:"confirmation,omitempty"`
}
