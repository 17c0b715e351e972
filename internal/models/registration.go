package models

import (
	"fmt"
	"regexp"
	"strings"
)

// PaymentMethod selects how a workshop seat is paid for.
// Free is forced whenever the workshop price is zero; Online and PayAtEntry
// are the mutually exclusive choices for paid workshops.
type PaymentMethod string

const (
	PaymentFree    PaymentMethod = "free"
	PaymentOnline  PaymentMethod = "online"
	PaymentAtEntry PaymentMethod = "pay_at_entry"
)

// Valid reports whether m is one of the known methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentFree, PaymentOnline, PaymentAtEntry:
		return true
	}
	return false
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RegistrationDraft is the contact + workshop snapshot taken at submission.
// Amount and Method are fixed here and never re-read from the workshop,
// so a price change between OTP and payment cannot alter what is charged.
type RegistrationDraft struct {
	Name       string        `json:"name"`
	Email      string        `json:"email"`
	Phone      string        `json:"phone"`
	Message    string        `json:"message,omitempty"`
	WorkshopID string        `json:"workshop_id"`
	Method     PaymentMethod `json:"payment_method"`
	Amount     int           `json:"amount"` // whole INR, snapshotted workshop price

	// Snapshot of workshop details for confirmation messaging.
	WorkshopTitle string `json:"workshop_title"`
	WorkshopDate  string `json:"workshop_date"`
	WorkshopTime  string `json:"workshop_time"`
}

// ValidateContact checks the user-entered fields. It needs no workshop
// data, so it runs before any network call.
func (d RegistrationDraft) ValidateContact() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !emailPattern.MatchString(strings.TrimSpace(d.Email)) {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if strings.TrimSpace(d.Phone) == "" {
		return fmt.Errorf("%w: phone is required", ErrValidation)
	}
	return nil
}

// Validate checks the complete draft before the OTP is requested.
func (d RegistrationDraft) Validate() error {
	if err := d.ValidateContact(); err != nil {
		return err
	}
	if d.WorkshopID == "" {
		return fmt.Errorf("%w: workshop is required", ErrValidation)
	}
	if !d.Method.Valid() {
		return fmt.Errorf("%w: payment method is required", ErrValidation)
	}
	if d.Amount < 0 {
		return fmt.Errorf("%w: negative amount", ErrValidation)
	}
	return nil
}

// PaymentOrder is the gateway order created for an online payment, tied to
// a temporary (unconfirmed) registration held by the content backend.
type PaymentOrder struct {
	OrderID  string `json:"order_id"`
	Amount   int    `json:"amount"` // paise
	Currency string `json:"currency"`
	KeyID    string `json:"key_id"` // public checkout key for the widget
}

// CheckoutIntent is everything the browser checkout widget needs to open.
type CheckoutIntent struct {
	OrderID            string `json:"order_id"`
	Amount             int    `json:"amount"` // paise
	Currency           string `json:"currency"`
	KeyID              string `json:"key_id"`
	TempRegistrationID string `json:"temp_registration_id"`
	PrefillName        string `json:"prefill_name"`
	PrefillEmail       string `json:"prefill_email"`
	PrefillPhone       string `json:"prefill_phone"`
}

// PaymentCallback carries the signed identifiers the checkout widget
// returns on success.
type PaymentCallback struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}
