package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrWorkshopNotFound = errors.New("workshop not found")
	ErrWorkshopFull     = errors.New("workshop is fully booked")
	ErrWorkshopInactive = errors.New("workshop is not open for registration")
)

var (
	ErrDuplicateRegistration = errors.New("email already registered for this workshop")
	ErrInvalidOTP            = errors.New("invalid or expired OTP")
	ErrInvalidSignature      = errors.New("payment signature verification failed")
)

var (
	ErrValidation = errors.New("validation error")
)

// Machine-readable error codes carried in the response envelope and in
// collaborator responses.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeDuplicate        = "DUPLICATE_REGISTRATION"
	CodeInvalidOTP       = "INVALID_OTP"
	CodeInvalidSignature = "INVALID_SIGNATURE"
	CodeWorkshopFull     = "WORKSHOP_FULL"
	CodePaymentDismissed = "PAYMENT_DISMISSED"
	CodePaymentFailed    = "PAYMENT_FAILED"
	CodeUpstream         = "UPSTREAM_ERROR"
)

// duplicateSentinel is the legacy message fragment the content backend
// emits for duplicate registrations. Kept as a compatibility shim for
// backends that do not send a structured code yet.
const duplicateSentinel = "already registered"

// APIError is a structured error response from a collaborator service.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code,omitempty"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstream %d [%s]: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("upstream %d: %s", e.Status, e.Message)
}

// Unwrap maps known collaborator error codes (preferred) and legacy message
// fragments (shim) onto the local sentinels so callers can errors.Is them.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case CodeDuplicate:
		return ErrDuplicateRegistration
	case CodeInvalidOTP:
		return ErrInvalidOTP
	case CodeInvalidSignature:
		return ErrInvalidSignature
	case CodeWorkshopFull:
		return ErrWorkshopFull
	}
	msg := strings.ToLower(e.Message)
	if strings.Contains(msg, duplicateSentinel) {
		return ErrDuplicateRegistration
	}
	if strings.Contains(msg, "invalid otp") || strings.Contains(msg, "otp expired") {
		return ErrInvalidOTP
	}
	return nil
}

// CodeFor returns the envelope code for a flow error.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrDuplicateRegistration):
		return CodeDuplicate
	case errors.Is(err, ErrInvalidOTP):
		return CodeInvalidOTP
	case errors.Is(err, ErrInvalidSignature):
		return CodeInvalidSignature
	case errors.Is(err, ErrWorkshopFull):
		return CodeWorkshopFull
	}
	return CodeUpstream
}
