// Package flow owns the workshop registration state machine: draft
// submission, OTP verification, and the optional online-payment leg. One
// controller serves one visitor session; collaborator calls are serialized
// so a session never has two side-effecting requests in flight.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cafe-robusta/backend/internal/models"
)

var (
	// ErrRequestInFlight is returned when a mutating call arrives while a
	// collaborator request for the same session is still outstanding.
	ErrRequestInFlight = errors.New("another request is in flight for this session")
	// ErrInvalidTransition is returned when an operation is not legal in
	// the current state.
	ErrInvalidTransition = errors.New("operation not allowed in current state")
)

// SubmitInput is the raw form submission.
type SubmitInput struct {
	Name       string
	Email      string
	Phone      string
	Message    string
	WorkshopID string
	// Method is the user's choice for paid workshops. Ignored (forced to
	// free) when the workshop price is zero.
	Method models.PaymentMethod
}

// Controller drives a single registration session.
type Controller struct {
	mu   sync.Mutex
	busy bool
	snap Snapshot

	catalog  Catalog
	otp      OTPService
	payments PaymentGateway
	logger   *zap.Logger
}

// NewController creates an idle controller.
func NewController(catalog Catalog, otp OTPService, payments PaymentGateway, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		snap:     Snapshot{State: StateIdle},
		catalog:  catalog,
		otp:      otp,
		payments: payments,
		logger:   logger,
	}
}

// Restore rebuilds a controller from a persisted snapshot.
func Restore(snap Snapshot, catalog Catalog, otp OTPService, payments PaymentGateway, logger *zap.Logger) *Controller {
	c := NewController(catalog, otp, payments, logger)
	if snap.State == "" {
		snap.State = StateIdle
	}
	c.snap = snap
	return c
}

// Snapshot returns a copy of the persistable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.State
}

// Draft returns a copy of the pending draft, if any.
func (c *Controller) Draft() *models.RegistrationDraft {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.Draft == nil {
		return nil
	}
	d := *c.snap.Draft
	return &d
}

// LastFailure returns the recorded failure, if any.
func (c *Controller) LastFailure() *Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.Failure == nil {
		return nil
	}
	f := *c.snap.Failure
	return &f
}

// Submit validates the form, snapshots a draft (amount fixed at the
// current workshop price) and sends the OTP. A fresh submission is legal
// from idle and from any terminal state.
func (c *Controller) Submit(ctx context.Context, in SubmitInput) error {
	if err := c.acquire(StateIdle, StateFailed, StateCancelled, StateSucceeded); err != nil {
		return err
	}
	defer c.release()

	contact := models.RegistrationDraft{Name: in.Name, Email: in.Email, Phone: in.Phone}
	if err := contact.ValidateContact(); err != nil {
		return err
	}

	workshop, err := c.catalog.GetWorkshop(ctx, strings.TrimSpace(in.WorkshopID))
	if err != nil {
		return fmt.Errorf("look up workshop: %w", err)
	}
	if !workshop.Active {
		return models.ErrWorkshopInactive
	}
	if workshop.IsFull() {
		return models.ErrWorkshopFull
	}

	method := in.Method
	if workshop.IsFree() {
		// Free workshops never depend on a client-side selection.
		method = models.PaymentFree
	} else if method != models.PaymentOnline && method != models.PaymentAtEntry {
		return fmt.Errorf("%w: choose online or pay-at-entry payment", models.ErrValidation)
	}

	draft := models.RegistrationDraft{
		Name:          strings.TrimSpace(in.Name),
		Email:         strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:         strings.TrimSpace(in.Phone),
		Message:       strings.TrimSpace(in.Message),
		WorkshopID:    workshop.ID,
		Method:        method,
		Amount:        workshop.Price,
		WorkshopTitle: workshop.Title,
		WorkshopDate:  workshop.Date.Format("2006-01-02"),
		WorkshopTime:  workshop.Time,
	}
	if err := draft.Validate(); err != nil {
		return err
	}

	c.setState(StateOTPSending)
	return c.sendOTP(ctx, draft)
}

// ResendOTP re-sends the code for the pending draft. The draft is reused
// as-is: amount and payment method never change on resend.
func (c *Controller) ResendOTP(ctx context.Context) error {
	if err := c.acquire(StateOTPPending); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	draft := *c.snap.Draft
	c.snap.State = StateOTPSending
	c.mu.Unlock()
	return c.sendOTP(ctx, draft)
}

// sendOTP performs the OTP send and the shared failure handling for both
// first send and resend. Caller holds the busy slot.
func (c *Controller) sendOTP(ctx context.Context, draft models.RegistrationDraft) error {
	err := c.otp.Send(ctx, draft.Email, draft)
	switch {
	case err == nil:
		c.mu.Lock()
		c.snap = Snapshot{State: StateOTPPending, Draft: &draft}
		c.mu.Unlock()
		return nil
	case errors.Is(err, models.ErrDuplicateRegistration):
		c.cancelInternal()
		return err
	default:
		c.fail(models.CodeUpstream, err, &draft)
		return err
	}
}

// VerifyOTP checks the code. Free and pay-at-entry drafts are booked in
// the same call; online drafts are verified without booking, then a
// temporary registration and a payment order are created and a checkout
// intent returned.
func (c *Controller) VerifyOTP(ctx context.Context, code string) (*Result, error) {
	if err := c.acquire(StateOTPPending); err != nil {
		return nil, err
	}
	defer c.release()

	c.mu.Lock()
	draft := *c.snap.Draft
	c.mu.Unlock()
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: otp code is required", models.ErrValidation)
	}

	if draft.Method != models.PaymentOnline {
		return c.verifyAndBook(ctx, draft, code)
	}
	return c.verifyThenInitiatePayment(ctx, draft, code)
}

func (c *Controller) verifyAndBook(ctx context.Context, draft models.RegistrationDraft, code string) (*Result, error) {
	err := c.otp.Verify(ctx, draft.Email, code)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateRegistration) {
			c.cancelInternal()
			return nil, err
		}
		// Wrong code, expired code, network trouble: stay pending so the
		// user can retry or resend.
		return nil, err
	}

	conf := confirmationFor(draft)
	c.mu.Lock()
	c.snap = Snapshot{State: StateSucceeded}
	c.mu.Unlock()
	c.logger.Info("registration finalized",
		zap.String("workshop_id", draft.WorkshopID),
		zap.String("payment_method", string(draft.Method)),
	)
	return &Result{State: StateSucceeded, Confirmation: conf}, nil
}

func (c *Controller) verifyThenInitiatePayment(ctx context.Context, draft models.RegistrationDraft, code string) (*Result, error) {
	if err := c.otp.VerifyOnly(ctx, draft.Email, code); err != nil {
		if errors.Is(err, models.ErrDuplicateRegistration) {
			c.cancelInternal()
			return nil, err
		}
		return nil, err
	}

	c.setState(StatePaymentInitiating)

	tempID, err := c.catalog.CreateTempRegistration(ctx, draft)
	if err != nil {
		c.fail(models.CodePaymentFailed, err, &draft)
		return nil, fmt.Errorf("hold seat: %w", err)
	}

	order, err := c.payments.CreateOrder(ctx, draft.Amount, tempID, draft.Name, draft.Email)
	if err != nil {
		c.fail(models.CodePaymentFailed, err, &draft)
		return nil, fmt.Errorf("create payment order: %w", err)
	}

	c.mu.Lock()
	c.snap = Snapshot{
		State:              StatePaymentAwaitingCallback,
		Draft:              &draft,
		TempRegistrationID: tempID,
		Order:              order,
	}
	c.mu.Unlock()

	return &Result{
		State: StatePaymentAwaitingCallback,
		Checkout: &models.CheckoutIntent{
			OrderID:            order.OrderID,
			Amount:             order.Amount,
			Currency:           order.Currency,
			KeyID:              order.KeyID,
			TempRegistrationID: tempID,
			PrefillName:        draft.Name,
			PrefillEmail:       draft.Email,
			PrefillPhone:       draft.Phone,
		},
	}, nil
}

// ConfirmPayment verifies the signed checkout callback and finalizes the
// booking.
func (c *Controller) ConfirmPayment(ctx context.Context, cb models.PaymentCallback) (*Confirmation, error) {
	if err := c.acquire(StatePaymentAwaitingCallback); err != nil {
		return nil, err
	}
	defer c.release()

	c.mu.Lock()
	draft := *c.snap.Draft
	tempID := c.snap.TempRegistrationID
	c.snap.State = StatePaymentVerifying
	c.mu.Unlock()

	if err := c.payments.VerifyPayment(ctx, cb, tempID); err != nil {
		code := models.CodePaymentFailed
		if errors.Is(err, models.ErrInvalidSignature) {
			code = models.CodeInvalidSignature
		}
		// Booking stays unconfirmed; the backend expires the temp hold.
		c.fail(code, err, &draft)
		return nil, err
	}

	conf := confirmationFor(draft)
	c.mu.Lock()
	c.snap = Snapshot{State: StateSucceeded}
	c.mu.Unlock()
	c.logger.Info("payment confirmed",
		zap.String("workshop_id", draft.WorkshopID),
		zap.String("razorpay_order_id", cb.OrderID),
	)
	return conf, nil
}

// DismissCheckout records that the user closed the checkout widget before
// paying. The seat hold stays with the backend until it expires; the draft
// is preserved so the user can start over.
func (c *Controller) DismissCheckout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrRequestInFlight
	}
	if c.snap.State != StatePaymentAwaitingCallback {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, c.snap.State)
	}
	draft := c.snap.Draft
	c.snap = Snapshot{
		State:   StateFailed,
		Draft:   draft,
		Failure: &Failure{Code: models.CodePaymentDismissed, Message: "checkout dismissed before payment"},
	}
	return nil
}

// Cancel abandons the pending verification by explicit user action.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrRequestInFlight
	}
	switch c.snap.State {
	case StateIdle, StateOTPPending, StateFailed:
		c.snap = Snapshot{State: StateCancelled}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidTransition, c.snap.State)
}

// acquire takes the busy slot if the current state is one of allowed.
func (c *Controller) acquire(allowed ...State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrRequestInFlight
	}
	for _, s := range allowed {
		if c.snap.State == s {
			c.busy = true
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidTransition, c.snap.State)
}

func (c *Controller) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.snap.State = s
	c.mu.Unlock()
}

// cancelInternal handles the duplicate-registration short circuit: the
// draft is cleared and the flow ends without a booking.
func (c *Controller) cancelInternal() {
	c.mu.Lock()
	c.snap = Snapshot{State: StateCancelled}
	c.mu.Unlock()
	c.logger.Info("registration cancelled: duplicate")
}

// fail records a failure, preserving the draft so the user can resubmit.
func (c *Controller) fail(code string, err error, draft *models.RegistrationDraft) {
	c.mu.Lock()
	c.snap = Snapshot{
		State:   StateFailed,
		Draft:   draft,
		Failure: &Failure{Code: code, Message: err.Error()},
	}
	c.mu.Unlock()
	c.logger.Warn("registration flow failed", zap.String("code", code), zap.Error(err))
}

func confirmationFor(draft models.RegistrationDraft) *Confirmation {
	return &Confirmation{
		Name:          draft.Name,
		Email:         draft.Email,
		WorkshopID:    draft.WorkshopID,
		WorkshopTitle: draft.WorkshopTitle,
		WorkshopDate:  draft.WorkshopDate,
		WorkshopTime:  draft.WorkshopTime,
		Method:        draft.Method,
		Amount:        draft.Amount,
	}
}
