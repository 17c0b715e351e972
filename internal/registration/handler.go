// Package registration exposes the workshop registration flow over HTTP.
// Each browser session maps to one flow controller; snapshots live in the
// session store between requests and the session token carries the ID.
package registration

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cafe-robusta/backend/internal/audit"
	"github.com/cafe-robusta/backend/internal/auth"
	"github.com/cafe-robusta/backend/internal/flow"
	"github.com/cafe-robusta/backend/internal/middleware"
	"github.com/cafe-robusta/backend/internal/models"
	"github.com/cafe-robusta/backend/internal/session"
	"github.com/cafe-robusta/backend/pkg/queue"
	"github.com/cafe-robusta/backend/pkg/response"
)

// SessionStore persists flow snapshots between requests.
type SessionStore interface {
	Save(ctx context.Context, sessionID string, snap flow.Snapshot) error
	Load(ctx context.Context, sessionID string) (flow.Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
}

// ConfirmationQueue enqueues confirmation email jobs.
type ConfirmationQueue interface {
	EnqueueConfirmationEmail(ctx context.Context, payload queue.ConfirmationEmailPayload) error
}

// AttemptRecorder records terminal flow outcomes.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, a *audit.Attempt) error
}

// Handler handles registration flow HTTP endpoints.
type Handler struct {
	store    SessionStore
	tokens   *auth.TokenService
	catalog  flow.Catalog
	otp      flow.OTPService
	payments flow.PaymentGateway
	emails   ConfirmationQueue
	attempts AttemptRecorder
	logger   *zap.Logger
}

// NewHandler creates a registration handler.
func NewHandler(
	store SessionStore,
	tokens *auth.TokenService,
	catalog flow.Catalog,
	otp flow.OTPService,
	payments flow.PaymentGateway,
	emails ConfirmationQueue,
	attempts AttemptRecorder,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:    store,
		tokens:   tokens,
		catalog:  catalog,
		otp:      otp,
		payments: payments,
		emails:   emails,
		attempts: attempts,
		logger:   logger,
	}
}

// SubmitRequest is the body for POST /workshops/:id/registrations.
type SubmitRequest struct {
	Name          string               `json:"name" binding:"required"`
	Email         string               `json:"email" binding:"required,email"`
	Phone         string               `json:"phone" binding:"required"`
	Message       string               `json:"message,omitempty"`
	PaymentMethod models.PaymentMethod `json:"payment_method,omitempty"`
}

type verifyOTPRequest struct {
	OTP string `json:"otp" binding:"required"`
}

// Submit handles POST /workshops/:id/registrations: builds the draft and
// sends the OTP. A session token is only issued once the OTP is pending.
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, models.CodeValidation, "invalid request: "+err.Error())
		return
	}

	sessionID := uuid.New().String()
	ctrl := h.newController()
	err := ctrl.Submit(c.Request.Context(), flow.SubmitInput{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Message:    req.Message,
		WorkshopID: c.Param("id"),
		Method:     req.PaymentMethod,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrValidation):
			response.BadRequest(c, models.CodeValidation, err.Error())
		case errors.Is(err, models.ErrWorkshopNotFound):
			response.NotFound(c, "workshop not found")
		case errors.Is(err, models.ErrWorkshopFull):
			response.Conflict(c, models.CodeWorkshopFull, "workshop is fully booked")
		case errors.Is(err, models.ErrWorkshopInactive):
			response.Conflict(c, models.CodeWorkshopFull, "workshop is not open for registration")
		case errors.Is(err, models.ErrDuplicateRegistration):
			h.recordOutcome(c, sessionID, c.Param("id"), req.Email, "", 0, audit.OutcomeCancelled, "duplicate registration")
			response.Conflict(c, models.CodeDuplicate, "this email is already registered for the workshop")
		default:
			h.logger.Error("submit failed", zap.Error(err), zap.String("workshop_id", c.Param("id")))
			response.BadGateway(c, models.CodeUpstream, "could not send verification code, please try again")
		}
		return
	}

	if err := h.store.Save(c.Request.Context(), sessionID, ctrl.Snapshot()); err != nil {
		h.logger.Error("save session failed", zap.Error(err))
		response.Internal(c, "could not start registration session")
		return
	}
	token, err := h.tokens.Generate(sessionID)
	if err != nil {
		h.logger.Error("generate session token failed", zap.Error(err))
		response.Internal(c, "could not start registration session")
		return
	}
	response.Created(c, gin.H{
		"session_token": token,
		"state":         ctrl.State(),
	})
}

// VerifyOTP handles POST /registrations/otp/verify. Free and pay-at-entry
// registrations finalize here; online payments get a checkout intent back.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, models.CodeValidation, "otp is required")
		return
	}

	sessionID, ctrl, draft, ok := h.loadController(c)
	if !ok {
		return
	}

	result, err := ctrl.VerifyOTP(c.Request.Context(), req.OTP)
	if err != nil {
		h.flowError(c, sessionID, ctrl, draft, err)
		return
	}

	if result.Confirmation != nil {
		h.finalize(c, sessionID, result.Confirmation)
		response.OK(c, gin.H{"state": flow.StateSucceeded, "confirmation": result.Confirmation})
		return
	}

	// Online payment leg: persist the awaiting-callback snapshot.
	if err := h.store.Save(c.Request.Context(), sessionID, ctrl.Snapshot()); err != nil {
		h.logger.Error("save session failed", zap.Error(err))
		response.Internal(c, "could not continue registration")
		return
	}
	response.OK(c, gin.H{"state": result.State, "checkout": result.Checkout})
}

// ResendOTP handles POST /registrations/otp/resend. The stored draft is
// reused untouched.
func (h *Handler) ResendOTP(c *gin.Context) {
	sessionID, ctrl, draft, ok := h.loadController(c)
	if !ok {
		return
	}

	if err := ctrl.ResendOTP(c.Request.Context()); err != nil {
		h.flowError(c, sessionID, ctrl, draft, err)
		return
	}
	if err := h.store.Save(c.Request.Context(), sessionID, ctrl.Snapshot()); err != nil {
		h.logger.Error("save session failed", zap.Error(err))
		response.Internal(c, "could not continue registration")
		return
	}
	response.OK(c, gin.H{"state": ctrl.State()})
}

// ConfirmPayment handles POST /registrations/payment/confirm with the
// signed identifiers from the checkout widget.
func (h *Handler) ConfirmPayment(c *gin.Context) {
	var cb models.PaymentCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		response.BadRequest(c, models.CodeValidation, "invalid payment callback")
		return
	}

	sessionID, ctrl, draft, ok := h.loadController(c)
	if !ok {
		return
	}

	conf, err := ctrl.ConfirmPayment(c.Request.Context(), cb)
	if err != nil {
		if draft != nil {
			h.recordOutcome(c, sessionID, draft.WorkshopID, draft.Email, string(draft.Method), draft.Amount, audit.OutcomeFailed, err.Error())
		}
		h.saveQuietly(c, sessionID, ctrl)
		if errors.Is(err, models.ErrInvalidSignature) {
			response.UnprocessableEntity(c, models.CodeInvalidSignature, "payment could not be verified")
			return
		}
		if flowStateErr(c, err) {
			return
		}
		response.BadGateway(c, models.CodePaymentFailed, "payment verification failed")
		return
	}

	h.finalize(c, sessionID, conf)
	response.OK(c, gin.H{"state": flow.StateSucceeded, "confirmation": conf})
}

// DismissCheckout handles POST /registrations/payment/dismiss: the user
// closed the widget without paying. Nothing is booked; the draft stays so
// a fresh submission can follow.
func (h *Handler) DismissCheckout(c *gin.Context) {
	sessionID, ctrl, draft, ok := h.loadController(c)
	if !ok {
		return
	}
	if err := ctrl.DismissCheckout(); err != nil {
		if flowStateErr(c, err) {
			return
		}
		response.Internal(c, "could not dismiss checkout")
		return
	}
	if draft != nil {
		h.recordOutcome(c, sessionID, draft.WorkshopID, draft.Email, string(draft.Method), draft.Amount, audit.OutcomeFailed, "checkout dismissed")
	}
	h.saveQuietly(c, sessionID, ctrl)
	response.OK(c, gin.H{"state": ctrl.State(), "failure": ctrl.LastFailure()})
}

// Cancel handles POST /registrations/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	sessionID, ctrl, draft, ok := h.loadController(c)
	if !ok {
		return
	}
	if err := ctrl.Cancel(); err != nil {
		if flowStateErr(c, err) {
			return
		}
		response.Internal(c, "could not cancel registration")
		return
	}
	if draft != nil {
		h.recordOutcome(c, sessionID, draft.WorkshopID, draft.Email, string(draft.Method), draft.Amount, audit.OutcomeCancelled, "cancelled by user")
	}
	if err := h.store.Delete(c.Request.Context(), sessionID); err != nil {
		h.logger.Warn("delete session failed", zap.Error(err))
	}
	response.OK(c, gin.H{"state": flow.StateCancelled})
}

// GetState handles GET /registrations/state.
func (h *Handler) GetState(c *gin.Context) {
	_, ctrl, draft, ok := h.loadController(c)
	if !ok {
		return
	}
	body := gin.H{"state": ctrl.State()}
	if f := ctrl.LastFailure(); f != nil {
		body["failure"] = f
	}
	if draft != nil {
		body["workshop_id"] = draft.WorkshopID
		body["payment_method"] = draft.Method
		body["amount"] = draft.Amount
	}
	response.OK(c, body)
}

func (h *Handler) newController() *flow.Controller {
	return flow.NewController(h.catalog, h.otp, h.payments, h.logger)
}

// loadController hydrates the session's controller. On failure it writes
// the response and returns ok=false.
func (h *Handler) loadController(c *gin.Context) (sessionID string, ctrl *flow.Controller, draft *models.RegistrationDraft, ok bool) {
	sessionID = c.GetString(middleware.ContextSessionID)
	if sessionID == "" {
		response.Unauthorized(c, "missing session")
		return "", nil, nil, false
	}
	snap, err := h.store.Load(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			response.NotFound(c, "registration session not found or expired")
			return "", nil, nil, false
		}
		h.logger.Error("load session failed", zap.Error(err))
		response.Internal(c, "could not load registration session")
		return "", nil, nil, false
	}
	ctrl = flow.Restore(snap, h.catalog, h.otp, h.payments, h.logger)
	return sessionID, ctrl, ctrl.Draft(), true
}

// flowError maps controller errors from the OTP steps onto responses and
// persists whatever state the controller is now in.
func (h *Handler) flowError(c *gin.Context, sessionID string, ctrl *flow.Controller, draft *models.RegistrationDraft, err error) {
	switch {
	case errors.Is(err, models.ErrDuplicateRegistration):
		if draft != nil {
			h.recordOutcome(c, sessionID, draft.WorkshopID, draft.Email, string(draft.Method), draft.Amount, audit.OutcomeCancelled, "duplicate registration")
		}
		if delErr := h.store.Delete(c.Request.Context(), sessionID); delErr != nil {
			h.logger.Warn("delete session failed", zap.Error(delErr))
		}
		response.Conflict(c, models.CodeDuplicate, "this email is already registered for the workshop")
	case errors.Is(err, models.ErrInvalidOTP):
		h.saveQuietly(c, sessionID, ctrl)
		response.UnprocessableEntity(c, models.CodeInvalidOTP, "the code is wrong or expired, try again")
	case errors.Is(err, models.ErrValidation):
		response.BadRequest(c, models.CodeValidation, err.Error())
	default:
		if flowStateErr(c, err) {
			return
		}
		h.saveQuietly(c, sessionID, ctrl)
		h.logger.Error("flow step failed", zap.Error(err))
		response.BadGateway(c, models.CodeUpstream, "a backend call failed, please retry")
	}
}

// flowStateErr handles the two controller guard errors. Returns true when
// it wrote a response.
func flowStateErr(c *gin.Context, err error) bool {
	if errors.Is(err, flow.ErrRequestInFlight) {
		response.Conflict(c, models.CodeUpstream, "a request for this session is already in progress")
		return true
	}
	if errors.Is(err, flow.ErrInvalidTransition) {
		response.Conflict(c, models.CodeUpstream, err.Error())
		return true
	}
	return false
}

// finalize records the success, queues the confirmation email and drops
// the session. All best-effort: the booking itself is already final.
func (h *Handler) finalize(c *gin.Context, sessionID string, conf *flow.Confirmation) {
	ctx := c.Request.Context()
	h.recordOutcome(c, sessionID, conf.WorkshopID, conf.Email, string(conf.Method), conf.Amount, audit.OutcomeSucceeded, "")
	err := h.emails.EnqueueConfirmationEmail(ctx, queue.ConfirmationEmailPayload{
		RecipientEmail: conf.Email,
		RecipientName:  conf.Name,
		WorkshopID:     conf.WorkshopID,
		WorkshopTitle:  conf.WorkshopTitle,
		WorkshopDate:   conf.WorkshopDate,
		WorkshopTime:   conf.WorkshopTime,
		PaymentMethod:  conf.Method,
		Amount:         conf.Amount,
	})
	if err != nil {
		h.logger.Error("enqueue confirmation email failed", zap.Error(err))
	}
	if err := h.store.Delete(ctx, sessionID); err != nil {
		h.logger.Warn("delete session failed", zap.Error(err))
	}
}

func (h *Handler) recordOutcome(c *gin.Context, sessionID, workshopID, email, method string, amount int, outcome, detail string) {
	err := h.attempts.RecordAttempt(c.Request.Context(), &audit.Attempt{
		SessionID:     sessionID,
		WorkshopID:    workshopID,
		Email:         email,
		PaymentMethod: method,
		Amount:        amount,
		Outcome:       outcome,
		Detail:        detail,
	})
	if err != nil {
		h.logger.Error("record attempt failed", zap.Error(err))
	}
}

func (h *Handler) saveQuietly(c *gin.Context, sessionID string, ctrl *flow.Controller) {
	if err := h.store.Save(c.Request.Context(), sessionID, ctrl.Snapshot()); err != nil {
		h.logger.Warn("save session failed", zap.Error(err))
	}
}
