package registration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cafe-robusta/backend/internal/audit"
	"github.com/cafe-robusta/backend/internal/auth"
	"github.com/cafe-robusta/backend/internal/flow"
	"github.com/cafe-robusta/backend/internal/middleware"
	"github.com/cafe-robusta/backend/internal/models"
	"github.com/cafe-robusta/backend/internal/session"
	"github.com/cafe-robusta/backend/pkg/queue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memStore struct {
	mu    sync.Mutex
	snaps map[string]flow.Snapshot
}

func newMemStore() *memStore {
	return &memStore{snaps: make(map[string]flow.Snapshot)}
}

func (s *memStore) Save(ctx context.Context, sessionID string, snap flow.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[sessionID] = snap
	return nil
}

func (s *memStore) Load(ctx context.Context, sessionID string) (flow.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[sessionID]
	if !ok {
		return flow.Snapshot{}, session.ErrNotFound
	}
	return snap, nil
}

func (s *memStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, sessionID)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snaps)
}

type stubCatalog struct {
	workshop *models.Workshop
	tempID   string
}

func (s *stubCatalog) GetWorkshop(ctx context.Context, id string) (*models.Workshop, error) {
	if s.workshop == nil || s.workshop.ID != id {
		return nil, models.ErrWorkshopNotFound
	}
	return s.workshop, nil
}

func (s *stubCatalog) CreateTempRegistration(ctx context.Context, draft models.RegistrationDraft) (string, error) {
	return s.tempID, nil
}

type stubOTP struct {
	sendErr   error
	verifyErr error
}

func (s *stubOTP) Send(ctx context.Context, email string, draft models.RegistrationDraft) error {
	return s.sendErr
}

func (s *stubOTP) Verify(ctx context.Context, email, code string) error {
	return s.verifyErr
}

func (s *stubOTP) VerifyOnly(ctx context.Context, email, code string) error {
	return s.verifyErr
}

type stubPayments struct {
	order     *models.PaymentOrder
	verifyErr error
}

func (s *stubPayments) CreateOrder(ctx context.Context, amountRupees int, tempRegistrationID, customerName, customerEmail string) (*models.PaymentOrder, error) {
	return s.order, nil
}

func (s *stubPayments) VerifyPayment(ctx context.Context, cb models.PaymentCallback, tempRegistrationID string) error {
	return s.verifyErr
}

type captureQueue struct {
	mu       sync.Mutex
	payloads []queue.ConfirmationEmailPayload
}

func (q *captureQueue) EnqueueConfirmationEmail(ctx context.Context, payload queue.ConfirmationEmailPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.payloads = append(q.payloads, payload)
	return nil
}

type captureAudit struct {
	mu       sync.Mutex
	attempts []audit.Attempt
}

func (a *captureAudit) RecordAttempt(ctx context.Context, attempt *audit.Attempt) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts = append(a.attempts, *attempt)
	return nil
}

func (a *captureAudit) last() *audit.Attempt {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.attempts) == 0 {
		return nil
	}
	att := a.attempts[len(a.attempts)-1]
	return &att
}

type testEnv struct {
	router   *gin.Engine
	store    *memStore
	catalog  *stubCatalog
	otp      *stubOTP
	payments *stubPayments
	emails   *captureQueue
	audit    *captureAudit
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store: newMemStore(),
		catalog: &stubCatalog{
			workshop: &models.Workshop{
				ID: "w1", Title: "Latte Art 101", Date: time.Date(2026, 10, 4, 0, 0, 0, 0, time.UTC),
				Time: "11:00", Price: 0, MaxSeats: 12, Active: true,
			},
			tempID: "temp-42",
		},
		otp:      &stubOTP{},
		payments: &stubPayments{order: &models.PaymentOrder{OrderID: "order_abc", Amount: 75000, Currency: "INR", KeyID: "rzp_test"}},
		emails:   &captureQueue{},
		audit:    &captureAudit{},
	}

	tokens := auth.NewTokenService("test-secret", time.Hour)
	h := NewHandler(env.store, tokens, env.catalog, env.otp, env.payments, env.emails, env.audit, zap.NewNop())

	r := gin.New()
	r.POST("/workshops/:id/registrations", h.Submit)
	reg := r.Group("/registrations")
	reg.Use(middleware.Session(tokens))
	{
		reg.GET("/state", h.GetState)
		reg.POST("/otp/verify", h.VerifyOTP)
		reg.POST("/otp/resend", h.ResendOTP)
		reg.POST("/payment/confirm", h.ConfirmPayment)
		reg.POST("/payment/dismiss", h.DismissCheckout)
		reg.POST("/cancel", h.Cancel)
	}
	env.router = r
	return env
}

type apiBody struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (int, apiBody) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out apiBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return w.Code, out
}

func (e *testEnv) submit(t *testing.T, workshopID string, method models.PaymentMethod) string {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/workshops/"+workshopID+"/registrations", "", gin.H{
		"name": "Asha", "email": "asha@example.com", "phone": "9876543210",
		"payment_method": method,
	})
	require.Equal(t, http.StatusCreated, status, "error: %s", body.Error)
	token, _ := body.Data["session_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestSubmit_IssuesSessionToken(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/workshops/w1/registrations", "", gin.H{
		"name": "Asha", "email": "asha@example.com", "phone": "9876543210",
	})

	require.Equal(t, http.StatusCreated, status)
	assert.True(t, body.Success)
	assert.Equal(t, string(flow.StateOTPPending), body.Data["state"])
	assert.NotEmpty(t, body.Data["session_token"])
	assert.Equal(t, 1, env.store.count())
}

func TestSubmit_UnknownWorkshop(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/workshops/nope/registrations", "", gin.H{
		"name": "Asha", "email": "asha@example.com", "phone": "9876543210",
	})

	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, body.Success)
	assert.Zero(t, env.store.count())
}

func TestSubmit_FullWorkshop(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.workshop.BookedSeats = env.catalog.workshop.MaxSeats

	status, body := env.do(t, http.MethodPost, "/workshops/w1/registrations", "", gin.H{
		"name": "Asha", "email": "asha@example.com", "phone": "9876543210",
	})

	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, models.CodeWorkshopFull, body.Code)
}

func TestSubmit_MissingEmail(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/workshops/w1/registrations", "", gin.H{
		"name": "Asha", "phone": "9876543210",
	})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, body.Code)
}

func TestSubmit_DuplicateRegistration(t *testing.T) {
	env := newTestEnv(t)
	env.otp.sendErr = fmt.Errorf("send otp: %w", models.ErrDuplicateRegistration)

	status, body := env.do(t, http.MethodPost, "/workshops/w1/registrations", "", gin.H{
		"name": "Asha", "email": "asha@example.com", "phone": "9876543210",
	})

	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, models.CodeDuplicate, body.Code)
	require.NotNil(t, env.audit.last())
	assert.Equal(t, audit.OutcomeCancelled, env.audit.last().Outcome)
}

func TestFlowSteps_RequireToken(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/registrations/otp/verify", "", gin.H{"otp": "123456"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodPost, "/registrations/otp/verify", "garbage", gin.H{"otp": "123456"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestVerifyOTP_FreeFlowFinalizes(t *testing.T) {
	env := newTestEnv(t)
	token := env.submit(t, "w1", "")

	status, body := env.do(t, http.MethodPost, "/registrations/otp/verify", token, gin.H{"otp": "123456"})

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(flow.StateSucceeded), body.Data["state"])
	require.Contains(t, body.Data, "confirmation")

	// Success finalization: audit row, confirmation email job, session gone.
	require.NotNil(t, env.audit.last())
	assert.Equal(t, audit.OutcomeSucceeded, env.audit.last().Outcome)
	require.Len(t, env.emails.payloads, 1)
	assert.Equal(t, "asha@example.com", env.emails.payloads[0].RecipientEmail)
	assert.Equal(t, "Latte Art 101", env.emails.payloads[0].WorkshopTitle)
	assert.Zero(t, env.store.count())

	status, _ = env.do(t, http.MethodGet, "/registrations/state", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestVerifyOTP_WrongCodeIsRetryable(t *testing.T) {
	env := newTestEnv(t)
	token := env.submit(t, "w1", "")
	env.otp.verifyErr = fmt.Errorf("verify otp: %w", models.ErrInvalidOTP)

	status, body := env.do(t, http.MethodPost, "/registrations/otp/verify", token, gin.H{"otp": "000000"})

	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, models.CodeInvalidOTP, body.Code)

	// The session survives and the right code still works.
	env.otp.verifyErr = nil
	status, body = env.do(t, http.MethodPost, "/registrations/otp/verify", token, gin.H{"otp": "123456"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(flow.StateSucceeded), body.Data["state"])
}

func TestVerifyOTP_DuplicateDropsSession(t *testing.T) {
	env := newTestEnv(t)
	token := env.submit(t, "w1", "")
	env.otp.verifyErr = fmt.Errorf("verify otp: %w", models.ErrDuplicateRegistration)

	status, body := env.do(t, http.MethodPost, "/registrations/otp/verify", token, gin.H{"otp": "123456"})

	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, models.CodeDuplicate, body.Code)
	assert.Zero(t, env.store.count())
	assert.Equal(t, audit.OutcomeCancelled, env.audit.last().Outcome)
}

func TestOnlineFlow_VerifyReturnsCheckoutThenConfirmFinalizes(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.workshop.Price = 750
	token := env.submit(t, "w1", models.PaymentOnline)

	status, body := env.do(t, http.MethodPost, "/registrations/otp/verify", token, gin.H{"otp": "123456"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(flow.StatePaymentAwaitingCallback), body.Data["state"])
	checkout, ok := body.Data["checkout"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "order_abc", checkout["order_id"])
	assert.Equal(t, float64(75000), checkout["amount"])
	assert.Equal(t, "temp-42", checkout["temp_registration_id"])

	status, body = env.do(t, http.MethodPost, "/registrations/payment/confirm", token, gin.H{
		"razorpay_order_id": "order_abc", "razorpay_payment_id": "pay_123", "razorpay_signature": "sig",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(flow.StateSucceeded), body.Data["state"])
	assert.Equal(t, audit.OutcomeSucceeded, env.audit.last().Outcome)
	require.Len(t, env.emails.payloads, 1)
	assert.Equal(t, models.PaymentOnline, env.emails.payloads[0].PaymentMethod)
	assert.Equal(t, 750, env.emails.payloads[0].Amount)
}

func TestConfirmPayment_BadSignature(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.workshop.Price = 750
	token := env.submit(t, "w1", models.PaymentOnline)
	_, _ = env.do(t, http.MethodPost, "/registrations/otp/verify", token, gin.H{"otp": "123456"})
	env.payments.verifyErr = fmt.Errorf("verify payment: %w", models.ErrInvalidSignature)

	status, body := env.do(t, http.MethodPost, "/registrations/payment/confirm", token, gin.H{
		"razorpay_order_id": "order_abc", "razorpay_payment_id": "pay_123", "razorpay_signature": "forged",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, models.CodeInvalidSignature, body.Code)
	assert.Equal(t, audit.OutcomeFailed, env.audit.last().Outcome)
	assert.Empty(t, env.emails.payloads)

	// The failed state is persisted so GetState explains what happened.
	status, body = env.do(t, http.MethodGet, "/registrations/state", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(flow.StateFailed), body.Data["state"])
}

func TestDismissCheckout(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.workshop.Price = 750
	token := env.submit(t, "w1", models.PaymentOnline)
	_, _ = env.do(t, http.MethodPost, "/registrations/otp/verify", token, gin.H{"otp": "123456"})

	status, body := env.do(t, http.MethodPost, "/registrations/payment/dismiss", token, nil)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(flow.StateFailed), body.Data["state"])
	failure, ok := body.Data["failure"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, models.CodePaymentDismissed, failure["code"])
	assert.Equal(t, audit.OutcomeFailed, env.audit.last().Outcome)
	assert.Empty(t, env.emails.payloads)
}

func TestResendOTP(t *testing.T) {
	env := newTestEnv(t)
	token := env.submit(t, "w1", "")

	status, body := env.do(t, http.MethodPost, "/registrations/otp/resend", token, nil)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(flow.StateOTPPending), body.Data["state"])
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t)
	token := env.submit(t, "w1", "")

	status, body := env.do(t, http.MethodPost, "/registrations/cancel", token, nil)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(flow.StateCancelled), body.Data["state"])
	assert.Equal(t, audit.OutcomeCancelled, env.audit.last().Outcome)
	assert.Zero(t, env.store.count())
}

func TestGetState_ReportsDraftSummary(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.workshop.Price = 500
	token := env.submit(t, "w1", models.PaymentAtEntry)

	status, body := env.do(t, http.MethodGet, "/registrations/state", token, nil)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(flow.StateOTPPending), body.Data["state"])
	assert.Equal(t, "w1", body.Data["workshop_id"])
	assert.Equal(t, string(models.PaymentAtEntry), body.Data["payment_method"])
	assert.Equal(t, float64(500), body.Data["amount"])
}

func TestGetState_ExpiredSession(t *testing.T) {
	env := newTestEnv(t)
	token := env.submit(t, "w1", "")
	env.store.snaps = map[string]flow.Snapshot{}

	status, _ := env.do(t, http.MethodGet, "/registrations/state", token, nil)

	assert.Equal(t, http.StatusNotFound, status)
}
