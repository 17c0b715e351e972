// Package audit records registration attempt outcomes and confirmation
// emails for operations. The content backend remains the source of truth
// for bookings; losing an audit row never affects a booking.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Outcome values for registration attempts.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// Attempt is one terminal registration flow outcome.
type Attempt struct {
	ID            uuid.UUID `json:"id"`
	SessionID     string    `json:"session_id"`
	WorkshopID    string    `json:"workshop_id"`
	Email         string    `json:"email"`
	PaymentMethod string    `json:"payment_method"`
	Amount        int       `json:"amount"`
	Outcome       string    `json:"outcome"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

// EmailRecord is one confirmation email attempt.
type EmailRecord struct {
	ID         uuid.UUID `json:"id"`
	WorkshopID string    `json:"workshop_id"`
	Recipient  string    `json:"recipient"`
	Subject    string    `json:"subject"`
	Status     string    `json:"status"` // sent | skipped | failed
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repository persists audit rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordAttempt inserts a terminal flow outcome.
func (r *Repository) RecordAttempt(ctx context.Context, a *Attempt) error {
	const q = `INSERT INTO registration_attempts
		(id, session_id, workshop_id, email, payment_method, amount, outcome, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`
	a.ID = uuid.New()
	return r.pool.QueryRow(ctx, q,
		a.ID, a.SessionID, a.WorkshopID, a.Email, a.PaymentMethod, a.Amount, a.Outcome, a.Detail,
	).Scan(&a.CreatedAt)
}

// RecordEmail inserts a confirmation email outcome.
func (r *Repository) RecordEmail(ctx context.Context, e *EmailRecord) error {
	const q = `INSERT INTO confirmation_emails
		(id, workshop_id, recipient, subject, status, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`
	e.ID = uuid.New()
	return r.pool.QueryRow(ctx, q,
		e.ID, e.WorkshopID, e.Recipient, e.Subject, e.Status, e.Detail,
	).Scan(&e.CreatedAt)
}
