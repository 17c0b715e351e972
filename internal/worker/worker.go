// Package worker processes confirmation email jobs off the Redis queue.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cafe-robusta/backend/internal/audit"
	"github.com/cafe-robusta/backend/internal/mailer"
	"github.com/cafe-robusta/backend/internal/models"
	"github.com/cafe-robusta/backend/pkg/queue"
)

// EmailProcessor sends booking confirmation emails and records each
// outcome in the audit trail.
type EmailProcessor struct {
	mailer *mailer.Mailer
	audit  *audit.Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewEmailProcessor creates a confirmation email processor.
func NewEmailProcessor(m *mailer.Mailer, auditRepo *audit.Repository, q *queue.Queue, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{mailer: m, audit: auditRepo, queue: q, logger: logger}
}

// Process executes one confirmation email job.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeConfirmationEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ConfirmationEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	subject := "You're booked: " + payload.WorkshopTitle
	body := confirmationBody(payload)

	rec := &audit.EmailRecord{
		WorkshopID: payload.WorkshopID,
		Recipient:  payload.RecipientEmail,
		Subject:    subject,
	}

	err := p.mailer.Send(payload.RecipientEmail, subject, body)
	switch {
	case err == nil:
		rec.Status = "sent"
	case errors.Is(err, mailer.ErrDisabled):
		rec.Status = "skipped"
		rec.Detail = err.Error()
	default:
		rec.Status = "failed"
		rec.Detail = err.Error()
	}
	if auditErr := p.audit.RecordEmail(ctx, rec); auditErr != nil {
		p.logger.Error("record email failed", zap.Error(auditErr))
	}
	if err != nil && !errors.Is(err, mailer.ErrDisabled) {
		return err
	}
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}

func confirmationBody(p queue.ConfirmationEmailPayload) string {
	var paymentLine string
	switch p.PaymentMethod {
	case models.PaymentOnline:
		paymentLine = fmt.Sprintf("Payment received: Rs. %d.", p.Amount)
	case models.PaymentAtEntry:
		paymentLine = fmt.Sprintf("Amount due at entry: Rs. %d.", p.Amount)
	default:
		paymentLine = "This workshop is free."
	}
	return fmt.Sprintf(
		"Hi %s,\n\nYour seat for %s is confirmed.\n\nWhen: %s at %s\n%s\n\nSee you at the cafe!\n",
		p.RecipientName, p.WorkshopTitle, p.WorkshopDate, p.WorkshopTime, paymentLine,
	)
}
