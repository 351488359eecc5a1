// Package email delivers reminder emails over SMTP and renders the
// tone-calibrated templates. Delivery outcomes (bounces, opens, clicks)
// do not come back through this package; they arrive later as engagement
// events through persistence.
package email

import (
	"context"
	"time"

	"reminder_backend/platform/config"
	"reminder_backend/platform/logger"

	"github.com/google/uuid"
)

// ReminderParams is one individual follow-up email.
type ReminderParams struct {
	ToEmail       string
	ToName        string
	Tone          string
	Subject       string
	Body          string
	InvoiceNumber string
	Amount        float64
	Currency      string
	DueDate       time.Time
	PaymentURL    string
}

// ConsolidatedParams is one consolidated reminder covering several
// invoices.
type ConsolidatedParams struct {
	ToEmail      string
	ToName       string
	TemplateTier string
	Invoices     []ConsolidatedInvoice
	TotalAmount  float64
	Currency     string
	PaymentURL   string
}

// ConsolidatedInvoice is one line in a consolidated reminder.
type ConsolidatedInvoice struct {
	Number      string
	Amount      float64
	DueDate     time.Time
	DaysOverdue int
}

// Sender delivers reminder emails. Send methods return a delivery log id
// for correlating later engagement events.
type Sender interface {
	SendReminder(ctx context.Context, p ReminderParams) (uuid.UUID, error)
	SendConsolidatedReminder(ctx context.Context, p ConsolidatedParams) (uuid.UUID, error)
	SendManagerAlert(ctx context.Context, toEmail string, invoiceID uuid.UUID, reason string) error
}

// NewSender picks the sender implementation from configuration: SMTP when
// enabled and configured, otherwise a logging no-op so development
// environments never email real customers.
func NewSender(cfg config.EmailConfig, log *logger.Logger) Sender {
	if cfg.GetEmailEnabled() && cfg.GetSMTPHost() != "" {
		return NewSMTPSender(
			cfg.GetSMTPHost(),
			cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(),
			cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(),
			cfg.GetEmailFromName(),
		)
	}
	log.Warn("email sending disabled, using no-op sender")
	return &NoopSender{log: log}
}

// NoopSender logs instead of sending. Used in development and tests.
type NoopSender struct {
	log *logger.Logger
}

func (s *NoopSender) SendReminder(_ context.Context, p ReminderParams) (uuid.UUID, error) {
	id := uuid.New()
	s.log.Info("noop reminder email", "to", p.ToEmail, "tone", p.Tone, "log_id", id)
	return id, nil
}

func (s *NoopSender) SendConsolidatedReminder(_ context.Context, p ConsolidatedParams) (uuid.UUID, error) {
	id := uuid.New()
	s.log.Info("noop consolidated reminder email",
		"to", p.ToEmail, "tier", p.TemplateTier, "invoices", len(p.Invoices), "log_id", id)
	return id, nil
}

func (s *NoopSender) SendManagerAlert(_ context.Context, toEmail string, invoiceID uuid.UUID, reason string) error {
	s.log.Info("noop manager alert", "to", toEmail, "invoice_id", invoiceID, "reason", reason)
	return nil
}
