package email

import (
	"context"

	"reminder_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Dispatcher wraps a Sender with outbound rate limiting so batch passes
// cannot burst the SMTP relay past its throttling thresholds.
type Dispatcher struct {
	sender  Sender
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewDispatcher creates a dispatcher limited to perSecond sends. Values
// at or below zero disable limiting.
func NewDispatcher(sender Sender, perSecond float64, log *logger.Logger) *Dispatcher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Dispatcher{
		sender:  sender,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
	}
}

func (d *Dispatcher) SendReminder(ctx context.Context, p ReminderParams) (uuid.UUID, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return uuid.Nil, err
	}
	return d.sender.SendReminder(ctx, p)
}

func (d *Dispatcher) SendConsolidatedReminder(ctx context.Context, p ConsolidatedParams) (uuid.UUID, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return uuid.Nil, err
	}
	return d.sender.SendConsolidatedReminder(ctx, p)
}

func (d *Dispatcher) SendManagerAlert(ctx context.Context, toEmail string, invoiceID uuid.UUID, reason string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	return d.sender.SendManagerAlert(ctx, toEmail, invoiceID, reason)
}

// Interface check
var _ Sender = (*Dispatcher)(nil)
