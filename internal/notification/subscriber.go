// Package notification turns domain events into outbound notifications.
// The escalation evaluator never emails anyone directly; it publishes a
// manager notification event consumed here.
package notification

import (
	"context"
	"fmt"

	"reminder_backend/internal/email"
	"reminder_backend/internal/events"
	"reminder_backend/platform/logger"
)

// Subscriber consumes follow-up domain events and dispatches the emails
// they imply.
type Subscriber struct {
	sender       email.Sender
	managerEmail string
	log          *logger.Logger
}

// NewSubscriber creates the notification subscriber.
func NewSubscriber(sender email.Sender, managerEmail string, log *logger.Logger) *Subscriber {
	return &Subscriber{
		sender:       sender,
		managerEmail: managerEmail,
		log:          log,
	}
}

// Register subscribes the handlers on the bus.
func (s *Subscriber) Register(bus events.Bus) {
	bus.Subscribe(events.ManagerNotificationRequested{}.EventName(), events.HandlerFunc(s.handleManagerNotification))
	bus.Subscribe(events.EscalationApplied{}.EventName(), events.HandlerFunc(s.handleEscalationApplied))
}

func (s *Subscriber) handleManagerNotification(ctx context.Context, event events.Event) error {
	e, ok := event.(events.ManagerNotificationRequested)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	if s.managerEmail == "" {
		s.log.Warn("manager notification dropped, no manager email configured",
			"invoice_id", e.InvoiceID)
		return nil
	}
	return s.sender.SendManagerAlert(ctx, s.managerEmail, e.InvoiceID, e.Reason)
}

// handleEscalationApplied keeps an operational trace of every applied
// escalation without emailing anyone.
func (s *Subscriber) handleEscalationApplied(_ context.Context, event events.Event) error {
	e, ok := event.(events.EscalationApplied)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	s.log.Info("escalation applied",
		"invoice_id", e.InvoiceID,
		"instance_id", e.InstanceID,
		"rule", e.RuleName,
		"action", e.Action,
		"reason", e.Reason,
	)
	return nil
}
