// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"reminder_backend/internal/followup/domain"
	"reminder_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Follow-Up Domain Events
// =============================================================================

// EscalationApplied is published when a rule fires against an instance.
type EscalationApplied struct {
	BaseEvent
	InstanceID uuid.UUID `json:"instanceId"`
	InvoiceID  uuid.UUID `json:"invoiceId"`
	RuleName   string    `json:"ruleName"`
	Action     string    `json:"action"`
	Reason     string    `json:"reason"`
}

func (e EscalationApplied) EventName() string { return "followups.escalation.applied" }

// FollowUpScheduled is published when a sequence step is queued for an
// invoice.
type FollowUpScheduled struct {
	BaseEvent
	InstanceID        uuid.UUID           `json:"instanceId"`
	InvoiceID         uuid.UUID           `json:"invoiceId"`
	StepNumber        int                 `json:"stepNumber"`
	Tone              domain.CulturalTone `json:"tone"`
	ScheduledSendTime time.Time           `json:"scheduledSendTime"`
}

func (e FollowUpScheduled) EventName() string { return "followups.instance.scheduled" }

// ManagerNotificationRequested is published when an escalation rule asks
// for a human to look at an invoice.
type ManagerNotificationRequested struct {
	BaseEvent
	InvoiceID uuid.UUID `json:"invoiceId"`
	Reason    string    `json:"reason"`
}

func (e ManagerNotificationRequested) EventName() string { return "followups.manager.notify" }

// =============================================================================
// Consolidation Domain Events
// =============================================================================

// ConsolidatedReminderCreated is published when several overdue invoices
// are bundled into one reminder.
type ConsolidatedReminderCreated struct {
	BaseEvent
	ReminderID        uuid.UUID              `json:"reminderId"`
	CustomerID        uuid.UUID              `json:"customerId"`
	InvoiceCount      int                    `json:"invoiceCount"`
	TotalAmount       float64                `json:"totalAmount"`
	EscalationLevel   domain.EscalationLevel `json:"escalationLevel"`
	TemplateTier      string                 `json:"templateTier"`
	ScheduledSendTime time.Time              `json:"scheduledSendTime"`
}

func (e ConsolidatedReminderCreated) EventName() string { return "followups.consolidation.created" }
