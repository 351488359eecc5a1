// Package escalation evaluates escalation rules against active follow-up
// instances and applies at most one action per instance per pass.
package escalation

import (
	"time"

	"reminder_backend/internal/followup/domain"

	"github.com/google/uuid"
)

// TriggerCondition identifies what customer behavior fires a rule.
type TriggerCondition string

const (
	TriggerNoResponse     TriggerCondition = "NO_RESPONSE"
	TriggerNoPayment      TriggerCondition = "NO_PAYMENT"
	TriggerPartialPayment TriggerCondition = "PARTIAL_PAYMENT"
	TriggerBounce         TriggerCondition = "BOUNCE"
	TriggerComplaint      TriggerCondition = "COMPLAINT"
	TriggerManual         TriggerCondition = "MANUAL"
)

// ActionType identifies what a fired rule does to the instance.
type ActionType string

const (
	ActionAccelerate      ActionType = "ACCELERATE"
	ActionEscalateUrgency ActionType = "ESCALATE_URGENCY"
	ActionHold            ActionType = "HOLD"
	ActionChangeSequence  ActionType = "CHANGE_SEQUENCE"
	ActionNotifyManager   ActionType = "NOTIFY_MANAGER"
	ActionSkipStep        ActionType = "SKIP_STEP"
)

// Trigger is the condition side of a rule. TimeframeHours applies to
// NO_RESPONSE and NO_PAYMENT; Threshold applies to PARTIAL_PAYMENT as a
// paid-ratio in (0, 1].
type Trigger struct {
	Condition      TriggerCondition `json:"condition"`
	TimeframeHours int              `json:"timeframeHours,omitempty"`
	Threshold      float64          `json:"threshold,omitempty"`
}

// Action is the effect side of a rule. Only the fields matching Type are
// meaningful.
type Action struct {
	Type ActionType `json:"type"`
	// ReduceDays pulls the next queued step forward (ACCELERATE).
	ReduceDays int `json:"reduceDays,omitempty"`
	// NewLevel selects the replacement tier (ESCALATE_URGENCY).
	NewLevel domain.EscalationLevel `json:"newLevel,omitempty"`
	// HoldFor and Permanent shape a HOLD. Permanent wins over HoldFor.
	HoldFor   time.Duration `json:"holdFor,omitempty"`
	Permanent bool          `json:"permanent,omitempty"`
	// SequenceID is the target sequence (CHANGE_SEQUENCE).
	SequenceID uuid.UUID `json:"sequenceId,omitempty"`
}

// Scope restricts which instances a rule considers at all. Nil pointers
// mean unrestricted.
type Scope struct {
	MinAmount            *float64 `json:"minAmount,omitempty"`
	MaxAmount            *float64 `json:"maxAmount,omitempty"`
	CustomerSegments     []string `json:"customerSegments,omitempty"`
	DaysSinceLastContact *int     `json:"daysSinceLastContact,omitempty"`
}

// Rule is one configured escalation rule. Priority orders evaluation:
// lower numbers run first and the first match wins.
type Rule struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Trigger  Trigger   `json:"trigger"`
	Action   Action    `json:"action"`
	Priority int       `json:"priority"`
	Scope    Scope     `json:"scope"`
	Active   bool      `json:"active"`
}

// DefaultRules is the built-in rule set used when no overrides are
// configured. Priorities leave gaps for tenant-specific insertions.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:       uuid.New(),
			Name:     "Bounce hold",
			Trigger:  Trigger{Condition: TriggerBounce},
			Action:   Action{Type: ActionHold, Permanent: true},
			Priority: 10,
			Active:   true,
		},
		{
			ID:       uuid.New(),
			Name:     "Complaint hold",
			Trigger:  Trigger{Condition: TriggerComplaint},
			Action:   Action{Type: ActionHold, HoldFor: 7 * 24 * time.Hour},
			Priority: 20,
			Active:   true,
		},
		{
			ID:       uuid.New(),
			Name:     "Manual escalation",
			Trigger:  Trigger{Condition: TriggerManual},
			Action:   Action{Type: ActionEscalateUrgency, NewLevel: domain.LevelUrgent},
			Priority: 30,
			Active:   true,
		},
		{
			ID:       uuid.New(),
			Name:     "Large invoice unanswered",
			Trigger:  Trigger{Condition: TriggerNoResponse, TimeframeHours: 48},
			Action:   Action{Type: ActionNotifyManager},
			Priority: 40,
			Scope:    Scope{MinAmount: amount(25000)},
			Active:   true,
		},
		{
			ID:       uuid.New(),
			Name:     "No payment after three days",
			Trigger:  Trigger{Condition: TriggerNoPayment, TimeframeHours: 72},
			Action:   Action{Type: ActionAccelerate, ReduceDays: 2},
			Priority: 50,
			Active:   true,
		},
		{
			ID:       uuid.New(),
			Name:     "Token partial payment",
			Trigger:  Trigger{Condition: TriggerPartialPayment, Threshold: 0.25},
			Action:   Action{Type: ActionEscalateUrgency, NewLevel: domain.LevelFirm},
			Priority: 60,
			Active:   true,
		},
	}
}

func amount(v float64) *float64 { return &v }
