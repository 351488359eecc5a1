package domain

import (
	"github.com/google/uuid"
)

// UAESettings controls which scheduling constraints apply when a step's
// send time is computed.
type UAESettings struct {
	RespectBusinessHours bool `json:"respectBusinessHours"`
	HonorPrayerTimes     bool `json:"honorPrayerTimes"`
	RespectHolidays      bool `json:"respectHolidays"`
}

// EmailConfig is the configuration carried by an EMAIL step. A step needs
// either a template reference or custom content; Validate enforces this.
type EmailConfig struct {
	TemplateID *uuid.UUID `json:"templateId,omitempty"`
	Subject    string     `json:"subject,omitempty"`
	Body       string     `json:"body,omitempty"`
}

// HasContent reports whether the step carries something sendable.
func (c *EmailConfig) HasContent() bool {
	return c != nil && (c.TemplateID != nil || c.Body != "")
}

// WaitConfig is the configuration carried by a WAIT step.
type WaitConfig struct {
	Delay int       `json:"delay"`
	Unit  DelayUnit `json:"unit"`
}

// ConditionCheck identifies what a CONDITION step inspects.
type ConditionCheck string

const (
	CheckPaymentReceived ConditionCheck = "PAYMENT_RECEIVED"
	CheckEmailOpened     ConditionCheck = "EMAIL_OPENED"
	CheckEmailClicked    ConditionCheck = "EMAIL_CLICKED"
)

// ConditionConfig is the configuration carried by a CONDITION step. When the
// check holds, execution jumps to GoToStep; otherwise it continues in order.
type ConditionConfig struct {
	Check    ConditionCheck `json:"check"`
	GoToStep int            `json:"goToStep,omitempty"`
}

// ActionOp identifies the side effect an ACTION step performs.
type ActionOp string

const (
	OpNotifyTeam      ActionOp = "NOTIFY_TEAM"
	OpMarkPriority    ActionOp = "MARK_PRIORITY"
	OpEscalateToPhone ActionOp = "ESCALATE_TO_PHONE"
)

// ActionConfig is the configuration carried by an ACTION step.
type ActionConfig struct {
	Op   ActionOp `json:"op"`
	Note string   `json:"note,omitempty"`
}

// Step is one element of a follow-up sequence. Exactly one of the config
// pointers is non-nil, matching Type.
type Step struct {
	ID    uuid.UUID    `json:"id"`
	Order int          `json:"order"`
	Name  string       `json:"name"`
	Type  StepType     `json:"type"`
	Tone  CulturalTone `json:"tone"`
	UAE   UAESettings  `json:"uaeSettings"`

	Email     *EmailConfig     `json:"email,omitempty"`
	Wait      *WaitConfig      `json:"wait,omitempty"`
	Condition *ConditionConfig `json:"condition,omitempty"`
	Action    *ActionConfig    `json:"action,omitempty"`
}

// Clone returns a deep copy of the step with a fresh ID.
func (s Step) Clone() Step {
	copied := s
	copied.ID = uuid.New()

	if s.Email != nil {
		email := *s.Email
		if s.Email.TemplateID != nil {
			tid := *s.Email.TemplateID
			email.TemplateID = &tid
		}
		copied.Email = &email
	}
	if s.Wait != nil {
		wait := *s.Wait
		copied.Wait = &wait
	}
	if s.Condition != nil {
		cond := *s.Condition
		copied.Condition = &cond
	}
	if s.Action != nil {
		action := *s.Action
		copied.Action = &action
	}

	return copied
}

// durationDays returns the step's contribution to the sequence duration.
// Only WAIT steps contribute.
func (s Step) durationDays() float64 {
	if s.Type != StepTypeWait || s.Wait == nil {
		return 0
	}
	return s.Wait.Unit.Days(s.Wait.Delay)
}
