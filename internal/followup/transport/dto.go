// Package transport defines the HTTP request and response shapes for the
// follow-up module.
package transport

import (
	"time"

	"reminder_backend/internal/followup/consolidation"
	"reminder_backend/internal/followup/domain"
	"reminder_backend/internal/followup/escalation"

	"github.com/google/uuid"
)

// CreateSequenceRequest is the request body for creating a sequence
type CreateSequenceRequest struct {
	Name                 string `json:"name" validate:"required,min=1,max=200"`
	UAEBusinessHoursOnly bool   `json:"uaeBusinessHoursOnly"`
	RespectHolidays      bool   `json:"respectHolidays"`
}

// UpdateSequenceRequest is the request body for updating sequence metadata
type UpdateSequenceRequest struct {
	Name                 string `json:"name" validate:"required,min=1,max=200"`
	Active               bool   `json:"active"`
	UAEBusinessHoursOnly bool   `json:"uaeBusinessHoursOnly"`
	RespectHolidays      bool   `json:"respectHolidays"`
}

// AddStepRequest is the request body for appending a step
type AddStepRequest struct {
	Type domain.StepType `json:"type" validate:"required,oneof=EMAIL WAIT CONDITION ACTION"`
}

// ReorderStepRequest moves the step at From to position To (1-based)
type ReorderStepRequest struct {
	From int `json:"from" validate:"required,min=1"`
	To   int `json:"to" validate:"required,min=1"`
}

// CreateReminderRequest is the request body for creating a consolidated
// reminder for one customer
type CreateReminderRequest struct {
	CustomerID uuid.UUID `json:"customerId" validate:"required"`
}

// SequenceResponse is the response body for a sequence
type SequenceResponse struct {
	ID                   uuid.UUID      `json:"id"`
	Name                 string         `json:"name"`
	Steps                []StepResponse `json:"steps"`
	Active               bool           `json:"active"`
	UAEBusinessHoursOnly bool           `json:"uaeBusinessHoursOnly"`
	RespectHolidays      bool           `json:"respectHolidays"`
	TotalDurationDays    float64        `json:"totalDurationDays"`
}

// StepResponse is one step in a sequence response
type StepResponse struct {
	ID          uuid.UUID              `json:"id"`
	Order       int                    `json:"order"`
	Type        domain.StepType        `json:"type"`
	Name        string                 `json:"name"`
	Tone        domain.CulturalTone    `json:"tone"`
	UAESettings domain.UAESettings     `json:"uaeSettings"`
	Email       *domain.EmailConfig    `json:"email,omitempty"`
	Wait        *domain.WaitConfig     `json:"wait,omitempty"`
	Condition   *domain.ConditionConfig `json:"condition,omitempty"`
	Action      *domain.ActionConfig   `json:"action,omitempty"`
}

// ValidationResponse reports every violation in a sequence definition
type ValidationResponse struct {
	Valid      bool               `json:"valid"`
	Violations []domain.Violation `json:"violations"`
}

// DurationResponse is the sequence's total span
type DurationResponse struct {
	Days float64 `json:"days"`
}

// CandidateResponse is one consolidation candidate
type CandidateResponse struct {
	CustomerID          uuid.UUID              `json:"customerId"`
	Invoices            []InvoiceResponse      `json:"invoices"`
	TotalAmount         float64                `json:"totalAmount"`
	OldestInvoiceDays   int                    `json:"oldestInvoiceDays"`
	LastContactDate     *time.Time             `json:"lastContactDate,omitempty"`
	NextEligibleContact *time.Time             `json:"nextEligibleContact,omitempty"`
	PriorityScore       int                    `json:"priorityScore"`
	EscalationLevel     domain.EscalationLevel `json:"escalationLevel"`
	CanContact          bool                   `json:"canContact"`
}

// InvoiceResponse is one invoice inside a candidate
type InvoiceResponse struct {
	ID          uuid.UUID `json:"id"`
	Amount      float64   `json:"amount"`
	DueDate     time.Time `json:"dueDate"`
	DaysOverdue int       `json:"daysOverdue"`
}

// ReminderResponse is one created consolidated reminder
type ReminderResponse struct {
	ID                uuid.UUID              `json:"id"`
	CustomerID        uuid.UUID              `json:"customerId"`
	InvoiceIDs        []uuid.UUID            `json:"invoiceIds"`
	TotalAmount       float64                `json:"totalAmount"`
	EscalationLevel   domain.EscalationLevel `json:"escalationLevel"`
	TemplateTier      string                 `json:"templateTier"`
	ScheduledSendTime time.Time              `json:"scheduledSendTime"`
	CreatedAt         time.Time              `json:"createdAt"`
}

// EscalationPassResponse is the aggregate result of one escalation pass
type EscalationPassResponse struct {
	Processed   int                         `json:"processed"`
	Escalated   int                         `json:"escalated"`
	Held        int                         `json:"held"`
	Accelerated int                         `json:"accelerated"`
	Failed      int                         `json:"failed"`
	Actions     []escalation.ActionLog      `json:"actions"`
	Errors      []escalation.InstanceError  `json:"errors,omitempty"`
}

// ResumePassResponse is the result of a hold-resume pass
type ResumePassResponse struct {
	Resumed int `json:"resumed"`
}

// ToSequenceResponse maps a domain sequence onto the wire shape
func ToSequenceResponse(seq *domain.Sequence) SequenceResponse {
	steps := make([]StepResponse, len(seq.Steps))
	for i, st := range seq.Steps {
		steps[i] = StepResponse{
			ID:          st.ID,
			Order:       st.Order,
			Type:        st.Type,
			Name:        st.Name,
			Tone:        st.Tone,
			UAESettings: st.UAE,
			Email:       st.Email,
			Wait:        st.Wait,
			Condition:   st.Condition,
			Action:      st.Action,
		}
	}
	return SequenceResponse{
		ID:                   seq.ID,
		Name:                 seq.Name,
		Steps:                steps,
		Active:               seq.Active,
		UAEBusinessHoursOnly: seq.UAEBusinessHoursOnly,
		RespectHolidays:      seq.RespectHolidays,
		TotalDurationDays:    seq.TotalDuration(),
	}
}

// ToCandidateResponse maps a consolidation candidate onto the wire shape
func ToCandidateResponse(c consolidation.Candidate) CandidateResponse {
	invoices := make([]InvoiceResponse, len(c.Invoices))
	for i, inv := range c.Invoices {
		invoices[i] = InvoiceResponse{
			ID:          inv.ID,
			Amount:      inv.Amount,
			DueDate:     inv.DueDate,
			DaysOverdue: inv.DaysOverdue,
		}
	}
	return CandidateResponse{
		CustomerID:          c.CustomerID,
		Invoices:            invoices,
		TotalAmount:         c.TotalAmount,
		OldestInvoiceDays:   c.OldestInvoiceDays,
		LastContactDate:     c.LastContactDate,
		NextEligibleContact: c.NextEligibleContact,
		PriorityScore:       c.PriorityScore,
		EscalationLevel:     c.EscalationLevel,
		CanContact:          c.CanContact,
	}
}

// ToReminderResponse maps a created reminder onto the wire shape
func ToReminderResponse(r consolidation.Reminder) ReminderResponse {
	return ReminderResponse{
		ID:                r.ID,
		CustomerID:        r.CustomerID,
		InvoiceIDs:        r.InvoiceIDs,
		TotalAmount:       r.TotalAmount,
		EscalationLevel:   r.EscalationLevel,
		TemplateTier:      r.TemplateTier,
		ScheduledSendTime: r.ScheduledSendTime,
		CreatedAt:         r.CreatedAt,
	}
}

// ToEscalationPassResponse maps an evaluator result onto the wire shape
func ToEscalationPassResponse(r escalation.Result) EscalationPassResponse {
	return EscalationPassResponse{
		Processed:   r.Processed,
		Escalated:   r.Escalated,
		Held:        r.Held,
		Accelerated: r.Accelerated,
		Failed:      r.Failed,
		Actions:     r.Actions,
		Errors:      r.Errors,
	}
}
