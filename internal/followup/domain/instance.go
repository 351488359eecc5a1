package domain

import (
	"time"

	"github.com/google/uuid"
)

// Instance is one sequence step in execution against one invoice. Rows are
// created when a step is scheduled and mutated only by the escalation
// evaluator and by delivery callbacks.
type Instance struct {
	ID                uuid.UUID      `json:"id"`
	InvoiceID         uuid.UUID      `json:"invoiceId"`
	SequenceID        uuid.UUID      `json:"sequenceId"`
	StepNumber        int            `json:"stepNumber"`
	Tone              CulturalTone   `json:"tone"`
	ScheduledSendTime time.Time      `json:"scheduledSendTime"`
	SentAt            *time.Time     `json:"sentAt,omitempty"`
	Status            DeliveryStatus `json:"status"`
	// ResumeAt is set when Status is HELD with a bounded duration; a nil
	// ResumeAt on a HELD instance means the hold is permanent-pending-review.
	ResumeAt  *time.Time `json:"resumeAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
