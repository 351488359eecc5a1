// Package domain provides core business rules for the follow-up bounded context.
package domain

// StepType identifies the kind of a sequence step.
type StepType string

const (
	StepTypeEmail     StepType = "EMAIL"
	StepTypeWait      StepType = "WAIT"
	StepTypeCondition StepType = "CONDITION"
	StepTypeAction    StepType = "ACTION"
)

// Valid reports whether the step type is a known value.
func (t StepType) Valid() bool {
	switch t {
	case StepTypeEmail, StepTypeWait, StepTypeCondition, StepTypeAction:
		return true
	}
	return false
}

// CulturalTone is the register a reminder is written in. Tone escalates
// over the course of a sequence.
type CulturalTone string

const (
	ToneGentle       CulturalTone = "GENTLE"
	ToneProfessional CulturalTone = "PROFESSIONAL"
	ToneFirm         CulturalTone = "FIRM"
	ToneUrgent       CulturalTone = "URGENT"
)

// Valid reports whether the tone is a known value.
func (t CulturalTone) Valid() bool {
	switch t {
	case ToneGentle, ToneProfessional, ToneFirm, ToneUrgent:
		return true
	}
	return false
}

// DelayUnit is the unit of a WAIT step's delay.
type DelayUnit string

const (
	UnitHours DelayUnit = "HOURS"
	UnitDays  DelayUnit = "DAYS"
	UnitWeeks DelayUnit = "WEEKS"
)

// Valid reports whether the delay unit is a known value.
func (u DelayUnit) Valid() bool {
	switch u {
	case UnitHours, UnitDays, UnitWeeks:
		return true
	}
	return false
}

// Days converts a delay in this unit to fractional days.
func (u DelayUnit) Days(delay int) float64 {
	switch u {
	case UnitHours:
		return float64(delay) / 24
	case UnitWeeks:
		return float64(delay) * 7
	default:
		return float64(delay)
	}
}

// DeliveryStatus is the lifecycle state of a follow-up instance.
type DeliveryStatus string

const (
	StatusQueued    DeliveryStatus = "QUEUED"
	StatusSent      DeliveryStatus = "SENT"
	StatusDelivered DeliveryStatus = "DELIVERED"
	StatusBounced   DeliveryStatus = "BOUNCED"
	StatusHeld      DeliveryStatus = "HELD"
	StatusCancelled DeliveryStatus = "CANCELLED"
	StatusSkipped   DeliveryStatus = "SKIPPED"
)

// Valid reports whether the delivery status is a known value.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusSent, StatusDelivered, StatusBounced,
		StatusHeld, StatusCancelled, StatusSkipped:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are expected from this status.
func (s DeliveryStatus) Terminal() bool {
	switch s {
	case StatusCancelled, StatusSkipped:
		return true
	}
	return false
}

// EscalationLevel is the tone-and-urgency tier of a consolidated reminder.
type EscalationLevel string

const (
	LevelPolite EscalationLevel = "POLITE"
	LevelFirm   EscalationLevel = "FIRM"
	LevelUrgent EscalationLevel = "URGENT"
	LevelFinal  EscalationLevel = "FINAL"
)

// Valid reports whether the escalation level is a known value.
func (l EscalationLevel) Valid() bool {
	switch l {
	case LevelPolite, LevelFirm, LevelUrgent, LevelFinal:
		return true
	}
	return false
}

// Tone maps an escalation level to the cultural tone used when inserting
// an escalated step into a running sequence.
func (l EscalationLevel) Tone() CulturalTone {
	switch l {
	case LevelPolite:
		return ToneGentle
	case LevelFirm:
		return ToneFirm
	case LevelUrgent, LevelFinal:
		return ToneUrgent
	default:
		return ToneProfessional
	}
}
