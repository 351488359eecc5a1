package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Sequence is an ordered set of follow-up steps executed against an
// overdue invoice. Step order is 1-based and contiguous; every mutation
// renumbers so the invariant holds afterwards.
type Sequence struct {
	ID                   uuid.UUID `json:"id"`
	Name                 string    `json:"name"`
	Steps                []Step    `json:"steps"`
	Active               bool      `json:"active"`
	UAEBusinessHoursOnly bool      `json:"uaeBusinessHoursOnly"`
	RespectHolidays      bool      `json:"respectHolidays"`
}

// Violation describes a single validation failure.
type Violation struct {
	StepID  *uuid.UUID `json:"stepId,omitempty"`
	Field   string     `json:"field"`
	Message string     `json:"message"`
}

// NewSequence creates an empty sequence with sensible defaults.
func NewSequence(name string) *Sequence {
	return &Sequence{
		ID:                   uuid.New(),
		Name:                 name,
		Steps:                []Step{},
		Active:               true,
		UAEBusinessHoursOnly: true,
		RespectHolidays:      true,
	}
}

// AddStep appends a step of the given type with type-appropriate defaults
// and returns a pointer to the appended step.
func (s *Sequence) AddStep(stepType StepType) (*Step, error) {
	if !stepType.Valid() {
		return nil, fmt.Errorf("unknown step type %q", stepType)
	}

	step := Step{
		ID:    uuid.New(),
		Order: len(s.Steps) + 1,
		Type:  stepType,
		Tone:  ToneProfessional,
		UAE: UAESettings{
			RespectBusinessHours: s.UAEBusinessHoursOnly,
			RespectHolidays:      s.RespectHolidays,
		},
	}

	switch stepType {
	case StepTypeEmail:
		step.Name = "Payment reminder"
		step.Email = &EmailConfig{}
	case StepTypeWait:
		step.Name = "Wait"
		step.Wait = &WaitConfig{Delay: 3, Unit: UnitDays}
	case StepTypeCondition:
		step.Name = "Check response"
		step.Condition = &ConditionConfig{Check: CheckPaymentReceived}
	case StepTypeAction:
		step.Name = "Internal action"
		step.Action = &ActionConfig{Op: OpNotifyTeam}
	}

	s.Steps = append(s.Steps, step)
	return &s.Steps[len(s.Steps)-1], nil
}

// DeleteStep removes the step with the given id and renumbers the
// remaining steps contiguously from 1.
func (s *Sequence) DeleteStep(id uuid.UUID) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("step %s not found", id)
	}

	s.Steps = append(s.Steps[:idx], s.Steps[idx+1:]...)
	s.renumber()
	return nil
}

// DuplicateStep inserts a copy of the step immediately after the original,
// shifting subsequent order values by one. The copy's name gets a suffix.
func (s *Sequence) DuplicateStep(id uuid.UUID) (*Step, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("step %s not found", id)
	}

	copied := s.Steps[idx].Clone()
	copied.Name = copied.Name + " (copy)"

	s.Steps = append(s.Steps, Step{})
	copy(s.Steps[idx+2:], s.Steps[idx+1:])
	s.Steps[idx+1] = copied
	s.renumber()

	return &s.Steps[idx+1], nil
}

// Reorder moves the step at 1-based position from to position to and
// renumbers all steps.
func (s *Sequence) Reorder(from, to int) error {
	n := len(s.Steps)
	if from < 1 || from > n || to < 1 || to > n {
		return fmt.Errorf("reorder positions out of range: from=%d to=%d n=%d", from, to, n)
	}
	if from == to {
		return nil
	}

	moved := s.Steps[from-1]
	without := make([]Step, 0, n-1)
	without = append(without, s.Steps[:from-1]...)
	without = append(without, s.Steps[from:]...)

	steps := make([]Step, 0, n)
	steps = append(steps, without[:to-1]...)
	steps = append(steps, moved)
	steps = append(steps, without[to-1:]...)

	s.Steps = steps
	s.renumber()
	return nil
}

// Validate returns all violations in the sequence. An empty slice means
// the sequence is valid.
func (s *Sequence) Validate() []Violation {
	var violations []Violation

	if s.Name == "" {
		violations = append(violations, Violation{Field: "name", Message: "name is required"})
	}
	if len(s.Steps) == 0 {
		violations = append(violations, Violation{Field: "steps", Message: "at least one step is required"})
	}

	for i := range s.Steps {
		step := &s.Steps[i]
		switch step.Type {
		case StepTypeEmail:
			if !step.Email.HasContent() {
				violations = append(violations, Violation{
					StepID:  &step.ID,
					Field:   "email",
					Message: fmt.Sprintf("step %d: email step needs a template or custom content", step.Order),
				})
			}
		case StepTypeWait:
			if step.Wait == nil || step.Wait.Delay <= 0 {
				violations = append(violations, Violation{
					StepID:  &step.ID,
					Field:   "wait",
					Message: fmt.Sprintf("step %d: wait step needs a delay greater than zero", step.Order),
				})
			}
		}
	}

	return violations
}

// TotalDuration returns the sequence's span in days: the sum of WAIT step
// delays normalized to days. Non-WAIT steps contribute nothing.
func (s *Sequence) TotalDuration() float64 {
	var total float64
	for _, step := range s.Steps {
		total += step.durationDays()
	}
	return total
}

// StepByOrder returns the step at the given 1-based position, or nil.
func (s *Sequence) StepByOrder(order int) *Step {
	if order < 1 || order > len(s.Steps) {
		return nil
	}
	return &s.Steps[order-1]
}

func (s *Sequence) indexOf(id uuid.UUID) int {
	for i := range s.Steps {
		if s.Steps[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Sequence) renumber() {
	for i := range s.Steps {
		s.Steps[i].Order = i + 1
	}
}
