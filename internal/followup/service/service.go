// Package service orchestrates the follow-up engine: sequence authoring
// on top of the domain state machine, and the batch passes invoked by
// the scheduler worker and the admin HTTP surface.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reminder_backend/internal/events"
	"reminder_backend/internal/followup/consolidation"
	"reminder_backend/internal/followup/domain"
	"reminder_backend/internal/followup/escalation"
	"reminder_backend/internal/followup/repository"
	"reminder_backend/internal/followup/schedule"
	"reminder_backend/platform/apperr"
	"reminder_backend/platform/logger"

	"github.com/google/uuid"
)

// sendBatchSize bounds how many due items one send pass picks up.
const sendBatchSize = 200

// Sender is the slice of the email surface the send pass needs.
type Sender interface {
	SendReminder(ctx context.Context, p ReminderEmail) (uuid.UUID, error)
	SendConsolidatedReminder(ctx context.Context, p ConsolidatedEmail) (uuid.UUID, error)
}

// ReminderEmail mirrors email.ReminderParams without importing the email
// package, keeping the service free of transport-level dependencies.
type ReminderEmail struct {
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

// ConsolidatedEmail mirrors email.ConsolidatedParams.
type ConsolidatedEmail struct {
	ToEmail      string
	ToName       string
	TemplateTier string
	Invoices     []ConsolidatedEmailLine
	TotalAmount  float64
	Currency     string
	PaymentURL   string
}

// ConsolidatedEmailLine is one invoice row in a consolidated email.
type ConsolidatedEmailLine struct {
	Number      string
	Amount      float64
	DueDate     time.Time
	DaysOverdue int
}

// Service wires the follow-up engine's use cases
type Service struct {
	repo       *repository.Repository
	evaluator  *escalation.Evaluator
	selector   *consolidation.Selector
	rules      []escalation.Rule
	bus        events.Bus
	sender     Sender
	appBaseURL string
	log        *logger.Logger
	now        func() time.Time
}

// New creates the follow-up service
func New(
	repo *repository.Repository,
	evaluator *escalation.Evaluator,
	selector *consolidation.Selector,
	rules []escalation.Rule,
	bus events.Bus,
	sender Sender,
	appBaseURL string,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:       repo,
		evaluator:  evaluator,
		selector:   selector,
		rules:      rules,
		bus:        bus,
		sender:     sender,
		appBaseURL: appBaseURL,
		log:        log,
		now:        time.Now,
	}
}

// =============================================================================
// Sequence authoring
// =============================================================================

// CreateSequence creates an empty sequence
func (s *Service) CreateSequence(ctx context.Context, name string, uaeBusinessHoursOnly, respectHolidays bool) (*domain.Sequence, error) {
	if name == "" {
		return nil, apperr.Validation("sequence name is required")
	}

	seq := domain.NewSequence(name)
	seq.UAEBusinessHoursOnly = uaeBusinessHoursOnly
	seq.RespectHolidays = respectHolidays

	if err := s.repo.CreateSequence(ctx, seq); err != nil {
		return nil, err
	}
	return seq, nil
}

// GetSequence fetches one sequence
func (s *Service) GetSequence(ctx context.Context, id uuid.UUID) (*domain.Sequence, error) {
	return s.repo.GetSequence(ctx, id)
}

// ListSequences returns all sequences
func (s *Service) ListSequences(ctx context.Context) ([]domain.Sequence, error) {
	return s.repo.ListSequences(ctx)
}

// UpdateSequence updates the sequence's metadata, leaving steps intact
func (s *Service) UpdateSequence(ctx context.Context, id uuid.UUID, name string, active, uaeBusinessHoursOnly, respectHolidays bool) (*domain.Sequence, error) {
	if name == "" {
		return nil, apperr.Validation("sequence name is required")
	}

	seq, err := s.repo.GetSequence(ctx, id)
	if err != nil {
		return nil, err
	}

	seq.Name = name
	seq.Active = active
	seq.UAEBusinessHoursOnly = uaeBusinessHoursOnly
	seq.RespectHolidays = respectHolidays

	if err := s.repo.UpdateSequence(ctx, seq); err != nil {
		return nil, err
	}
	return seq, nil
}

// DeleteSequence removes a sequence
func (s *Service) DeleteSequence(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteSequence(ctx, id)
}

// AddStep appends a step with type defaults and returns the updated
// sequence.
func (s *Service) AddStep(ctx context.Context, sequenceID uuid.UUID, stepType domain.StepType) (*domain.Sequence, error) {
	seq, err := s.repo.GetSequence(ctx, sequenceID)
	if err != nil {
		return nil, err
	}
	if _, err := seq.AddStep(stepType); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}
	if err := s.repo.UpdateSequence(ctx, seq); err != nil {
		return nil, err
	}
	return seq, nil
}

// DeleteStep removes a step and renumbers the rest
func (s *Service) DeleteStep(ctx context.Context, sequenceID, stepID uuid.UUID) (*domain.Sequence, error) {
	seq, err := s.repo.GetSequence(ctx, sequenceID)
	if err != nil {
		return nil, err
	}
	if err := seq.DeleteStep(stepID); err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, err.Error(), err)
	}
	if err := s.repo.UpdateSequence(ctx, seq); err != nil {
		return nil, err
	}
	return seq, nil
}

// DuplicateStep copies a step in place
func (s *Service) DuplicateStep(ctx context.Context, sequenceID, stepID uuid.UUID) (*domain.Sequence, error) {
	seq, err := s.repo.GetSequence(ctx, sequenceID)
	if err != nil {
		return nil, err
	}
	if _, err := seq.DuplicateStep(stepID); err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, err.Error(), err)
	}
	if err := s.repo.UpdateSequence(ctx, seq); err != nil {
		return nil, err
	}
	return seq, nil
}

// ReorderStep moves the step at position from to position to (1-based)
func (s *Service) ReorderStep(ctx context.Context, sequenceID uuid.UUID, from, to int) (*domain.Sequence, error) {
	seq, err := s.repo.GetSequence(ctx, sequenceID)
	if err != nil {
		return nil, err
	}
	if err := seq.Reorder(from, to); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}
	if err := s.repo.UpdateSequence(ctx, seq); err != nil {
		return nil, err
	}
	return seq, nil
}

// ValidateSequence returns every violation in the sequence definition
func (s *Service) ValidateSequence(ctx context.Context, sequenceID uuid.UUID) ([]domain.Violation, error) {
	seq, err := s.repo.GetSequence(ctx, sequenceID)
	if err != nil {
		return nil, err
	}
	return seq.Validate(), nil
}

// SequenceDuration returns the sequence's span in days
func (s *Service) SequenceDuration(ctx context.Context, sequenceID uuid.UUID) (float64, error) {
	seq, err := s.repo.GetSequence(ctx, sequenceID)
	if err != nil {
		return 0, err
	}
	return seq.TotalDuration(), nil
}

// =============================================================================
// Batch passes
// =============================================================================

// RunEscalationPass evaluates the rule set against all active instances
// and publishes one event per executed action.
func (s *Service) RunEscalationPass(ctx context.Context) (escalation.Result, error) {
	result, err := s.evaluator.Run(ctx, s.rules)
	if err != nil {
		return escalation.Result{}, err
	}

	for _, action := range result.Actions {
		s.bus.Publish(ctx, events.EscalationApplied{
			BaseEvent:  events.NewBaseEvent(),
			InstanceID: action.InstanceID,
			InvoiceID:  action.InvoiceID,
			RuleName:   action.RuleName,
			Action:     string(action.Action),
			Reason:     action.Reason,
		})
	}
	return result, nil
}

// ConsolidationResult aggregates one consolidation pass.
type ConsolidationResult struct {
	Candidates int      `json:"candidates"`
	Created    int      `json:"created"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

// RunConsolidationPass computes candidates and creates a reminder for
// every contactable one. Interval and preference violations between
// computation and creation are skips, not failures.
func (s *Service) RunConsolidationPass(ctx context.Context) (ConsolidationResult, error) {
	started := s.now()

	candidates, err := s.selector.Candidates(ctx)
	if err != nil {
		return ConsolidationResult{}, err
	}

	result := ConsolidationResult{Candidates: len(candidates)}
	for _, c := range candidates {
		if !c.CanContact {
			result.Skipped++
			continue
		}

		reminder, err := s.selector.CreateReminder(ctx, c)
		if err != nil {
			if isConsolidationSkip(err) {
				result.Skipped++
				continue
			}
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("customer %s: %v", c.CustomerID, err))
			continue
		}

		result.Created++
		s.bus.Publish(ctx, events.ConsolidatedReminderCreated{
			BaseEvent:         events.NewBaseEvent(),
			ReminderID:        reminder.ID,
			CustomerID:        reminder.CustomerID,
			InvoiceCount:      len(reminder.InvoiceIDs),
			TotalAmount:       reminder.TotalAmount,
			EscalationLevel:   reminder.EscalationLevel,
			TemplateTier:      reminder.TemplateTier,
			ScheduledSendTime: reminder.ScheduledSendTime,
		})
	}

	s.log.BatchPass("consolidation", result.Candidates, result.Failed,
		float64(s.now().Sub(started).Milliseconds()))
	return result, nil
}

// isConsolidationSkip classifies the expected races between candidate
// computation and reminder creation.
func isConsolidationSkip(err error) bool {
	var (
		intervalErr *consolidation.ContactIntervalError
		prefErr     *consolidation.ConsolidationPreferenceError
	)
	if errors.As(err, &intervalErr) || errors.As(err, &prefErr) {
		return true
	}
	return apperr.Is(err, apperr.KindConflict)
}

// CreateConsolidatedReminder creates one reminder from a candidate on
// demand, mapping the selector's typed errors onto the HTTP error
// taxonomy while keeping them reachable through errors.As.
func (s *Service) CreateConsolidatedReminder(ctx context.Context, c consolidation.Candidate) (consolidation.Reminder, error) {
	reminder, err := s.selector.CreateReminder(ctx, c)
	if err != nil {
		return consolidation.Reminder{}, classifyConsolidationError(err)
	}

	s.bus.Publish(ctx, events.ConsolidatedReminderCreated{
		BaseEvent:         events.NewBaseEvent(),
		ReminderID:        reminder.ID,
		CustomerID:        reminder.CustomerID,
		InvoiceCount:      len(reminder.InvoiceIDs),
		TotalAmount:       reminder.TotalAmount,
		EscalationLevel:   reminder.EscalationLevel,
		TemplateTier:      reminder.TemplateTier,
		ScheduledSendTime: reminder.ScheduledSendTime,
	})
	return reminder, nil
}

func classifyConsolidationError(err error) error {
	var (
		intervalErr *consolidation.ContactIntervalError
		countErr    *consolidation.InsufficientInvoicesError
		tooManyErr  *consolidation.TooManyInvoicesError
		prefErr     *consolidation.ConsolidationPreferenceError
		capErr      *consolidation.AmountCapError
		schedErr    *schedule.SchedulingError
	)
	switch {
	case errors.As(err, &intervalErr):
		return apperr.Wrap(apperr.KindConflict, err.Error(), err)
	case errors.As(err, &countErr), errors.As(err, &tooManyErr),
		errors.As(err, &prefErr), errors.As(err, &capErr):
		return apperr.Wrap(apperr.KindUnprocessable, err.Error(), err)
	case errors.As(err, &schedErr):
		return apperr.Wrap(apperr.KindUnprocessable, err.Error(), err)
	default:
		return err
	}
}

// ListCandidates exposes the current ranked candidate set
func (s *Service) ListCandidates(ctx context.Context) ([]consolidation.Candidate, error) {
	return s.selector.Candidates(ctx)
}

// CreateReminderForCustomer recomputes the candidate set and creates a
// reminder for one customer. The candidate is always taken from fresh
// state, never from a client-supplied snapshot.
func (s *Service) CreateReminderForCustomer(ctx context.Context, customerID uuid.UUID) (consolidation.Reminder, error) {
	candidates, err := s.selector.Candidates(ctx)
	if err != nil {
		return consolidation.Reminder{}, err
	}
	for _, c := range candidates {
		if c.CustomerID == customerID {
			return s.CreateConsolidatedReminder(ctx, c)
		}
	}
	return consolidation.Reminder{}, apperr.NotFound("no consolidation candidate for customer")
}

// ResumeHeldPass requeues held instances whose resume time has passed
func (s *Service) ResumeHeldPass(ctx context.Context) (int, error) {
	return s.evaluator.ResumeHeld(ctx)
}

// SendResult aggregates one send pass.
type SendResult struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// SendDuePass delivers queued follow-ups and scheduled consolidated
// reminders whose send time has arrived. Per-item failures are isolated.
func (s *Service) SendDuePass(ctx context.Context) (SendResult, error) {
	started := s.now()
	var result SendResult

	due, err := s.repo.DueInstances(ctx, s.now(), sendBatchSize)
	if err != nil {
		return result, err
	}
	for _, inst := range due {
		if err := s.sendInstance(ctx, inst); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("instance %s: %v", inst.ID, err))
			continue
		}
		result.Sent++
	}

	reminders, err := s.repo.DueReminders(ctx, s.now(), sendBatchSize)
	if err != nil {
		return result, err
	}
	for _, rem := range reminders {
		if err := s.sendReminder(ctx, rem); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("reminder %s: %v", rem.ID, err))
			continue
		}
		result.Sent++
	}

	s.log.BatchPass("send_due", result.Sent, result.Failed,
		float64(s.now().Sub(started).Milliseconds()))
	return result, nil
}

func (s *Service) sendInstance(ctx context.Context, inst domain.Instance) error {
	rec, err := s.repo.InvoiceRecipient(ctx, inst.InvoiceID)
	if err != nil {
		return err
	}

	subject, body := s.stepContent(ctx, inst)
	if _, err := s.sender.SendReminder(ctx, ReminderEmail{
		ToEmail:       rec.Email,
		ToName:        rec.CustomerName,
		Tone:          string(inst.Tone),
		Subject:       subject,
		Body:          body,
		InvoiceNumber: rec.InvoiceNumber,
		Amount:        rec.Amount,
		Currency:      rec.Currency,
		DueDate:       rec.DueDate,
		PaymentURL:    s.paymentURL(inst.InvoiceID),
	}); err != nil {
		return err
	}

	sentAt := s.now()
	if err := s.repo.MarkSent(ctx, inst.ID, sentAt); err != nil {
		return err
	}

	s.bus.Publish(ctx, events.FollowUpScheduled{
		BaseEvent:         events.NewBaseEvent(),
		InstanceID:        inst.ID,
		InvoiceID:         inst.InvoiceID,
		StepNumber:        inst.StepNumber,
		Tone:              inst.Tone,
		ScheduledSendTime: inst.ScheduledSendTime,
	})
	return nil
}

// stepContent pulls the authored subject and body from the sequence's
// EMAIL step, falling back to tone defaults in the email layer when the
// step carries none.
func (s *Service) stepContent(ctx context.Context, inst domain.Instance) (string, string) {
	seq, err := s.repo.GetSequence(ctx, inst.SequenceID)
	if err != nil {
		return "", ""
	}
	step := seq.StepByOrder(inst.StepNumber)
	if step == nil || step.Email == nil {
		return "", ""
	}
	return step.Email.Subject, step.Email.Body
}

func (s *Service) sendReminder(ctx context.Context, rem consolidation.Reminder) error {
	rec, err := s.repo.CustomerRecipient(ctx, rem.CustomerID)
	if err != nil {
		return err
	}
	lines, err := s.repo.ReminderLines(ctx, rem.InvoiceIDs)
	if err != nil {
		return err
	}

	emailLines := make([]ConsolidatedEmailLine, len(lines))
	for i, l := range lines {
		emailLines[i] = ConsolidatedEmailLine{
			Number:      l.Number,
			Amount:      l.Amount,
			DueDate:     l.DueDate,
			DaysOverdue: l.DaysOverdue,
		}
	}

	if _, err := s.sender.SendConsolidatedReminder(ctx, ConsolidatedEmail{
		ToEmail:      rec.Email,
		ToName:       rec.Name,
		TemplateTier: rem.TemplateTier,
		Invoices:     emailLines,
		TotalAmount:  rem.TotalAmount,
		Currency:     "AED",
		PaymentURL:   s.accountURL(rem.CustomerID),
	}); err != nil {
		return err
	}
	return s.repo.MarkReminderSent(ctx, rem.ID)
}

func (s *Service) paymentURL(invoiceID uuid.UUID) string {
	if s.appBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/pay/%s", s.appBaseURL, invoiceID)
}

func (s *Service) accountURL(customerID uuid.UUID) string {
	if s.appBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/account/%s/invoices", s.appBaseURL, customerID)
}
