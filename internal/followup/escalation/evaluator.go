package escalation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"reminder_backend/internal/followup/domain"
	"reminder_backend/internal/followup/schedule"
	"reminder_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// complaintWindow bounds how long after a send a complaint is attributed
// to that follow-up.
const complaintWindow = 7 * 24 * time.Hour

// Payment is one recorded payment against the instance's invoice.
type Payment struct {
	Amount float64
	PaidAt time.Time
}

// InstanceContext is everything the evaluator needs to judge one active
// instance: the instance itself plus the invoice, customer and engagement
// summary the repository joins in.
type InstanceContext struct {
	Instance domain.Instance

	InvoiceAmount   float64
	Currency        string
	DueDate         time.Time
	Payments        []Payment
	CustomerSegment string

	LastOpenAt        *time.Time
	LastClickAt       *time.Time
	LastContactAt     *time.Time
	Bounced           bool
	ComplaintAt       *time.Time
	ManualEscalatedAt *time.Time
}

func (c InstanceContext) paidRatio() float64 {
	if c.InvoiceAmount <= 0 {
		return 0
	}
	var paid float64
	for _, p := range c.Payments {
		paid += p.Amount
	}
	return paid / c.InvoiceAmount
}

func (c InstanceContext) paymentAfter(t time.Time) bool {
	for _, p := range c.Payments {
		if p.PaidAt.After(t) {
			return true
		}
	}
	return false
}

// Store is the persistence surface the evaluator mutates through. All
// writes touch a single instance row; the implementation provides row
// level atomicity, not cross-instance transactions.
type Store interface {
	ActiveInstances(ctx context.Context) ([]InstanceContext, error)
	QueuedSteps(ctx context.Context, invoiceID uuid.UUID) ([]domain.Instance, error)
	UpdateSchedule(ctx context.Context, instanceID uuid.UUID, sendTime time.Time) error
	UpdateStatus(ctx context.Context, instanceID uuid.UUID, status domain.DeliveryStatus, resumeAt *time.Time) error
	InsertStep(ctx context.Context, instance domain.Instance) error
	ReassignSequence(ctx context.Context, instanceID, sequenceID uuid.UUID) error
	HeldDue(ctx context.Context, now time.Time) ([]domain.Instance, error)
}

// Auditor records immutable audit entries for every executed action.
type Auditor interface {
	Record(ctx context.Context, actorType, event, description string, metadata map[string]any) error
}

// Notifier delivers manager notifications outside the step state machine.
type Notifier interface {
	NotifyManager(ctx context.Context, invoiceID uuid.UUID, reason string) error
}

// EscalationActionError wraps a failure while executing a matched action.
type EscalationActionError struct {
	InstanceID uuid.UUID
	Action     ActionType
	Err        error
}

func (e *EscalationActionError) Error() string {
	return fmt.Sprintf("escalation action %s on instance %s: %v", e.Action, e.InstanceID, e.Err)
}

func (e *EscalationActionError) Unwrap() error { return e.Err }

// ActionLog is one executed action in a pass result.
type ActionLog struct {
	InstanceID uuid.UUID  `json:"instanceId"`
	InvoiceID  uuid.UUID  `json:"invoiceId"`
	RuleID     uuid.UUID  `json:"ruleId"`
	RuleName   string     `json:"ruleName"`
	Action     ActionType `json:"action"`
	Reason     string     `json:"reason"`
	At         time.Time  `json:"at"`
}

// InstanceError is one isolated per-instance failure in a pass result.
type InstanceError struct {
	InstanceID uuid.UUID `json:"instanceId"`
	Message    string    `json:"message"`
}

// Result aggregates one evaluator pass. A failed instance never aborts
// the pass; it is counted and reported here.
type Result struct {
	Processed   int             `json:"processed"`
	Escalated   int             `json:"escalated"`
	Held        int             `json:"held"`
	Accelerated int             `json:"accelerated"`
	Failed      int             `json:"failed"`
	Actions     []ActionLog     `json:"actions"`
	Errors      []InstanceError `json:"errors"`
}

// Evaluator runs escalation passes. Construct with NewEvaluator.
type Evaluator struct {
	store       Store
	sched       *schedule.Scheduler
	audit       Auditor
	notifier    Notifier
	log         *logger.Logger
	concurrency int
	now         func() time.Time
}

// NewEvaluator wires an evaluator. concurrency bounds how many instances
// are processed in parallel; values below 1 mean serial.
func NewEvaluator(store Store, sched *schedule.Scheduler, audit Auditor, notifier Notifier, log *logger.Logger, concurrency int) *Evaluator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Evaluator{
		store:       store,
		sched:       sched,
		audit:       audit,
		notifier:    notifier,
		log:         log,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Run executes one escalation pass over all active instances. Rules are
// evaluated ascending by priority and the first match wins; at most one
// action executes per instance. Per-instance failures are isolated into
// the result. The returned error covers only pass-level failures such as
// the initial fetch.
func (e *Evaluator) Run(ctx context.Context, rules []Rule) (Result, error) {
	started := e.now()

	instances, err := e.store.ActiveInstances(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch active instances: %w", err)
	}

	ordered := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	var (
		mu     sync.Mutex
		result Result
	)
	result.Processed = len(instances)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, ic := range instances {
		g.Go(func() error {
			entry, actionErr := e.evaluateInstance(gctx, ic, ordered)

			mu.Lock()
			defer mu.Unlock()
			if actionErr != nil {
				result.Failed++
				result.Errors = append(result.Errors, InstanceError{
					InstanceID: ic.Instance.ID,
					Message:    actionErr.Error(),
				})
				return nil
			}
			if entry == nil {
				return nil
			}
			result.Actions = append(result.Actions, *entry)
			switch entry.Action {
			case ActionEscalateUrgency:
				result.Escalated++
			case ActionHold:
				result.Held++
			case ActionAccelerate:
				result.Accelerated++
			}
			return nil
		})
	}
	_ = g.Wait()

	// Deterministic result ordering regardless of goroutine interleaving.
	sort.Slice(result.Actions, func(i, j int) bool {
		return result.Actions[i].InstanceID.String() < result.Actions[j].InstanceID.String()
	})
	sort.Slice(result.Errors, func(i, j int) bool {
		return result.Errors[i].InstanceID.String() < result.Errors[j].InstanceID.String()
	})

	e.log.BatchPass("escalation", result.Processed, result.Failed, float64(e.now().Sub(started).Milliseconds()))
	return result, nil
}

// evaluateInstance applies the first matching rule, if any. A panic in
// rule evaluation or action execution is converted into an error so one
// bad instance cannot take down the pass.
func (e *Evaluator) evaluateInstance(ctx context.Context, ic InstanceContext, ordered []Rule) (entry *ActionLog, err error) {
	defer func() {
		if r := recover(); r != nil {
			entry = nil
			err = fmt.Errorf("panic evaluating instance %s: %v", ic.Instance.ID, r)
		}
	}()

	now := e.now()
	for _, rule := range ordered {
		if !e.scopeMatches(rule.Scope, ic, now) {
			continue
		}
		matched, reason := e.triggerMatches(rule.Trigger, ic, now)
		if !matched {
			continue
		}
		if !knownAction(rule.Action.Type) {
			// Unknown action types are a safe no-op, not a match.
			continue
		}

		if err := e.execute(ctx, rule, ic, reason, now); err != nil {
			return nil, &EscalationActionError{InstanceID: ic.Instance.ID, Action: rule.Action.Type, Err: err}
		}
		return &ActionLog{
			InstanceID: ic.Instance.ID,
			InvoiceID:  ic.Instance.InvoiceID,
			RuleID:     rule.ID,
			RuleName:   rule.Name,
			Action:     rule.Action.Type,
			Reason:     reason,
			At:         now,
		}, nil
	}
	return nil, nil
}

func (e *Evaluator) scopeMatches(s Scope, ic InstanceContext, now time.Time) bool {
	if s.MinAmount != nil && ic.InvoiceAmount < *s.MinAmount {
		return false
	}
	if s.MaxAmount != nil && ic.InvoiceAmount > *s.MaxAmount {
		return false
	}
	if len(s.CustomerSegments) > 0 {
		found := false
		for _, seg := range s.CustomerSegments {
			if seg == ic.CustomerSegment {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if s.DaysSinceLastContact != nil {
		if ic.LastContactAt == nil {
			return false
		}
		if now.Sub(*ic.LastContactAt) < time.Duration(*s.DaysSinceLastContact)*24*time.Hour {
			return false
		}
	}
	return true
}

func (e *Evaluator) triggerMatches(t Trigger, ic InstanceContext, now time.Time) (bool, string) {
	sentAt := ic.Instance.SentAt
	switch t.Condition {
	case TriggerNoResponse:
		if sentAt == nil {
			return false, ""
		}
		if now.Sub(*sentAt) < time.Duration(t.TimeframeHours)*time.Hour {
			return false, ""
		}
		if engagedSince(ic, *sentAt) {
			return false, ""
		}
		return true, fmt.Sprintf("No response for %d hours after follow-up", t.TimeframeHours)

	case TriggerNoPayment:
		if sentAt == nil {
			return false, ""
		}
		if now.Sub(*sentAt) < time.Duration(t.TimeframeHours)*time.Hour {
			return false, ""
		}
		if ic.paymentAfter(*sentAt) {
			return false, ""
		}
		return true, fmt.Sprintf("No payment received for %d hours after follow-up", t.TimeframeHours)

	case TriggerPartialPayment:
		// A zero ratio is NO_PAYMENT's domain, not a partial payment.
		ratio := ic.paidRatio()
		if ratio > 0 && ratio < t.Threshold {
			return true, fmt.Sprintf("Partial payment of %.0f%% below %.0f%% threshold", ratio*100, t.Threshold*100)
		}
		return false, ""

	case TriggerBounce:
		if ic.Bounced || ic.Instance.Status == domain.StatusBounced {
			return true, "Delivery bounced"
		}
		return false, ""

	case TriggerComplaint:
		if sentAt == nil || ic.ComplaintAt == nil {
			return false, ""
		}
		if ic.ComplaintAt.After(*sentAt) && ic.ComplaintAt.Sub(*sentAt) <= complaintWindow {
			return true, "Complaint received after follow-up"
		}
		return false, ""

	case TriggerManual:
		if sentAt != nil && ic.ManualEscalatedAt != nil && ic.ManualEscalatedAt.After(*sentAt) {
			return true, "Manual escalation requested"
		}
		return false, ""
	}

	// Unknown trigger conditions never match.
	return false, ""
}

func knownAction(t ActionType) bool {
	switch t {
	case ActionAccelerate, ActionEscalateUrgency, ActionHold,
		ActionChangeSequence, ActionNotifyManager, ActionSkipStep:
		return true
	}
	return false
}

// execute performs the matched action and writes the audit entry before
// returning, so an acted-on instance always has its audit trail.
func (e *Evaluator) execute(ctx context.Context, rule Rule, ic InstanceContext, reason string, now time.Time) error {
	var err error
	switch rule.Action.Type {
	case ActionAccelerate:
		err = e.accelerate(ctx, ic, rule.Action.ReduceDays, now)
	case ActionEscalateUrgency:
		err = e.escalateUrgency(ctx, ic, rule.Action.NewLevel, now)
	case ActionHold:
		err = e.hold(ctx, ic, rule.Action, now)
	case ActionChangeSequence:
		err = e.changeSequence(ctx, ic, rule.Action.SequenceID)
	case ActionNotifyManager:
		err = e.notifier.NotifyManager(ctx, ic.Instance.InvoiceID, reason)
	case ActionSkipStep:
		err = e.store.UpdateStatus(ctx, ic.Instance.ID, domain.StatusSkipped, nil)
	}
	if err != nil {
		return err
	}

	return e.audit.Record(ctx, "system", "escalation.action",
		fmt.Sprintf("%s applied by rule %q: %s", rule.Action.Type, rule.Name, reason),
		map[string]any{
			"instanceId": ic.Instance.ID.String(),
			"invoiceId":  ic.Instance.InvoiceID.String(),
			"ruleId":     rule.ID.String(),
			"action":     string(rule.Action.Type),
		})
}

// accelerate pulls the next queued step forward by reduceDays, never
// earlier than now, re-clamped through the scheduler.
func (e *Evaluator) accelerate(ctx context.Context, ic InstanceContext, reduceDays int, now time.Time) error {
	queued, err := e.store.QueuedSteps(ctx, ic.Instance.InvoiceID)
	if err != nil {
		return err
	}
	if len(queued) == 0 {
		return nil
	}

	next := queued[0]
	target := next.ScheduledSendTime.AddDate(0, 0, -reduceDays)
	if target.Before(now) {
		target = now
	}
	sendTime, err := e.sched.Next(target, schedule.Constraints{
		RespectBusinessHours: true,
		AvoidWeekends:        true,
		AvoidHolidays:        true,
		AvoidPrayerTimes:     true,
	})
	if err != nil {
		return err
	}
	return e.store.UpdateSchedule(ctx, next.ID, sendTime)
}

// escalateUrgency cancels remaining queued steps and inserts one step at
// the requested tier. The replacement is scheduled with a wider window:
// business hours only, since urgency outranks the softer constraints.
func (e *Evaluator) escalateUrgency(ctx context.Context, ic InstanceContext, level domain.EscalationLevel, now time.Time) error {
	if !level.Valid() {
		return fmt.Errorf("unknown escalation level %q", level)
	}

	queued, err := e.store.QueuedSteps(ctx, ic.Instance.InvoiceID)
	if err != nil {
		return err
	}
	for _, q := range queued {
		if err := e.store.UpdateStatus(ctx, q.ID, domain.StatusCancelled, nil); err != nil {
			return err
		}
	}

	sendTime, err := e.sched.Next(now, schedule.Constraints{RespectBusinessHours: true})
	if err != nil {
		return err
	}
	return e.store.InsertStep(ctx, domain.Instance{
		ID:                uuid.New(),
		InvoiceID:         ic.Instance.InvoiceID,
		SequenceID:        ic.Instance.SequenceID,
		StepNumber:        ic.Instance.StepNumber + 1,
		Tone:              level.Tone(),
		ScheduledSendTime: sendTime,
		Status:            domain.StatusQueued,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
}

// hold parks every queued step. Permanent holds are terminal
// cancellations; bounded holds carry a resume timestamp picked up by
// ResumeHeld.
func (e *Evaluator) hold(ctx context.Context, ic InstanceContext, action Action, now time.Time) error {
	queued, err := e.store.QueuedSteps(ctx, ic.Instance.InvoiceID)
	if err != nil {
		return err
	}

	for _, q := range queued {
		if action.Permanent {
			if err := e.store.UpdateStatus(ctx, q.ID, domain.StatusCancelled, nil); err != nil {
				return err
			}
			continue
		}
		resumeAt := now.Add(action.HoldFor)
		if err := e.store.UpdateStatus(ctx, q.ID, domain.StatusHeld, &resumeAt); err != nil {
			return err
		}
	}
	return nil
}

func (e *Evaluator) changeSequence(ctx context.Context, ic InstanceContext, sequenceID uuid.UUID) error {
	if sequenceID == uuid.Nil {
		// No target sequence configured: nothing to reassign.
		return nil
	}
	return e.store.ReassignSequence(ctx, ic.Instance.ID, sequenceID)
}

// ResumeHeld requeues held steps whose resume time has passed and
// reschedules them through the business calendar. Returns how many steps
// were requeued.
func (e *Evaluator) ResumeHeld(ctx context.Context) (int, error) {
	now := e.now()
	held, err := e.store.HeldDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("fetch due holds: %w", err)
	}

	resumed := 0
	for _, inst := range held {
		sendTime, err := e.sched.Next(now, schedule.Constraints{
			RespectBusinessHours: true,
			AvoidWeekends:        true,
			AvoidHolidays:        true,
			AvoidPrayerTimes:     true,
		})
		if err != nil {
			e.log.Error("skipping unresumable hold", "instance_id", inst.ID, "error", err)
			continue
		}
		if err := e.store.UpdateSchedule(ctx, inst.ID, sendTime); err != nil {
			return resumed, err
		}
		if err := e.store.UpdateStatus(ctx, inst.ID, domain.StatusQueued, nil); err != nil {
			return resumed, err
		}
		if err := e.audit.Record(ctx, "system", "escalation.resume",
			"Held follow-up requeued after hold expiry",
			map[string]any{"instanceId": inst.ID.String(), "invoiceId": inst.InvoiceID.String()}); err != nil {
			return resumed, err
		}
		resumed++
	}
	return resumed, nil
}

func engagedSince(ic InstanceContext, since time.Time) bool {
	for _, t := range []*time.Time{ic.LastOpenAt, ic.LastClickAt, ic.LastContactAt} {
		if t != nil && t.After(since) {
			return true
		}
	}
	return false
}
