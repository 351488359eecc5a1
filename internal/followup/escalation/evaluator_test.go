package escalation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"reminder_backend/internal/followup/domain"
	"reminder_backend/internal/followup/schedule"
	"reminder_backend/platform/logger"

	"github.com/google/uuid"
)

// passNow is a Monday at 10:00, inside the default business window.
var passNow = time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)

type openCalendar struct{}

func (openCalendar) IsHoliday(time.Time) (bool, string)        { return false, "" }
func (openCalendar) PrayerWindows(time.Time) []schedule.Window { return nil }
func (openCalendar) InObservancePeriod(time.Time) bool         { return false }

type memStore struct {
	mu        sync.Mutex
	instances []InstanceContext
	queued    map[uuid.UUID][]domain.Instance

	statusWrites   map[uuid.UUID]domain.DeliveryStatus
	resumeWrites   map[uuid.UUID]*time.Time
	scheduleWrites map[uuid.UUID]time.Time
	inserted       []domain.Instance
	reassigned     map[uuid.UUID]uuid.UUID

	failInvoice uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		queued:         map[uuid.UUID][]domain.Instance{},
		statusWrites:   map[uuid.UUID]domain.DeliveryStatus{},
		resumeWrites:   map[uuid.UUID]*time.Time{},
		scheduleWrites: map[uuid.UUID]time.Time{},
		reassigned:     map[uuid.UUID]uuid.UUID{},
	}
}

func (s *memStore) ActiveInstances(context.Context) ([]InstanceContext, error) {
	return s.instances, nil
}

func (s *memStore) QueuedSteps(_ context.Context, invoiceID uuid.UUID) ([]domain.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if invoiceID == s.failInvoice && s.failInvoice != uuid.Nil {
		return nil, errors.New("connection reset")
	}
	return s.queued[invoiceID], nil
}

func (s *memStore) UpdateSchedule(_ context.Context, id uuid.UUID, sendTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleWrites[id] = sendTime
	return nil
}

func (s *memStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.DeliveryStatus, resumeAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusWrites[id] = status
	s.resumeWrites[id] = resumeAt
	return nil
}

func (s *memStore) InsertStep(_ context.Context, inst domain.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, inst)
	return nil
}

func (s *memStore) ReassignSequence(_ context.Context, instanceID, sequenceID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reassigned[instanceID] = sequenceID
	return nil
}

func (s *memStore) HeldDue(_ context.Context, now time.Time) ([]domain.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []domain.Instance
	for invoice := range s.queued {
		for _, inst := range s.queued[invoice] {
			if inst.Status == domain.StatusHeld && inst.ResumeAt != nil && !inst.ResumeAt.After(now) {
				due = append(due, inst)
			}
		}
	}
	return due, nil
}

type memAuditor struct {
	mu      sync.Mutex
	entries []string
}

func (a *memAuditor) Record(_ context.Context, _, event, description string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, event+": "+description)
	return nil
}

type memNotifier struct {
	mu      sync.Mutex
	reasons []string
}

func (n *memNotifier) NotifyManager(_ context.Context, _ uuid.UUID, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reasons = append(n.reasons, reason)
	return nil
}

type fixture struct {
	eval     *Evaluator
	store    *memStore
	audit    *memAuditor
	notifier *memNotifier
}

func newFixture(t *testing.T, store *memStore) *fixture {
	t.Helper()
	audit := &memAuditor{}
	notifier := &memNotifier{}
	sched := schedule.New(schedule.DefaultConfig(), openCalendar{})
	eval := NewEvaluator(store, sched, audit, notifier, logger.New("development"), 4)
	eval.now = func() time.Time { return passNow }
	return &fixture{eval: eval, store: store, audit: audit, notifier: notifier}
}

func unansweredInstance(sentHoursAgo int) InstanceContext {
	sentAt := passNow.Add(-time.Duration(sentHoursAgo) * time.Hour)
	return InstanceContext{
		Instance: domain.Instance{
			ID:         uuid.New(),
			InvoiceID:  uuid.New(),
			SequenceID: uuid.New(),
			StepNumber: 1,
			Status:     domain.StatusSent,
			SentAt:     &sentAt,
		},
		InvoiceAmount: 5000,
		Currency:      "AED",
	}
}

func TestRunNoPaymentFiresWithReason(t *testing.T) {
	store := newMemStore()
	store.instances = []InstanceContext{unansweredInstance(80)}
	f := newFixture(t, store)

	rule := Rule{
		ID:       uuid.New(),
		Name:     "no payment",
		Trigger:  Trigger{Condition: TriggerNoPayment, TimeframeHours: 72},
		Action:   Action{Type: ActionAccelerate, ReduceDays: 2},
		Priority: 1,
		Active:   true,
	}

	result, err := f.eval.Run(context.Background(), []Rule{rule})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(result.Actions))
	}
	want := "No payment received for 72 hours after follow-up"
	if result.Actions[0].Reason != want {
		t.Errorf("reason = %q, want %q", result.Actions[0].Reason, want)
	}
	if result.Processed != 1 || result.Failed != 0 {
		t.Errorf("processed/failed = %d/%d, want 1/0", result.Processed, result.Failed)
	}
}

func TestRunNoPaymentIgnoresPaidInvoice(t *testing.T) {
	store := newMemStore()
	ic := unansweredInstance(80)
	ic.Payments = []Payment{{Amount: 5000, PaidAt: passNow.Add(-2 * time.Hour)}}
	store.instances = []InstanceContext{ic}
	f := newFixture(t, store)

	rule := Rule{
		ID:       uuid.New(),
		Name:     "no payment",
		Trigger:  Trigger{Condition: TriggerNoPayment, TimeframeHours: 72},
		Action:   Action{Type: ActionAccelerate, ReduceDays: 2},
		Priority: 1,
		Active:   true,
	}

	result, err := f.eval.Run(context.Background(), []Rule{rule})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Actions) != 0 {
		t.Fatalf("got %d actions, want 0", len(result.Actions))
	}
}

func TestRunLowestPriorityMatchWins(t *testing.T) {
	store := newMemStore()
	store.instances = []InstanceContext{unansweredInstance(100)}
	f := newFixture(t, store)

	// Both rules match; they arrive out of priority order on purpose.
	rules := []Rule{
		{
			ID: uuid.New(), Name: "late rule", Priority: 20, Active: true,
			Trigger: Trigger{Condition: TriggerNoPayment, TimeframeHours: 48},
			Action:  Action{Type: ActionHold, HoldFor: 24 * time.Hour},
		},
		{
			ID: uuid.New(), Name: "early rule", Priority: 5, Active: true,
			Trigger: Trigger{Condition: TriggerNoResponse, TimeframeHours: 48},
			Action:  Action{Type: ActionNotifyManager},
		},
	}

	result, err := f.eval.Run(context.Background(), rules)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Actions) != 1 {
		t.Fatalf("got %d actions, want exactly 1", len(result.Actions))
	}
	if result.Actions[0].RuleName != "early rule" {
		t.Errorf("fired rule = %q, want the lowest priority number", result.Actions[0].RuleName)
	}
	if len(f.notifier.reasons) != 1 {
		t.Errorf("notifier calls = %d, want 1", len(f.notifier.reasons))
	}
	if result.Held != 0 {
		t.Errorf("held = %d, the hold rule must not also fire", result.Held)
	}
}

func TestRunInactiveAndUnknownRulesSkipped(t *testing.T) {
	store := newMemStore()
	store.instances = []InstanceContext{unansweredInstance(100)}
	f := newFixture(t, store)

	rules := []Rule{
		{
			ID: uuid.New(), Name: "disabled", Priority: 1, Active: false,
			Trigger: Trigger{Condition: TriggerNoPayment, TimeframeHours: 48},
			Action:  Action{Type: ActionHold, Permanent: true},
		},
		{
			ID: uuid.New(), Name: "future action", Priority: 2, Active: true,
			Trigger: Trigger{Condition: TriggerNoPayment, TimeframeHours: 48},
			Action:  Action{Type: ActionType("SEND_SMS")},
		},
		{
			ID: uuid.New(), Name: "future trigger", Priority: 3, Active: true,
			Trigger: Trigger{Condition: TriggerCondition("WEATHER")},
			Action:  Action{Type: ActionNotifyManager},
		},
		{
			ID: uuid.New(), Name: "fallback", Priority: 4, Active: true,
			Trigger: Trigger{Condition: TriggerNoPayment, TimeframeHours: 48},
			Action:  Action{Type: ActionNotifyManager},
		},
	}

	result, err := f.eval.Run(context.Background(), rules)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Actions) != 1 || result.Actions[0].RuleName != "fallback" {
		t.Fatalf("actions = %+v, want only the fallback rule", result.Actions)
	}
}

func TestRunPartialPaymentExcludesZeroRatio(t *testing.T) {
	store := newMemStore()

	zero := unansweredInstance(10)
	partial := unansweredInstance(10)
	partial.Payments = []Payment{{Amount: 500, PaidAt: passNow.Add(-time.Hour)}}

	store.instances = []InstanceContext{zero, partial}
	f := newFixture(t, store)

	rule := Rule{
		ID: uuid.New(), Name: "token payment", Priority: 1, Active: true,
		Trigger: Trigger{Condition: TriggerPartialPayment, Threshold: 0.25},
		Action:  Action{Type: ActionNotifyManager},
	}

	result, err := f.eval.Run(context.Background(), []Rule{rule})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Actions) != 1 {
		t.Fatalf("got %d actions, want 1 (zero-ratio instance must not match)", len(result.Actions))
	}
	if result.Actions[0].InstanceID != partial.Instance.ID {
		t.Error("matched the wrong instance")
	}
}

func TestRunScopeFiltersByAmountAndSegment(t *testing.T) {
	store := newMemStore()

	small := unansweredInstance(100)
	small.InvoiceAmount = 1000
	large := unansweredInstance(100)
	large.InvoiceAmount = 60000
	large.CustomerSegment = "enterprise"

	store.instances = []InstanceContext{small, large}
	f := newFixture(t, store)

	min := 25000.0
	rule := Rule{
		ID: uuid.New(), Name: "big accounts", Priority: 1, Active: true,
		Trigger: Trigger{Condition: TriggerNoResponse, TimeframeHours: 48},
		Action:  Action{Type: ActionNotifyManager},
		Scope:   Scope{MinAmount: &min, CustomerSegments: []string{"enterprise"}},
	}

	result, err := f.eval.Run(context.Background(), []Rule{rule})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Actions) != 1 || result.Actions[0].InstanceID != large.Instance.ID {
		t.Fatalf("actions = %+v, want only the large enterprise invoice", result.Actions)
	}
}

func TestRunBounceHoldCancelsQueuedSteps(t *testing.T) {
	store := newMemStore()
	ic := unansweredInstance(1)
	ic.Bounced = true

	queued := domain.Instance{
		ID:                uuid.New(),
		InvoiceID:         ic.Instance.InvoiceID,
		Status:            domain.StatusQueued,
		ScheduledSendTime: passNow.AddDate(0, 0, 3),
	}
	store.queued[ic.Instance.InvoiceID] = []domain.Instance{queued}
	store.instances = []InstanceContext{ic}
	f := newFixture(t, store)

	rule := Rule{
		ID: uuid.New(), Name: "bounce", Priority: 1, Active: true,
		Trigger: Trigger{Condition: TriggerBounce},
		Action:  Action{Type: ActionHold, Permanent: true},
	}

	result, err := f.eval.Run(context.Background(), []Rule{rule})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Held != 1 {
		t.Errorf("held = %d, want 1", result.Held)
	}
	if got := store.statusWrites[queued.ID]; got != domain.StatusCancelled {
		t.Errorf("queued step status = %s, want CANCELLED for a permanent hold", got)
	}
	if len(f.audit.entries) != 1 {
		t.Errorf("audit entries = %d, want 1", len(f.audit.entries))
	}
}

func TestRunTimedHoldSetsResumeTimestamp(t *testing.T) {
	store := newMemStore()
	ic := unansweredInstance(1)
	ic.ComplaintAt = timePtr(passNow.Add(-30 * time.Minute))

	queued := domain.Instance{
		ID:        uuid.New(),
		InvoiceID: ic.Instance.InvoiceID,
		Status:    domain.StatusQueued,
	}
	store.queued[ic.Instance.InvoiceID] = []domain.Instance{queued}
	store.instances = []InstanceContext{ic}
	f := newFixture(t, store)

	rule := Rule{
		ID: uuid.New(), Name: "complaint", Priority: 1, Active: true,
		Trigger: Trigger{Condition: TriggerComplaint},
		Action:  Action{Type: ActionHold, HoldFor: 48 * time.Hour},
	}

	if _, err := f.eval.Run(context.Background(), []Rule{rule}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := store.statusWrites[queued.ID]; got != domain.StatusHeld {
		t.Fatalf("status = %s, want HELD", got)
	}
	resumeAt := store.resumeWrites[queued.ID]
	if resumeAt == nil || !resumeAt.Equal(passNow.Add(48*time.Hour)) {
		t.Errorf("resumeAt = %v, want %s", resumeAt, passNow.Add(48*time.Hour))
	}
}

func TestRunAccelerateNeverSchedulesInThePast(t *testing.T) {
	store := newMemStore()
	ic := unansweredInstance(80)

	// Next queued step is tomorrow; pulling it back 5 days would land in
	// the past, so it clamps to now (already inside business hours).
	queued := domain.Instance{
		ID:                uuid.New(),
		InvoiceID:         ic.Instance.InvoiceID,
		Status:            domain.StatusQueued,
		ScheduledSendTime: passNow.AddDate(0, 0, 1),
	}
	store.queued[ic.Instance.InvoiceID] = []domain.Instance{queued}
	store.instances = []InstanceContext{ic}
	f := newFixture(t, store)

	rule := Rule{
		ID: uuid.New(), Name: "speed up", Priority: 1, Active: true,
		Trigger: Trigger{Condition: TriggerNoPayment, TimeframeHours: 72},
		Action:  Action{Type: ActionAccelerate, ReduceDays: 5},
	}

	result, err := f.eval.Run(context.Background(), []Rule{rule})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Accelerated != 1 {
		t.Errorf("accelerated = %d, want 1", result.Accelerated)
	}
	got, ok := store.scheduleWrites[queued.ID]
	if !ok {
		t.Fatal("next queued step was not rescheduled")
	}
	if got.Before(passNow) {
		t.Errorf("rescheduled to %s, before now %s", got, passNow)
	}
}

func TestRunEscalateUrgencyReplacesQueuedSteps(t *testing.T) {
	store := newMemStore()
	ic := unansweredInstance(1)
	ic.ManualEscalatedAt = timePtr(passNow.Add(-10 * time.Minute))

	q1 := domain.Instance{ID: uuid.New(), InvoiceID: ic.Instance.InvoiceID, Status: domain.StatusQueued}
	q2 := domain.Instance{ID: uuid.New(), InvoiceID: ic.Instance.InvoiceID, Status: domain.StatusQueued}
	store.queued[ic.Instance.InvoiceID] = []domain.Instance{q1, q2}
	store.instances = []InstanceContext{ic}
	f := newFixture(t, store)

	rule := Rule{
		ID: uuid.New(), Name: "manual", Priority: 1, Active: true,
		Trigger: Trigger{Condition: TriggerManual},
		Action:  Action{Type: ActionEscalateUrgency, NewLevel: domain.LevelUrgent},
	}

	result, err := f.eval.Run(context.Background(), []Rule{rule})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Escalated != 1 {
		t.Errorf("escalated = %d, want 1", result.Escalated)
	}
	for _, q := range []domain.Instance{q1, q2} {
		if store.statusWrites[q.ID] != domain.StatusCancelled {
			t.Errorf("queued step %s not cancelled", q.ID)
		}
	}
	if len(store.inserted) != 1 {
		t.Fatalf("inserted %d steps, want 1", len(store.inserted))
	}
	ins := store.inserted[0]
	if ins.Tone != domain.ToneUrgent {
		t.Errorf("inserted tone = %s, want URGENT", ins.Tone)
	}
	if ins.StepNumber != ic.Instance.StepNumber+1 {
		t.Errorf("inserted step number = %d, want %d", ins.StepNumber, ic.Instance.StepNumber+1)
	}
	if ins.ScheduledSendTime.Before(passNow) {
		t.Errorf("inserted step scheduled at %s, before now", ins.ScheduledSendTime)
	}
}

func TestRunIsolatesPerInstanceFailures(t *testing.T) {
	store := newMemStore()
	broken := unansweredInstance(80)
	healthy := unansweredInstance(80)
	store.failInvoice = broken.Instance.InvoiceID
	store.queued[healthy.Instance.InvoiceID] = []domain.Instance{{
		ID:                uuid.New(),
		InvoiceID:         healthy.Instance.InvoiceID,
		Status:            domain.StatusQueued,
		ScheduledSendTime: passNow.AddDate(0, 0, 4),
	}}
	store.instances = []InstanceContext{broken, healthy}
	f := newFixture(t, store)

	rule := Rule{
		ID: uuid.New(), Name: "speed up", Priority: 1, Active: true,
		Trigger: Trigger{Condition: TriggerNoPayment, TimeframeHours: 72},
		Action:  Action{Type: ActionAccelerate, ReduceDays: 2},
	}

	result, err := f.eval.Run(context.Background(), []Rule{rule})
	if err != nil {
		t.Fatalf("Run must not fail the whole pass: %v", err)
	}

	if result.Processed != 2 || result.Failed != 1 || result.Accelerated != 1 {
		t.Errorf("processed/failed/accelerated = %d/%d/%d, want 2/1/1",
			result.Processed, result.Failed, result.Accelerated)
	}
	if len(result.Errors) != 1 || result.Errors[0].InstanceID != broken.Instance.ID {
		t.Fatalf("errors = %+v, want one entry for the broken instance", result.Errors)
	}
	if !strings.Contains(result.Errors[0].Message, "ACCELERATE") {
		t.Errorf("error message %q does not name the failed action", result.Errors[0].Message)
	}
}

func TestRunManyInstancesConcurrently(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 50; i++ {
		store.instances = append(store.instances, unansweredInstance(80+i))
	}
	f := newFixture(t, store)

	rule := Rule{
		ID: uuid.New(), Name: "notify", Priority: 1, Active: true,
		Trigger: Trigger{Condition: TriggerNoPayment, TimeframeHours: 72},
		Action:  Action{Type: ActionNotifyManager},
	}

	result, err := f.eval.Run(context.Background(), []Rule{rule})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Processed != 50 || len(result.Actions) != 50 || result.Failed != 0 {
		t.Fatalf("processed/actions/failed = %d/%d/%d, want 50/50/0",
			result.Processed, len(result.Actions), result.Failed)
	}
	if len(f.audit.entries) != 50 {
		t.Errorf("audit entries = %d, want one per action", len(f.audit.entries))
	}
}

func TestResumeHeldRequeuesDueHolds(t *testing.T) {
	store := newMemStore()
	invoiceID := uuid.New()

	due := domain.Instance{
		ID:        uuid.New(),
		InvoiceID: invoiceID,
		Status:    domain.StatusHeld,
		ResumeAt:  timePtr(passNow.Add(-time.Hour)),
	}
	notYet := domain.Instance{
		ID:        uuid.New(),
		InvoiceID: invoiceID,
		Status:    domain.StatusHeld,
		ResumeAt:  timePtr(passNow.Add(time.Hour)),
	}
	store.queued[invoiceID] = []domain.Instance{due, notYet}
	f := newFixture(t, store)

	resumed, err := f.eval.ResumeHeld(context.Background())
	if err != nil {
		t.Fatalf("ResumeHeld: %v", err)
	}
	if resumed != 1 {
		t.Fatalf("resumed = %d, want 1", resumed)
	}
	if store.statusWrites[due.ID] != domain.StatusQueued {
		t.Errorf("due hold status = %s, want QUEUED", store.statusWrites[due.ID])
	}
	if _, touched := store.statusWrites[notYet.ID]; touched {
		t.Error("future hold must not be touched")
	}
	if sendTime := store.scheduleWrites[due.ID]; sendTime.Before(passNow) {
		t.Errorf("requeued send time %s is in the past", sendTime)
	}
}

func TestDefaultRulesAreOrderedAndActive(t *testing.T) {
	rules := DefaultRules()
	if len(rules) == 0 {
		t.Fatal("no default rules")
	}
	seen := map[int]bool{}
	for _, r := range rules {
		if !r.Active {
			t.Errorf("default rule %q inactive", r.Name)
		}
		if seen[r.Priority] {
			t.Errorf("duplicate priority %d", r.Priority)
		}
		seen[r.Priority] = true
		if !knownAction(r.Action.Type) {
			t.Errorf("default rule %q has unknown action %s", r.Name, r.Action.Type)
		}
	}
}

func timePtr(t time.Time) *time.Time { return &t }
