// Package consolidation groups a customer's overdue invoices into a
// single reminder, scoring and ranking candidates and enforcing the
// contact interval between consolidated contacts.
package consolidation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"reminder_backend/internal/followup/domain"
	"reminder_backend/internal/followup/schedule"
	"reminder_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	// MinInvoices and MaxInvoices bound a consolidation group. A single
	// invoice goes through the normal follow-up sequence; past 25 the
	// reminder stops being readable.
	MinInvoices = 2
	MaxInvoices = 25

	// DefaultContactIntervalDays applies when a customer has no override.
	DefaultContactIntervalDays = 7

	// Score normalization caps. Amounts saturate at 100k AED and age at
	// 180 days overdue.
	amountNorm = 100000.0
	ageNorm    = 180.0

	weightAmount       = 0.40
	weightAge          = 0.30
	weightHistory      = 0.20
	weightRelationship = 0.10
)

// OverdueInvoice is one unpaid invoice in a consolidation group.
type OverdueInvoice struct {
	ID          uuid.UUID `json:"id"`
	Amount      float64   `json:"amount"`
	DueDate     time.Time `json:"dueDate"`
	DaysOverdue int       `json:"daysOverdue"`
}

// CustomerPrefs carries the consolidation-relevant customer settings and
// the relationship scores used in priority ranking. Score fields are
// normalized to [0, 1].
type CustomerPrefs struct {
	CustomerID           uuid.UUID `json:"customerId"`
	ConsolidationEnabled bool      `json:"consolidationEnabled"`
	MaxTotalAmount       *float64  `json:"maxTotalAmount,omitempty"`
	ContactIntervalDays  *int      `json:"contactIntervalDays,omitempty"`
	Segment              string    `json:"segment"`
	PaymentHistoryScore  float64   `json:"paymentHistoryScore"`
	RelationshipScore    float64   `json:"relationshipScore"`
}

func (p CustomerPrefs) interval(defaultDays int) time.Duration {
	days := defaultDays
	if p.ContactIntervalDays != nil && *p.ContactIntervalDays > 0 {
		days = *p.ContactIntervalDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// Candidate is one customer eligible for a consolidated reminder,
// computed fresh per run and never persisted as-is.
type Candidate struct {
	CustomerID          uuid.UUID              `json:"customerId"`
	Invoices            []OverdueInvoice       `json:"invoices"`
	TotalAmount         float64                `json:"totalAmount"`
	OldestInvoiceDays   int                    `json:"oldestInvoiceDays"`
	LastContactDate     *time.Time             `json:"lastContactDate,omitempty"`
	NextEligibleContact *time.Time             `json:"nextEligibleContact,omitempty"`
	PriorityScore       int                    `json:"priorityScore"`
	EscalationLevel     domain.EscalationLevel `json:"escalationLevel"`
	CanContact          bool                   `json:"canContact"`
}

// Reminder is one persisted consolidated reminder covering several
// invoices.
type Reminder struct {
	ID                uuid.UUID              `json:"id"`
	CustomerID        uuid.UUID              `json:"customerId"`
	InvoiceIDs        []uuid.UUID            `json:"invoiceIds"`
	TotalAmount       float64                `json:"totalAmount"`
	EscalationLevel   domain.EscalationLevel `json:"escalationLevel"`
	TemplateTier      string                 `json:"templateTier"`
	ScheduledSendTime time.Time              `json:"scheduledSendTime"`
	CreatedAt         time.Time              `json:"createdAt"`
}

// ContactIntervalError means the customer was contacted too recently.
type ContactIntervalError struct {
	CustomerID          uuid.UUID
	NextEligibleContact time.Time
}

func (e *ContactIntervalError) Error() string {
	return fmt.Sprintf("customer %s not contactable before %s", e.CustomerID, e.NextEligibleContact.Format(time.RFC3339))
}

// InsufficientInvoicesError means the group is below the consolidation
// minimum.
type InsufficientInvoicesError struct {
	CustomerID uuid.UUID
	Count      int
}

func (e *InsufficientInvoicesError) Error() string {
	return fmt.Sprintf("customer %s has %d overdue invoices, need at least %d to consolidate", e.CustomerID, e.Count, MinInvoices)
}

// TooManyInvoicesError means the group exceeds the consolidation maximum.
type TooManyInvoicesError struct {
	CustomerID uuid.UUID
	Count      int
}

func (e *TooManyInvoicesError) Error() string {
	return fmt.Sprintf("customer %s has %d overdue invoices, consolidation caps at %d", e.CustomerID, e.Count, MaxInvoices)
}

// ConsolidationPreferenceError means the customer opted out.
type ConsolidationPreferenceError struct {
	CustomerID uuid.UUID
}

func (e *ConsolidationPreferenceError) Error() string {
	return fmt.Sprintf("customer %s has consolidation disabled", e.CustomerID)
}

// AmountCapError means the group total exceeds the customer's cap.
type AmountCapError struct {
	CustomerID  uuid.UUID
	TotalAmount float64
	Cap         float64
}

func (e *AmountCapError) Error() string {
	return fmt.Sprintf("customer %s overdue total %.2f exceeds consolidation cap %.2f", e.CustomerID, e.TotalAmount, e.Cap)
}

// Store is the persistence surface the selector reads candidates from
// and writes reminders to.
type Store interface {
	// OverdueInvoicesByCustomer returns unsuppressed overdue invoices
	// grouped by customer.
	OverdueInvoicesByCustomer(ctx context.Context) (map[uuid.UUID][]OverdueInvoice, error)
	// Preferences returns consolidation preferences per customer. A
	// missing entry means defaults (enabled, no cap, default interval).
	Preferences(ctx context.Context, customerIDs []uuid.UUID) (map[uuid.UUID]CustomerPrefs, error)
	// LastContacts returns the most recent outbound contact per customer,
	// the max of the last consolidated reminder and the last individual
	// follow-up. Absent key means never contacted.
	LastContacts(ctx context.Context, customerIDs []uuid.UUID) (map[uuid.UUID]time.Time, error)
	// InsertReminder persists one consolidated reminder. Implementations
	// back the canContact check with a uniqueness guarantee so two
	// concurrent passes cannot double-contact a customer.
	InsertReminder(ctx context.Context, reminder Reminder) error
}

// Auditor records immutable audit entries for created reminders.
type Auditor interface {
	Record(ctx context.Context, actorType, event, description string, metadata map[string]any) error
}

// Selector computes consolidation candidates and creates reminders.
type Selector struct {
	store           Store
	sched           *schedule.Scheduler
	audit           Auditor
	log             *logger.Logger
	defaultInterval int
	now             func() time.Time
}

// NewSelector wires a selector. defaultIntervalDays applies to customers
// without an interval override; values at or below zero fall back to
// DefaultContactIntervalDays.
func NewSelector(store Store, sched *schedule.Scheduler, audit Auditor, log *logger.Logger, defaultIntervalDays int) *Selector {
	if defaultIntervalDays <= 0 {
		defaultIntervalDays = DefaultContactIntervalDays
	}
	return &Selector{
		store:           store,
		sched:           sched,
		audit:           audit,
		log:             log,
		defaultInterval: defaultIntervalDays,
		now:             time.Now,
	}
}

// Candidates computes the ranked consolidation candidates. The result is
// deterministic: calling twice with no state change yields an identical
// set and ordering.
func (s *Selector) Candidates(ctx context.Context) ([]Candidate, error) {
	groups, err := s.store.OverdueInvoicesByCustomer(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch overdue invoices: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}

	prefs, err := s.store.Preferences(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch preferences: %w", err)
	}
	contacts, err := s.store.LastContacts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch last contacts: %w", err)
	}

	now := s.now()
	candidates := make([]Candidate, 0, len(groups))
	for customerID, invoices := range groups {
		if len(invoices) < MinInvoices || len(invoices) > MaxInvoices {
			continue
		}
		p := prefsOrDefault(prefs, customerID)
		if !p.ConsolidationEnabled {
			continue
		}

		c := buildCandidate(customerID, invoices, p, contacts, now, s.defaultInterval)
		if p.MaxTotalAmount != nil && c.TotalAmount > *p.MaxTotalAmount {
			continue
		}
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		if a.TotalAmount != b.TotalAmount {
			return a.TotalAmount > b.TotalAmount
		}
		return a.CustomerID.String() < b.CustomerID.String()
	})

	s.log.Debug("consolidation candidates computed",
		"customers", len(groups), "candidates", len(candidates))
	return candidates, nil
}

// CreateReminder validates the candidate again against fresh state and
// persists one consolidated reminder. Each violation surfaces as its own
// typed error.
func (s *Selector) CreateReminder(ctx context.Context, c Candidate) (Reminder, error) {
	if len(c.Invoices) < MinInvoices {
		return Reminder{}, &InsufficientInvoicesError{CustomerID: c.CustomerID, Count: len(c.Invoices)}
	}
	if len(c.Invoices) > MaxInvoices {
		return Reminder{}, &TooManyInvoicesError{CustomerID: c.CustomerID, Count: len(c.Invoices)}
	}

	prefs, err := s.store.Preferences(ctx, []uuid.UUID{c.CustomerID})
	if err != nil {
		return Reminder{}, fmt.Errorf("fetch preferences: %w", err)
	}
	p := prefsOrDefault(prefs, c.CustomerID)
	if !p.ConsolidationEnabled {
		return Reminder{}, &ConsolidationPreferenceError{CustomerID: c.CustomerID}
	}
	if p.MaxTotalAmount != nil && c.TotalAmount > *p.MaxTotalAmount {
		return Reminder{}, &AmountCapError{CustomerID: c.CustomerID, TotalAmount: c.TotalAmount, Cap: *p.MaxTotalAmount}
	}

	// Re-check contact eligibility against current state, not the state
	// the candidate was computed from.
	contacts, err := s.store.LastContacts(ctx, []uuid.UUID{c.CustomerID})
	if err != nil {
		return Reminder{}, fmt.Errorf("fetch last contacts: %w", err)
	}
	now := s.now()
	if last, ok := contacts[c.CustomerID]; ok {
		eligible := last.Add(p.interval(s.defaultInterval))
		if now.Before(eligible) {
			return Reminder{}, &ContactIntervalError{CustomerID: c.CustomerID, NextEligibleContact: eligible}
		}
	}

	sendTime, err := s.sched.Next(now, schedule.Constraints{
		RespectBusinessHours: true,
		AvoidWeekends:        true,
		AvoidHolidays:        true,
		AvoidPrayerTimes:     true,
	})
	if err != nil {
		return Reminder{}, err
	}

	invoiceIDs := make([]uuid.UUID, len(c.Invoices))
	for i, inv := range c.Invoices {
		invoiceIDs[i] = inv.ID
	}

	reminder := Reminder{
		ID:                uuid.New(),
		CustomerID:        c.CustomerID,
		InvoiceIDs:        invoiceIDs,
		TotalAmount:       c.TotalAmount,
		EscalationLevel:   c.EscalationLevel,
		TemplateTier:      templateTier(c.EscalationLevel),
		ScheduledSendTime: sendTime,
		CreatedAt:         now,
	}
	if err := s.store.InsertReminder(ctx, reminder); err != nil {
		return Reminder{}, fmt.Errorf("insert consolidated reminder: %w", err)
	}

	if err := s.audit.Record(ctx, "system", "consolidation.reminder",
		fmt.Sprintf("Consolidated reminder covering %d invoices, %.2f total", len(invoiceIDs), c.TotalAmount),
		map[string]any{
			"customerId":  c.CustomerID.String(),
			"reminderId":  reminder.ID.String(),
			"invoiceIds":  len(invoiceIDs),
			"totalAmount": c.TotalAmount,
			"level":       string(c.EscalationLevel),
		}); err != nil {
		return Reminder{}, err
	}
	return reminder, nil
}

func buildCandidate(customerID uuid.UUID, invoices []OverdueInvoice, p CustomerPrefs, contacts map[uuid.UUID]time.Time, now time.Time, defaultIntervalDays int) Candidate {
	sorted := make([]OverdueInvoice, len(invoices))
	copy(sorted, invoices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DueDate.Before(sorted[j].DueDate) })

	var total float64
	oldest := 0
	for _, inv := range sorted {
		total += inv.Amount
		if inv.DaysOverdue > oldest {
			oldest = inv.DaysOverdue
		}
	}

	c := Candidate{
		CustomerID:        customerID,
		Invoices:          sorted,
		TotalAmount:       total,
		OldestInvoiceDays: oldest,
		PriorityScore:     priorityScore(total, oldest, p),
		EscalationLevel:   escalationLevel(oldest, total),
		CanContact:        true,
	}

	if last, ok := contacts[customerID]; ok {
		eligible := last.Add(p.interval(defaultIntervalDays))
		c.LastContactDate = &last
		c.NextEligibleContact = &eligible
		c.CanContact = !now.Before(eligible)
	}
	return c
}

// priorityScore weighs amount, age and relationship into [0, 100].
func priorityScore(total float64, oldestDays int, p CustomerPrefs) int {
	raw := weightAmount*clamp01(total/amountNorm) +
		weightAge*clamp01(float64(oldestDays)/ageNorm) +
		weightHistory*clamp01(p.PaymentHistoryScore) +
		weightRelationship*clamp01(p.RelationshipScore)

	score := int(math.Round(100 * raw))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// escalationLevel tiers a group by its oldest overdue age or its total.
func escalationLevel(oldestDays int, total float64) domain.EscalationLevel {
	switch {
	case oldestDays >= 90 || total >= 50000:
		return domain.LevelFinal
	case oldestDays >= 60 || total >= 25000:
		return domain.LevelUrgent
	case oldestDays >= 30 || total >= 10000:
		return domain.LevelFirm
	default:
		return domain.LevelPolite
	}
}

func templateTier(level domain.EscalationLevel) string {
	switch level {
	case domain.LevelFinal:
		return "consolidated_final_notice"
	case domain.LevelUrgent:
		return "consolidated_urgent"
	case domain.LevelFirm:
		return "consolidated_firm"
	default:
		return "consolidated_polite"
	}
}

func prefsOrDefault(prefs map[uuid.UUID]CustomerPrefs, customerID uuid.UUID) CustomerPrefs {
	if p, ok := prefs[customerID]; ok {
		return p
	}
	return CustomerPrefs{CustomerID: customerID, ConsolidationEnabled: true}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
