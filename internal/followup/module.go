// Package followup provides the follow-up orchestration domain module:
// sequence authoring, the escalation evaluator, the consolidation
// selector and the business-calendar scheduler.
package followup

import (
	"context"
	"time"

	"reminder_backend/internal/audit"
	"reminder_backend/internal/email"
	"reminder_backend/internal/events"
	"reminder_backend/internal/followup/consolidation"
	"reminder_backend/internal/followup/escalation"
	"reminder_backend/internal/followup/handler"
	"reminder_backend/internal/followup/repository"
	"reminder_backend/internal/followup/schedule"
	"reminder_backend/internal/followup/service"
	apphttp "reminder_backend/internal/http"
	"reminder_backend/platform/config"
	"reminder_backend/platform/logger"
	"reminder_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the follow-up domain module
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates the follow-up module with all dependencies wired
func NewModule(
	pool *pgxpool.Pool,
	val *validator.Validator,
	bus events.Bus,
	sender email.Sender,
	cal schedule.Calendar,
	calCfg config.CalendarConfig,
	fuCfg config.FollowUpConfig,
	notifCfg config.NotificationConfig,
	log *logger.Logger,
) *Module {
	sched := schedule.New(scheduleConfig(calCfg), cal)
	repo := repository.New(pool)
	auditRec := audit.NewRecorder(pool)

	evaluator := escalation.NewEvaluator(
		repo, sched, auditRec, busNotifier{bus}, log, fuCfg.GetEscalationPassConcurrency())
	selector := consolidation.NewSelector(
		repo, sched, auditRec, log, fuCfg.GetDefaultContactIntervalDays())

	svc := service.New(
		repo, evaluator, selector, escalation.DefaultRules(), bus,
		senderAdapter{sender}, notifCfg.GetAppBaseURL(), log)
	h := handler.New(svc, val, auditRec)

	return &Module{
		handler: h,
		Service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "followups"
}

// RegisterRoutes registers the module's routes under /api/v1/followups
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	followups := ctx.Protected.Group("/followups")
	m.handler.RegisterRoutes(followups)

	admin := ctx.Admin.Group("/followups")
	m.handler.RegisterAdminRoutes(admin)
}

// scheduleConfig maps the calendar configuration onto the scheduler's
// business-hours shape.
func scheduleConfig(cfg config.CalendarConfig) schedule.Config {
	working := map[time.Weekday]bool{}
	for _, day := range cfg.GetWorkingDays() {
		working[day] = true
	}
	if len(working) == 0 {
		return schedule.DefaultConfig()
	}
	return schedule.Config{
		WorkingDays:       working,
		WindowStartHour:   cfg.GetBusinessWindowStartHour(),
		WindowEndHour:     cfg.GetBusinessWindowEndHour(),
		ObservanceEndHour: cfg.GetObservanceWindowEndHour(),
	}
}

// busNotifier satisfies the evaluator's notifier port by publishing a
// manager notification event. The notification module consumes it.
type busNotifier struct {
	bus events.Bus
}

func (n busNotifier) NotifyManager(ctx context.Context, invoiceID uuid.UUID, reason string) error {
	n.bus.Publish(ctx, events.ManagerNotificationRequested{
		BaseEvent: events.NewBaseEvent(),
		InvoiceID: invoiceID,
		Reason:    reason,
	})
	return nil
}

// senderAdapter bridges the email sender onto the service's narrower
// sending port.
type senderAdapter struct {
	sender email.Sender
}

func (a senderAdapter) SendReminder(ctx context.Context, p service.ReminderEmail) (uuid.UUID, error) {
	return a.sender.SendReminder(ctx, email.ReminderParams{
		ToEmail:       p.ToEmail,
		ToName:        p.ToName,
		Tone:          p.Tone,
		Subject:       p.Subject,
		Body:          p.Body,
		InvoiceNumber: p.InvoiceNumber,
		Amount:        p.Amount,
		Currency:      p.Currency,
		DueDate:       p.DueDate,
		PaymentURL:    p.PaymentURL,
	})
}

func (a senderAdapter) SendConsolidatedReminder(ctx context.Context, p service.ConsolidatedEmail) (uuid.UUID, error) {
	lines := make([]email.ConsolidatedInvoice, len(p.Invoices))
	for i, inv := range p.Invoices {
		lines[i] = email.ConsolidatedInvoice{
			Number:      inv.Number,
			Amount:      inv.Amount,
			DueDate:     inv.DueDate,
			DaysOverdue: inv.DaysOverdue,
		}
	}
	return a.sender.SendConsolidatedReminder(ctx, email.ConsolidatedParams{
		ToEmail:      p.ToEmail,
		ToName:       p.ToName,
		TemplateTier: p.TemplateTier,
		Invoices:     lines,
		TotalAmount:  p.TotalAmount,
		Currency:     p.Currency,
		PaymentURL:   p.PaymentURL,
	})
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
