package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reminder_backend/internal/followup/consolidation"
	"reminder_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InvoiceRecipient is the delivery target and invoice summary for one
// individual follow-up email.
type InvoiceRecipient struct {
	CustomerName  string
	Email         string
	InvoiceNumber string
	Amount        float64
	Currency      string
	DueDate       time.Time
}

// InvoiceRecipient resolves the customer and invoice behind an instance's
// invoice id.
func (r *Repository) InvoiceRecipient(ctx context.Context, invoiceID uuid.UUID) (InvoiceRecipient, error) {
	query := `
		SELECT c.name, c.email, inv.number, inv.amount, inv.currency, inv.due_date
		FROM invoices inv
		JOIN customers c ON c.id = inv.customer_id
		WHERE inv.id = $1`

	var rec InvoiceRecipient
	err := r.pool.QueryRow(ctx, query, invoiceID).Scan(
		&rec.CustomerName, &rec.Email, &rec.InvoiceNumber, &rec.Amount, &rec.Currency, &rec.DueDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InvoiceRecipient{}, apperr.NotFound("invoice not found")
		}
		return InvoiceRecipient{}, fmt.Errorf("get invoice recipient: %w", err)
	}
	return rec, nil
}

// CustomerRecipient is the delivery target for a consolidated reminder.
type CustomerRecipient struct {
	Name  string
	Email string
}

// CustomerRecipient resolves a customer's contact details.
func (r *Repository) CustomerRecipient(ctx context.Context, customerID uuid.UUID) (CustomerRecipient, error) {
	var rec CustomerRecipient
	err := r.pool.QueryRow(ctx,
		`SELECT name, email FROM customers WHERE id = $1`, customerID,
	).Scan(&rec.Name, &rec.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CustomerRecipient{}, apperr.NotFound("customer not found")
		}
		return CustomerRecipient{}, fmt.Errorf("get customer recipient: %w", err)
	}
	return rec, nil
}

// ReminderLine is one invoice row inside a consolidated reminder email.
type ReminderLine struct {
	Number      string
	Amount      float64
	DueDate     time.Time
	DaysOverdue int
}

// ReminderLines resolves the invoice rows referenced by a consolidated
// reminder, ordered by due date.
func (r *Repository) ReminderLines(ctx context.Context, invoiceIDs []uuid.UUID) ([]ReminderLine, error) {
	query := `
		SELECT number, amount, due_date,
		       GREATEST(0, (CURRENT_DATE - due_date::date))::int
		FROM invoices
		WHERE id = ANY($1)
		ORDER BY due_date ASC`

	rows, err := r.pool.Query(ctx, query, invoiceIDs)
	if err != nil {
		return nil, fmt.Errorf("query reminder lines: %w", err)
	}
	defer rows.Close()

	var lines []ReminderLine
	for rows.Next() {
		var line ReminderLine
		if err := rows.Scan(&line.Number, &line.Amount, &line.DueDate, &line.DaysOverdue); err != nil {
			return nil, fmt.Errorf("scan reminder line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// DueReminders returns scheduled consolidated reminders whose send time
// has arrived, oldest first.
func (r *Repository) DueReminders(ctx context.Context, now time.Time, limit int) ([]consolidation.Reminder, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, customer_id, invoice_ids, total_amount, escalation_level,
		       template_tier, scheduled_send_time, created_at
		FROM consolidated_reminders
		WHERE status = 'scheduled' AND scheduled_send_time <= $1
		ORDER BY scheduled_send_time ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	defer rows.Close()

	var reminders []consolidation.Reminder
	for rows.Next() {
		var rem consolidation.Reminder
		if err := rows.Scan(
			&rem.ID, &rem.CustomerID, &rem.InvoiceIDs, &rem.TotalAmount,
			&rem.EscalationLevel, &rem.TemplateTier, &rem.ScheduledSendTime, &rem.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan due reminder: %w", err)
		}
		reminders = append(reminders, rem)
	}
	return reminders, rows.Err()
}

// MarkReminderSent transitions a scheduled reminder to sent, releasing
// the per-customer uniqueness slot.
func (r *Repository) MarkReminderSent(ctx context.Context, reminderID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE consolidated_reminders
		SET status = 'sent', sent_at = now()
		WHERE id = $1 AND status = 'scheduled'`, reminderID)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("reminder is not scheduled")
	}
	return nil
}
