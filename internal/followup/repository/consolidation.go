package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reminder_backend/internal/followup/consolidation"
	"reminder_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the postgres error code backing the at-most-one
// active reminder per customer guarantee.
const uniqueViolation = "23505"

// OverdueInvoicesByCustomer returns unpaid, unsuppressed, past-due
// invoices grouped by customer. Days overdue are computed in the
// database so the grouping is consistent with the due-date filter.
func (r *Repository) OverdueInvoicesByCustomer(ctx context.Context) (map[uuid.UUID][]consolidation.OverdueInvoice, error) {
	query := `
		SELECT customer_id, id, amount, due_date,
		       GREATEST(0, (CURRENT_DATE - due_date::date))::int AS days_overdue
		FROM invoices
		WHERE status = 'OVERDUE' AND NOT suppressed
		ORDER BY customer_id, due_date ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query overdue invoices: %w", err)
	}
	defer rows.Close()

	out := map[uuid.UUID][]consolidation.OverdueInvoice{}
	for rows.Next() {
		var (
			customerID uuid.UUID
			inv        consolidation.OverdueInvoice
		)
		if err := rows.Scan(&customerID, &inv.ID, &inv.Amount, &inv.DueDate, &inv.DaysOverdue); err != nil {
			return nil, fmt.Errorf("scan overdue invoice: %w", err)
		}
		out[customerID] = append(out[customerID], inv)
	}
	return out, rows.Err()
}

// Preferences returns consolidation preferences for the given customers.
// Customers without a row fall back to defaults at the caller.
func (r *Repository) Preferences(ctx context.Context, customerIDs []uuid.UUID) (map[uuid.UUID]consolidation.CustomerPrefs, error) {
	if len(customerIDs) == 0 {
		return map[uuid.UUID]consolidation.CustomerPrefs{}, nil
	}

	query := `
		SELECT id, consolidation_enabled, max_total_amount, contact_interval_days,
		       segment, payment_history_score, relationship_score
		FROM customers
		WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, customerIDs)
	if err != nil {
		return nil, fmt.Errorf("query customer preferences: %w", err)
	}
	defer rows.Close()

	out := map[uuid.UUID]consolidation.CustomerPrefs{}
	for rows.Next() {
		var p consolidation.CustomerPrefs
		if err := rows.Scan(
			&p.CustomerID, &p.ConsolidationEnabled, &p.MaxTotalAmount, &p.ContactIntervalDays,
			&p.Segment, &p.PaymentHistoryScore, &p.RelationshipScore,
		); err != nil {
			return nil, fmt.Errorf("scan customer preferences: %w", err)
		}
		out[p.CustomerID] = p
	}
	return out, rows.Err()
}

// LastContacts returns each customer's most recent outbound contact: the
// later of the last consolidated reminder and the last individual
// follow-up send.
func (r *Repository) LastContacts(ctx context.Context, customerIDs []uuid.UUID) (map[uuid.UUID]time.Time, error) {
	if len(customerIDs) == 0 {
		return map[uuid.UUID]time.Time{}, nil
	}

	query := `
		SELECT customer_id, max(contacted_at) FROM (
			SELECT customer_id, created_at AS contacted_at
			FROM consolidated_reminders
			WHERE customer_id = ANY($1)
			UNION ALL
			SELECT inv.customer_id, i.sent_at AS contacted_at
			FROM followup_instances i
			JOIN invoices inv ON inv.id = i.invoice_id
			WHERE inv.customer_id = ANY($1) AND i.sent_at IS NOT NULL
		) contacts
		GROUP BY customer_id`

	rows, err := r.pool.Query(ctx, query, customerIDs)
	if err != nil {
		return nil, fmt.Errorf("query last contacts: %w", err)
	}
	defer rows.Close()

	out := map[uuid.UUID]time.Time{}
	for rows.Next() {
		var (
			customerID uuid.UUID
			last       time.Time
		)
		if err := rows.Scan(&customerID, &last); err != nil {
			return nil, fmt.Errorf("scan last contact: %w", err)
		}
		out[customerID] = last
	}
	return out, rows.Err()
}

// InsertReminder persists one consolidated reminder. A partial unique
// index on (customer_id) WHERE status = 'scheduled' turns a concurrent
// double-contact into a conflict instead of a second email.
func (r *Repository) InsertReminder(ctx context.Context, rem consolidation.Reminder) error {
	query := `
		INSERT INTO consolidated_reminders (
			id, customer_id, invoice_ids, total_amount, escalation_level,
			template_tier, scheduled_send_time, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, 'scheduled', $8)`

	_, err := r.pool.Exec(ctx, query,
		rem.ID, rem.CustomerID, rem.InvoiceIDs, rem.TotalAmount, rem.EscalationLevel,
		rem.TemplateTier, rem.ScheduledSendTime, rem.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperr.Conflict("customer already has a scheduled consolidated reminder")
		}
		return fmt.Errorf("insert consolidated reminder: %w", err)
	}
	return nil
}

// ListReminders returns recent consolidated reminders for a customer,
// newest first.
func (r *Repository) ListReminders(ctx context.Context, customerID uuid.UUID, limit int) ([]consolidation.Reminder, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, customer_id, invoice_ids, total_amount, escalation_level,
		       template_tier, scheduled_send_time, created_at
		FROM consolidated_reminders
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query consolidated reminders: %w", err)
	}
	defer rows.Close()

	var reminders []consolidation.Reminder
	for rows.Next() {
		var rem consolidation.Reminder
		if err := rows.Scan(
			&rem.ID, &rem.CustomerID, &rem.InvoiceIDs, &rem.TotalAmount,
			&rem.EscalationLevel, &rem.TemplateTier, &rem.ScheduledSendTime, &rem.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan consolidated reminder: %w", err)
		}
		reminders = append(reminders, rem)
	}
	return reminders, rows.Err()
}

// Interface check
var _ consolidation.Store = (*Repository)(nil)
