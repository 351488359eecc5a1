package repository

import (
	"context"
	"fmt"
	"time"

	"reminder_backend/internal/followup/domain"
	"reminder_backend/internal/followup/escalation"
	"reminder_backend/platform/apperr"

	"github.com/google/uuid"
)

// ActiveInstances returns all sent-but-unresolved instances together with
// the invoice, customer and engagement summary the evaluator needs. One
// row per instance; payments are attached in a second batched query.
func (r *Repository) ActiveInstances(ctx context.Context) ([]escalation.InstanceContext, error) {
	query := `
		SELECT i.id, i.invoice_id, i.sequence_id, i.step_number, i.tone,
		       i.scheduled_send_time, i.sent_at, i.status, i.resume_at,
		       i.created_at, i.updated_at,
		       inv.amount, inv.currency, inv.due_date,
		       c.segment,
		       (SELECT max(occurred_at) FROM engagement_events e
		          WHERE e.instance_id = i.id AND e.type = 'OPEN'),
		       (SELECT max(occurred_at) FROM engagement_events e
		          WHERE e.instance_id = i.id AND e.type = 'CLICK'),
		       (SELECT max(occurred_at) FROM engagement_events e
		          WHERE e.instance_id = i.id AND e.type = 'CONTACT'),
		       EXISTS (SELECT 1 FROM engagement_events e
		          WHERE e.instance_id = i.id AND e.type = 'BOUNCE'),
		       (SELECT max(occurred_at) FROM engagement_events e
		          WHERE e.instance_id = i.id AND e.type = 'COMPLAINT'),
		       (SELECT max(occurred_at) FROM engagement_events e
		          WHERE e.instance_id = i.id AND e.type = 'MANUAL_ESCALATION')
		FROM followup_instances i
		JOIN invoices inv ON inv.id = i.invoice_id
		JOIN customers c ON c.id = inv.customer_id
		WHERE i.status IN ($1, $2)`

	rows, err := r.pool.Query(ctx, query, domain.StatusSent, domain.StatusDelivered)
	if err != nil {
		return nil, fmt.Errorf("query active instances: %w", err)
	}
	defer rows.Close()

	var (
		contexts   []escalation.InstanceContext
		invoiceIDs []uuid.UUID
	)
	for rows.Next() {
		var ic escalation.InstanceContext
		if err := rows.Scan(
			&ic.Instance.ID, &ic.Instance.InvoiceID, &ic.Instance.SequenceID,
			&ic.Instance.StepNumber, &ic.Instance.Tone, &ic.Instance.ScheduledSendTime,
			&ic.Instance.SentAt, &ic.Instance.Status, &ic.Instance.ResumeAt,
			&ic.Instance.CreatedAt, &ic.Instance.UpdatedAt,
			&ic.InvoiceAmount, &ic.Currency, &ic.DueDate,
			&ic.CustomerSegment,
			&ic.LastOpenAt, &ic.LastClickAt, &ic.LastContactAt,
			&ic.Bounced, &ic.ComplaintAt, &ic.ManualEscalatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan active instance: %w", err)
		}
		contexts = append(contexts, ic)
		invoiceIDs = append(invoiceIDs, ic.Instance.InvoiceID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(contexts) == 0 {
		return nil, nil
	}

	payments, err := r.paymentsByInvoice(ctx, invoiceIDs)
	if err != nil {
		return nil, err
	}
	for i := range contexts {
		contexts[i].Payments = payments[contexts[i].Instance.InvoiceID]
	}
	return contexts, nil
}

func (r *Repository) paymentsByInvoice(ctx context.Context, invoiceIDs []uuid.UUID) (map[uuid.UUID][]escalation.Payment, error) {
	query := `
		SELECT invoice_id, amount, paid_at
		FROM payments
		WHERE invoice_id = ANY($1)
		ORDER BY paid_at ASC`

	rows, err := r.pool.Query(ctx, query, invoiceIDs)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	out := map[uuid.UUID][]escalation.Payment{}
	for rows.Next() {
		var (
			invoiceID uuid.UUID
			p         escalation.Payment
		)
		if err := rows.Scan(&invoiceID, &p.Amount, &p.PaidAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out[invoiceID] = append(out[invoiceID], p)
	}
	return out, rows.Err()
}

// QueuedSteps returns the invoice's queued instances ordered by send time,
// soonest first.
func (r *Repository) QueuedSteps(ctx context.Context, invoiceID uuid.UUID) ([]domain.Instance, error) {
	query := `
		SELECT id, invoice_id, sequence_id, step_number, tone, scheduled_send_time,
		       sent_at, status, resume_at, created_at, updated_at
		FROM followup_instances
		WHERE invoice_id = $1 AND status = $2
		ORDER BY scheduled_send_time ASC`

	rows, err := r.pool.Query(ctx, query, invoiceID, domain.StatusQueued)
	if err != nil {
		return nil, fmt.Errorf("query queued steps: %w", err)
	}
	defer rows.Close()

	return scanInstances(rows)
}

// UpdateSchedule moves an instance's send time
func (r *Repository) UpdateSchedule(ctx context.Context, instanceID uuid.UUID, sendTime time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE followup_instances
		SET scheduled_send_time = $2, updated_at = now()
		WHERE id = $1`, instanceID, sendTime)
	if err != nil {
		return fmt.Errorf("update instance schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("follow-up instance not found")
	}
	return nil
}

// UpdateStatus transitions an instance. resumeAt is only meaningful for
// HELD and is cleared on every other transition.
func (r *Repository) UpdateStatus(ctx context.Context, instanceID uuid.UUID, status domain.DeliveryStatus, resumeAt *time.Time) error {
	if status != domain.StatusHeld {
		resumeAt = nil
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE followup_instances
		SET status = $2, resume_at = $3, updated_at = now()
		WHERE id = $1`, instanceID, status, resumeAt)
	if err != nil {
		return fmt.Errorf("update instance status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("follow-up instance not found")
	}
	return nil
}

// InsertStep creates a new instance row, used when escalation inserts a
// replacement step.
func (r *Repository) InsertStep(ctx context.Context, inst domain.Instance) error {
	query := `
		INSERT INTO followup_instances (
			id, invoice_id, sequence_id, step_number, tone, scheduled_send_time,
			sent_at, status, resume_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())`

	_, err := r.pool.Exec(ctx, query,
		inst.ID, inst.InvoiceID, inst.SequenceID, inst.StepNumber, inst.Tone,
		inst.ScheduledSendTime, inst.SentAt, inst.Status, inst.ResumeAt)
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}
	return nil
}

// ReassignSequence moves an instance to another sequence
func (r *Repository) ReassignSequence(ctx context.Context, instanceID, sequenceID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE followup_instances
		SET sequence_id = $2, updated_at = now()
		WHERE id = $1`, instanceID, sequenceID)
	if err != nil {
		return fmt.Errorf("reassign instance sequence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("follow-up instance not found")
	}
	return nil
}

// HeldDue returns held instances whose resume time has passed
func (r *Repository) HeldDue(ctx context.Context, now time.Time) ([]domain.Instance, error) {
	query := `
		SELECT id, invoice_id, sequence_id, step_number, tone, scheduled_send_time,
		       sent_at, status, resume_at, created_at, updated_at
		FROM followup_instances
		WHERE status = $1 AND resume_at IS NOT NULL AND resume_at <= $2
		ORDER BY resume_at ASC`

	rows, err := r.pool.Query(ctx, query, domain.StatusHeld, now)
	if err != nil {
		return nil, fmt.Errorf("query due holds: %w", err)
	}
	defer rows.Close()

	return scanInstances(rows)
}

// Interface check
var _ escalation.Store = (*Repository)(nil)
