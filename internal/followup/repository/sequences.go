// Package repository provides database operations for the follow-up
// bounded context: sequences, running instances, and the consolidation
// read/write surface.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reminder_backend/internal/followup/domain"
	"reminder_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sequenceNotFoundMsg = "follow-up sequence not found"

// Repository provides database operations for follow-up orchestration
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new follow-up repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateSequence inserts a new sequence. Steps are stored as a JSONB
// document; the domain layer owns their ordering invariants.
func (r *Repository) CreateSequence(ctx context.Context, seq *domain.Sequence) error {
	steps, err := json.Marshal(seq.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	query := `
		INSERT INTO followup_sequences (
			id, name, steps, active, uae_business_hours_only, respect_holidays, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, now(), now())`

	_, err = r.pool.Exec(ctx, query,
		seq.ID, seq.Name, steps, seq.Active, seq.UAEBusinessHoursOnly, seq.RespectHolidays)
	if err != nil {
		return fmt.Errorf("insert sequence: %w", err)
	}
	return nil
}

// GetSequence fetches one sequence by id
func (r *Repository) GetSequence(ctx context.Context, id uuid.UUID) (*domain.Sequence, error) {
	query := `
		SELECT id, name, steps, active, uae_business_hours_only, respect_holidays
		FROM followup_sequences
		WHERE id = $1`

	var (
		seq      domain.Sequence
		rawSteps []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&seq.ID, &seq.Name, &rawSteps, &seq.Active, &seq.UAEBusinessHoursOnly, &seq.RespectHolidays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(sequenceNotFoundMsg)
		}
		return nil, fmt.Errorf("get sequence: %w", err)
	}

	if err := json.Unmarshal(rawSteps, &seq.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	return &seq, nil
}

// ListSequences returns all sequences, newest first
func (r *Repository) ListSequences(ctx context.Context) ([]domain.Sequence, error) {
	query := `
		SELECT id, name, steps, active, uae_business_hours_only, respect_holidays
		FROM followup_sequences
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}
	defer rows.Close()

	var sequences []domain.Sequence
	for rows.Next() {
		var (
			seq      domain.Sequence
			rawSteps []byte
		)
		if err := rows.Scan(&seq.ID, &seq.Name, &rawSteps, &seq.Active, &seq.UAEBusinessHoursOnly, &seq.RespectHolidays); err != nil {
			return nil, fmt.Errorf("scan sequence: %w", err)
		}
		if err := json.Unmarshal(rawSteps, &seq.Steps); err != nil {
			return nil, fmt.Errorf("unmarshal steps: %w", err)
		}
		sequences = append(sequences, seq)
	}
	return sequences, rows.Err()
}

// UpdateSequence replaces the stored sequence with the given state
func (r *Repository) UpdateSequence(ctx context.Context, seq *domain.Sequence) error {
	steps, err := json.Marshal(seq.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	query := `
		UPDATE followup_sequences
		SET name = $2, steps = $3, active = $4, uae_business_hours_only = $5,
		    respect_holidays = $6, updated_at = now()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		seq.ID, seq.Name, steps, seq.Active, seq.UAEBusinessHoursOnly, seq.RespectHolidays)
	if err != nil {
		return fmt.Errorf("update sequence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(sequenceNotFoundMsg)
	}
	return nil
}

// DeleteSequence removes a sequence. Running instances keep their
// sequence_id for the audit trail; the foreign key is not cascading.
func (r *Repository) DeleteSequence(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM followup_sequences WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete sequence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(sequenceNotFoundMsg)
	}
	return nil
}

// DueInstances returns queued instances whose send time has arrived,
// oldest first, for the send pass.
func (r *Repository) DueInstances(ctx context.Context, now time.Time, limit int) ([]domain.Instance, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, invoice_id, sequence_id, step_number, tone, scheduled_send_time,
		       sent_at, status, resume_at, created_at, updated_at
		FROM followup_instances
		WHERE status = $1 AND scheduled_send_time <= $2
		ORDER BY scheduled_send_time ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, domain.StatusQueued, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due instances: %w", err)
	}
	defer rows.Close()

	return scanInstances(rows)
}

// MarkSent transitions a queued instance to SENT with the given timestamp.
func (r *Repository) MarkSent(ctx context.Context, instanceID uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE followup_instances
		SET status = $2, sent_at = $3, updated_at = now()
		WHERE id = $1 AND status = $4`

	tag, err := r.pool.Exec(ctx, query, instanceID, domain.StatusSent, sentAt, domain.StatusQueued)
	if err != nil {
		return fmt.Errorf("mark instance sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("instance is not queued")
	}
	return nil
}

func scanInstances(rows pgx.Rows) ([]domain.Instance, error) {
	var instances []domain.Instance
	for rows.Next() {
		var inst domain.Instance
		if err := rows.Scan(
			&inst.ID, &inst.InvoiceID, &inst.SequenceID, &inst.StepNumber, &inst.Tone,
			&inst.ScheduledSendTime, &inst.SentAt, &inst.Status, &inst.ResumeAt,
			&inst.CreatedAt, &inst.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}
