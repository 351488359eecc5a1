// Package audit provides the append-only audit trail. Entries are never
// updated or deleted; the table is the system of record for what the
// engine did and why.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one recorded audit event.
type Entry struct {
	ID          uuid.UUID       `json:"id"`
	ActorType   string          `json:"actorType"`
	Event       string          `json:"event"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Recorder appends entries to the audit_logs table.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder creates a recorder backed by the given pool.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Record appends one entry. metadata may be nil.
func (r *Recorder) Record(ctx context.Context, actorType, event, description string, metadata map[string]any) error {
	if r == nil || r.pool == nil {
		return errors.New("audit recorder not configured")
	}

	var raw []byte
	if metadata != nil {
		var err error
		raw, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, actor_type, event, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, uuid.New(), actorType, event, description, raw)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns the most recent entries for an event prefix, newest first.
// Used by the admin surface; the trail itself is append-only.
func (r *Recorder) List(ctx context.Context, eventPrefix string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, actor_type, event, description, COALESCE(metadata, 'null'::jsonb), created_at
		FROM audit_logs
		WHERE event LIKE $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2
	`, eventPrefix, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorType, &e.Event, &e.Description, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
