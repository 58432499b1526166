package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"rentdesk/internal/model"
)

// EventRepository appends to the security_events table. Rows are never
// updated or deleted; ULIDs keep them sortable by creation time.
type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) Append(ctx context.Context, event model.SecurityEvent) error {
	if event.ID == "" {
		event.ID = ulid.Make().String()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO security_events (id, kind, identifier, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.Kind, event.Identifier, event.Detail, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("append security event: %w", err)
	}
	return nil
}

func (r *EventRepository) ListRecent(ctx context.Context, limit int) ([]model.SecurityEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, kind, identifier, detail, created_at
		 FROM security_events ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list security events: %w", err)
	}
	defer rows.Close()

	events := make([]model.SecurityEvent, 0, limit)
	for rows.Next() {
		var e model.SecurityEvent
		if err := rows.Scan(&e.ID, &e.Kind, &e.Identifier, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan security event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
