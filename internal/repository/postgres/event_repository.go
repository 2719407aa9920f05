package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agenda-api/internal/domain"
)

type EventRepository struct {
	db *sql.DB
}

func (r *EventRepository) Init(ctx context.Context) error {
	return checkTable(ctx, r.db, "events")
}

func (r *EventRepository) Create(ctx context.Context, event *domain.Event) (int64, error) {
	event.CreatedAt = time.Now().UTC()
	event.StartsAt = event.StartsAt.UTC()

	err := r.db.QueryRowContext(ctx, `
INSERT INTO events (title, starts_at, agenda_id, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id`,
		event.Title, event.StartsAt, event.AgendaID, event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return event.ID, nil
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, starts_at, agenda_id, created_at
FROM events
WHERE id = $1`, id)

	var event domain.Event
	if err := scanEvent(row, &event); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event %d %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return &event, nil
}

func (r *EventRepository) ListByAgenda(ctx context.Context, agendaID int64) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, title, starts_at, agenda_id, created_at
FROM events
WHERE agenda_id = $1
ORDER BY id ASC`, agendaID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		var event domain.Event
		if err := scanEvent(rows, &event); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *EventRepository) Delete(ctx context.Context, id int64) (bool, error) {
	return deleteByID(ctx, r.db, `DELETE FROM events WHERE id = $1`, id)
}

func scanEvent(row rowScanner, event *domain.Event) error {
	if err := row.Scan(&event.ID, &event.Title, &event.StartsAt, &event.AgendaID, &event.CreatedAt); err != nil {
		return err
	}
	event.StartsAt = event.StartsAt.UTC()
	event.CreatedAt = event.CreatedAt.UTC()
	return nil
}
