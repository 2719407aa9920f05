package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agenda-api/internal/domain"
	"agenda-api/internal/repository"
)

const createEventsTable = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	starts_at DATETIME NOT NULL,
	agenda_id INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_agenda_id ON events(agenda_id);
`

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) repository.EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createEventsTable); err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	return nil
}

func (r *EventRepository) Create(ctx context.Context, event *domain.Event) (int64, error) {
	event.CreatedAt = time.Now().UTC()
	event.StartsAt = event.StartsAt.UTC()

	res, err := r.db.ExecContext(ctx, `
INSERT INTO events (title, starts_at, agenda_id, created_at)
VALUES (?, ?, ?, ?)`,
		event.Title,
		event.StartsAt,
		event.AgendaID,
		event.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("event last insert id: %w", err)
	}
	event.ID = id
	return id, nil
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (*domain.Event, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, starts_at, agenda_id, created_at
FROM events
WHERE id = ?`, id)

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
WHERE agenda_id = ?
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("event rows affected: %w", err)
	}
	return n > 0, nil
}

func scanEvent(row rowScanner, event *domain.Event) error {
	if err := row.Scan(&event.ID, &event.Title, &event.StartsAt, &event.AgendaID, &event.CreatedAt); err != nil {
		return err
	}
	event.StartsAt = event.StartsAt.UTC()
	event.CreatedAt = event.CreatedAt.UTC()
	return nil
}
