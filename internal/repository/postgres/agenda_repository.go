package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agenda-api/internal/domain"
)

type AgendaRepository struct {
	db *sql.DB
}

func (r *AgendaRepository) Init(ctx context.Context) error {
	return checkTable(ctx, r.db, "agendas")
}

func (r *AgendaRepository) Create(ctx context.Context, agenda *domain.Agenda) (int64, error) {
	agenda.CreatedAt = time.Now().UTC()

	err := r.db.QueryRowContext(ctx, `
INSERT INTO agendas (title, owner_id, created_at)
VALUES ($1, $2, $3)
RETURNING id`,
		agenda.Title, agenda.OwnerID, agenda.CreatedAt,
	).Scan(&agenda.ID)
	if err != nil {
		return 0, fmt.Errorf("insert agenda: %w", err)
	}
	return agenda.ID, nil
}

func (r *AgendaRepository) GetByID(ctx context.Context, id int64) (*domain.Agenda, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, owner_id, created_at
FROM agendas
WHERE id = $1`, id)

	var agenda domain.Agenda
	if err := scanAgenda(row, &agenda); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("agenda %d %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scan agenda: %w", err)
	}
	return &agenda, nil
}

func (r *AgendaRepository) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Agenda, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, title, owner_id, created_at
FROM agendas
WHERE owner_id = $1
ORDER BY id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query agendas: %w", err)
	}
	defer rows.Close()

	agendas := []domain.Agenda{}
	for rows.Next() {
		var agenda domain.Agenda
		if err := scanAgenda(rows, &agenda); err != nil {
			return nil, fmt.Errorf("scan agenda: %w", err)
		}
		agendas = append(agendas, agenda)
	}
	return agendas, rows.Err()
}

func (r *AgendaRepository) Delete(ctx context.Context, id int64) (bool, error) {
	return deleteByID(ctx, r.db, `DELETE FROM agendas WHERE id = $1`, id)
}

func scanAgenda(row rowScanner, agenda *domain.Agenda) error {
	if err := row.Scan(&agenda.ID, &agenda.Title, &agenda.OwnerID, &agenda.CreatedAt); err != nil {
		return err
	}
	agenda.CreatedAt = agenda.CreatedAt.UTC()
	return nil
}
