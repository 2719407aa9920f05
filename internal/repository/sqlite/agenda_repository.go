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

const createAgendasTable = `
CREATE TABLE IF NOT EXISTS agendas (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	owner_id INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agendas_owner_id ON agendas(owner_id);
`

type AgendaRepository struct {
	db *sql.DB
}

func NewAgendaRepository(db *sql.DB) repository.AgendaRepository {
	return &AgendaRepository{db: db}
}

func (r *AgendaRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createAgendasTable); err != nil {
		return fmt.Errorf("create agendas table: %w", err)
	}
	return nil
}

func (r *AgendaRepository) Create(ctx context.Context, agenda *domain.Agenda) (int64, error) {
	agenda.CreatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
INSERT INTO agendas (title, owner_id, created_at)
VALUES (?, ?, ?)`,
		agenda.Title,
		agenda.OwnerID,
		agenda.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert agenda: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("agenda last insert id: %w", err)
	}
	agenda.ID = id
	return id, nil
}

func (r *AgendaRepository) GetByID(ctx context.Context, id int64) (*domain.Agenda, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, owner_id, created_at
FROM agendas
WHERE id = ?`, id)

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
WHERE owner_id = ?
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM agendas WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete agenda: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("agenda rows affected: %w", err)
	}
	return n > 0, nil
}

func scanAgenda(row rowScanner, agenda *domain.Agenda) error {
	if err := row.Scan(&agenda.ID, &agenda.Title, &agenda.OwnerID, &agenda.CreatedAt); err != nil {
		return err
	}
	agenda.CreatedAt = agenda.CreatedAt.UTC()
	return nil
}
