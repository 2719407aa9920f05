package repository

import (
	"context"

	"agenda-api/internal/domain"
)

// AgendaRepository exposes persistence operations for agendas.
// Nothing ties OwnerID to an existing user at the storage level.
type AgendaRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, agenda *domain.Agenda) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Agenda, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.Agenda, error)
	// Delete reports false when no row matched, which is how a lost
	// check-then-delete race surfaces.
	Delete(ctx context.Context, id int64) (bool, error)
}

// EventRepository exposes persistence operations for events.
type EventRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, event *domain.Event) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Event, error)
	ListByAgenda(ctx context.Context, agendaID int64) ([]domain.Event, error)
	Delete(ctx context.Context, id int64) (bool, error)
}
