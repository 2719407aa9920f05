package service

import (
	"context"

	"agenda-api/internal/domain"
)

// AgendaRepositoryStub is a function-field fake; unset fields return zero values.
type AgendaRepositoryStub struct {
	GetByIDFn     func(ctx context.Context, id int64) (*domain.Agenda, error)
	ListByOwnerFn func(ctx context.Context, ownerID int64) ([]domain.Agenda, error)
	DeleteFn      func(ctx context.Context, id int64) (bool, error)
}

func (s *AgendaRepositoryStub) Init(ctx context.Context) error { return nil }

func (s *AgendaRepositoryStub) Create(ctx context.Context, agenda *domain.Agenda) (int64, error) {
	agenda.ID = 1
	return 1, nil
}

func (s *AgendaRepositoryStub) GetByID(ctx context.Context, id int64) (*domain.Agenda, error) {
	if s.GetByIDFn != nil {
		return s.GetByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *AgendaRepositoryStub) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Agenda, error) {
	if s.ListByOwnerFn != nil {
		return s.ListByOwnerFn(ctx, ownerID)
	}
	return nil, nil
}

func (s *AgendaRepositoryStub) Delete(ctx context.Context, id int64) (bool, error) {
	if s.DeleteFn != nil {
		return s.DeleteFn(ctx, id)
	}
	return false, nil
}
