package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agenda-api/internal/domain"
	"agenda-api/internal/repository"
)

// AgendaService coordinates agenda operations. Every call is scoped to an owner
// taken from the caller's session, never from request input.
type AgendaService interface {
	Create(ctx context.Context, ownerID int64, title string) (*domain.Agenda, error)
	Get(ctx context.Context, id int64) (*domain.Agenda, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.Agenda, error)
	// Delete returns domain.ErrNotFound when the agenda is absent and
	// domain.ErrForbidden when it belongs to someone else.
	Delete(ctx context.Context, id, requestingUserID int64) error
}

type agendaService struct {
	agendas repository.AgendaRepository
}

func NewAgendaService(agendas repository.AgendaRepository) AgendaService {
	return &agendaService{agendas: agendas}
}

func (s *agendaService) Create(ctx context.Context, ownerID int64, title string) (*domain.Agenda, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: agenda title is required", domain.ErrValidation)
	}
	if ownerID <= 0 {
		return nil, fmt.Errorf("%w: agenda owner is required", domain.ErrValidation)
	}

	agenda := &domain.Agenda{
		Title:   title,
		OwnerID: ownerID,
	}
	if _, err := s.agendas.Create(ctx, agenda); err != nil {
		return nil, err
	}
	return agenda, nil
}

func (s *agendaService) Get(ctx context.Context, id int64) (*domain.Agenda, error) {
	return s.agendas.GetByID(ctx, id)
}

func (s *agendaService) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Agenda, error) {
	if ownerID <= 0 {
		return nil, fmt.Errorf("%w: agenda owner is required", domain.ErrValidation)
	}
	return s.agendas.ListByOwner(ctx, ownerID)
}

func (s *agendaService) Delete(ctx context.Context, id, requestingUserID int64) error {
	agenda, err := s.agendas.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !agenda.OwnedBy(requestingUserID) {
		return fmt.Errorf("agenda %d owned by %d: %w", id, agenda.OwnerID, domain.ErrForbidden)
	}
	return deleteOrNotFound(ctx, "agenda", id, s.agendas.Delete)
}

// deleteOrNotFound turns a zero-row delete (a concurrent delete won) into ErrNotFound.
func deleteOrNotFound(ctx context.Context, kind string, id int64, del func(context.Context, int64) (bool, error)) error {
	deleted, err := del(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%s %d %w", kind, id, domain.ErrNotFound)
	}
	return nil
}

// IsNotFoundOrForbidden reports whether err is one of the two ownership outcomes.
func IsNotFoundOrForbidden(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden)
}
