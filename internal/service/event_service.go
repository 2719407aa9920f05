package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agenda-api/internal/domain"
	"agenda-api/internal/repository"
)

// EventService coordinates event operations under an owning agenda.
type EventService interface {
	// Create does not check that the caller owns agendaID; that decision
	// belongs to the authorization gate.
	Create(ctx context.Context, agendaID int64, title string, startsAt time.Time) (*domain.Event, error)
	Get(ctx context.Context, id int64) (*domain.Event, error)
	ListByAgenda(ctx context.Context, agendaID int64) ([]domain.Event, error)
	// Delete walks event -> agenda -> owner. A missing event is
	// domain.ErrNotFound; a missing or foreign parent agenda is domain.ErrForbidden.
	Delete(ctx context.Context, id, requestingUserID int64) error
}

type eventService struct {
	events  repository.EventRepository
	agendas repository.AgendaRepository
}

func NewEventService(events repository.EventRepository, agendas repository.AgendaRepository) EventService {
	return &eventService{
		events:  events,
		agendas: agendas,
	}
}

func (s *eventService) Create(ctx context.Context, agendaID int64, title string, startsAt time.Time) (*domain.Event, error) {
	title = strings.TrimSpace(title)
	if title == "" || startsAt.IsZero() || agendaID <= 0 {
		return nil, fmt.Errorf("%w: title, start time and agenda id are required", domain.ErrValidation)
	}

	event := &domain.Event{
		Title:    title,
		StartsAt: startsAt.UTC(),
		AgendaID: agendaID,
	}
	if _, err := s.events.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *eventService) Get(ctx context.Context, id int64) (*domain.Event, error) {
	return s.events.GetByID(ctx, id)
}

func (s *eventService) ListByAgenda(ctx context.Context, agendaID int64) ([]domain.Event, error) {
	if agendaID <= 0 {
		return nil, fmt.Errorf("%w: agenda id is required", domain.ErrValidation)
	}
	return s.events.ListByAgenda(ctx, agendaID)
}

func (s *eventService) Delete(ctx context.Context, id, requestingUserID int64) error {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return err
	}

	agenda, err := s.agendas.GetByID(ctx, event.AgendaID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("event %d parent agenda %d missing: %w", id, event.AgendaID, domain.ErrForbidden)
		}
		return err
	}
	if !agenda.OwnedBy(requestingUserID) {
		return fmt.Errorf("event %d agenda %d owned by %d: %w", id, agenda.ID, agenda.OwnerID, domain.ErrForbidden)
	}

	return deleteOrNotFound(ctx, "event", id, s.events.Delete)
}
