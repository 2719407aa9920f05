package repository

import (
	"context"
	"time"

	"agenda-api/internal/domain"
)

// SessionRepository stores server-side login sessions.
type SessionRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, session *domain.Session) error
	// GetByID returns domain.ErrNotFound for absent sessions and for sessions
	// already expired at now.
	GetByID(ctx context.Context, id string, now time.Time) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
