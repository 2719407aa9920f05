// Package session binds requests to an authenticated user.
//
// A login creates a server-side session row and hands the client a signed
// token naming it. Resolving a token checks the signature and expiry, then
// requires the row to still exist, so logout takes effect immediately.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"agenda-api/internal/domain"
	"agenda-api/internal/repository"
	"agenda-api/internal/service"
)

// ErrDenied is the single outcome of a failed login, whatever the cause.
var ErrDenied = fmt.Errorf("%w: invalid email or password", domain.ErrUnauthenticated)

const issuer = "agenda-api"

// Identity is the session bound to a request.
type Identity struct {
	UserID    int64
	SessionID string
	ExpiresAt time.Time
}

// Config controls token signing and lifetime.
type Config struct {
	Secret []byte
	TTL    time.Duration
}

// Manager issues, resolves and revokes sessions.
type Manager struct {
	identity service.IdentityService
	sessions repository.SessionRepository
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewManager(identity service.IdentityService, sessions repository.SessionRepository, cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	return &Manager{
		identity: identity,
		sessions: sessions,
		secret:   cfg.Secret,
		ttl:      cfg.TTL,
		now:      time.Now,
	}, nil
}

// TTL is the lifetime given to new sessions.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Login verifies credentials and opens a session. Unknown email and wrong
// password both yield ErrDenied.
func (m *Manager) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	user, err := m.identity.VerifyCredentials(ctx, email, password)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, ErrDenied
	}

	now := m.now().UTC()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.sessions.Create(ctx, sess); err != nil {
		return "", nil, err
	}

	token, err := m.sign(sess)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Resolve returns the identity behind token, or an error wrapping
// domain.ErrUnauthenticated when the token is invalid, expired or revoked.
func (m *Manager) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("%w: no session", domain.ErrUnauthenticated)
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: invalid session token", domain.ErrUnauthenticated)
	}

	sess, err := m.sessions.GetByID(ctx, claims.ID, m.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: session revoked or expired", domain.ErrUnauthenticated)
		}
		return Identity{}, err
	}
	if sess.Expired(m.now()) || strconv.FormatInt(sess.UserID, 10) != claims.Subject {
		return Identity{}, fmt.Errorf("%w: session revoked or expired", domain.ErrUnauthenticated)
	}

	return Identity{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt,
	}, nil
}

// Logout revokes the session immediately.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	return m.sessions.Delete(ctx, sessionID)
}

// RevokeUser drops every session of userID.
func (m *Manager) RevokeUser(ctx context.Context, userID int64) error {
	return m.sessions.DeleteByUser(ctx, userID)
}

// SweepExpired deletes sessions past their expiry.
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	return m.sessions.DeleteExpired(ctx, m.now())
}

func (m *Manager) sign(sess *domain.Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   strconv.FormatInt(sess.UserID, 10),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}
