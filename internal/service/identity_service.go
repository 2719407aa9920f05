package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"agenda-api/internal/domain"
	"agenda-api/internal/repository"
)

// PasswordCost matches the cost the original accounts were hashed with.
const PasswordCost = 10

// IdentityService describes user registration and credential checks.
type IdentityService interface {
	Register(ctx context.Context, name, email, password string) (*domain.User, error)
	// VerifyCredentials returns a nil user and nil error when the email is unknown
	// or the password does not match; callers cannot tell the two apart.
	VerifyCredentials(ctx context.Context, email, password string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	// Delete removes the account only; owned agendas and events are left in place.
	Delete(ctx context.Context, id int64) error
}

type identityService struct {
	users repository.UserRepository
	cost  int
	// dummyHash is compared against when the email is unknown so both
	// failure paths spend a bcrypt comparison.
	dummyHash []byte
}

func NewIdentityService(users repository.UserRepository) IdentityService {
	return newIdentityService(users, PasswordCost)
}

func newIdentityService(users repository.UserRepository, cost int) *identityService {
	dummy, err := bcrypt.GenerateFromPassword([]byte("agenda-api-dummy-password"), cost)
	if err != nil {
		// only fails for an out-of-range cost, which is a programming error
		panic(fmt.Sprintf("bcrypt dummy hash: %v", err))
	}
	return &identityService{
		users:     users,
		cost:      cost,
		dummyHash: dummy,
	}
}

func (s *identityService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", domain.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password must be at most 72 bytes", domain.ErrValidation)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *identityService) VerifyCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, nil
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil
	}

	return sanitizeUser(user), nil
}

func (s *identityService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *identityService) Delete(ctx context.Context, id int64) error {
	deleted, err := s.users.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("user %d %w", id, domain.ErrNotFound)
	}
	return nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}
