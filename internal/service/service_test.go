package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"agenda-api/internal/domain"
	"agenda-api/internal/repository/sqlite"
)

type services struct {
	identity *identityService
	agendas  AgendaService
	events   EventService
	repos    sqlite.Repositories
}

func newTestServices(t *testing.T) services {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "agenda.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repos := sqlite.NewRepositories(db)
	require.NoError(t, repos.Init(context.Background()))

	return services{
		identity: newIdentityService(repos.Users, bcrypt.MinCost),
		agendas:  NewAgendaService(repos.Agendas),
		events:   NewEventService(repos.Events, repos.Agendas),
		repos:    repos,
	}
}

func TestIdentity_RegisterThenVerify(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)

	cases := []struct{ name, email, password string }{
		{"Ana", "ana@x.com", "pw1"},
		{"Bruno", "bruno@x.com", "correct horse battery staple"},
		{"Çecília", "cecilia@x.com", "s3nh@-ç"},
	}
	for _, tc := range cases {
		t.Run(tc.email, func(t *testing.T) {
			user, err := s.identity.Register(ctx, tc.name, tc.email, tc.password)
			require.NoError(t, err)
			assert.Empty(t, user.PasswordHash)

			verified, err := s.identity.VerifyCredentials(ctx, tc.email, tc.password)
			require.NoError(t, err)
			require.NotNil(t, verified)
			assert.Equal(t, user.ID, verified.ID)
		})
	}
}

func TestIdentity_StoresDigestNotPassword(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)

	_, err := s.identity.Register(ctx, "Ana", "ana@x.com", "pw1")
	require.NoError(t, err)

	stored, err := s.repos.Users.GetByEmail(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "pw1", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("pw1")))
}

func TestIdentity_RegisterValidation(t *testing.T) {
	s := newTestServices(t)

	for _, tc := range []struct{ name, email, password string }{
		{"", "a@x.com", "pw"},
		{"Ana", "", "pw"},
		{"Ana", "a@x.com", ""},
		{"   ", "a@x.com", "pw"},
	} {
		_, err := s.identity.Register(context.Background(), tc.name, tc.email, tc.password)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
}

func TestIdentity_DuplicateEmailConflicts(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)

	first, err := s.identity.Register(ctx, "Ana", "ana@x.com", "pw1")
	require.NoError(t, err)

	_, err = s.identity.Register(ctx, "Impostor", "ana@x.com", "pw2")
	require.ErrorIs(t, err, domain.ErrConflict)

	// the original record is untouched and still the only one
	verified, err := s.identity.VerifyCredentials(ctx, "ana@x.com", "pw1")
	require.NoError(t, err)
	require.NotNil(t, verified)
	assert.Equal(t, first.ID, verified.ID)

	denied, err := s.identity.VerifyCredentials(ctx, "ana@x.com", "pw2")
	require.NoError(t, err)
	assert.Nil(t, denied)
}

func TestIdentity_VerifyFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)

	_, err := s.identity.Register(ctx, "Ana", "ana@x.com", "pw1")
	require.NoError(t, err)

	unknown, errUnknown := s.identity.VerifyCredentials(ctx, "nobody@x.com", "pw1")
	wrong, errWrong := s.identity.VerifyCredentials(ctx, "ana@x.com", "nope")

	assert.Nil(t, unknown)
	assert.Nil(t, wrong)
	assert.NoError(t, errUnknown)
	assert.NoError(t, errWrong)
}

func TestIdentity_DeleteLeavesAgendas(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)

	user, err := s.identity.Register(ctx, "Ana", "ana@x.com", "pw1")
	require.NoError(t, err)
	_, err = s.agendas.Create(ctx, user.ID, "Faculdade")
	require.NoError(t, err)

	require.NoError(t, s.identity.Delete(ctx, user.ID))
	assert.ErrorIs(t, s.identity.Delete(ctx, user.ID), domain.ErrNotFound)

	orphans, err := s.agendas.ListByOwner(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, orphans, 1)
}

func TestAgenda_CreateRequiresTitle(t *testing.T) {
	s := newTestServices(t)

	_, err := s.agendas.Create(context.Background(), 1, "  ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAgenda_ListByOwnerOnlyReturnsOwnAgendas(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)

	for owner := int64(1); owner <= 5; owner++ {
		for i := 0; i < int(owner); i++ {
			_, err := s.agendas.Create(ctx, owner, "agenda")
			require.NoError(t, err)
		}
	}

	for owner := int64(1); owner <= 5; owner++ {
		agendas, err := s.agendas.ListByOwner(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, agendas, int(owner))
		for _, a := range agendas {
			assert.Equal(t, owner, a.OwnerID)
		}
	}
}

func TestAgenda_DeleteDistinguishesInternally(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)

	agenda, err := s.agendas.Create(ctx, 1, "Faculdade")
	require.NoError(t, err)

	err = s.agendas.Delete(ctx, agenda.ID, 2)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = s.agendas.Get(ctx, agenda.ID)
	require.NoError(t, err, "foreign delete must leave the agenda intact")

	assert.ErrorIs(t, s.agendas.Delete(ctx, 999, 1), domain.ErrNotFound)

	require.NoError(t, s.agendas.Delete(ctx, agenda.ID, 1))
	assert.ErrorIs(t, s.agendas.Delete(ctx, agenda.ID, 1), domain.ErrNotFound)
}

func TestEvent_CreateValidation(t *testing.T) {
	s := newTestServices(t)
	start := time.Date(2025, 10, 10, 19, 0, 0, 0, time.UTC)

	_, err := s.events.Create(context.Background(), 1, "", start)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = s.events.Create(context.Background(), 1, "Prova", time.Time{})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = s.events.Create(context.Background(), 0, "Prova", start)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEvent_CreateDoesNotCheckAgendaOwnership(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)

	agenda, err := s.agendas.Create(ctx, 1, "Faculdade")
	require.NoError(t, err)

	_, err = s.events.Create(ctx, agenda.ID, "Intruso", time.Now())
	require.NoError(t, err)

	// a dangling agenda id is accepted as well
	_, err = s.events.Create(ctx, 12345, "Órfão", time.Now())
	require.NoError(t, err)
}

func TestEvent_DeleteWalksOwnershipChain(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	start := time.Date(2025, 10, 10, 19, 0, 0, 0, time.UTC)

	agenda, err := s.agendas.Create(ctx, 1, "Faculdade")
	require.NoError(t, err)
	event, err := s.events.Create(ctx, agenda.ID, "Prova", start)
	require.NoError(t, err)

	assert.ErrorIs(t, s.events.Delete(ctx, event.ID, 2), domain.ErrForbidden)
	_, err = s.events.Get(ctx, event.ID)
	require.NoError(t, err, "event must survive a foreign delete")

	assert.ErrorIs(t, s.events.Delete(ctx, 999, 1), domain.ErrNotFound)

	require.NoError(t, s.events.Delete(ctx, event.ID, 1))
	assert.ErrorIs(t, s.events.Delete(ctx, event.ID, 1), domain.ErrNotFound)
}

func TestEvent_DeleteWithMissingParentIsForbidden(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)

	event, err := s.events.Create(ctx, 777, "Órfão", time.Now())
	require.NoError(t, err)

	assert.ErrorIs(t, s.events.Delete(ctx, event.ID, 1), domain.ErrForbidden)
}

func TestAgenda_DeleteLostRaceIsNotFound(t *testing.T) {
	repo := &AgendaRepositoryStub{
		GetByIDFn: func(ctx context.Context, id int64) (*domain.Agenda, error) {
			return &domain.Agenda{ID: id, OwnerID: 1}, nil
		},
		DeleteFn: func(ctx context.Context, id int64) (bool, error) {
			return false, nil
		},
	}
	svc := NewAgendaService(repo)

	err := svc.Delete(context.Background(), 5, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAgenda_DeleteStoreErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	repo := &AgendaRepositoryStub{
		GetByIDFn: func(ctx context.Context, id int64) (*domain.Agenda, error) {
			return nil, boom
		},
	}
	svc := NewAgendaService(repo)

	err := svc.Delete(context.Background(), 5, 1)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsNotFoundOrForbidden(err))
}
