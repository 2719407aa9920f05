package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda-api/internal/domain"
)

// openTestRepos connects to AGENDA_TEST_DATABASE_URL and skips when it is unset.
func openTestRepos(t *testing.T) (Repositories, *sql.DB) {
	t.Helper()

	url := os.Getenv("AGENDA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("AGENDA_TEST_DATABASE_URL not set; skipping postgres tests")
	}
	require.NoError(t, RunMigrations(url))

	db, err := Open(url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Ping())

	repos := NewRepositories(db)
	require.NoError(t, repos.Init(context.Background()))
	return repos, db
}

func uniqueEmail(t *testing.T) string {
	return fmt.Sprintf("%s-%d@example.com", t.Name(), time.Now().UnixNano())
}

func TestRunMigrations_Idempotent(t *testing.T) {
	url := os.Getenv("AGENDA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("AGENDA_TEST_DATABASE_URL not set; skipping postgres tests")
	}
	require.NoError(t, RunMigrations(url))
	require.NoError(t, RunMigrations(url))
}

func TestUserRepository_DuplicateEmailIsConflict(t *testing.T) {
	ctx := context.Background()
	repos, _ := openTestRepos(t)
	email := uniqueEmail(t)

	id, err := repos.Users.Create(ctx, &domain.User{Name: "Ana", Email: email, PasswordHash: "x"})
	require.NoError(t, err)
	t.Cleanup(func() { repos.Users.Delete(ctx, id) })

	_, err = repos.Users.Create(ctx, &domain.User{Name: "Bia", Email: email, PasswordHash: "y"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := repos.Users.GetByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
}

func TestAgendaAndEventRepositories_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repos, _ := openTestRepos(t)
	owner := time.Now().UnixNano()

	agendaID, err := repos.Agendas.Create(ctx, &domain.Agenda{Title: "Faculdade", OwnerID: owner})
	require.NoError(t, err)

	agendas, err := repos.Agendas.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, agendas, 1)

	start := time.Date(2025, 10, 10, 19, 0, 0, 0, time.UTC)
	eventID, err := repos.Events.Create(ctx, &domain.Event{Title: "Prova", StartsAt: start, AgendaID: agendaID})
	require.NoError(t, err)

	event, err := repos.Events.GetByID(ctx, eventID)
	require.NoError(t, err)
	assert.True(t, event.StartsAt.Equal(start))

	deleted, err := repos.Events.Delete(ctx, eventID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repos.Agendas.Delete(ctx, agendaID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repos.Agendas.Delete(ctx, agendaID)
	require.NoError(t, err)
	assert.False(t, deleted)
}
