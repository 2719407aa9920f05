package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"agenda-api/internal/repository"
)

// Open opens (or creates) a sqlite database at the given path and ensures directories exist.
// The returned handle is meant to be opened once per process and shared by every repository.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// a single writer connection keeps sqlite from returning SQLITE_BUSY under concurrent requests
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return db, nil
}

// Repositories bundles the sqlite implementations over one shared handle.
type Repositories struct {
	Users    repository.UserRepository
	Agendas  repository.AgendaRepository
	Events   repository.EventRepository
	Sessions repository.SessionRepository
}

// NewRepositories builds every repository over db.
func NewRepositories(db *sql.DB) Repositories {
	return Repositories{
		Users:    NewUserRepository(db),
		Agendas:  NewAgendaRepository(db),
		Events:   NewEventRepository(db),
		Sessions: NewSessionRepository(db),
	}
}

// Init creates every table and index that is missing.
func (r Repositories) Init(ctx context.Context) error {
	for _, init := range []func(context.Context) error{
		r.Users.Init,
		r.Agendas.Init,
		r.Events.Init,
		r.Sessions.Init,
	} {
		if err := init(ctx); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}

type rowScanner interface {
	Scan(dest ...any) error
}
