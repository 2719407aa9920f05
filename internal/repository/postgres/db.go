// Package postgres implements the record store over PostgreSQL.
// Schema is owned by the embedded migrations rather than by Init.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"agenda-api/internal/repository"
)

// uniqueViolation is the SQLSTATE postgres reports for a unique index conflict.
const uniqueViolation = "23505"

// Open opens a postgres handle. sql.Open does not dial, so callers Ping before serving.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	return db, nil
}

// Repositories bundles the postgres implementations over one shared handle.
type Repositories struct {
	Users    repository.UserRepository
	Agendas  repository.AgendaRepository
	Events   repository.EventRepository
	Sessions repository.SessionRepository
}

// NewRepositories builds every repository over db.
func NewRepositories(db *sql.DB) Repositories {
	return Repositories{
		Users:    &UserRepository{db: db},
		Agendas:  &AgendaRepository{db: db},
		Events:   &EventRepository{db: db},
		Sessions: &SessionRepository{db: db},
	}
}

// Init verifies the schema is reachable; tables come from RunMigrations.
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
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// checkTable fails when a migration has not created table yet.
func checkTable(ctx context.Context, db *sql.DB, table string) error {
	var name sql.NullString
	if err := db.QueryRowContext(ctx, `SELECT to_regclass($1)::text`, table).Scan(&name); err != nil {
		return fmt.Errorf("check %s table: %w", table, err)
	}
	if !name.Valid {
		return fmt.Errorf("table %s is missing, run the migrate command", table)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

var (
	_ repository.UserRepository    = (*UserRepository)(nil)
	_ repository.AgendaRepository  = (*AgendaRepository)(nil)
	_ repository.EventRepository   = (*EventRepository)(nil)
	_ repository.SessionRepository = (*SessionRepository)(nil)
)
