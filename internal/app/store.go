package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"agenda-api/internal/config"
	"agenda-api/internal/repository"
	"agenda-api/internal/repository/postgres"
	"agenda-api/internal/repository/sqlite"
)

// store is the single record store handle shared by every service.
type store struct {
	db       *sql.DB
	users    repository.UserRepository
	agendas  repository.AgendaRepository
	events   repository.EventRepository
	sessions repository.SessionRepository
	init     func(ctx context.Context) error
}

func openStore(cfg config.Config, logger logrus.FieldLogger) (*store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := postgres.Open(cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		repos := postgres.NewRepositories(db)
		logger.WithField("driver", cfg.Database.Driver).Info("record store opened")
		return &store{
			db:       db,
			users:    repos.Users,
			agendas:  repos.Agendas,
			events:   repos.Events,
			sessions: repos.Sessions,
			init:     repos.Init,
		}, nil
	default:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		repos := sqlite.NewRepositories(db)
		logger.WithFields(logrus.Fields{"driver": config.DriverSQLite, "path": cfg.Database.Path}).Info("record store opened")
		return &store{
			db:       db,
			users:    repos.Users,
			agendas:  repos.Agendas,
			events:   repos.Events,
			sessions: repos.Sessions,
			init:     repos.Init,
		}, nil
	}
}

// migrate brings the schema up to date for the configured backend.
func migrate(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) error {
	if cfg.Database.Driver == config.DriverPostgres {
		if err := postgres.RunMigrations(cfg.Database.URL); err != nil {
			return err
		}
		logger.Info("postgres migrations applied")
		return nil
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.db.Close()

	if err := st.init(ctx); err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}
	logger.Info("sqlite schema ready")
	return nil
}
