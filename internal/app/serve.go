package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"agenda-api/internal/authz"
	"agenda-api/internal/config"
	apphttp "agenda-api/internal/http"
	"agenda-api/internal/logging"
	"agenda-api/internal/metrics"
	"agenda-api/internal/service"
	"agenda-api/internal/session"
	"agenda-api/internal/storage"
	"agenda-api/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// serveHooks lets tests observe the bound listener.
type serveHooks struct {
	onListen func(addr net.Addr)
}

func serve(ctx context.Context, cfg config.Config, logger *logrus.Logger, errorLog *logging.ErrorFileHook, hooks serveHooks) error {
	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.db.Close(); err != nil {
			logger.Warnf("close store: %v", err)
		}
	}()

	if err := st.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	if cfg.Database.Driver == config.DriverPostgres {
		if err := migrate(ctx, cfg, logger); err != nil {
			return err
		}
	}
	if err := st.init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	identity := service.NewIdentityService(st.users)
	agendas := service.NewAgendaService(st.agendas)
	events := service.NewEventService(st.events, st.agendas)

	sessions, err := session.NewManager(identity, st.sessions, session.Config{
		Secret: []byte(cfg.Session.Secret),
		TTL:    cfg.Session.TTL,
	})
	if err != nil {
		return fmt.Errorf("session manager: %w", err)
	}

	policy := authz.Policy{
		StrictEventCreate: cfg.Authz.StrictEventCreate,
		StrictEventList:   cfg.Authz.StrictEventList,
	}
	if !policy.StrictEventCreate {
		logger.Warn("event creation does not check agenda ownership (authz.strict_event_create=false)")
	}
	gate := authz.NewGate(agendas, events, policy, authz.WithRecorder(collector), authz.WithLogger(logger))

	deps := apphttp.Deps{
		Identity:       identity,
		Agendas:        agendas,
		Events:         events,
		Sessions:       sessions,
		Gate:           gate,
		Cookie:         apphttp.CookieConfig{Name: cfg.Session.CookieName, Secure: cfg.Session.Secure},
		LoginLimiter:   apphttp.NewRateLimiter(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.LoginBurst),
		TrustedProxies: cfg.Server.TrustedProxies,
		Store:          st.db,
		Metrics:        collector,
		Logger:         logger,
	}
	if cfg.Metrics.Enabled {
		deps.MetricsHandler = metrics.Handler(registry)
	}

	gin.SetMode(gin.ReleaseMode)
	router := apphttp.NewHandler(deps).NewRouter()

	scheduler := worker.NewScheduler(logger)
	if err := scheduler.Add(cfg.Sweep.Schedule, worker.NewSweepJob(sessions, collector, logger)); err != nil {
		return err
	}
	if err := scheduleArchive(ctx, cfg, scheduler, errorLog, logger); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}
	if hooks.onListen != nil {
		hooks.onListen(ln.Addr())
	}

	srv := &http.Server{Handler: router}
	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	scheduler.Start()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warnf("stop scheduler: %v", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
	return runErr
}

func scheduleArchive(ctx context.Context, cfg config.Config, scheduler *worker.Scheduler, errorLog *logging.ErrorFileHook, logger *logrus.Logger) error {
	if cfg.Archive.Bucket == "" {
		return nil
	}
	if errorLog == nil {
		logger.Warn("archive.bucket is set but log.error_file is empty; error log archiving disabled")
		return nil
	}

	archiver, err := newArchiver(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Infof("archiving %s to s3 bucket %s (region %s)", errorLog.Path(), cfg.Archive.Bucket, cfg.Archive.Region)
	return scheduler.Add(cfg.Archive.Schedule, worker.NewArchiveJob(errorLog, archiver, logger))
}

func newArchiver(ctx context.Context, cfg config.Config) (*storage.Archiver, error) {
	client, err := storage.NewClient(ctx, cfg.Archive.Region, cfg.Archive.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("setup storage: %w", err)
	}
	return storage.NewArchiver(storage.NewS3Service(client), cfg.Archive.Bucket, cfg.Archive.KeyPrefix), nil
}
