package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/internal/repositories/journal"
	"github.com/Ramsey-B/fern/internal/server"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/session"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fern: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	logger  ectologger.Logger
	checker *health.Checker

	db      database.DB
	redis   *redis.Client
	emitter *events.Emitter
	manager *session.Manager
	httpSrv *http.Server
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, zl, err := logging.New(logging.Options{
		AppName: cfg.AppName,
		Level:   cfg.LogLevel,
		Pretty:  cfg.PrettyLogs,
	})
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing())
	if err != nil {
		return errors.Wrap(err, "failed to initialise tracing")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.WithError(err).Warn("failed to shut down tracing")
		}
	}()

	a := &app{cfg: cfg, logger: logger, checker: health.NewChecker(cfg.Version)}

	s := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	s.AddDependency(&startup.Func{Name: "database", StartFunc: a.startDatabase, StopFunc: a.stopDatabase})
	if cfg.RedisEnabled {
		s.AddDependency(&startup.Func{Name: "redis", StartFunc: a.startRedis, StopFunc: a.stopRedis})
	}
	if cfg.KafkaEnabled {
		s.AddDependency(&startup.Func{Name: "kafka", StartFunc: a.startKafka, StopFunc: a.stopKafka})
	}
	s.AddDependency(&startup.Func{Name: "sessions", Requires: a.sessionDeps(), StartFunc: a.startSessions, StopFunc: a.stopSessions})
	s.AddDependency(&startup.Func{Name: "http", Requires: []string{"sessions"}, StartFunc: a.startHTTP, StopFunc: a.stopHTTP})

	if err := s.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start")
	}
	a.checker.SetReady(true)
	logger.WithField("port", cfg.Port).Infof("%s %s started", cfg.AppName, cfg.Version)

	<-ctx.Done()
	a.checker.SetReady(false)
	logger.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Stop(sctx)
}

func (a *app) sessionDeps() []string {
	deps := []string{"database"}
	if a.cfg.RedisEnabled {
		deps = append(deps, "redis")
	}
	if a.cfg.KafkaEnabled {
		deps = append(deps, "kafka")
	}
	return deps
}

func (a *app) startDatabase(ctx context.Context) error {
	db, err := database.Open(ctx, a.cfg.Database(), a.logger)
	if err != nil {
		return err
	}
	if err := database.NewMigrationService(a.logger, a.cfg.Migration()).Migrate(db); err != nil {
		_ = db.Close()
		return err
	}
	a.db = db
	a.checker.AddCheck("database", true, db.PingContext)
	return nil
}

func (a *app) stopDatabase(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *app) startRedis(ctx context.Context) error {
	client, err := redis.NewClient(ctx, a.cfg.Redis(), a.logger)
	if err != nil {
		return err
	}
	a.redis = client
	a.checker.AddCheck("redis", false, client.Ping)
	return nil
}

func (a *app) stopRedis(ctx context.Context) error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}

func (a *app) startKafka(ctx context.Context) error {
	producer := kafka.NewProducer(a.cfg.Kafka(), a.logger)
	a.emitter = events.NewEmitter(producer, events.Config{}, a.logger)
	return nil
}

func (a *app) stopKafka(ctx context.Context) error {
	if a.emitter == nil {
		return nil
	}
	a.emitter.Close()
	return nil
}

func (a *app) startSessions(ctx context.Context) error {
	var opts []session.Option
	if a.cfg.JournalEnabled {
		opts = append(opts, session.WithJournal(journal.NewRepository(a.db, a.logger)))
	}
	if a.redis != nil {
		opts = append(opts, session.WithLocker(redis.NewLocker(a.redis, "", a.cfg.SaveLockTTL, a.cfg.SaveLockWait)))
	}
	if a.emitter != nil {
		opts = append(opts, session.WithEmitter(a.emitter))
	}

	a.manager = session.NewManager(a.db, session.Config{
		IdleTimeout:   a.cfg.SessionIdleTimeout,
		Transactional: a.cfg.PersistTransactional,
	}, a.logger, opts...)
	return a.manager.Start(ctx)
}

func (a *app) stopSessions(ctx context.Context) error {
	if a.manager == nil {
		return nil
	}
	return a.manager.Stop(ctx)
}

func (a *app) startHTTP(ctx context.Context) error {
	var reader handlers.JournalReader
	if a.cfg.JournalEnabled {
		reader = journal.NewRepository(a.db, a.logger)
	}
	e := server.New(server.Options{
		ServiceName: a.cfg.AppName,
		Manager:     a.manager,
		Journal:     reader,
		Health:      a.checker,
		Logger:      a.logger,
	})

	a.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(a.cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("http server stopped")
		}
	}()
	return nil
}

func (a *app) stopHTTP(ctx context.Context) error {
	if a.httpSrv == nil {
		return nil
	}
	return a.httpSrv.Shutdown(ctx)
}
