package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"devboard/internal/auth"
	"devboard/internal/config"
	"devboard/internal/handlers"
	"devboard/internal/logger"
	"devboard/internal/metrics"
	"devboard/internal/repository/inmemory"
	"devboard/internal/repository/postgres"
	"devboard/internal/seed"
	"devboard/internal/service"
	"devboard/internal/worker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type repositories struct {
	tasks    service.TaskRepository
	users    service.UserRepository
	calendar service.CalendarRepository
	audit    service.AuditRepository
	health   handlers.HealthChecker
}

type App struct {
	config    *config.Config
	server    *http.Server
	handler   http.Handler
	metrics   *metrics.Metrics
	worker    *worker.DueSoonWorker
	shutdowns []func()
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

// Init builds every component. On error the components created so far are released.
func (a *App) Init(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if err := a.config.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	repos, err := a.initRepositories(ctx)
	if err != nil {
		return err
	}
	revoker, err := a.initRevoker(ctx)
	if err != nil {
		return err
	}
	issuer, err := auth.NewIssuer(a.config.Auth.JWTSecret, a.config.Auth.AccessTTL, a.config.Auth.RefreshTTL)
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}

	auditSvc := service.NewAuditService(repos.audit)
	taskSvc := service.NewTaskService(repos.tasks, repos.users, auditSvc)
	authSvc := service.NewAuthService(repos.users, issuer, revoker, auditSvc)
	userSvc := service.NewUserService(repos.users, auditSvc, a.config.Auth.BcryptCost)

	if a.config.Seed.File != "" {
		res, err := seed.ApplyFile(ctx, userSvc, a.config.Seed.File)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		logger.Info("App: seed applied",
			zap.String("file", a.config.Seed.File),
			zap.Int("created", len(res.Created)),
			zap.Int("skipped", len(res.Skipped)))
	}

	a.metrics = metrics.New()
	h := handlers.New(handlers.Services{
		Tasks:    taskSvc,
		Calendar: service.NewCalendarService(repos.calendar, auditSvc),
		Users:    userSvc,
		Audit:    auditSvc,
		Auth:     authSvc,
		Health:   repos.health,
	}, a.metrics)

	a.handler = handlers.NewRouter(h, authSvc, handlers.RouterOptions{
		CORSOrigins:    a.config.Server.CORSOrigins,
		RateLimitRPM:   a.config.Server.RateLimitRPM,
		RequestTimeout: a.config.Server.RequestTimeout,
	})
	a.server = &http.Server{
		Addr:         a.config.GetServerAddr(),
		Handler:      a.handler,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
	}

	a.worker, err = worker.NewDueSoonWorker(taskSvc, a.config.Worker.DueSoonSchedule,
		a.config.Worker.DueSoonWindow, a.metrics.DueSoonReminders)
	if err != nil {
		return err
	}
	return nil
}

func (a *App) initRepositories(ctx context.Context) (*repositories, error) {
	switch a.config.Repository.Type {
	case config.RepositoryInMemory:
		logger.Info("App: using in-memory repositories")
		tasks := inmemory.NewTaskStorage()
		events := inmemory.NewCalendarStorage()
		return &repositories{
			tasks:    tasks,
			users:    inmemory.NewUserStorage(tasks, events),
			calendar: events,
			audit:    inmemory.NewAuditStorage(),
			health:   tasks,
		}, nil
	default:
		storage, err := OpenStorage(ctx, a.config.Database)
		if err != nil {
			return nil, err
		}
		a.shutdowns = append(a.shutdowns, func() {
			logger.Info("App: closing database pool")
			storage.Close()
		})
		if a.config.Database.AutoMigrate {
			if err := storage.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return &repositories{
			tasks:    storage.Tasks(),
			users:    storage.Users(),
			calendar: storage.Calendar(),
			audit:    storage.Audit(),
			health:   storage,
		}, nil
	}
}

// OpenStorage connects the Postgres pool described by cfg.
func OpenStorage(ctx context.Context, cfg config.DatabaseConfig) (*postgres.Storage, error) {
	storage, err := postgres.New(ctx, cfg.URL, postgres.PoolLimits{
		MaxConns:    cfg.MaxConnections,
		MinConns:    cfg.MinConnections,
		IdleTimeout: cfg.IdleTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return storage, nil
}

func (a *App) initRevoker(ctx context.Context) (auth.Revoker, error) {
	if a.config.Redis.Addr == "" {
		logger.Info("App: token revocation kept in memory")
		return auth.NewMemoryRevoker(), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     a.config.Redis.Addr,
		Password: a.config.Redis.Password,
		DB:       a.config.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", a.config.Redis.Addr, err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("App: closing redis client")
		if err := rdb.Close(); err != nil {
			logger.Error("App: redis close failed", err)
		}
	})
	logger.Info("App: token revocation backed by redis", zap.String("addr", a.config.Redis.Addr))
	return auth.NewRedisRevoker(rdb), nil
}

func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves HTTP and runs the due-soon worker until ctx is cancelled or the server
// fails, then shuts the server down within the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("App: server started", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("App: shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			logger.Error("App: graceful shutdown failed", err)
		}
		return nil
	})
	return g.Wait()
}

func (a *App) shutdownTimeout() time.Duration {
	if a.config.Server.ShutdownTimeout > 0 {
		return a.config.Server.ShutdownTimeout
	}
	return 10 * time.Second
}

// close runs the registered shutdown hooks in reverse order.
func (a *App) close() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
	a.shutdowns = nil
}
