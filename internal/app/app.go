// Package app wires configuration, stores, services and the HTTP server together.
package app

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/worker"
	"github.com/spec-kit/helpdesk-service/migrations"
)

// App holds the running service graph.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Tokens   *auth.TokenManager
	Tickets  *service.TicketService
	Accounts *service.AccountService

	users   repository.UserRepository
	checks  map[string]handlers.Pinger
	closers []func()
}

// Stores groups the repositories selected by configuration.
type Stores struct {
	Tickets  repository.TicketRepository
	Users    repository.UserRepository
	Sequence repository.Sequencer
}

// New connects the configured stores and builds every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
		Tokens:  auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		checks:  map[string]handlers.Pinger{},
	}

	stores, err := a.openStores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.users = stores.Users

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	var publisher *events.KafkaPublisher
	if cfg.Kafka.Enabled() {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		a.closers = append(a.closers, func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("kafka writer close failed", zap.Error(err))
			}
		})
		logger.Info("publishing events to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	worker.StartEventSubscribers(dispatcher, notifications, publisher)

	policy := auth.NewRolePolicy()
	a.Tickets = service.NewTicketService(service.TicketDependencies{
		TicketRepo: stores.Tickets,
		Sequencer:  stores.Sequence,
		UserRepo:   stores.Users,
		Policy:     policy,
		Dispatcher: dispatcher,
		Metrics:    a.Metrics,
		Logger:     logger,
	})
	a.Accounts = service.NewAccountService(*cfg, service.AccountDependencies{
		UserRepo: stores.Users,
		Policy:   policy,
		Tokens:   a.Tokens,
		Logger:   logger,
	})

	if _, err := a.Accounts.EnsureAdmin(ctx, cfg.Admin); err != nil {
		a.Close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}
	return a, nil
}

func (a *App) openStores(ctx context.Context) (Stores, error) {
	cfg, logger := a.Config, a.Logger
	var stores Stores

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return stores, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		a.checks["postgres"] = pg
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), migrations.Files, logger); err != nil {
				return stores, fmt.Errorf("run migrations: %w", err)
			}
		}
		pool := pg.PoolHandle()
		stores.Tickets = repository.NewTicketRepository(pool)
		stores.Users = repository.NewUserRepository(pool)
		stores.Sequence = repository.NewCounterRepository(pool)
	case config.DriverMongo:
		mg, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			return stores, fmt.Errorf("connect mongo: %w", err)
		}
		a.closers = append(a.closers, mg.Close)
		a.checks["mongo"] = mg
		if err := repository.EnsureMongoIndexes(ctx, mg.Database); err != nil {
			return stores, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		stores.Tickets = repository.NewMongoTicketRepository(mg.Database)
		stores.Users = repository.NewMongoUserRepository(mg.Database)
		stores.Sequence = repository.NewMongoCounterRepository(mg.Database)
	default:
		logger.Warn("using in-memory store; data is lost on restart")
		stores.Tickets = repository.NewMemoryTicketRepository()
		stores.Users = repository.NewMemoryUserRepository()
		stores.Sequence = repository.NewMemorySequencer()
	}

	if cfg.Sequence.Backend == config.SequenceBackendRedis {
		rd := persistence.NewRedis(ctx, cfg.Redis, logger)
		a.closers = append(a.closers, rd.Close)
		a.checks["redis"] = rd
		stores.Sequence = repository.NewRedisCounterRepository(rd.Client)
	}

	logger.Info("stores ready",
		zap.String("driver", cfg.Store.Driver),
		zap.String("sequence_backend", cfg.Sequence.Backend))
	return stores, nil
}

// HTTP builds the fiber application serving the API.
func (a *App) HTTP() *fiber.App {
	server := fiber.New(fiber.Config{AppName: a.Config.App.Name})
	httptransport.RegisterMiddlewares(server, a.Logger, a.Metrics, a.Config.App.RequestTimeout())
	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(a.Config.App.Name, a.Config.App.Version, a.Metrics, a.checks),
		Tickets:        handlers.NewTicketsHandler(a.Tickets),
		Users:          handlers.NewUsersHandler(a.Accounts),
		AuthMiddleware: auth.NewAuthMiddleware(a.Tokens, a.users),
	})
	return server
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
