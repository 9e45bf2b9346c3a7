package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/facility-desk/internal/auth"
	"github.com/spec-kit/facility-desk/internal/clock"
	"github.com/spec-kit/facility-desk/internal/config"
	"github.com/spec-kit/facility-desk/internal/domain"
	"github.com/spec-kit/facility-desk/internal/events"
	"github.com/spec-kit/facility-desk/internal/idgen"
	"github.com/spec-kit/facility-desk/internal/notify"
	"github.com/spec-kit/facility-desk/internal/observability"
	"github.com/spec-kit/facility-desk/internal/persistence"
	"github.com/spec-kit/facility-desk/internal/policy"
	"github.com/spec-kit/facility-desk/internal/repository"
	"github.com/spec-kit/facility-desk/internal/repository/memory"
	"github.com/spec-kit/facility-desk/internal/service"
	"github.com/spec-kit/facility-desk/internal/worker"
)

// dependencies holds the storage handles and the repositories built on them.
type dependencies struct {
	postgres *persistence.Postgres
	redis    *persistence.Redis

	tickets  repository.TicketRepository
	history  repository.TicketHistoryRepository
	areas    repository.AreaRepository
	users    repository.UserRepository
	pushSubs repository.PushSubscriptionRepository
}

func openDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			pg.Close()
			return nil, err
		}
	}

	deps := &dependencies{
		postgres: pg,
		redis:    persistence.NewRedis(cfg.Redis, logger),
	}

	if pg.Enabled() {
		pool := pg.PoolHandle()
		deps.tickets = repository.NewTicketRepository(pool)
		deps.history = repository.NewTicketHistoryRepository(pool)
		deps.areas = repository.NewAreaRepository(pool)
		deps.users = repository.NewUserRepository(pool)
		deps.pushSubs = repository.NewPushSubscriptionRepository(pool)
		return deps, nil
	}

	store := memory.NewStore()
	deps.tickets = store.Tickets()
	deps.history = store.History()
	deps.areas = store.Areas()
	deps.users = store.Users()
	deps.pushSubs = store.PushSubscriptions()
	return deps, nil
}

func (d *dependencies) Close() {
	d.redis.Close()
	d.postgres.Close()
}

// serviceStack is everything the HTTP layer and the worker need.
type serviceStack struct {
	tickets *service.TicketService
	push    *service.PushService
	tokens  *auth.TokenManager
	worker  *worker.NotificationWorker
}

func buildServices(cfg *config.Config, deps *dependencies, metrics *observability.Metrics, logger *zap.Logger) (*serviceStack, error) {
	counters, err := counterStore(cfg, deps)
	if err != nil {
		return nil, err
	}

	exceptions, err := loadExceptions(cfg.Lifecycle.PolicyFile, deps.areas)
	if err != nil {
		return nil, err
	}
	if exceptions.Len() > 0 {
		logger.Info("manager exceptions loaded", zap.Int("managers", exceptions.Len()))
	}

	renderer, err := notify.NewRenderer(cfg.Notification.PublicBaseURL)
	if err != nil {
		return nil, err
	}

	dispatcher := events.NewAsyncDispatcher(logger.Named("notifications"), events.AsyncOptions{
		QueueSize:       cfg.Notification.QueueSize,
		Workers:         cfg.Notification.Workers,
		DeliveryTimeout: cfg.Notification.DeliveryTimeout,
		OnDrop: func(event domain.NotificationEvent) {
			metrics.RecordNotification(string(event.Channel), "dropped")
		},
	})

	notifications := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		UserRepo:   deps.users,
		AreaRepo:   deps.areas,
		PushRepo:   deps.pushSubs,
		Renderer:   renderer,
		Email:      emailSender(cfg.Notification, logger),
		Push:       pushSender(cfg.Notification, logger),
		Metrics:    metrics,
		Logger:     logger.Named("notifications"),
	})

	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  deps.tickets,
		HistoryRepo: deps.history,
		AreaRepo:    deps.areas,
		UserRepo:    deps.users,
		Counters:    counters,
		Exceptions:  exceptions,
		Clock:       clock.System{},
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger.Named("tickets"),
		Config:      cfg.Lifecycle,
	})

	return &serviceStack{
		tickets: tickets,
		push:    service.NewPushService(deps.pushSubs, deps.users, logger),
		tokens:  auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		worker:  worker.NewNotificationWorker(dispatcher, notifications, logger),
	}, nil
}

func counterStore(cfg *config.Config, deps *dependencies) (idgen.CounterStore, error) {
	switch cfg.Lifecycle.CounterBackend {
	case config.CounterBackendPostgres:
		if !deps.postgres.Enabled() {
			return nil, fmt.Errorf("counter backend %q needs a database", cfg.Lifecycle.CounterBackend)
		}
		return idgen.NewPostgresCounter(deps.postgres.PoolHandle()), nil
	case config.CounterBackendRedis:
		if !deps.redis.Enabled() {
			return nil, fmt.Errorf("counter backend %q needs REDIS_ADDR", cfg.Lifecycle.CounterBackend)
		}
		return idgen.NewRedisCounter(deps.redis.Client), nil
	default:
		return idgen.NewMemoryCounter(), nil
	}
}

func emailSender(cfg config.NotificationConfig, logger *zap.Logger) notify.EmailSender {
	if !cfg.EmailEnabled() {
		logger.Warn("RESEND_API_KEY not set; emails are logged only")
		return notify.LogEmailSender{Logger: logger}
	}
	return notify.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom)
}

func pushSender(cfg config.NotificationConfig, logger *zap.Logger) notify.PushSender {
	if !cfg.PushEnabled() {
		logger.Warn("VAPID keys not set; push notifications are logged only")
		return notify.LogPushSender{Logger: logger}
	}
	return notify.NewWebPushSender(notify.VAPIDConfig{
		Subject:    cfg.VAPIDSubject,
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		TTL:        cfg.PushTTLSeconds,
	}, &http.Client{Timeout: cfg.DeliveryTimeout})
}

// loadExceptions reads the policy file and maps area codes to area ids.
// Entries that are not a known code are kept as ids.
func loadExceptions(path string, areas repository.AreaRepository) (*policy.StaticExceptionTable, error) {
	table, err := policy.LoadExceptionFile(path)
	if err != nil {
		return nil, err
	}
	return table.ResolveAreas(func(ref string) (string, error) {
		area, err := areas.GetByCode(context.Background(), strings.ToUpper(ref))
		switch {
		case err == nil:
			return area.ID, nil
		case errors.Is(err, pgx.ErrNoRows):
			return ref, nil
		default:
			return "", err
		}
	})
}
