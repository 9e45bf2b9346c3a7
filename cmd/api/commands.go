package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/facility-desk/internal/api/http"
	"github.com/spec-kit/facility-desk/internal/api/http/handlers"
	"github.com/spec-kit/facility-desk/internal/auth"
	"github.com/spec-kit/facility-desk/internal/config"
	"github.com/spec-kit/facility-desk/internal/domain"
	"github.com/spec-kit/facility-desk/internal/observability"
	"github.com/spec-kit/facility-desk/internal/persistence"
)

func runServe(c *cli.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	deps, err := openDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	metrics := observability.NewMetrics()
	stack, err := buildServices(cfg, deps, metrics, logger)
	if err != nil {
		return err
	}
	stack.worker.Start()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps.postgres, deps.redis, metrics),
		Tickets:        handlers.NewTicketsHandler(stack.tickets),
		Push:           handlers.NewPushHandler(stack.push, cfg.Notification.VAPIDPublicKey),
		AuthMiddleware: auth.NewAuthMiddleware(stack.tokens, deps.users),
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdownSignal():
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Notification.DeliveryTimeout)
	defer drainCancel()
	_ = stack.worker.Stop(drainCtx)
	return nil
}

func runMigrate(c *cli.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Postgres.DSN == "" {
		return errors.New("POSTGRES_DSN is required to migrate")
	}
	pg, err := persistence.NewPostgres(c.Context, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	return persistence.RunMigrations(c.Context, pg.PoolHandle(), logger)
}

func runCreateUser(c *cli.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	role := domain.Role(strings.ToUpper(c.String("role")))
	if !role.IsValid() {
		return fmt.Errorf("invalid role %q", c.String("role"))
	}

	deps, err := openDependencies(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	user := &domain.User{
		Name:  strings.TrimSpace(c.String("name")),
		Email: strings.ToLower(strings.TrimSpace(c.String("email"))),
		Role:  role,
	}
	if code := strings.ToUpper(strings.TrimSpace(c.String("area"))); code != "" {
		area, err := deps.areas.GetByCode(c.Context, code)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("unknown area %q", code)
			}
			return err
		}
		user.AreaID = &area.ID
	}
	if err := deps.users.Create(c.Context, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintln(c.App.Writer, user.ID)
	return nil
}

func runIssueToken(c *cli.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	deps, err := openDependencies(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	user, err := deps.users.GetByID(c.Context, c.String("user-id"))
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	token, expiresAt, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes).
		GenerateToken(user.ID, user.Role)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "%s\n# expires %s\n", token, expiresAt.UTC().Format(time.RFC3339))
	return nil
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func shutdownSignal() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}
