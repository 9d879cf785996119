package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/escalation-service/internal/api/http"
	"github.com/spec-kit/escalation-service/internal/api/http/handlers"
	"github.com/spec-kit/escalation-service/internal/channel"
	"github.com/spec-kit/escalation-service/internal/config"
	"github.com/spec-kit/escalation-service/internal/domain"
	"github.com/spec-kit/escalation-service/internal/observability"
	"github.com/spec-kit/escalation-service/internal/persistence"
	"github.com/spec-kit/escalation-service/internal/repository"
	"github.com/spec-kit/escalation-service/internal/scheduler"
	"github.com/spec-kit/escalation-service/internal/service"
	"github.com/spec-kit/escalation-service/internal/template"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewDefaultMetrics()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	eventRepo := repository.NewEventRepository(pool)
	projectRepo := repository.NewProjectRepository(pool)
	namespaceRepo := repository.NewNamespaceRepository(pool)
	groupRepo := repository.NewGroupRepository(pool)
	contactRepo := repository.NewContactRepository(pool)
	templateRepo := repository.NewTemplateRepository(pool)

	builtin := domain.DefaultTemplate()
	switch err := templateRepo.UpsertBuiltin(ctx, &builtin); {
	case errors.Is(err, repository.ErrTemplateNotBuiltin):
		logger.Warn("builtin template not seeded, name owned by a custom template",
			zap.String("name", builtin.Name))
	case err != nil:
		logger.Fatal("failed to seed builtin template", zap.Error(err))
	}

	dispatcher := service.NewDispatchService(service.DispatchDependencies{
		TicketRepo:   ticketRepo,
		EventRepo:    eventRepo,
		GroupRepo:    groupRepo,
		ContactRepo:  contactRepo,
		TemplateRepo: templateRepo,
		Renderer:     template.NewRenderer(),
		Channels:     channel.NewRegistry(cfg.Channels),
		Logger:       logger,
		Metrics:      metrics,
		BaseURL:      cfg.App.BaseURL,
		SendTimeout:  cfg.Channels.SendTimeout(),
	})

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:    ticketRepo,
		EventRepo:     eventRepo,
		ProjectRepo:   projectRepo,
		NamespaceRepo: namespaceRepo,
		GroupRepo:     groupRepo,
		Dispatcher:    dispatcher,
		Logger:        logger,
		Metrics:       metrics,
	})

	escalator := scheduler.New(scheduler.Dependencies{
		TicketRepo:  ticketRepo,
		ProjectRepo: projectRepo,
		GroupRepo:   groupRepo,
		Lifecycle:   ticketService,
		Lease:       scheduler.NewRedisLease(redis.Client, cfg.Scheduler.LeaseKey, cfg.Scheduler.LeaseTTL()),
		Logger:      logger,
		Metrics:     metrics,
		Interval:    cfg.Scheduler.CheckInterval(),
	})
	go escalator.Run(ctx)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Webhook:  handlers.NewWebhookHandler(ticketService),
		Ack:      handlers.NewAckHandler(ticketService, cfg.App.BaseURL),
		Tickets:  handlers.NewTicketsHandler(ticketService),
		Projects: handlers.NewProjectsHandler(projectRepo, groupRepo),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
