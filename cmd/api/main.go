package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/omnichannel-support/internal/api/http"
	"github.com/spec-kit/omnichannel-support/internal/api/http/handlers"
	"github.com/spec-kit/omnichannel-support/internal/auth"
	"github.com/spec-kit/omnichannel-support/internal/channels/inbound"
	"github.com/spec-kit/omnichannel-support/internal/channels/outbound"
	"github.com/spec-kit/omnichannel-support/internal/config"
	"github.com/spec-kit/omnichannel-support/internal/events"
	"github.com/spec-kit/omnichannel-support/internal/idempotency"
	"github.com/spec-kit/omnichannel-support/internal/observability"
	"github.com/spec-kit/omnichannel-support/internal/persistence"
	"github.com/spec-kit/omnichannel-support/internal/repository"
	"github.com/spec-kit/omnichannel-support/internal/secrets"
	"github.com/spec-kit/omnichannel-support/internal/service"
	"github.com/spec-kit/omnichannel-support/internal/webchat"
	"github.com/spec-kit/omnichannel-support/internal/worker"
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

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		ticketRepo   repository.TicketRepository
		customerRepo repository.CustomerRepository
	)
	if pg.Enabled() {
		ticketRepo = repository.NewTicketRepository(pg.PoolHandle())
		customerRepo = repository.NewCustomerRepository(pg.PoolHandle())
	} else {
		logger.Warn("using in-memory ticket store; data is lost on restart")
		ticketRepo = repository.NewMemoryTicketRepository()
		customerRepo = repository.NewMemoryCustomerRepository()
	}

	secretProvider, err := newSecretProvider(ctx, cfg.AWS)
	if err != nil {
		logger.Fatal("failed to init secrets provider", zap.Error(err))
	}

	pool := worker.NewPool(worker.Options{
		Workers:   cfg.Events.Workers,
		QueueSize: cfg.Events.QueueSize,
		Timeout:   cfg.Events.PublishTimeout(),
		OnDrop: func(job worker.Job) {
			metrics.RecordDroppedEvent()
			logger.Warn("side-effect job dropped", zap.String("job", job.Name))
		},
	}, logger)

	dispatcher := events.NewInMemoryDispatcher()
	if redis.Enabled() {
		events.Forward(dispatcher, events.NewStreamPublisher(redis.Client, events.StreamConfig{
			TicketsStream:  cfg.Events.TicketsStream,
			MessagesStream: cfg.Events.MessagesStream,
			MaxLen:         cfg.Events.StreamMaxLen,
		}))
	} else {
		events.Forward(dispatcher, events.NewLogPublisher(logger))
	}
	service.NewNotificationService(dispatcher, logger).RegisterHandlers()

	hub := webchat.NewHub()
	httpClient := &http.Client{Timeout: cfg.Channels.OutboundTimeout()}
	graph := outbound.GraphConfig{BaseURL: cfg.Channels.GraphAPIBaseURL, Version: cfg.Channels.GraphAPIVersion}
	router := outbound.NewRouter(logger, metrics,
		outbound.NewFacebookSender(graph, cfg.Channels.FacebookTokenSecret, secretProvider, httpClient),
		outbound.NewWhatsAppSender(graph, cfg.Channels.WhatsAppPhoneNumberID, cfg.Channels.WhatsAppTokenSecret, secretProvider, httpClient),
		outbound.NewTwitterSender(cfg.Channels.TwitterAPIBaseURL, cfg.Channels.TwitterTokenSecret, secretProvider, httpClient),
		outbound.NewEmailSender(cfg.Channels.FromEmail, cfg.Channels.EmailSubject, cfg.Channels.EmailAPIKeySecret, secretProvider),
		outbound.NewWebChatSender(hub),
	)

	customerService := service.NewCustomerService(customerRepo, ticketRepo)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Customers:  customerService,
		Dispatcher: dispatcher,
		Jobs:       pool,
		Deliverer:  router,
		Logger:     logger,
	})

	var seen idempotency.Store = idempotency.NewMemoryStore()
	if redis.Enabled() {
		seen = idempotency.NewRedisStore(redis.Client)
	}
	intakeService := service.NewIntakeService(service.IntakeDependencies{
		Tickets:        ticketService,
		Idempotency:    seen,
		IdempotencyTTL: cfg.Intake.IdempotencyTTL(),
		Metrics:        metrics,
		Logger:         logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	if cfg.Auth.Disabled {
		logger.Warn("AUTH_DISABLED set; agent routes accept unauthenticated requests")
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), cfg.App.AllowedOrigins)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Customers:      handlers.NewCustomersHandler(customerService),
		Webhooks:       handlers.NewWebhooksHandler(intakeService, inbound.Default(), cfg.Channels, logger),
		WebChat:        handlers.NewWebChatHandler(hub, intakeService, logger, cfg.App.RequestTimeout()),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, cfg.Auth.Disabled, cfg.Auth.AgentGroup),
		AgentGroup:     cfg.Auth.AgentGroup,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	pool.Stop()
}

func newSecretProvider(ctx context.Context, cfg config.AWSConfig) (secrets.Provider, error) {
	if !cfg.UsesSecretsManager() {
		return secrets.NewCachedProvider(secrets.NewEnvProvider()), nil
	}
	provider, err := secrets.NewAWSProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return secrets.NewCachedProvider(provider), nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
