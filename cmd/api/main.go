package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/conversation-queue-service/internal/api/http"
	"github.com/spec-kit/conversation-queue-service/internal/api/http/handlers"
	"github.com/spec-kit/conversation-queue-service/internal/auth"
	"github.com/spec-kit/conversation-queue-service/internal/config"
	"github.com/spec-kit/conversation-queue-service/internal/domain"
	"github.com/spec-kit/conversation-queue-service/internal/events"
	"github.com/spec-kit/conversation-queue-service/internal/messaging"
	"github.com/spec-kit/conversation-queue-service/internal/observability"
	"github.com/spec-kit/conversation-queue-service/internal/persistence"
	"github.com/spec-kit/conversation-queue-service/internal/queue"
	"github.com/spec-kit/conversation-queue-service/internal/repository"
	"github.com/spec-kit/conversation-queue-service/internal/service"
	"github.com/spec-kit/conversation-queue-service/internal/worker"
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

	publisher := messaging.Publisher(messaging.NewNoopPublisher())
	if cfg.Rabbit.URL != "" {
		publisher, err = messaging.NewRabbitPublisher(ctx, messaging.ConnectionOptions{
			URL:           cfg.Rabbit.URL,
			RetryAttempts: cfg.Rabbit.RetryAttempts,
			Delay:         cfg.Rabbit.RetryDelay(),
			Logger:        logger,
		}, cfg.Rabbit.Exchange, logger)
		if err != nil {
			logger.Fatal("failed to connect rabbitmq", zap.Error(err))
		}
	}
	defer publisher.Close() //nolint:errcheck

	var agentRepo repository.AgentRepository
	var conversationRepo repository.ConversationRepository
	var assignmentRepo repository.AssignmentRepository
	if pool := pg.PoolHandle(); pool != nil {
		agentRepo = repository.NewAgentRepository(pool)
		conversationRepo = repository.NewConversationRepository(pool)
		assignmentRepo = repository.NewAssignmentRepository(pool)
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	broadcaster := events.NewTenantBroadcaster(logger)
	defer broadcaster.Close()

	slaPolicy, err := queue.NewSLAPolicy(slaThresholds(cfg.Queue))
	if err != nil {
		logger.Fatal("invalid sla thresholds", zap.Error(err))
	}
	engine := queue.NewEngine(queue.Config{
		AutoAssign:            cfg.Queue.AutoAssign,
		AcceptRetries:         cfg.Queue.AcceptRetries,
		DefaultMaxLoad:        cfg.Queue.DefaultMaxLoad,
		PreserveWaitOnRequeue: cfg.Queue.PreserveWaitOnRequeue,
	}, slaPolicy)

	queueService := service.NewQueueService(service.QueueDependencies{
		Engine:           engine,
		ConversationRepo: conversationRepo,
		AssignmentRepo:   assignmentRepo,
		AgentRepo:        agentRepo,
		Dispatcher:       dispatcher,
		Redis:            redis,
		Metrics:          metrics,
		Logger:           logger,
		QueueConfig:      cfg.Queue,
	})
	if err := queueService.Restore(ctx); err != nil {
		logger.Fatal("failed to restore queue state", zap.Error(err))
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(service.AuthDependencies{
		AgentRepo:  agentRepo,
		Tokens:     tokens,
		Queue:      queueService,
		BcryptCost: cfg.Auth.BcryptCost,
		Logger:     logger,
	})
	authMiddleware := auth.NewAuthMiddleware(tokens, agentRepo)

	eventPublisher := service.NewEventPublisher(publisher, redis, broadcaster, logger)
	worker.StartEventWorker(dispatcher, eventPublisher)
	worker.StartDailyResetWorker(ctx, queueService, logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Agents:         handlers.NewAgentsHandler(authService),
		Queue:          handlers.NewQueueHandler(queueService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func slaThresholds(cfg config.QueueConfig) map[domain.QueuePriority]time.Duration {
	return map[domain.QueuePriority]time.Duration{
		domain.QueuePriorityCritical: time.Duration(cfg.SLACriticalMinutes) * time.Minute,
		domain.QueuePriorityHigh:     time.Duration(cfg.SLAHighMinutes) * time.Minute,
		domain.QueuePriorityMedium:   time.Duration(cfg.SLAMediumMinutes) * time.Minute,
		domain.QueuePriorityLow:      time.Duration(cfg.SLALowMinutes) * time.Minute,
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
