package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/raffle-service/internal/api/http"
	"github.com/spec-kit/raffle-service/internal/api/http/handlers"
	"github.com/spec-kit/raffle-service/internal/auth"
	"github.com/spec-kit/raffle-service/internal/clock"
	"github.com/spec-kit/raffle-service/internal/config"
	"github.com/spec-kit/raffle-service/internal/events"
	"github.com/spec-kit/raffle-service/internal/lifecycle"
	"github.com/spec-kit/raffle-service/internal/observability"
	"github.com/spec-kit/raffle-service/internal/persistence"
	"github.com/spec-kit/raffle-service/internal/repository"
	"github.com/spec-kit/raffle-service/internal/scheduler"
	"github.com/spec-kit/raffle-service/internal/service"
	"github.com/spec-kit/raffle-service/internal/worker"
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

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	raffleRepo := repository.NewRaffleRepository(pool)
	historyRepo := repository.NewHistoryRepository(pool)
	unitOfWork := repository.NewUnitOfWork(pool)

	sysClock := clock.System()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	engine := lifecycle.NewEngine(cfg.Raffle.GracePeriod())

	lifecycleService := service.NewLifecycleService(engine, dispatcher, logger, nil)
	entryService := service.NewEntryService(service.EntryServiceDependencies{
		UnitOfWork:    unitOfWork,
		Lifecycle:     lifecycleService,
		Clock:         sysClock,
		Logger:        logger,
		WriteAttempts: cfg.Raffle.MaxWriteAttempts,
	})
	decisionService := service.NewDecisionService(service.DecisionServiceDependencies{
		UnitOfWork:    unitOfWork,
		Lifecycle:     lifecycleService,
		Clock:         sysClock,
		Logger:        logger,
		WriteAttempts: cfg.Raffle.MaxWriteAttempts,
	})
	raffleService := service.NewRaffleService(service.RaffleServiceDependencies{
		Raffles:    raffleRepo,
		History:    historyRepo,
		Engine:     engine,
		Dispatcher: dispatcher,
		Clock:      sysClock,
		Logger:     logger,
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo: userRepo,
		Logger:   logger,
	})
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	sweeper := scheduler.NewSweeper(scheduler.Dependencies{
		UnitOfWork: unitOfWork,
		Raffles:    raffleRepo,
		Lifecycle:  lifecycleService,
		Clock:      sysClock,
		Redis:      redis.Client,
		Logger:     logger,
		Metrics:    metrics,
		Interval:   cfg.Raffle.SweepInterval(),
		LockTTL:    cfg.Raffle.SweepLockTTL(),
	})
	go sweeper.RunForever(ctx)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Raffles:        handlers.NewRafflesHandler(raffleService, entryService, decisionService),
		Admin:          handlers.NewAdminHandler(sweeper),
		AuthMiddleware: authMiddleware,
		AdminAPIToken:  cfg.Auth.AdminAPIToken,
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
