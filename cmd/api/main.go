package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/promorang/maturity-service/internal/api/http"
	"github.com/promorang/maturity-service/internal/api/http/handlers"
	"github.com/promorang/maturity-service/internal/auth"
	"github.com/promorang/maturity-service/internal/config"
	"github.com/promorang/maturity-service/internal/events"
	"github.com/promorang/maturity-service/internal/observability"
	"github.com/promorang/maturity-service/internal/persistence"
	"github.com/promorang/maturity-service/internal/repository"
	"github.com/promorang/maturity-service/internal/service"
	"github.com/promorang/maturity-service/internal/worker"
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

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	actionRepo := repository.NewActionRepository(pool)
	transitionRepo := repository.NewTransitionRepository(pool)

	maturityService := service.NewMaturityService(service.MaturityDependencies{
		UserRepo:       userRepo,
		ActionRepo:     actionRepo,
		TransitionRepo: transitionRepo,
		Cache:          redis.Handle(),
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		Logger:         logger,
	})
	authService := service.NewAuthService(*cfg, userRepo)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	worker.StartNotificationWorker(notificationService)

	recalcWorker := worker.NewRecalcWorker(userRepo, maturityService, cfg.Recalc, logger)
	if err := recalcWorker.Start(ctx); err != nil {
		logger.Fatal("failed to start recalc worker", zap.Error(err))
	}
	defer recalcWorker.Stop()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	authHandler := handlers.NewAuthHandler(authService)
	maturityHandler := handlers.NewMaturityHandler(maturityService)
	adminHandler := handlers.NewAdminHandler(maturityService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Auth:           authHandler,
		Maturity:       maturityHandler,
		Admin:          adminHandler,
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

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
