package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/planloop/backend/api/handler"
	"github.com/planloop/backend/internal/config"
	"github.com/planloop/backend/internal/infrastructure/buffer"
	"github.com/planloop/backend/internal/infrastructure/monitor"
	pgInfra "github.com/planloop/backend/internal/infrastructure/postgres"
	redisInfra "github.com/planloop/backend/internal/infrastructure/redis"
	"github.com/planloop/backend/internal/middleware"
	"github.com/planloop/backend/internal/router"
	"github.com/planloop/backend/internal/services"
	"github.com/planloop/backend/internal/services/lifecycle"
	"github.com/planloop/backend/pkg/httpcontext"
	"github.com/planloop/backend/pkg/logger"
	"github.com/planloop/backend/repository/postgres"
	redisRepo "github.com/planloop/backend/repository/redis"
	activityUC "github.com/planloop/backend/usecase/activity"
	authUC "github.com/planloop/backend/usecase/auth"
	copyUC "github.com/planloop/backend/usecase/plancopy"
	profileUC "github.com/planloop/backend/usecase/profile"
	taskUC "github.com/planloop/backend/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	deferredStore, err := buffer.Open(cfg.Buffer.Path, "deferred")
	if err != nil {
		zapLogger.Fatal("failed to open deferred store", zap.Error(err))
	}
	manager.Register("deferred_store", func(ctx context.Context) error {
		return deferredStore.Close()
	})

	mon := monitor.New(pool, redisClient, deferredStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	userRepo := postgres.NewUserRepository(pool)
	activityRepo := postgres.NewActivityRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)
	sessionRepo := redisRepo.NewSessionRepository(redisClient, 24*time.Hour)

	deferredProcessor := services.NewDeferredProcessor(
		deferredStore,
		mon,
		activityRepo,
		taskRepo,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.SyncInterval,
			BatchSize:  50,
			MaxRetries: cfg.Buffer.MaxRetry,
		},
	)
	deferredProcessor.Start()
	manager.Register("deferred_processor", func(ctx context.Context) error {
		deferredProcessor.Stop(ctx)
		return nil
	})

	deferredBridge := services.NewDeferredBridge(deferredProcessor)

	authUseCase := authUC.New(userRepo, sessionRepo, zapLogger)
	profileUseCase := profileUC.New(userRepo, zapLogger)
	activityUseCase := activityUC.New(activityRepo, taskRepo, deferredBridge, zapLogger)
	taskUseCase := taskUC.New(taskRepo, activityRepo, deferredBridge, zapLogger)
	copyUseCase := copyUC.New(activityRepo, taskRepo, deferredBridge, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:     apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger, time.Hour),
		Profile:  apiHandler.NewProfileHandler(profileUseCase, ctxAdapter, zapLogger),
		Activity: apiHandler.NewActivityHandler(activityUseCase, copyUseCase, ctxAdapter, zapLogger),
		Task:     apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
