package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "go-hirechat/cmd/api/router/v1"
	"go-hirechat/internal/config"
	cacheadapter "go-hirechat/internal/infrastructure/cache/adapter"
	"go-hirechat/internal/infrastructure/database"
	"go-hirechat/internal/infrastructure/logging"
	pubsubadapter "go-hirechat/internal/infrastructure/pubsub/adapter"
	queueadapter "go-hirechat/internal/infrastructure/queue/adapter"
	"go-hirechat/internal/infrastructure/realtime"
	"go-hirechat/internal/pkg/chat/application/delivery"
	"go-hirechat/internal/pkg/chat/application/task"
	"go-hirechat/internal/pkg/chat/application/usecase"
	repoadapter "go-hirechat/internal/pkg/chat/persistence/repository/adapter"
	repository "go-hirechat/internal/pkg/chat/persistence/repository/port"
)

// store bundles the persistence adapters selected by STORE_DRIVER.
type store struct {
	chats repository.ChatRepository
	users repository.UserDirectory
	apps  repository.ApplicationLookup
	close func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer st.close()

	redisClient, err := cacheadapter.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	users := repoadapter.NewCachedUserDirectory(st.users, cacheadapter.NewRedisCache(redisClient), cfg.ProfileCacheTTL)

	registry := realtime.NewRegistry(realtime.Limits{
		MaxSessions:        cfg.MaxSessions,
		MaxSessionsPerUser: cfg.MaxSessionsPerUser,
	})

	dispatcher := delivery.NewDispatcher(registry, pubsubadapter.NewRedisBroker(redisClient), delivery.Config{
		InstanceID: cfg.InstanceID,
		Channel:    cfg.FanoutChannel,
	}, logger)
	go func() {
		if err := dispatcher.Run(ctx); err != nil {
			logger.Error("fan-out subscriber stopped", zap.Error(err))
		}
	}()

	worker, err := queueadapter.NewAsynqServer(queueadapter.ServerConfig{
		RedisURL:    cfg.RedisURL,
		Concurrency: cfg.AsynqConcurrency,
		Queues:      cfg.AsynqQueues,
	}, logger)
	if err != nil {
		logger.Fatal("failed to build task server", zap.Error(err))
	}
	sendUC := usecase.NewSendMessageUseCase(st.chats, users, st.apps, dispatcher, logger)
	task.RegisterRecruitEventTasks(worker, task.NewIngestor(sendUC, logger))
	go func() {
		if err := worker.Run(ctx); err != nil {
			logger.Error("task server stopped", zap.Error(err))
		}
	}()

	r := gin.New()
	r.Use(gin.Recovery(), logging.GinMiddleware(logger))
	v1.RegisterRoutes(r, v1.Deps{
		Repo:            st.chats,
		Users:           users,
		Applications:    st.apps,
		Deliverer:       dispatcher,
		Registry:        registry,
		ReplayBatchSize: cfg.ReplayBatchSize,
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("instance", cfg.InstanceID),
			zap.String("driver", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// drain event handlers before the store is closed
	if err := worker.Stop(shutdownCtx); err != nil {
		logger.Warn("task server shutdown", zap.Error(err))
	}
	registry.Close()
	dispatcher.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if cfg.RunMigrations {
			if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
				return nil, err
			}
			logger.Info("migrations applied")
		}
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		pool, err := database.Connect(connectCtx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &store{
			chats: repoadapter.NewPgChatRepository(pool),
			users: repoadapter.NewPgUserRepository(pool),
			apps:  repoadapter.NewPgApplicationRepository(pool),
			close: pool.Close,
		}, nil
	case config.DriverSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &store{
			chats: repoadapter.NewSQLiteChatRepository(db),
			users: repoadapter.NewSQLiteUserRepository(db),
			apps:  repoadapter.NewSQLiteApplicationRepository(db),
			close: func() { _ = db.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}
