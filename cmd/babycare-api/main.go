package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"babycare-backend/internal/cache"
	"babycare-backend/internal/common/database"
	logpkg "babycare-backend/internal/common/logger"
	rediscommon "babycare-backend/internal/common/redis"
	"babycare-backend/internal/config"
	"babycare-backend/internal/consumer"
	httpapi "babycare-backend/internal/http"
	"babycare-backend/internal/metrics"
	"babycare-backend/internal/models"
	"babycare-backend/internal/pairing"
	"babycare-backend/internal/repository"
	"babycare-backend/internal/service"
	"babycare-backend/internal/store"
	"babycare-backend/internal/subscription"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "babycare-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	metrics.Init()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	if err := repository.Migrate(context.Background(), db); err != nil {
		log.Fatal("Failed to migrate schema", zap.Error(err))
	}

	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer rediscommon.Close(redisClient)

	eventsRepo := repository.NewEventsRepository(db, log)
	devicesRepo := repository.NewDevicesRepository(db, log)
	connectionsRepo := repository.NewConnectionsRepository(db, log)
	tokensRepo := repository.NewPushTokensRepository(db, log)
	snapshots := store.NewSnapshotCache(store.NewRedisKV(redisClient), cfg.Cache.SnapshotTTL, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	memo := cache.NewMemo[[]models.Event](cfg.Cache.MaxEntries, cfg.Cache.CleanupInterval, log)
	go memo.Run(ctx)

	statsService := service.NewStatisticsService(eventsRepo, memo, cfg.Cache.MemoTTL, snapshots, cfg.Stats, log)
	hub := subscription.NewHub()

	// 跟读已落库事件：作废本地缓存并推送给实时订阅者
	tailer := consumer.NewStreamTailer(redisClient, cfg.Ingest.LiveStream, 100, cfg.Ingest.BlockTimeout, hub,
		func(ev models.Event) { statsService.Invalidate(ev.DeviceID) }, log)
	go func() {
		if err := tailer.Start(ctx); err != nil {
			log.Error("Live stream tailer stopped", zap.Error(err))
		}
	}()

	router := httpapi.NewRouter(log)
	router.RegisterDeviceRoutes(httpapi.NewDeviceHandler(statsService, eventsRepo, hub, cfg.HTTP.StreamKeepAlive, log))
	router.RegisterUserRoutes(httpapi.NewUserHandler(pairing.NewService(devicesRepo, connectionsRepo, log), devicesRepo, tokensRepo, log))
	router.RegisterSystemRoutes(map[string]httpapi.HealthCheck{
		"postgres": db.PingContext,
		"redis": func(ctx context.Context) error {
			return rediscommon.Ping(ctx, redisClient)
		},
	})

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		log.Error("HTTP server error", zap.Error(err))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping HTTP server", zap.Error(err))
	}

	log.Info("Service stopped")
}
