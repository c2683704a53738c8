package service

import (
	"context"
	"database/sql"
	"fmt"

	"babycare-backend/internal/common/database"
	rediscommon "babycare-backend/internal/common/redis"
	"babycare-backend/internal/config"
	"babycare-backend/internal/repository"
	"babycare-backend/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// AggregatorService 统计快照预计算服务
type AggregatorService struct {
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	redis  *redis.Client
	worker *StatsWorker
}

// NewAggregatorService 创建统计服务
func NewAggregatorService(cfg *config.Config, logger *zap.Logger) (*AggregatorService, error) {
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	devicesRepo := repository.NewDevicesRepository(db, logger)
	eventsRepo := repository.NewEventsRepository(db, logger)
	snapshots := store.NewSnapshotCache(store.NewRedisKV(redisClient), cfg.Cache.SnapshotTTL, logger)

	// 预计算总是直接查库
	statsService := NewStatisticsService(eventsRepo, nil, 0, nil, cfg.Stats, logger)

	return &AggregatorService{
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
		worker: NewStatsWorker(devicesRepo, statsService, snapshots, cfg.Worker.Interval, logger),
	}, nil
}

// Start 启动轮询，阻塞到 ctx 取消
func (s *AggregatorService) Start(ctx context.Context) error {
	s.logger.Info("Starting stats aggregator service",
		zap.Duration("interval", s.config.Worker.Interval),
		zap.String("timezone", s.config.Timezone),
	)
	return s.worker.Start(ctx)
}

// Stop 停止服务
func (s *AggregatorService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping stats aggregator service")
	if s.redis != nil {
		rediscommon.Close(s.redis)
	}
	if s.db != nil {
		database.Close(s.db)
	}
	s.logger.Info("Stats aggregator service stopped")
	return nil
}
