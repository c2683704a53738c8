package service

import (
	"context"
	"database/sql"
	"fmt"

	"babycare-backend/internal/common/database"
	mqttcommon "babycare-backend/internal/common/mqtt"
	rediscommon "babycare-backend/internal/common/redis"
	"babycare-backend/internal/config"
	"babycare-backend/internal/consumer"
	"babycare-backend/internal/notify"
	"babycare-backend/internal/repository"
	"babycare-backend/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// IngestService 设备事件接入：MQTT -> Redis Streams -> PostgreSQL
type IngestService struct {
	config         *config.Config
	logger         *zap.Logger
	db             *sql.DB
	redis          *redis.Client
	mqttClient     *mqttcommon.Client
	mqttConsumer   *consumer.MQTTConsumer
	streamConsumer *consumer.StreamConsumer
}

// NewIngestService 创建接入服务
func NewIngestService(cfg *config.Config, logger *zap.Logger) (*IngestService, error) {
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := repository.Migrate(context.Background(), db); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
	if err != nil {
		rediscommon.Close(redisClient)
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	devicesRepo := repository.NewDevicesRepository(db, logger)
	eventsRepo := repository.NewEventsRepository(db, logger)
	tokensRepo := repository.NewPushTokensRepository(db, logger)
	snapshots := store.NewSnapshotCache(store.NewRedisKV(redisClient), cfg.Cache.SnapshotTTL, logger)

	var notifier consumer.Notifier
	if cfg.Push.Enabled {
		notifier = notify.NewExpoNotifier(cfg.Push.BaseURL, cfg.Push.AccessToken, tokensRepo, logger)
	}
	relay := consumer.NewLiveRelay(redisClient, cfg.Ingest.LiveStream, cfg.Ingest.LiveStreamMaxLen)

	return &IngestService{
		config:         cfg,
		logger:         logger,
		db:             db,
		redis:          redisClient,
		mqttClient:     mqttClient,
		mqttConsumer:   consumer.NewMQTTConsumer(cfg, mqttClient, redisClient, devicesRepo, logger),
		streamConsumer: consumer.NewStreamConsumer(cfg, redisClient, eventsRepo, snapshots, relay, notifier, logger),
	}, nil
}

// Start 启动 MQTT 与 Streams 消费者，阻塞到 ctx 取消
func (s *IngestService) Start(ctx context.Context) error {
	s.logger.Info("Starting ingest service components",
		zap.String("topic", s.config.Ingest.Topic),
		zap.String("stream", s.config.Ingest.Stream),
		zap.Bool("push_enabled", s.config.Push.Enabled),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 任一消费者退出即整体退出
	errChan := make(chan error, 2)
	go func() {
		if err := s.streamConsumer.Start(ctx); err != nil {
			errChan <- fmt.Errorf("failed to run stream consumer: %w", err)
			return
		}
		errChan <- nil
	}()
	go func() {
		if err := s.mqttConsumer.Start(ctx); err != nil {
			errChan <- fmt.Errorf("failed to start MQTT consumer: %w", err)
			return
		}
		errChan <- nil
	}()

	return <-errChan
}

// Stop 停止服务
func (s *IngestService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping ingest service")

	if s.mqttConsumer != nil {
		if err := s.mqttConsumer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping MQTT consumer", zap.Error(err))
		}
	}
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.redis != nil {
		rediscommon.Close(s.redis)
	}
	if s.db != nil {
		database.Close(s.db)
	}

	s.logger.Info("Ingest service stopped")
	return nil
}
