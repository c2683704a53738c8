package consumer

import (
	"context"
	"fmt"
	"time"

	rediscommon "babycare-backend/internal/common/redis"
	"babycare-backend/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// LiveRelay 把已落库事件写入广播流
type LiveRelay struct {
	redisClient *redis.Client
	stream      string
	maxLen      int64
}

// NewLiveRelay 创建广播流写入器
func NewLiveRelay(redisClient *redis.Client, stream string, maxLen int64) *LiveRelay {
	return &LiveRelay{redisClient: redisClient, stream: stream, maxLen: maxLen}
}

// Publish 写入一条事件
func (r *LiveRelay) Publish(ctx context.Context, ev models.Event) error {
	if _, err := rediscommon.PublishJSONToStream(ctx, r.redisClient, r.stream, ev, r.maxLen); err != nil {
		return fmt.Errorf("failed to publish to live stream: %w", err)
	}
	return nil
}

// LocalPublisher 进程内事件分发（subscription.Hub）
type LocalPublisher interface {
	Publish(ev models.Event) int
}

// StreamTailer 跟读广播流，把事件分发给本进程的订阅者
type StreamTailer struct {
	redisClient *redis.Client
	stream      string
	batchSize   int64
	block       time.Duration
	hub         LocalPublisher
	onEvent     func(models.Event)
	logger      *zap.Logger
}

// NewStreamTailer 创建广播流跟读器；onEvent 可为 nil，用于本地缓存失效
func NewStreamTailer(
	redisClient *redis.Client,
	stream string,
	batchSize int64,
	block time.Duration,
	hub LocalPublisher,
	onEvent func(models.Event),
	logger *zap.Logger,
) *StreamTailer {
	if batchSize <= 0 {
		batchSize = 100
	}
	if block <= 0 {
		block = 2 * time.Second
	}
	return &StreamTailer{
		redisClient: redisClient,
		stream:      stream,
		batchSize:   batchSize,
		block:       block,
		hub:         hub,
		onEvent:     onEvent,
		logger:      logger,
	}
}

// Start 从当前最新位置开始跟读，阻塞到 ctx 取消
func (t *StreamTailer) Start(ctx context.Context) error {
	lastID, err := rediscommon.LastID(ctx, t.redisClient, t.stream)
	if err != nil {
		return fmt.Errorf("failed to get last id of %s: %w", t.stream, err)
	}

	t.logger.Info("Live stream tailer started",
		zap.String("stream", t.stream),
		zap.String("last_id", lastID),
	)

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		next, err := t.poll(ctx, lastID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			t.logger.Error("Failed to read live stream",
				zap.String("stream", t.stream),
				zap.Error(err),
				zap.Duration("backoff", backoffDuration),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoffDuration):
				backoffDuration *= 2
				if backoffDuration > maxBackoff {
					backoffDuration = maxBackoff
				}
			}
			continue
		}
		backoffDuration = time.Second
		lastID = next
	}
}

// poll 读取 lastID 之后的一批消息并分发，返回新的游标
func (t *StreamTailer) poll(ctx context.Context, lastID string) (string, error) {
	messages, err := rediscommon.ReadNewFromStream(ctx, t.redisClient, t.stream, lastID, t.batchSize, t.block)
	if err != nil {
		return lastID, err
	}

	for _, msg := range messages {
		lastID = msg.ID
		ev, err := decodeStreamEvent(msg)
		if err != nil {
			t.logger.Warn("Skipping malformed live message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			continue
		}
		if t.onEvent != nil {
			t.onEvent(ev)
		}
		delivered := t.hub.Publish(ev)
		t.logger.Debug("Live event dispatched",
			zap.String("device_id", ev.DeviceID),
			zap.String("event_type", string(ev.Type)),
			zap.Int("subscribers", delivered),
		)
	}
	return lastID, nil
}
