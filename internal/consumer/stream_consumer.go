package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	rediscommon "babycare-backend/internal/common/redis"
	"babycare-backend/internal/config"
	"babycare-backend/internal/metrics"
	"babycare-backend/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// EventStore 事件持久化
type EventStore interface {
	// InsertEvent 返回 false 表示事件已存在
	InsertEvent(ctx context.Context, ev models.Event) (bool, error)
}

// SnapshotInvalidator 新事件写入后作废设备快照
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context, deviceID string) error
}

// EventPublisher 把已落库的事件转发给实时订阅方
type EventPublisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

// Notifier 告警推送
type Notifier interface {
	NotifyEvent(ctx context.Context, ev models.Event) error
}

// StreamConsumer 消费事件流：落库、作废快照、转发实时流、推送
type StreamConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	events      EventStore
	snapshots   SnapshotInvalidator
	publisher   EventPublisher
	notifier    Notifier
	logger      *zap.Logger
}

// NewStreamConsumer 创建 Streams 消费者，notifier 可为 nil
func NewStreamConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	events EventStore,
	snapshots SnapshotInvalidator,
	publisher EventPublisher,
	notifier Notifier,
	logger *zap.Logger,
) *StreamConsumer {
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		events:      events,
		snapshots:   snapshots,
		publisher:   publisher,
		notifier:    notifier,
		logger:      logger,
	}
}

// Start 启动消费循环，阻塞到 ctx 取消
func (c *StreamConsumer) Start(ctx context.Context) error {
	stream := c.config.Ingest.Stream
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, stream, c.config.Ingest.ConsumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
	}

	c.logger.Info("Stream consumer started",
		zap.String("stream", stream),
		zap.String("consumer_group", c.config.Ingest.ConsumerGroup),
		zap.String("consumer_name", c.config.Ingest.ConsumerName),
	)

	// 先补处理上次退出时未 ACK 的消息
	c.reclaim(ctx)
	lastReclaim := time.Now()

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if interval := c.config.Ingest.PendingInterval; interval > 0 && time.Since(lastReclaim) >= interval {
			c.reclaim(ctx)
			lastReclaim = time.Now()
		}

		if err := c.consumeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to consume stream",
				zap.String("stream", stream),
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
	}
}

// consumeOnce 读取并处理一批新消息
func (c *StreamConsumer) consumeOnce(ctx context.Context) error {
	messages, err := rediscommon.ReadFromStream(
		ctx,
		c.redisClient,
		c.config.Ingest.Stream,
		c.config.Ingest.ConsumerGroup,
		c.config.Ingest.ConsumerName,
		c.config.Ingest.BatchSize,
		c.config.Ingest.BlockTimeout,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream %s: %w", c.config.Ingest.Stream, err)
	}
	c.handleBatch(ctx, messages)
	return nil
}

// reclaim 重试本消费者未 ACK 的消息，并接管其他消费者闲置过久的消息
func (c *StreamConsumer) reclaim(ctx context.Context) {
	if err := c.drainPending(ctx); err != nil {
		c.logger.Error("Failed to drain pending messages", zap.Error(err))
	}

	claimed, err := rediscommon.ClaimIdle(
		ctx,
		c.redisClient,
		c.config.Ingest.Stream,
		c.config.Ingest.ConsumerGroup,
		c.config.Ingest.ConsumerName,
		c.config.Ingest.ClaimMinIdle,
		100,
	)
	if err != nil {
		c.logger.Error("Failed to claim idle messages", zap.Error(err))
		return
	}
	if len(claimed) > 0 {
		acked := c.handleBatch(ctx, claimed)
		c.logger.Info("Claimed idle pending messages",
			zap.Int("claimed_count", len(claimed)),
			zap.Int("acked_count", acked),
		)
	}
}

func (c *StreamConsumer) drainPending(ctx context.Context) error {
	for {
		messages, err := rediscommon.ReadPending(
			ctx,
			c.redisClient,
			c.config.Ingest.Stream,
			c.config.Ingest.ConsumerGroup,
			c.config.Ingest.ConsumerName,
			c.config.Ingest.BatchSize,
		)
		if err != nil {
			return fmt.Errorf("failed to read pending messages: %w", err)
		}
		if len(messages) == 0 {
			return nil
		}
		if c.handleBatch(ctx, messages) == 0 {
			// 全部失败，留待下一轮 reclaim
			return nil
		}
	}
}

// handleBatch 逐条处理，返回已 ACK 的条数
func (c *StreamConsumer) handleBatch(ctx context.Context, messages []rediscommon.StreamMessage) int {
	acked := 0
	for _, msg := range messages {
		if err := c.processMessage(ctx, msg); err != nil {
			c.logger.Error("Failed to process message",
				zap.String("stream", msg.Stream),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			continue
		}
		if err := rediscommon.Ack(ctx, c.redisClient, c.config.Ingest.Stream, c.config.Ingest.ConsumerGroup, msg.ID); err != nil {
			metrics.IncIngestError("ack")
			c.logger.Error("Failed to ack message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			continue
		}
		acked++
	}
	return acked
}

// processMessage 处理单条消息
// 返回 error 时消息不 ACK，留在 pending 列表中；无法解析的消息直接丢弃
func (c *StreamConsumer) processMessage(ctx context.Context, msg rediscommon.StreamMessage) error {
	ev, err := decodeStreamEvent(msg)
	if err != nil {
		metrics.IncIngestError("decode")
		c.logger.Warn("Dropping malformed stream message",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		return nil
	}

	inserted, err := c.events.InsertEvent(ctx, ev)
	if err != nil {
		metrics.IncIngestError("persist")
		return fmt.Errorf("failed to insert event: %w", err)
	}
	if !inserted {
		c.logger.Debug("Duplicate event skipped", zap.String("event_id", ev.ID))
		return nil
	}
	metrics.IncEventIngested(string(ev.Type))

	if c.snapshots != nil {
		if err := c.snapshots.Invalidate(ctx, ev.DeviceID); err != nil {
			c.logger.Warn("Failed to invalidate snapshot",
				zap.String("device_id", ev.DeviceID),
				zap.Error(err),
			)
		}
	}

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, ev); err != nil {
			metrics.IncIngestError("relay")
			c.logger.Warn("Failed to relay event",
				zap.String("event_id", ev.ID),
				zap.Error(err),
			)
		}
	}

	if c.notifier != nil {
		notifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := c.notifier.NotifyEvent(notifyCtx, ev); err != nil {
			c.logger.Error("Failed to send push notification",
				zap.String("device_id", ev.DeviceID),
				zap.String("event_type", string(ev.Type)),
				zap.Error(err),
			)
		}
		cancel()
	}

	c.logger.Info("Event ingested",
		zap.String("device_id", ev.DeviceID),
		zap.String("event_id", ev.ID),
		zap.String("event_type", string(ev.Type)),
		zap.Time("event_time", ev.Time),
	)
	return nil
}

func decodeStreamEvent(msg rediscommon.StreamMessage) (models.Event, error) {
	data, err := msg.Data()
	if err != nil {
		return models.Event{}, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return models.DecodeEvent(doc)
}
