package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqttcommon "babycare-backend/internal/common/mqtt"
	rediscommon "babycare-backend/internal/common/redis"
	"babycare-backend/internal/config"
	"babycare-backend/internal/metrics"
	"babycare-backend/internal/models"
	"babycare-backend/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Subscriber MQTT 订阅能力（*mqttcommon.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// DeviceRegistry 设备查询与首次上报注册
type DeviceRegistry interface {
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)
	GetDeviceBySerial(ctx context.Context, serial string) (*models.Device, error)
	UpsertDevice(ctx context.Context, d models.Device) error
}

// MQTTConsumer 订阅设备事件并写入 Redis Streams
type MQTTConsumer struct {
	config      *config.Config
	mqttClient  Subscriber
	redisClient *redis.Client
	devices     DeviceRegistry
	logger      *zap.Logger
	now         func() time.Time
}

// NewMQTTConsumer 创建 MQTT 消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient Subscriber,
	redisClient *redis.Client,
	devices DeviceRegistry,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:      cfg,
		mqttClient:  mqttClient,
		redisClient: redisClient,
		devices:     devices,
		logger:      logger,
		now:         time.Now,
	}
}

// Start 订阅主题并阻塞到 ctx 取消
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.mqttClient.Subscribe(c.config.Ingest.Topic, c.config.MQTT.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to event topic: %w", err)
	}

	c.logger.Info("MQTT consumer started", zap.String("topic", c.config.Ingest.Topic))

	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.mqttClient.Unsubscribe(c.config.Ingest.Topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 处理一条设备事件
// 主题格式: babycare/{device_id 或 serial_number}/events
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[1] == "" {
		metrics.IncIngestError("topic")
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	identifier := parts[1]

	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		metrics.IncIngestError("decode")
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	device, err := c.resolveDevice(ctx, identifier, doc)
	if err != nil {
		metrics.IncIngestError("device")
		return err
	}

	// 设备 ID 以主题解析结果为准
	doc["device_id"] = device.DeviceID
	delete(doc, "deviceId")
	timed := hasTime(doc)
	if models.EventID(doc) == "" {
		doc["id"] = derivedEventID(device.DeviceID, payload, timed)
	}
	if !timed {
		doc["time"] = c.now().UTC().Format(time.RFC3339Nano)
	}

	ev, err := models.DecodeEvent(doc)
	if err != nil {
		metrics.IncIngestError("decode")
		c.logger.Warn("Rejected device event",
			zap.String("device_id", device.DeviceID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to decode event: %w", err)
	}

	streamID, err := rediscommon.PublishJSONToStream(ctx, c.redisClient, c.config.Ingest.Stream, ev, c.config.Ingest.StreamMaxLen)
	if err != nil {
		metrics.IncIngestError("publish")
		c.logger.Error("Failed to publish to Redis Streams",
			zap.String("stream", c.config.Ingest.Stream),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	c.logger.Debug("Published device event",
		zap.String("device_id", ev.DeviceID),
		zap.String("event_id", ev.ID),
		zap.String("event_type", string(ev.Type)),
		zap.String("stream_id", streamID),
	)
	return nil
}

// resolveDevice 先按 device_id、再按序列号查找；都没有时按首次上报注册
func (c *MQTTConsumer) resolveDevice(ctx context.Context, identifier string, doc map[string]any) (*models.Device, error) {
	device, err := c.devices.GetDevice(ctx, identifier)
	if err == nil {
		return device, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	device, err = c.devices.GetDeviceBySerial(ctx, identifier)
	if err == nil {
		return device, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get device by serial: %w", err)
	}

	// 首次上报的设备自动登记，名称与序列号取自负载（若有）
	registered, err := models.DecodeDevice(map[string]any{
		"device_id":     identifier,
		"name":          doc["device_name"],
		"serial_number": doc["serial_number"],
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build device: %w", err)
	}
	if registered.SerialNumber == "" {
		registered.SerialNumber = identifier
	}
	device = &registered
	if err := c.devices.UpsertDevice(ctx, *device); err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}
	c.logger.Info("Registered new device", zap.String("device_id", identifier))
	return device, nil
}

// eventIDNamespace 由负载派生事件 ID 时使用的 UUIDv5 命名空间
var eventIDNamespace = uuid.MustParse("6f1c2a4e-3b7d-5e8f-9a0b-1c2d3e4f5a6b")

// derivedEventID 负载不带 ID 时生成事件 ID
// 带时间的负载按 设备+原始负载 生成确定性 ID，QoS 1 重投递落库时按主键去重；
// 不带时间的负载以到达时间为准，无法区分重投递，使用随机 ID
func derivedEventID(deviceID string, payload []byte, timed bool) string {
	if !timed {
		return uuid.NewString()
	}
	return uuid.NewSHA1(eventIDNamespace, append([]byte(deviceID+"\n"), payload...)).String()
}

func hasTime(doc map[string]any) bool {
	for _, key := range []string{"time", "timestamp", "created_at", "createdAt"} {
		if v, ok := doc[key]; ok && v != nil {
			return true
		}
	}
	return false
}
