package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// DataField 流消息中承载 JSON 负载的字段名
const DataField = "data"

// StreamMessage Redis Streams 消息
type StreamMessage struct {
	Stream string
	ID     string
	Values map[string]interface{}
}

// Data 返回消息中的 JSON 负载
func (m StreamMessage) Data() ([]byte, error) {
	raw, ok := m.Values[DataField]
	if !ok {
		return nil, fmt.Errorf("message %s has no %q field", m.ID, DataField)
	}
	switch v := raw.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("message %s has unexpected %q type %T", m.ID, DataField, raw)
	}
}

// PublishJSONToStream 序列化 data 并通过 XADD 写入流，maxLen > 0 时近似裁剪流长度
func PublishJSONToStream(ctx context.Context, client *redis.Client, stream string, data interface{}, maxLen int64) (string, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream payload: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			DataField:   string(jsonBytes),
			"timestamp": time.Now().Unix(),
		},
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	return client.XAdd(ctx, args).Result()
}

// ReadFromStream 以消费者组方式读取新消息，超时无消息时返回空切片
func ReadFromStream(ctx context.Context, client *redis.Client, stream, group, consumer string, count int64, block time.Duration) ([]StreamMessage, error) {
	return readGroup(ctx, client, stream, group, consumer, ">", count, block)
}

// ReadPending 读取本消费者已投递但未 ACK 的消息（重启后补处理）
func ReadPending(ctx context.Context, client *redis.Client, stream, group, consumer string, count int64) ([]StreamMessage, error) {
	return readGroup(ctx, client, stream, group, consumer, "0", count, -1)
}

func readGroup(ctx context.Context, client *redis.Client, stream, group, consumer, start string, count int64, block time.Duration) ([]StreamMessage, error) {
	streams, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, start},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []StreamMessage{}, nil
		}
		return nil, err
	}

	return flatten(streams), nil
}

func flatten(streams []redis.XStream) []StreamMessage {
	var messages []StreamMessage
	for _, s := range streams {
		for _, msg := range s.Messages {
			messages = append(messages, StreamMessage{
				Stream: s.Stream,
				ID:     msg.ID,
				Values: msg.Values,
			})
		}
	}
	return messages
}

// ClaimIdle 把组内其他消费者闲置超过 minIdle 的 pending 消息转给 consumer，返回转入的消息
// 只检查 pending 列表中最早的 scan 条
func ClaimIdle(ctx context.Context, client *redis.Client, stream, group, consumer string, minIdle time.Duration, scan int64) ([]StreamMessage, error) {
	pending, err := client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  scan,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []StreamMessage{}, nil
		}
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}

	var ids []string
	for _, p := range pending {
		if p.Consumer != consumer && p.Idle >= minIdle {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return []StreamMessage{}, nil
	}

	claimed, err := client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending messages: %w", err)
	}
	return flatten([]redis.XStream{{Stream: stream, Messages: claimed}}), nil
}

// LastID 返回流中最新一条消息的 ID，流为空或不存在时返回 "0-0"
func LastID(ctx context.Context, client *redis.Client, stream string) (string, error) {
	msgs, err := client.XRevRangeN(ctx, stream, "+", "-", 1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	if len(msgs) == 0 {
		return "0-0", nil
	}
	return msgs[0].ID, nil
}

// ReadNewFromStream 不经消费者组读取 lastID 之后的消息（广播语义，每个读者都能收到全部消息）
// lastID 为 "$" 时只读取调用之后写入的消息
func ReadNewFromStream(ctx context.Context, client *redis.Client, stream, lastID string, count int64, block time.Duration) ([]StreamMessage, error) {
	streams, err := client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   count,
		Block:   block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []StreamMessage{}, nil
		}
		return nil, err
	}
	return flatten(streams), nil
}

// Ack 确认消息已处理
func Ack(ctx context.Context, client *redis.Client, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return client.XAck(ctx, stream, group, ids...).Err()
}

// CreateConsumerGroup 创建消费者组（流不存在时一并创建），组已存在视为成功
func CreateConsumerGroup(ctx context.Context, client *redis.Client, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}
