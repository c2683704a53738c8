package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStreamRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCreateConsumerGroup_Idempotent(t *testing.T) {
	client := setupStreamRedis(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "babycare:events", "g1"))
	require.NoError(t, CreateConsumerGroup(ctx, client, "babycare:events", "g1"))
}

func TestPublishAndReadFromStream(t *testing.T) {
	client := setupStreamRedis(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "babycare:events", "g1"))

	payload := map[string]string{"id": "e1", "type": "Crying"}
	id, err := PublishJSONToStream(ctx, client, "babycare:events", payload, 0)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs, err := ReadFromStream(ctx, client, "babycare:events", "g1", "c1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)

	data, err := msgs[0].Data()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"e1","type":"Crying"}`, string(data))

	require.NoError(t, Ack(ctx, client, "babycare:events", "g1", msgs[0].ID))
}

func TestStreamMessage_DataMissing(t *testing.T) {
	_, err := StreamMessage{ID: "1-0", Values: map[string]interface{}{}}.Data()
	assert.Error(t, err)
}

func TestReadPending_ReturnsUnacked(t *testing.T) {
	client := setupStreamRedis(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "babycare:events", "g1"))
	_, err := PublishJSONToStream(ctx, client, "babycare:events", map[string]string{"id": "e1"}, 0)
	require.NoError(t, err)

	msgs, err := ReadFromStream(ctx, client, "babycare:events", "g1", "c1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	pending, err := ReadPending(ctx, client, "babycare:events", "g1", "c1", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, msgs[0].ID, pending[0].ID)

	require.NoError(t, Ack(ctx, client, "babycare:events", "g1", msgs[0].ID))
	pending, err = ReadPending(ctx, client, "babycare:events", "g1", "c1", 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReadNewFromStream_Broadcast(t *testing.T) {
	client := setupStreamRedis(t)
	ctx := context.Background()

	last, err := LastID(ctx, client, "babycare:events:live")
	require.NoError(t, err)
	assert.Equal(t, "0-0", last)

	first, err := PublishJSONToStream(ctx, client, "babycare:events:live", map[string]string{"id": "e1"}, 0)
	require.NoError(t, err)
	second, err := PublishJSONToStream(ctx, client, "babycare:events:live", map[string]string{"id": "e2"}, 0)
	require.NoError(t, err)

	last, err = LastID(ctx, client, "babycare:events:live")
	require.NoError(t, err)
	assert.Equal(t, second, last)

	// 两个读者都能读到全部消息
	for i := 0; i < 2; i++ {
		msgs, err := ReadNewFromStream(ctx, client, "babycare:events:live", "0-0", 10, 10*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, first, msgs[0].ID)
	}

	msgs, err := ReadNewFromStream(ctx, client, "babycare:events:live", first, 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, second, msgs[0].ID)
}

func TestClaimIdle_TakesOverOtherConsumersMessages(t *testing.T) {
	client := setupStreamRedis(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "babycare:events", "g1"))
	_, err := PublishJSONToStream(ctx, client, "babycare:events", map[string]string{"id": "e1"}, 0)
	require.NoError(t, err)
	msgs, err := ReadFromStream(ctx, client, "babycare:events", "g1", "c1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	own, err := ClaimIdle(ctx, client, "babycare:events", "g1", "c1", 0, 100)
	require.NoError(t, err)
	assert.Empty(t, own, "own pending messages are left to ReadPending")

	notIdle, err := ClaimIdle(ctx, client, "babycare:events", "g1", "c2", time.Hour, 100)
	require.NoError(t, err)
	assert.Empty(t, notIdle)

	claimed, err := ClaimIdle(ctx, client, "babycare:events", "g1", "c2", 0, 100)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, msgs[0].ID, claimed[0].ID)
	assert.Equal(t, "babycare:events", claimed[0].Stream)

	pending, err := ReadPending(ctx, client, "babycare:events", "g1", "c2", 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	pending, err = ReadPending(ctx, client, "babycare:events", "g1", "c1", 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
