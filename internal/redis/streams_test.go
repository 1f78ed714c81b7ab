package redis_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	rediscommon "wisefido-vitals/internal/redis"
)

func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCreateConsumerGroup_Idempotent(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, rediscommon.CreateConsumerGroup(ctx, client, "test:stream", "group-1"))
	// 重复创建返回 BUSYGROUP，必须被吞掉
	require.NoError(t, rediscommon.CreateConsumerGroup(ctx, client, "test:stream", "group-1"))
}

func TestPublishAndReadRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, rediscommon.CreateConsumerGroup(ctx, client, "test:stream", "group-1"))

	payload := map[string]string{"session_id": "ambulance-001"}
	id, err := rediscommon.PublishJSONToStream(ctx, client, "test:stream", payload)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	messages, err := rediscommon.ReadFromStream(ctx, client, "test:stream", "group-1", "consumer-1", 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, id, messages[0].ID)

	dataStr, ok := messages[0].Values["data"].(string)
	require.True(t, ok)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(dataStr), &decoded))
	require.Equal(t, "ambulance-001", decoded["session_id"])

	require.NoError(t, rediscommon.AckMessage(ctx, client, "test:stream", "group-1", id))
}
