package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"go-hirechat/internal/infrastructure/queue/port"
)

func TestParseQueueWeights(t *testing.T) {
	require.Equal(t, map[string]int{"critical": 6, "chat": 3, "low": 1},
		parseQueueWeights(" critical=6, chat=3 ,low"))
	require.Equal(t, map[string]int{"chat": 1}, parseQueueWeights("chat=0,=4"))
	require.Empty(t, parseQueueWeights(""))
}

func TestEnqueueOptions(t *testing.T) {
	require.Nil(t, enqueueOptions(nil))
	opts := enqueueOptions([]port.EnqueueOption{{Queue: "chat", MaxRetry: -1, ProcessIn: time.Second}})
	require.Len(t, opts, 3)
}

func TestAsynqClient_EnqueuesOnQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewAsynqClient("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Enqueue(context.Background(), port.Task{})
	require.Error(t, err)

	id, err := c.Enqueue(context.Background(),
		port.Task{Type: "recruit:offer_sent", Payload: []byte(`{}`)},
		port.EnqueueOption{Queue: "chat", MaxRetry: -1})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	pending, err := mr.List("asynq:{chat}:pending")
	require.NoError(t, err)
	require.Equal(t, []string{id}, pending)
}

func TestNewAsynqServer_RejectsEmptyURL(t *testing.T) {
	_, err := NewAsynqServer(ServerConfig{}, nil)
	require.Error(t, err)
}

func TestAsynqServer_StopIsIdempotent(t *testing.T) {
	mr := miniredis.RunT(t)
	srv, err := NewAsynqServer(ServerConfig{RedisURL: "redis://" + mr.Addr()}, nil)
	require.NoError(t, err)

	require.NoError(t, srv.Stop(context.Background()))
	require.NoError(t, srv.Stop(context.Background()))
}
