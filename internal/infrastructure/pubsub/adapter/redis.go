package adapter

import (
	"context"
	"fmt"
	"sync"

	redis "github.com/redis/go-redis/v9"

	"go-hirechat/internal/infrastructure/pubsub/port"
)

// RedisBroker implements port.Broker with Redis Pub/Sub.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker wraps a client owned by the caller.
func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

var _ port.Broker = (*RedisBroker)(nil)

func (b *RedisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, channel string) (port.Subscription, error) {
	ps := b.client.Subscribe(ctx, channel)
	// Wait for the subscribe confirmation so publishes after return are seen.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("pubsub: subscribe %s: %w", channel, err)
	}

	s := &redisSubscription{ps: ps, out: make(chan []byte, 256), done: make(chan struct{})}
	go s.pump(ctx)
	return s, nil
}

// Close is a no-op; the client is shared with the cache and owned by main.
func (b *RedisBroker) Close() error {
	return nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func (s *redisSubscription) pump(ctx context.Context) {
	defer close(s.out)
	in := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return
		case <-s.done:
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.out <- []byte(msg.Payload):
			case <-s.done:
				return
			case <-ctx.Done():
				_ = s.Close()
				return
			}
		}
	}
}

func (s *redisSubscription) Messages() <-chan []byte {
	return s.out
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
