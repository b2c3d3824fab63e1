package port

import "context"

// Broker is a fire-and-forget fan-out channel shared by every instance.
// Delivery is at-most-once per subscriber; nothing is persisted.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns once the subscription is live on the server.
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	Close() error
}

// Subscription yields payloads until Close is called or its context ends.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}
