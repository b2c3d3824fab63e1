package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	pubsub "go-hirechat/internal/infrastructure/pubsub/port"
	chat "go-hirechat/internal/pkg/chat/application/domain"
)

var ErrOutboxFull = errors.New("delivery: outbox full")

// Pusher is the local session registry as seen by the dispatcher.
type Pusher interface {
	PushToUser(userID int64, payload []byte) int
	Connected(userID int64) bool
}

type Config struct {
	InstanceID     string
	Channel        string
	OutboxSize     int
	Workers        int
	PublishTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Channel == "" {
		c.Channel = "chat:delivery"
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = 1024
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 2 * time.Second
	}
	return c
}

// Dispatcher fans committed messages out to the recipient's sessions on
// this instance and, through the broker, on every other instance. Delivery
// is at-least-once at best; offline replay covers anything dropped here.
type Dispatcher struct {
	pusher Pusher
	broker pubsub.Broker
	cfg    Config
	logger *zap.Logger

	outbox    chan []byte
	startOnce sync.Once
	wg        sync.WaitGroup
}

func NewDispatcher(pusher Pusher, broker pubsub.Broker, cfg Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Dispatcher{
		pusher: pusher,
		broker: broker,
		cfg:    cfg,
		logger: logger.Named("delivery"),
		outbox: make(chan []byte, cfg.OutboxSize),
	}
}

// Deliver pushes m to local sessions and queues it for the broker. It never
// blocks on the network.
func (d *Dispatcher) Deliver(ctx context.Context, m chat.Message) error {
	payload, err := Encode(m)
	if err != nil {
		return err
	}
	if n := d.pusher.PushToUser(m.ReceiverID, payload); n > 0 {
		d.logger.Debug("pushed locally", zap.String("message_id", m.ID), zap.Int("sessions", n))
	}

	env, err := json.Marshal(Envelope{Origin: d.cfg.InstanceID, ReceiverID: m.ReceiverID, Message: payload})
	if err != nil {
		return err
	}
	select {
	case d.outbox <- env:
		return nil
	default:
		d.logger.Warn("outbox full, dropping fan-out", zap.String("message_id", m.ID), zap.Int64("receiver_id", m.ReceiverID))
		return ErrOutboxFull
	}
}

// Start launches the publisher workers. Extra calls are no-ops.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		for i := 0; i < d.cfg.Workers; i++ {
			d.wg.Add(1)
			go d.publishLoop(ctx)
		}
	})
}

// Run starts the publishers, subscribes to the fan-out channel and pushes
// envelopes from other instances to local sessions until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.Start(ctx)

	sub, err := d.broker.Subscribe(ctx, d.cfg.Channel)
	if err != nil {
		return err
	}
	defer sub.Close()

	d.logger.Info("fan-out subscribed", zap.String("channel", d.cfg.Channel), zap.String("instance", d.cfg.InstanceID))
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-sub.Messages():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("delivery: subscription closed")
			}
			d.handleEnvelope(raw)
		}
	}
}

// Wait blocks until the publisher workers have exited after ctx cancellation.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) handleEnvelope(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		d.logger.Warn("bad envelope", zap.Error(err))
		return
	}
	if env.Origin == d.cfg.InstanceID {
		return
	}
	if !d.pusher.Connected(env.ReceiverID) {
		return
	}
	d.pusher.PushToUser(env.ReceiverID, env.Message)
}

func (d *Dispatcher) publishLoop(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-d.outbox:
			pctx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
			err := d.broker.Publish(pctx, d.cfg.Channel, env)
			cancel()
			if err != nil {
				d.logger.Warn("publish failed, dropping fan-out", zap.Error(err))
			}
		}
	}
}
