package task

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	qport "go-hirechat/internal/infrastructure/queue/port"
)

// Publisher is used by the recruitment workflows to notify chat. It never
// returns an error: a messaging failure must not affect the caller's
// transaction.
type Publisher struct {
	Client qport.Client
	Logger *zap.Logger
}

func NewPublisher(client qport.Client, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{Client: client, Logger: logger.Named("recruit_publisher")}
}

func (p *Publisher) ApplicationCreated(ctx context.Context, e ApplicationCreated) {
	p.publish(ctx, ApplicationCreatedTaskType, e)
}

func (p *Publisher) InterviewScheduled(ctx context.Context, e InterviewScheduled) {
	p.publish(ctx, InterviewScheduledTaskType, e)
}

func (p *Publisher) OfferSent(ctx context.Context, e OfferSent) {
	p.publish(ctx, OfferSentTaskType, e)
}

func (p *Publisher) ApplicationRejected(ctx context.Context, e ApplicationRejected) {
	p.publish(ctx, ApplicationRejectedTaskType, e)
}

func (p *Publisher) publish(ctx context.Context, taskType string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.Logger.Error("encode recruit event", zap.String("type", taskType), zap.Error(err))
		return
	}
	id, err := p.Client.Enqueue(ctx, qport.Task{Type: taskType, Payload: payload},
		qport.EnqueueOption{Queue: QueueName, MaxRetry: -1})
	if err != nil {
		p.Logger.Warn("enqueue recruit event", zap.String("type", taskType), zap.Error(err))
		return
	}
	p.Logger.Debug("recruit event enqueued", zap.String("type", taskType), zap.String("task_id", id))
}
