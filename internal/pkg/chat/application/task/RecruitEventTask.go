package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	qport "go-hirechat/internal/infrastructure/queue/port"
	chat "go-hirechat/internal/pkg/chat/application/domain"
	"go-hirechat/internal/pkg/chat/application/usecase"
)

// Sender is the message pipeline the ingestor feeds.
type Sender interface {
	Execute(ctx context.Context, in usecase.SendMessageInput) (*chat.Message, error)
}

// Ingestor turns recruitment events into chat messages.
type Ingestor struct {
	Send    Sender
	Policy  FailurePolicy
	Logger  *zap.Logger
	Timeout time.Duration
}

func NewIngestor(send Sender, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{Send: send, Policy: LogAndDrop, Logger: logger.Named("ingestor"), Timeout: 10 * time.Second}
}

// RegisterRecruitEventTasks binds one handler per recruitment event type.
func RegisterRecruitEventTasks(srv qport.Server, ing *Ingestor) {
	srv.Register(ApplicationCreatedTaskType, handler[ApplicationCreated](ing))
	srv.Register(InterviewScheduledTaskType, handler[InterviewScheduled](ing))
	srv.Register(OfferSentTaskType, handler[OfferSent](ing))
	srv.Register(ApplicationRejectedTaskType, handler[ApplicationRejected](ing))
}

func handler[E recruitEvent](ing *Ingestor) qport.Handler {
	return func(ctx context.Context, t qport.Task) error {
		var ev E
		if err := json.Unmarshal(t.Payload, &ev); err != nil {
			return ing.Policy.handle(ing.Logger, t.Type, fmt.Errorf("decode payload: %w", err))
		}
		msg, err := ing.ingest(ctx, ev)
		if err != nil {
			return ing.Policy.handle(ing.Logger, t.Type, err)
		}
		ing.Logger.Debug("recruit event ingested", zap.String("type", t.Type), zap.String("message_id", msg.ID))
		return nil
	}
}

func (ing *Ingestor) ingest(ctx context.Context, ev recruitEvent) (*chat.Message, error) {
	sender, receiver, applicationID := ev.route()
	if ing.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ing.Timeout)
		defer cancel()
	}
	in := usecase.SendMessageInput{
		SenderID:             sender,
		ReceiverID:           receiver,
		Type:                 chat.MessageTypeText,
		Content:              ev.body(),
		SkipCorrelationCheck: true,
	}
	if applicationID > 0 {
		in.CorrelationID = &applicationID
	}
	return ing.Send.Execute(ctx, in)
}
