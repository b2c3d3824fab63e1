package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	chat "go-hirechat/internal/pkg/chat/application/domain"
	repository "go-hirechat/internal/pkg/chat/persistence/repository/port"
)

// Deliverer pushes a committed message towards its receiver. Failures are
// reported but never undo the send.
type Deliverer interface {
	Deliver(ctx context.Context, m chat.Message) error
}

// SendMessageInput carries a message to persist and deliver.
type SendMessageInput struct {
	SenderID      int64
	ReceiverID    int64
	Type          chat.MessageType
	Content       string
	AttachmentURL *string
	InReplyTo     *string
	CorrelationID *int64
	// SkipCorrelationCheck is set by trusted internal producers whose event
	// already proves the application exists.
	SkipCorrelationCheck bool
}

// SendMessageUseCase validates, persists and then delivers a message.
type SendMessageUseCase struct {
	Repo         repository.ChatRepository
	Users        repository.UserDirectory
	Applications repository.ApplicationLookup
	Deliverer    Deliverer
	Logger       *zap.Logger
}

func NewSendMessageUseCase(
	repo repository.ChatRepository,
	users repository.UserDirectory,
	applications repository.ApplicationLookup,
	deliverer Deliverer,
	logger *zap.Logger,
) *SendMessageUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendMessageUseCase{
		Repo:         repo,
		Users:        users,
		Applications: applications,
		Deliverer:    deliverer,
		Logger:       logger,
	}
}

// Execute persists the message and its conversation update atomically and
// returns the stored message. Delivery happens after commit.
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*chat.Message, error) {
	msg, err := chat.NewMessage(chat.Message{
		SenderID:      in.SenderID,
		ReceiverID:    in.ReceiverID,
		Type:          in.Type,
		Content:       in.Content,
		AttachmentURL: in.AttachmentURL,
		InReplyTo:     in.InReplyTo,
		CorrelationID: in.CorrelationID,
	})
	if err != nil {
		return nil, err
	}
	preview, err := chat.Preview(msg.Type, msg.Content)
	if err != nil {
		return nil, err
	}

	ok, err := uc.Users.Exists(ctx, msg.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return nil, chat.ErrUnknownReceiver
	}

	if msg.CorrelationID != nil && !in.SkipCorrelationCheck {
		ok, err := uc.Applications.Exists(ctx, *msg.CorrelationID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if !ok {
			return nil, chat.ErrCorrelationNotFound
		}
	}

	res, err := uc.Repo.SaveMessage(ctx, repository.SaveMessageParams{Message: *msg, Preview: preview})
	if err != nil {
		return nil, fromRepo(err)
	}
	saved := res.Message

	if uc.Deliverer != nil {
		if err := uc.Deliverer.Deliver(ctx, saved); err != nil {
			uc.Logger.Warn("delivery failed",
				zap.String("message_id", saved.ID),
				zap.Int64("receiver_id", saved.ReceiverID),
				zap.Error(err))
		}
	}
	return &saved, nil
}
