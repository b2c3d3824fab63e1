package usecase

import (
	"context"
	"fmt"

	repository "go-hirechat/internal/pkg/chat/persistence/repository/port"
)

type PinConversationInput struct {
	ConversationID string
	UserID         int64
	Pinned         bool
}

// PinConversationUseCase toggles the caller's pin flag only.
type PinConversationUseCase struct {
	Repo repository.ChatRepository
}

func NewPinConversationUseCase(repo repository.ChatRepository) *PinConversationUseCase {
	return &PinConversationUseCase{Repo: repo}
}

func (uc *PinConversationUseCase) Execute(ctx context.Context, in PinConversationInput) error {
	if in.ConversationID == "" {
		return fmt.Errorf("%w: conversationId is required", ErrInvalidInput)
	}
	if err := uc.Repo.SetPinned(ctx, in.ConversationID, in.UserID, in.Pinned); err != nil {
		return fromRepo(err)
	}
	return nil
}
