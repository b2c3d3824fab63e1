package usecase

import (
	"context"
	"fmt"

	repository "go-hirechat/internal/pkg/chat/persistence/repository/port"
)

type DeleteConversationInput struct {
	ConversationID string
	UserID         int64
}

// DeleteConversationUseCase hides the conversation from the caller's list.
// The peer is unaffected and the next message un-hides it.
type DeleteConversationUseCase struct {
	Repo repository.ChatRepository
}

func NewDeleteConversationUseCase(repo repository.ChatRepository) *DeleteConversationUseCase {
	return &DeleteConversationUseCase{Repo: repo}
}

func (uc *DeleteConversationUseCase) Execute(ctx context.Context, in DeleteConversationInput) error {
	if in.ConversationID == "" {
		return fmt.Errorf("%w: conversationId is required", ErrInvalidInput)
	}
	if err := uc.Repo.SetDeleted(ctx, in.ConversationID, in.UserID, true); err != nil {
		return fromRepo(err)
	}
	return nil
}
