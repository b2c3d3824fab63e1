package usecase

import (
	"context"
	"fmt"

	repository "go-hirechat/internal/pkg/chat/persistence/repository/port"
)

type MarkReadInput struct {
	ConversationID string
	UserID         int64
}

// MarkReadUseCase reconciles a participant's read state. Idempotent.
type MarkReadUseCase struct {
	Repo repository.ChatRepository
}

func NewMarkReadUseCase(repo repository.ChatRepository) *MarkReadUseCase {
	return &MarkReadUseCase{Repo: repo}
}

// Execute returns how many messages flipped to read.
func (uc *MarkReadUseCase) Execute(ctx context.Context, in MarkReadInput) (int64, error) {
	if in.ConversationID == "" {
		return 0, fmt.Errorf("%w: conversationId is required", ErrInvalidInput)
	}
	n, err := uc.Repo.MarkRead(ctx, in.ConversationID, in.UserID)
	if err != nil {
		return 0, fromRepo(err)
	}
	return n, nil
}
