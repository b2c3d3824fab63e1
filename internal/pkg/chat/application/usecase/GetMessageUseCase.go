package usecase

import (
	"context"
	"fmt"

	chat "go-hirechat/internal/pkg/chat/application/domain"
	repository "go-hirechat/internal/pkg/chat/persistence/repository/port"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// GetMessageInput carries parameters to fetch one page of a conversation's history.
type GetMessageInput struct {
	ConversationID string
	UserID         int64
	Page           int
	PageSize       int
}

// GetMessageUseCase fetches history for a participant, newest first.
type GetMessageUseCase struct {
	Repo repository.ChatRepository
}

func NewGetMessageUseCase(repo repository.ChatRepository) *GetMessageUseCase {
	return &GetMessageUseCase{Repo: repo}
}

// NormalizePage clamps paging parameters to their allowed range.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func (uc *GetMessageUseCase) Execute(ctx context.Context, in GetMessageInput) ([]chat.Message, error) {
	if in.ConversationID == "" {
		return nil, fmt.Errorf("%w: conversationId is required", ErrInvalidInput)
	}
	conv, err := uc.Repo.GetConversation(ctx, in.ConversationID)
	if err != nil {
		return nil, fromRepo(err)
	}
	if !conv.HasParticipant(in.UserID) {
		return nil, chat.ErrConversationNotFound
	}

	page, size := NormalizePage(in.Page, in.PageSize)
	msgs, err := uc.Repo.GetMessagesByConversation(ctx, in.ConversationID, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msgs, nil
}
