package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	chat "go-hirechat/internal/pkg/chat/application/domain"
	repository "go-hirechat/internal/pkg/chat/persistence/repository/port"
)

type ListConversationInput struct {
	UserID int64
}

// ListConversationUseCase returns the caller's visible conversations, most
// recent activity first, with the peer's profile attached when available.
type ListConversationUseCase struct {
	Repo   repository.ChatRepository
	Users  repository.UserDirectory
	Logger *zap.Logger
}

func NewListConversationUseCase(repo repository.ChatRepository, users repository.UserDirectory, logger *zap.Logger) *ListConversationUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListConversationUseCase{Repo: repo, Users: users, Logger: logger}
}

func (uc *ListConversationUseCase) Execute(ctx context.Context, in ListConversationInput) ([]chat.ConversationView, error) {
	if in.UserID <= 0 {
		return nil, chat.ErrInvalidUser
	}
	convs, err := uc.Repo.ListConversations(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	views := make([]chat.ConversationView, 0, len(convs))
	peers := make([]int64, 0, len(convs))
	for i := range convs {
		v, err := convs[i].ViewFor(in.UserID)
		if err != nil {
			continue
		}
		views = append(views, v)
		peers = append(peers, v.PeerID)
	}
	if len(views) == 0 || uc.Users == nil {
		return views, nil
	}

	// Profiles are decoration; the list still renders without them.
	profiles, err := uc.Users.Profiles(ctx, peers)
	if err != nil {
		uc.Logger.Warn("peer profile lookup failed", zap.Int64("user_id", in.UserID), zap.Error(err))
		return views, nil
	}
	for i := range views {
		if p, ok := profiles[views[i].PeerID]; ok {
			views[i].PeerNickname = p.Nickname
			views[i].PeerAvatarURL = p.AvatarURL
		}
	}
	return views, nil
}
