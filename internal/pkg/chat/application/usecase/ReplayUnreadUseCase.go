package usecase

import (
	"context"
	"fmt"

	"go-hirechat/internal/pkg/chat/application/delivery"
	repository "go-hirechat/internal/pkg/chat/persistence/repository/port"
)

// Sink is the freshly attached connection replayed messages are written to.
type Sink interface {
	Send(payload []byte) error
}

type ReplayUnreadInput struct {
	UserID int64
	Sink   Sink
}

// ReplayUnreadUseCase pushes every unread message addressed to a user to a
// new connection, oldest first. It never marks anything read.
type ReplayUnreadUseCase struct {
	Repo      repository.ChatRepository
	BatchSize int
}

func NewReplayUnreadUseCase(repo repository.ChatRepository, batchSize int) *ReplayUnreadUseCase {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &ReplayUnreadUseCase{Repo: repo, BatchSize: batchSize}
}

// Execute returns how many messages were handed to the sink. It stops early
// without error once the sink refuses a write.
func (uc *ReplayUnreadUseCase) Execute(ctx context.Context, in ReplayUnreadInput) (int, error) {
	if in.Sink == nil {
		return 0, fmt.Errorf("%w: sink is required", ErrInvalidInput)
	}

	var (
		cursor   *repository.UnreadCursor
		replayed int
	)
	for {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}
		page, err := uc.Repo.ListUnread(ctx, in.UserID, cursor, uc.BatchSize)
		if err != nil {
			return replayed, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		for _, m := range page {
			payload, err := delivery.Encode(m)
			if err != nil {
				return replayed, err
			}
			if err := in.Sink.Send(payload); err != nil {
				return replayed, nil
			}
			replayed++
		}
		if len(page) < uc.BatchSize {
			return replayed, nil
		}
		last := page[len(page)-1]
		cursor = &repository.UnreadCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
}
