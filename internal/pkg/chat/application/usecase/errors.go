package usecase

import (
	"errors"
	"fmt"

	chat "go-hirechat/internal/pkg/chat/application/domain"
)

// ErrPersistence indicates an infrastructure/repository failure inside a use case
var ErrPersistence = errors.New("chat use case persistence error")

// ErrInvalidInput rejects requests missing a required identifier.
var ErrInvalidInput = errors.New("chat use case invalid input")

// fromRepo keeps domain outcomes reported by the store and wraps the rest
// as persistence failures.
func fromRepo(err error) error {
	switch {
	case errors.Is(err, chat.ErrConversationNotFound),
		errors.Is(err, chat.ErrReplyTargetNotFound),
		errors.Is(err, chat.ErrSelfConversation),
		errors.Is(err, chat.ErrInvalidUser):
		return err
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
