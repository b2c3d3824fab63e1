package repository

import (
	"context"

	chat "go-hirechat/internal/pkg/chat/application/domain"
)

// UserDirectory is the read-only view of the account module the chat
// subsystem depends on.
type UserDirectory interface {
	Exists(ctx context.Context, userID int64) (bool, error)
	// Profiles returns the profiles it found; unknown ids are absent from the map.
	Profiles(ctx context.Context, userIDs []int64) (map[int64]chat.UserProfile, error)
}

// ApplicationLookup checks correlation ids against the application module.
type ApplicationLookup interface {
	Exists(ctx context.Context, applicationID int64) (bool, error)
}
