package repository

import (
	"context"
	"time"

	chat "go-hirechat/internal/pkg/chat/application/domain"
)

// SaveMessageParams is everything the send transaction writes.
type SaveMessageParams struct {
	Message chat.Message
	Preview string
}

// SaveMessageResult carries the persisted message and the conversation
// aggregate as it stood at commit.
type SaveMessageResult struct {
	Message      chat.Message
	Conversation chat.Conversation
}

// UnreadCursor is the keyset position used to page unread messages.
type UnreadCursor struct {
	CreatedAt time.Time
	ID        string
}

// ChatRepository defines persistence operations for conversations and messages.
//
// Adapters return chat.ErrConversationNotFound when a conversation is missing
// or the caller is not one of its participants, and perform no mutation in
// that case.
type ChatRepository interface {
	// GetOrCreateConversation resolves the canonical row for the pair,
	// inserting it on first contact. Concurrent callers observe one row.
	GetOrCreateConversation(ctx context.Context, userX, userY int64) (chat.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (chat.Conversation, error)
	// ListConversations returns the user's non-deleted conversations, newest activity first.
	ListConversations(ctx context.Context, userID int64) ([]chat.Conversation, error)

	// SaveMessage resolves the conversation, inserts the message and updates
	// the aggregate in one transaction.
	SaveMessage(ctx context.Context, p SaveMessageParams) (SaveMessageResult, error)
	// GetMessagesByConversation returns non-deleted messages newest first.
	GetMessagesByConversation(ctx context.Context, conversationID string, limit int, offset int) ([]chat.Message, error)
	// ListUnread returns unread messages addressed to receiverID, oldest first,
	// strictly after the cursor when one is given.
	ListUnread(ctx context.Context, receiverID int64, after *UnreadCursor, limit int) ([]chat.Message, error)

	// MarkRead flips every unread message addressed to userID in the
	// conversation and resets that side's counter and notification flag.
	MarkRead(ctx context.Context, conversationID string, userID int64) (int64, error)
	SetPinned(ctx context.Context, conversationID string, userID int64, pinned bool) error
	SetDeleted(ctx context.Context, conversationID string, userID int64, deleted bool) error
}
