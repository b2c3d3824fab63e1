package chat

import "errors"

// Domain-level errors for chat behaviors
var (
	ErrInvalidUser          = errors.New("chat: user id must be positive")
	ErrSelfConversation     = errors.New("chat: sender and receiver must differ")
	ErrInvalidMessageType   = errors.New("chat: unknown message type")
	ErrEmptyMessage         = errors.New("chat: text message requires content")
	ErrMissingAttachment    = errors.New("chat: media message requires an attachment url or content")
	ErrUnknownReceiver      = errors.New("chat: receiver does not exist")
	ErrCorrelationNotFound  = errors.New("chat: correlated application does not exist")
	ErrReplyTargetNotFound  = errors.New("chat: replied-to message is not part of this conversation")
	ErrConversationNotFound = errors.New("chat: conversation not found")
)

// CanonicalPair orders two user ids so that a pair maps to exactly one
// conversation row regardless of who initiates.
func CanonicalPair(x, y int64) (lo, hi int64) {
	if x <= y {
		return x, y
	}
	return y, x
}

// ValidatePair rejects pairs that can never form a conversation.
func ValidatePair(x, y int64) error {
	if x <= 0 || y <= 0 {
		return ErrInvalidUser
	}
	if x == y {
		return ErrSelfConversation
	}
	return nil
}

// HasParticipant tells whether userID is part of this conversation.
func (c *Conversation) HasParticipant(userID int64) bool {
	return c != nil && userID > 0 && (c.UserA == userID || c.UserB == userID)
}

// SideOf returns the slot userID occupies.
func (c *Conversation) SideOf(userID int64) (Side, error) {
	switch {
	case c == nil || userID <= 0:
		return "", ErrConversationNotFound
	case c.UserA == userID:
		return SideA, nil
	case c.UserB == userID:
		return SideB, nil
	default:
		return "", ErrConversationNotFound
	}
}

// Peer returns the other participant's id.
func (c *Conversation) Peer(userID int64) int64 {
	if c.UserA == userID {
		return c.UserB
	}
	return c.UserA
}

// State returns the per-side state for side.
func (c *Conversation) State(side Side) SideState {
	if side == SideA {
		return c.A
	}
	return c.B
}

// ViewFor projects the conversation for userID. Profile data is attached by
// the caller.
func (c *Conversation) ViewFor(userID int64) (ConversationView, error) {
	side, err := c.SideOf(userID)
	if err != nil {
		return ConversationView{}, err
	}
	st := c.State(side)
	return ConversationView{
		ConversationID:  c.ID,
		PeerID:          c.Peer(userID),
		Preview:         c.LastMessagePreview,
		LastMessageAt:   c.LastMessageAt,
		UnreadCount:     st.UnreadCount,
		Pinned:          st.Pinned,
		HasNotification: st.HasNotification,
	}, nil
}
