package chat

import "time"

// Conversation is the canonical 1:1 thread between two users. UserA < UserB.
type Conversation struct {
	ID                 string    `db:"id"`
	UserA              int64     `db:"user_a"`
	UserB              int64     `db:"user_b"`
	LastMessagePreview string    `db:"last_message_preview"`
	LastMessageAt      time.Time `db:"last_message_at"`
	A                  SideState
	B                  SideState
	CreatedAt          time.Time `db:"created_at"`
}

// ConversationView is a conversation projected for one participant.
type ConversationView struct {
	ConversationID  string
	PeerID          int64
	PeerNickname    string
	PeerAvatarURL   string
	Preview         string
	LastMessageAt   time.Time
	UnreadCount     int
	Pinned          bool
	HasNotification bool
}

// UserProfile is the subset of the account record the chat surface renders.
type UserProfile struct {
	ID        int64  `json:"id" db:"id"`
	Nickname  string `json:"nickname" db:"nickname"`
	AvatarURL string `json:"avatar_url" db:"avatar_url"`
}
