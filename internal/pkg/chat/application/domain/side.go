package chat

// Side names the slot a participant occupies in a Conversation.
// The user with the lower id is always side A.
type Side string

const (
	SideA Side = "a"
	SideB Side = "b"
)

// Other returns the opposite slot.
func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// SideState captures the mutable, per-participant view of a conversation.
type SideState struct {
	UnreadCount     int  `db:"unread_count"`
	Pinned          bool `db:"pinned"`
	HasNotification bool `db:"has_notification"`
	Deleted         bool `db:"deleted"`
}
