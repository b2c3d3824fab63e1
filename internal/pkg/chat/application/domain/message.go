package chat

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MessageType is the closed set of content kinds. Wire values are 1..5.
type MessageType int16

const (
	MessageTypeText  MessageType = 1
	MessageTypeImage MessageType = 2
	MessageTypeFile  MessageType = 3
	MessageTypeVoice MessageType = 4
	MessageTypeVideo MessageType = 5
)

// PreviewMaxRunes bounds the text preview stored on the conversation.
const PreviewMaxRunes = 50

const previewEllipsis = "..."

// Valid reports whether t is one of the known types.
func (t MessageType) Valid() bool {
	return t >= MessageTypeText && t <= MessageTypeVideo
}

func (t MessageType) String() string {
	switch t {
	case MessageTypeText:
		return "text"
	case MessageTypeImage:
		return "image"
	case MessageTypeFile:
		return "file"
	case MessageTypeVoice:
		return "voice"
	case MessageTypeVideo:
		return "video"
	}
	return "unknown"
}

// Preview renders the conversation-list preview for a message of type t.
// Adding a MessageType requires a case here; unknown values are an error.
func Preview(t MessageType, content string) (string, error) {
	switch t {
	case MessageTypeText:
		if utf8.RuneCountInString(content) <= PreviewMaxRunes {
			return content, nil
		}
		runes := []rune(content)
		return string(runes[:PreviewMaxRunes]) + previewEllipsis, nil
	case MessageTypeImage:
		return "[image]", nil
	case MessageTypeFile:
		return "[file]", nil
	case MessageTypeVoice:
		return "[voice]", nil
	case MessageTypeVideo:
		return "[video]", nil
	}
	return "", ErrInvalidMessageType
}

// Message is an immutable log entry in a conversation; only IsRead flips.
type Message struct {
	ID             string      `db:"id"`
	ConversationID string      `db:"conversation_id"`
	SenderID       int64       `db:"sender_id"`
	ReceiverID     int64       `db:"receiver_id"`
	Type           MessageType `db:"msg_type"`
	Content        string      `db:"content"`
	AttachmentURL  *string     `db:"attachment_url"`
	InReplyTo      *string     `db:"in_reply_to"`
	CorrelationID  *int64      `db:"correlation_id"`
	IsRead         bool        `db:"is_read"`
	IsDeleted      bool        `db:"is_deleted"`
	CreatedAt      time.Time   `db:"created_at"`
}

// NewMessage validates and normalizes a message before it is persisted.
// ID and ConversationID are assigned by the store.
func NewMessage(m Message) (*Message, error) {
	if err := ValidatePair(m.SenderID, m.ReceiverID); err != nil {
		return nil, err
	}
	if !m.Type.Valid() {
		return nil, ErrInvalidMessageType
	}

	m.AttachmentURL = trimmedOrNil(m.AttachmentURL)
	m.InReplyTo = trimmedOrNil(m.InReplyTo)

	switch m.Type {
	case MessageTypeText:
		if strings.TrimSpace(m.Content) == "" {
			return nil, ErrEmptyMessage
		}
	default:
		if m.AttachmentURL == nil && strings.TrimSpace(m.Content) == "" {
			return nil, ErrMissingAttachment
		}
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	// Stores keep microsecond precision; match it so replay cursors round-trip.
	m.CreatedAt = m.CreatedAt.UTC().Truncate(time.Microsecond)
	m.IsRead = false
	m.IsDeleted = false
	return &m, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
