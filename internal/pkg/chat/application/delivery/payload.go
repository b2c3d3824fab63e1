package delivery

import (
	"encoding/json"
	"time"

	chat "go-hirechat/internal/pkg/chat/application/domain"
)

// MessagePayload is the wire shape of a message, shared by the HTTP send
// response, history pages and websocket push frames.
type MessagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	ReceiverID     int64     `json:"receiver_id"`
	Type           int16     `json:"type"`
	Content        string    `json:"content"`
	AttachmentURL  *string   `json:"attachment_url,omitempty"`
	InReplyTo      *string   `json:"in_reply_to,omitempty"`
	CorrelationID  *int64    `json:"correlation_id,omitempty"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

func ToPayload(m chat.Message) MessagePayload {
	return MessagePayload{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Type:           int16(m.Type),
		Content:        m.Content,
		AttachmentURL:  m.AttachmentURL,
		InReplyTo:      m.InReplyTo,
		CorrelationID:  m.CorrelationID,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}

// Encode renders m as a push frame.
func Encode(m chat.Message) ([]byte, error) {
	return json.Marshal(ToPayload(m))
}

// Control frame types sent next to message frames.
const (
	FrameConnected = "connected"
	FrameError     = "error"
	FrameRead      = "read"
)

// ControlFrame is a non-message websocket frame.
type ControlFrame struct {
	Type           string `json:"type"`
	SessionID      string `json:"session_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Count          *int64 `json:"count,omitempty"`
	Code           string `json:"code,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Envelope is what travels over the broker between instances.
type Envelope struct {
	Origin     string          `json:"origin"`
	ReceiverID int64           `json:"receiver_id"`
	Message    json.RawMessage `json:"message"`
}
