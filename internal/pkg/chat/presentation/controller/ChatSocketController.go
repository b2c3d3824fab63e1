package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"go-hirechat/internal/infrastructure/realtime"
	"go-hirechat/internal/pkg/chat/application/delivery"
	chat "go-hirechat/internal/pkg/chat/application/domain"
	"go-hirechat/internal/pkg/chat/application/usecase"
)

// ChatSocketController handles the websocket push channel: it registers the
// session, replays unread messages and serves inbound send/read frames.
type ChatSocketController struct {
	registry        *realtime.Registry
	sendMessageUC   *usecase.SendMessageUseCase
	markReadUC      *usecase.MarkReadUseCase
	replayUC        *usecase.ReplayUnreadUseCase
	logger          *zap.Logger
	inflightTimeout time.Duration
}

func NewChatSocketController(
	registry *realtime.Registry,
	send *usecase.SendMessageUseCase,
	markRead *usecase.MarkReadUseCase,
	replay *usecase.ReplayUnreadUseCase,
	logger *zap.Logger,
) *ChatSocketController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatSocketController{
		registry:        registry,
		sendMessageUC:   send,
		markReadUC:      markRead,
		replayUC:        replay,
		logger:          logger.Named("ws"),
		inflightTimeout: 5 * time.Second,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy belongs to the gateway in front of this service.
		return true
	},
}

// inboundFrame is a client->server frame. MsgType is the message kind
// because Type names the frame itself.
type inboundFrame struct {
	Type           string  `json:"type"`
	ConversationID string  `json:"conversation_id,omitempty"`
	ReceiverID     int64   `json:"receiver_id,omitempty"`
	MsgType        *int16  `json:"msg_type,omitempty"`
	Content        string  `json:"content,omitempty"`
	AttachmentURL  *string `json:"attachment_url,omitempty"`
	InReplyTo      *string `json:"in_reply_to,omitempty"`
	CorrelationID  *int64  `json:"correlation_id,omitempty"`
}

const (
	defaultReadTimeout = 60 * time.Second
	maxFrameBytes      = 1 << 20
)

// connSink writes replayed messages without tripping the slow-consumer cut-off.
type connSink struct {
	ctx  context.Context
	conn *realtime.Connection
}

func (s connSink) Send(payload []byte) error {
	return s.conn.SendWait(s.ctx, payload)
}

// Handle upgrades HTTP connections to websocket and processes frames until the client disconnects.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		if raw == "" {
			raw = c.Query("user_id")
		}
		userID, ok := parseUserID(raw)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user_id is required"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response.
			return
		}

		conn := realtime.NewConnection(userID, ws)
		if err := ctl.registry.Attach(conn); err != nil {
			ctl.logger.Warn("rejecting session", zap.Int64("user_id", userID), zap.Error(err))
			conn.Close(websocket.CloseTryAgainLater, "too many sessions")
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer func() {
			cancel()
			ctl.registry.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
		}()

		ws.SetReadLimit(maxFrameBytes)
		_ = ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(defaultReadTimeout))
		})

		ctl.sendControl(conn, delivery.ControlFrame{Type: delivery.FrameConnected, SessionID: conn.ID})

		endReplay := conn.BeginReplay()
		go func() {
			defer endReplay()
			ctl.replay(ctx, conn)
		}()

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
					!errors.Is(err, websocket.ErrCloseSent) {
					ctl.logger.Debug("read failed", zap.Int64("user_id", userID), zap.Error(err))
				}
				return
			}

			var frame inboundFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				ctl.replyError(conn, "bad_request", "invalid payload")
				continue
			}

			switch frame.Type {
			case "message":
				ctl.handleMessage(ctx, conn, frame)
			case delivery.FrameRead:
				ctl.handleRead(ctx, conn, frame)
			default:
				ctl.replyError(conn, "unsupported_type", "unknown frame type")
			}
		}
	}
}

func (ctl *ChatSocketController) replay(ctx context.Context, conn *realtime.Connection) {
	n, err := ctl.replayUC.Execute(ctx, usecase.ReplayUnreadInput{UserID: conn.UserID, Sink: connSink{ctx: ctx, conn: conn}})
	if err != nil && !errors.Is(err, context.Canceled) {
		ctl.logger.Warn("unread replay failed", zap.Int64("user_id", conn.UserID), zap.Error(err))
		return
	}
	if n > 0 {
		ctl.logger.Debug("unread replayed", zap.Int64("user_id", conn.UserID), zap.Int("count", n))
	}
}

func (ctl *ChatSocketController) handleMessage(ctx context.Context, conn *realtime.Connection, frame inboundFrame) {
	msgType := chat.MessageTypeText
	if frame.MsgType != nil {
		msgType = chat.MessageType(*frame.MsgType)
	}

	ctx, cancel := context.WithTimeout(ctx, ctl.inflightTimeout)
	defer cancel()

	msg, err := ctl.sendMessageUC.Execute(ctx, usecase.SendMessageInput{
		SenderID:      conn.UserID,
		ReceiverID:    frame.ReceiverID,
		Type:          msgType,
		Content:       frame.Content,
		AttachmentURL: frame.AttachmentURL,
		InReplyTo:     frame.InReplyTo,
		CorrelationID: frame.CorrelationID,
	})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}

	// echo the stored message so the sender learns its id and timestamp
	payload, err := delivery.Encode(*msg)
	if err != nil {
		ctl.replyError(conn, "internal_error", "failed to encode message")
		return
	}
	_ = conn.Send(payload)
}

func (ctl *ChatSocketController) handleRead(ctx context.Context, conn *realtime.Connection, frame inboundFrame) {
	ctx, cancel := context.WithTimeout(ctx, ctl.inflightTimeout)
	defer cancel()

	n, err := ctl.markReadUC.Execute(ctx, usecase.MarkReadInput{ConversationID: frame.ConversationID, UserID: conn.UserID})
	if err != nil {
		ctl.handleUseCaseError(conn, err)
		return
	}
	ctl.sendControl(conn, delivery.ControlFrame{Type: delivery.FrameRead, ConversationID: frame.ConversationID, Count: &n})
}

func (ctl *ChatSocketController) handleUseCaseError(conn *realtime.Connection, err error) {
	switch errorStatus(err) {
	case http.StatusInternalServerError:
		ctl.logger.Error("use case failed", zap.Int64("user_id", conn.UserID), zap.Error(err))
		ctl.replyError(conn, "internal_error", "unexpected persistence error")
	case http.StatusNotFound:
		ctl.replyError(conn, "not_found", err.Error())
	default:
		ctl.replyError(conn, "bad_request", err.Error())
	}
}

func (ctl *ChatSocketController) replyError(conn *realtime.Connection, code string, message string) {
	ctl.sendControl(conn, delivery.ControlFrame{Type: delivery.FrameError, Code: code, Error: message})
}

func (ctl *ChatSocketController) sendControl(conn *realtime.Connection, frame delivery.ControlFrame) {
	if payload, err := json.Marshal(frame); err == nil {
		_ = conn.Send(payload)
	}
}
