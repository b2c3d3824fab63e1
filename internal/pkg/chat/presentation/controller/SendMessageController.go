package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-hirechat/internal/pkg/chat/application/delivery"
	chat "go-hirechat/internal/pkg/chat/application/domain"
	"go-hirechat/internal/pkg/chat/application/usecase"
)

// SendMessageController handles the send-message endpoint only (one controller per endpoint)
type SendMessageController struct {
	UC *usecase.SendMessageUseCase
}

func NewSendMessageController(uc *usecase.SendMessageUseCase) *SendMessageController {
	return &SendMessageController{UC: uc}
}

// sendMessageRequest is the DTO for the HTTP request body
type sendMessageRequest struct {
	ReceiverID    int64   `json:"receiver_id" binding:"required"`
	Type          *int16  `json:"type"`
	Content       string  `json:"content"`
	AttachmentURL *string `json:"attachment_url"`
	InReplyTo     *string `json:"in_reply_to"`
	CorrelationID *int64  `json:"correlation_id"`
}

func (r sendMessageRequest) toInput(senderID int64) usecase.SendMessageInput {
	msgType := chat.MessageTypeText
	if r.Type != nil {
		msgType = chat.MessageType(*r.Type)
	}
	return usecase.SendMessageInput{
		SenderID:      senderID,
		ReceiverID:    r.ReceiverID,
		Type:          msgType,
		Content:       r.Content,
		AttachmentURL: r.AttachmentURL,
		InReplyTo:     r.InReplyTo,
		CorrelationID: r.CorrelationID,
	}
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		msg, err := h.UC.Execute(ctx, req.toInput(CallerID(c)))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, delivery.ToPayload(*msg))
	}
}
