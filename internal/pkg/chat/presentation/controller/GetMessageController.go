package controller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"go-hirechat/internal/pkg/chat/application/delivery"
	"go-hirechat/internal/pkg/chat/application/usecase"
)

// GetMessageController pages through a conversation's history (one controller per endpoint)
type GetMessageController struct {
	UC *usecase.GetMessageUseCase
}

func NewGetMessageController(uc *usecase.GetMessageUseCase) *GetMessageController {
	return &GetMessageController{UC: uc}
}

func (h *GetMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID := c.Param("conversationId")

		page, pageSize := 1, usecase.DefaultPageSize
		if v := c.Query("page"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				page = n
			}
		}
		if v := c.Query("page_size"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				pageSize = n
			}
		}
		page, pageSize = usecase.NormalizePage(page, pageSize)

		in := usecase.GetMessageInput{ConversationID: conversationID, UserID: CallerID(c), Page: page, PageSize: pageSize}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		msgs, err := h.UC.Execute(ctx, in)
		if err != nil {
			respondError(c, err)
			return
		}

		out := make([]delivery.MessagePayload, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, delivery.ToPayload(m))
		}

		c.JSON(http.StatusOK, gin.H{
			"messages":  out,
			"page":      page,
			"page_size": pageSize,
			"count":     len(out),
		})
	}
}
