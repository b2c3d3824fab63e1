package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-hirechat/internal/pkg/chat/application/usecase"
)

type PinConversationController struct {
	UC *usecase.PinConversationUseCase
}

func NewPinConversationController(uc *usecase.PinConversationUseCase) *PinConversationController {
	return &PinConversationController{UC: uc}
}

type pinRequest struct {
	Pinned *bool `json:"pinned" binding:"required"`
}

func (h *PinConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req pinRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		err := h.UC.Execute(ctx, usecase.PinConversationInput{
			ConversationID: c.Param("conversationId"),
			UserID:         CallerID(c),
			Pinned:         *req.Pinned,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
