package controller

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	chat "go-hirechat/internal/pkg/chat/application/domain"
	"go-hirechat/internal/pkg/chat/application/usecase"
)

type ListConversationController struct {
	UC *usecase.ListConversationUseCase
}

func NewListConversationController(uc *usecase.ListConversationUseCase) *ListConversationController {
	return &ListConversationController{UC: uc}
}

type peerResponse struct {
	ID        int64  `json:"id"`
	Nickname  string `json:"nickname,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type conversationResponse struct {
	ConversationID  string       `json:"conversation_id"`
	Peer            peerResponse `json:"peer"`
	Preview         string       `json:"preview"`
	LastMessageAt   time.Time    `json:"last_message_at"`
	UnreadCount     int          `json:"unread_count"`
	Pinned          bool         `json:"pinned"`
	HasNotification bool         `json:"has_notification"`
}

func toConversationResponse(v chat.ConversationView) conversationResponse {
	return conversationResponse{
		ConversationID:  v.ConversationID,
		Peer:            peerResponse{ID: v.PeerID, Nickname: v.PeerNickname, AvatarURL: v.PeerAvatarURL},
		Preview:         v.Preview,
		LastMessageAt:   v.LastMessageAt,
		UnreadCount:     v.UnreadCount,
		Pinned:          v.Pinned,
		HasNotification: v.HasNotification,
	}
}

func (h *ListConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		views, err := h.UC.Execute(ctx, usecase.ListConversationInput{UserID: CallerID(c)})
		if err != nil {
			respondError(c, err)
			return
		}

		// pinned first; recency order is kept within each group
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].Pinned && !views[j].Pinned
		})

		out := make([]conversationResponse, 0, len(views))
		for _, v := range views {
			out = append(out, toConversationResponse(v))
		}
		c.JSON(http.StatusOK, gin.H{"conversations": out})
	}
}
