package controller

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	chat "go-hirechat/internal/pkg/chat/application/domain"
	"go-hirechat/internal/pkg/chat/application/usecase"
)

// UserIDHeader carries the caller identity set by the upstream auth layer.
const UserIDHeader = "X-User-ID"

const callerKey = "chat.caller_id"

// RequireUser rejects requests without a valid caller identity.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUserID(c.GetHeader(UserIDHeader))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid " + UserIDHeader})
			return
		}
		c.Set(callerKey, id)
		c.Next()
	}
}

// CallerID returns the identity stored by RequireUser.
func CallerID(c *gin.Context) int64 {
	return c.GetInt64(callerKey)
}

func parseUserID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// errorStatus maps use-case errors onto HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, usecase.ErrPersistence):
		return http.StatusInternalServerError
	case errors.Is(err, chat.ErrConversationNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrInvalidInput),
		errors.Is(err, chat.ErrInvalidUser),
		errors.Is(err, chat.ErrSelfConversation),
		errors.Is(err, chat.ErrInvalidMessageType),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrMissingAttachment),
		errors.Is(err, chat.ErrUnknownReceiver),
		errors.Is(err, chat.ErrCorrelationNotFound),
		errors.Is(err, chat.ErrReplyTargetNotFound):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// keep storage details out of responses
		_ = c.Error(err)
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}
