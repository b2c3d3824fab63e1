package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-hirechat/internal/infrastructure/realtime"
	"go-hirechat/internal/pkg/chat/application/usecase"
	repository "go-hirechat/internal/pkg/chat/persistence/repository/port"
	"go-hirechat/internal/pkg/chat/presentation/controller"
)

// Deps is everything the chat HTTP surface is built from.
type Deps struct {
	Repo            repository.ChatRepository
	Users           repository.UserDirectory
	Applications    repository.ApplicationLookup
	Deliverer       usecase.Deliverer
	Registry        *realtime.Registry
	ReplayBatchSize int
	Logger          *zap.Logger
}

// RegisterRoutes registers chat-related HTTP endpoints under the given router group
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, d Deps) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sendUC := usecase.NewSendMessageUseCase(d.Repo, d.Users, d.Applications, d.Deliverer, logger)
	markReadUC := usecase.NewMarkReadUseCase(d.Repo)

	sendMsgCtl := controller.NewSendMessageController(sendUC)
	getMsgCtl := controller.NewGetMessageController(usecase.NewGetMessageUseCase(d.Repo))
	markReadCtl := controller.NewMarkReadController(markReadUC)
	listCtl := controller.NewListConversationController(usecase.NewListConversationUseCase(d.Repo, d.Users, logger))
	pinCtl := controller.NewPinConversationController(usecase.NewPinConversationUseCase(d.Repo))
	deleteCtl := controller.NewDeleteConversationController(usecase.NewDeleteConversationUseCase(d.Repo))
	socketCtl := controller.NewChatSocketController(d.Registry, sendUC, markReadUC,
		usecase.NewReplayUnreadUseCase(d.Repo, d.ReplayBatchSize), logger)

	// GET /api/v1/ws -> websocket push channel; identity may come from the query string
	g.GET("/ws", socketCtl.Handle())

	authed := g.Group("", controller.RequireUser())

	// POST /api/v1/messages -> send a message
	authed.POST("/messages", sendMsgCtl.Handle())

	// GET /api/v1/conversations -> caller's conversation list
	authed.GET("/conversations", listCtl.Handle())

	// GET /api/v1/conversations/:conversationId/messages -> history, newest first
	authed.GET("/conversations/:conversationId/messages", getMsgCtl.Handle())

	// POST /api/v1/conversations/:conversationId/read -> mark everything read
	authed.POST("/conversations/:conversationId/read", markReadCtl.Handle())

	// PUT /api/v1/conversations/:conversationId/pin -> pin or unpin for the caller
	authed.PUT("/conversations/:conversationId/pin", pinCtl.Handle())

	// DELETE /api/v1/conversations/:conversationId -> hide for the caller
	authed.DELETE("/conversations/:conversationId", deleteCtl.Handle())
}
