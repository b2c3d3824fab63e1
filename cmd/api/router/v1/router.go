package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httpHandler "go-hirechat/internal/pkg/chat/presentation/http"
)

// Deps is what the version 1 handlers are built from.
type Deps = httpHandler.Deps

// RegisterRoutes mounts all version 1 API routes under /api/v1
func RegisterRoutes(r *gin.Engine, deps Deps) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	v1 := r.Group("/api/v1")
	httpHandler.RegisterRoutes(v1, deps)
}
