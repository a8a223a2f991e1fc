package api

import (
	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine for the accumulator's HTTP surface:
// append endpoints, recent-images, and a combined health check. Metrics
// scraping is left to whatever gin middleware an operator chooses to
// attach; no metrics library appears in the dependency set this core draws
// on.
func NewRouter(h *Handler, health *HealthChecker) *gin.Engine {
	router := gin.Default()

	router.GET("/healthz", health.Handle)

	v1 := router.Group("/v1/users/:id")
	{
		v1.POST("/messages", h.AppendMessage)
		v1.POST("/conversation", h.AppendConversation)
		v1.GET("/recent-images", h.RecentImages)
	}

	return router
}
