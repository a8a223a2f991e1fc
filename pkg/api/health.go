package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mirixhq/mirixcore/pkg/coordinator"
	"github.com/mirixhq/mirixcore/pkg/database"
)

// HealthChecker answers GET /healthz: coordinator reachability and database
// connection pool health, combined into one response.
type HealthChecker struct {
	Coord coordinator.Client
	DB    *database.Client
}

// NewHealthChecker constructs a HealthChecker over the already-built
// coordinator and database clients.
func NewHealthChecker(coord coordinator.Client, db *database.Client) *HealthChecker {
	return &HealthChecker{Coord: coord, DB: db}
}

// Handle implements the /healthz gin route.
func (h *HealthChecker) Handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "healthy"}

	if err := h.Coord.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["coordinator"] = gin.H{"status": "unhealthy", "error": err.Error()}
	} else {
		body["coordinator"] = gin.H{"status": "healthy"}
	}

	dbHealth, err := database.Health(ctx, h.DB.DB())
	if err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
	}
	body["database"] = dbHealth

	c.JSON(status, body)
}
