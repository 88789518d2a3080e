package health

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the routes for the health module. active reports how many
// consultations are in memory and may be nil.
func RegisterRoutes(g *gin.RouterGroup, active func() int) {
	g.GET("/health", getStatus(active))
}
