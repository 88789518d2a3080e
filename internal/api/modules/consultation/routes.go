package consultation_module

import (
	"github.com/ethanbaker/api/pkg/api_key"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the routes for the consultation module behind the API key check
func RegisterRoutes(g *gin.RouterGroup, ctl *Controller, validator func(key string) bool) {
	group := g.Group("/consultations")
	group.Handlers = append(group.Handlers, api_key.APIKeyHeaderHandler(validator))

	group.GET("/history", ctl.GetHistory)        // List past consultations
	group.POST("", ctl.StartConsultation)        // Start a consultation with the first message
	group.GET("/:id", ctl.GetConsultation)       // Get a consultation's current state
	group.POST("/:id/answers", ctl.PostAnswer)   // Answer the outstanding question
	group.DELETE("/:id", ctl.CancelConsultation) // Cancel a consultation
}
