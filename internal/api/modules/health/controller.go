package health

import (
	"github.com/ethanbaker/api/pkg/api_types"
	"github.com/gin-gonic/gin"
)

// Status is the health payload
type Status struct {
	ActiveConsultations int `json:"active_consultations"`
}

// Return status of the API
func getStatus(active func() int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var status Status
		if active != nil {
			status.ActiveConsultations = active()
		}

		res := api_types.NewSuccessResponse("OK", status)
		c.JSON(res.AsGinResponse())
	}
}
