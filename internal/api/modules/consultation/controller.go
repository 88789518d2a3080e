package consultation_module

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	model "github.com/jkim999/primary-care-consultant/pkg/consultation"
	"github.com/jkim999/primary-care-consultant/pkg/sdk"
)

// Controller exposes the consultation service over HTTP
type Controller struct {
	service *Service
}

// NewController creates a controller over service
func NewController(service *Service) *Controller {
	return &Controller{service: service}
}

// StartConsultation handles POST requests to open a consultation
func (ctl *Controller) StartConsultation(c *gin.Context) {
	var req sdk.StartConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Could not parse request body", err).AsGinResponse())
		return
	}

	consultation, err := ctl.service.Begin(c.Request.Context(), req.Complaint)
	if err != nil {
		c.JSON(sdk.NewErrorResponse(statusFor(err), "Failed to start consultation", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Consultation started", consultation).AsGinResponse())
}

// GetConsultation handles GET requests for one consultation
func (ctl *Controller) GetConsultation(c *gin.Context) {
	consultation, err := ctl.service.Get(c.Param("id"))
	if err != nil {
		c.JSON(sdk.NewErrorResponse(statusFor(err), "Consultation not found", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Consultation retrieved successfully", consultation).AsGinResponse())
}

// PostAnswer handles POST requests carrying the patient's reply
func (ctl *Controller) PostAnswer(c *gin.Context) {
	var req sdk.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Could not parse request body", err).AsGinResponse())
		return
	}

	consultation, err := ctl.service.Answer(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		c.JSON(sdk.NewErrorResponse(statusFor(err), "Failed to process answer", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Answer processed", consultation).AsGinResponse())
}

// CancelConsultation handles DELETE requests to end a consultation
func (ctl *Controller) CancelConsultation(c *gin.Context) {
	consultation, err := ctl.service.Cancel(c.Param("id"))
	if err != nil {
		c.JSON(sdk.NewErrorResponse(statusFor(err), "Failed to cancel consultation", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Consultation cancelled", consultation).AsGinResponse())
}

// GetHistory handles GET requests for past consultations
func (ctl *Controller) GetHistory(c *gin.Context) {
	limit := DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "limit must be a positive integer", raw).AsGinResponse())
			return
		}
		limit = n
	}

	history, err := ctl.service.History(c.Request.Context(), limit)
	if err != nil {
		c.JSON(sdk.NewErrorResponse(statusFor(err), "Failed to read consultation history", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("History retrieved successfully", history).AsGinResponse())
}

// statusFor maps consultation error codes to HTTP statuses
func statusFor(err error) int {
	var ce *model.Error
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError
	}

	switch ce.Code {
	case model.CodeInvalidArgument:
		return http.StatusBadRequest
	case model.CodeNotFound:
		return http.StatusNotFound
	case model.CodeInvalidState:
		return http.StatusConflict
	case model.CodeGenerator:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
