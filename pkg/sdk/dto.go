package sdk

import (
	"encoding/json"
	"time"

	"github.com/ethanbaker/api/pkg/api_types"
	"github.com/jkim999/primary-care-consultant/pkg/consultation"
)

// ApiResponse represents a standard API response structure
type ApiResponse[T any] struct {
	Status  api_types.StatusType `json:"status"`          // Status message
	Code    int                  `json:"code"`            // Status code
	Message string               `json:"message"`         // Human-readable message
	Data    T                    `json:"data,omitempty"`  // Optional data field for successful responses
	Error   any                  `json:"error,omitempty"` // Optional errors field for error responses
}

// AsGinResponse converts the ApiResponse to a format suitable for Gin framework
func (r ApiResponse[T]) AsGinResponse() (int, any) {
	return r.Code, r
}

// AsJSON converts the ApiResponse to a JSON string
func (r ApiResponse[T]) AsJSON() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func NewSuccess(message string) ApiResponse[any] {
	return ApiResponse[any]{
		Status:  api_types.StatusSuccess,
		Code:    200,
		Message: message,
	}
}

func NewSuccessResponse[T any](message string, data T) ApiResponse[T] {
	return ApiResponse[T]{
		Status:  api_types.StatusSuccess,
		Code:    200,
		Message: message,
		Data:    data,
	}
}

// NewErrorResponse builds an error response. Errors are rendered as their message so they
// survive JSON encoding.
func NewErrorResponse(code int, message string, err any) ApiResponse[any] {
	if e, ok := err.(error); ok && e != nil {
		err = e.Error()
	}
	return ApiResponse[any]{
		Status:  api_types.StatusError,
		Code:    code,
		Message: message,
		Error:   err,
	}
}

/** Consultation module DTOs */

// Consultation states as reported by the API
const (
	StateAsking    = "asking"
	StateCompleted = "completed"
	StateCancelled = "cancelled"
	StateFailed    = "failed"
)

// StartConsultationRequest opens a consultation with the patient's first message
type StartConsultationRequest struct {
	Complaint string `json:"complaint" binding:"required"`
}

// AnswerRequest carries the patient's reply to the outstanding question
type AnswerRequest struct {
	Content string `json:"content" binding:"required"`
}

// Consultation is the state of one consultation
type Consultation struct {
	ID           string    `json:"id"`
	State        string    `json:"state"`
	Question     string    `json:"question,omitempty"` // Set while State is "asking"
	Exchange     int       `json:"exchange"`
	MaxExchanges int       `json:"max_exchanges"`
	RedFlags     []string  `json:"red_flags"`
	StartedAt    time.Time `json:"started_at"`

	Result *ConsultationResult `json:"result,omitempty"` // Set once State is "completed" or "cancelled"
}

// Done reports whether the consultation has ended
func (c *Consultation) Done() bool {
	return c.State != StateAsking
}

// ConsultationResult is the outcome of a finished consultation
type ConsultationResult struct {
	FinalText   string               `json:"final_text"`
	IsEmergency bool                 `json:"is_emergency"`
	Cancelled   bool                 `json:"cancelled"`
	Forced      bool                 `json:"forced"`
	Record      *consultation.Record `json:"record,omitempty"`
	Transcript  []consultation.Entry `json:"transcript"`
	Warnings    []string             `json:"warnings,omitempty"`
	CompletedAt time.Time            `json:"completed_at"`
}

// HistoryResponse lists past consultations, oldest first
type HistoryResponse struct {
	Consultations []consultation.Summary `json:"consultations"`
	Count         int                    `json:"count"`
}
