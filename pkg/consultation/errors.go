package consultation

import (
	"errors"
	"fmt"
)

// Code classifies consultation failures
type Code string

const (
	CodeGenerator       Code = "GENERATOR"
	CodePersistence     Code = "PERSISTENCE"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
)

// Error is the error contract shared by the stages, the orchestrator and the stores
type Error struct {
	Code    Code
	Op      string // operation name, ex: "HistoryAgent.turn"
	Message string // safe message
	Err     error  // wrapped error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Op != "" && e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Op != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "consultation error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a consultation error
func E(code Code, op, msg string, err error) error {
	return &Error{Code: code, Op: op, Message: msg, Err: err}
}

// IsCode reports whether err carries the given code anywhere in its chain
func IsCode(err error, code Code) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
