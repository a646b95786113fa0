// Package services provides the conversation and validation use cases and the
// standardized errors the transport layers classify.
package services

import (
	"errors"
	"fmt"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/conversation"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest  = errors.New("invalid request")
	ErrEmptyRequest    = conversation.ErrEmptyRequest
	ErrInvalidAnswer   = conversation.ErrInvalidAnswer
	ErrInvalidWorkflow = errors.New("invalid workflow document")

	// Lookup Errors (404 Not Found).
	ErrSessionNotFound  = persistence.ErrSessionNotFound
	ErrQuestionNotFound = conversation.ErrQuestionNotFound

	// Business Logic Conflicts (409 Conflict).
	ErrInvalidPhase = conversation.ErrInvalidPhase

	// ErrGenerationUnavailable is returned when no generation pipeline is wired.
	ErrGenerationUnavailable = conversation.ErrNoRunner
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrEmptyRequest) ||
		errors.Is(err, ErrInvalidAnswer) ||
		errors.Is(err, ErrInvalidWorkflow) ||
		errors.Is(err, persistence.ErrInvalidSessionID)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrQuestionNotFound)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrInvalidPhase)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// wrap classifies err for op. Errors outside the taxonomy are returned
// wrapped but unclassified.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}

	var code string

	switch {
	case errors.Is(err, ErrSessionNotFound):
		code = "session_not_found"
	case errors.Is(err, ErrQuestionNotFound):
		code = "question_not_found"
	case errors.Is(err, ErrInvalidPhase):
		code = "invalid_phase"
	case errors.Is(err, ErrInvalidAnswer):
		code = "invalid_answer"
	case errors.Is(err, ErrEmptyRequest):
		code = "empty_request"
	case errors.Is(err, ErrInvalidWorkflow):
		code = "invalid_workflow"
	case errors.Is(err, persistence.ErrInvalidSessionID):
		code = "invalid_session_id"
	case errors.Is(err, ErrInvalidRequest):
		code = "invalid_request"
	default:
		return fmt.Errorf("%s: %w", op, err)
	}

	return &ServiceError{Op: op, Code: code, Message: err.Error(), Err: err}
}
