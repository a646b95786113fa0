package conversation

import (
	"errors"
	"fmt"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
)

var (
	ErrEmptyRequest     = errors.New("request cannot be empty")
	ErrQuestionNotFound = errors.New("question not found")
	ErrInvalidPhase     = errors.New("operation not allowed in the current phase")
	ErrInvalidAnswer    = errors.New("invalid answer")
	ErrNoRunner         = errors.New("no generation runner configured")
)

// PhaseError reports an operation attempted in a phase that does not allow it.
type PhaseError struct {
	Op    string
	Phase models.Phase
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("cannot %s while session is %s", e.Op, e.Phase)
}

func (e *PhaseError) Unwrap() error {
	return ErrInvalidPhase
}

func invalidAnswer(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidAnswer, fmt.Sprintf(format, args...))
}
