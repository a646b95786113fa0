package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/conversation"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_Classification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		code       string
		validation bool
		notFound   bool
		conflict   bool
	}{
		{
			name:     "missing session",
			err:      persistence.NewSessionError("SessionByID", "s1", persistence.ErrSessionNotFound),
			code:     "session_not_found",
			notFound: true,
		},
		{
			name:     "missing question",
			err:      conversation.ErrQuestionNotFound,
			code:     "question_not_found",
			notFound: true,
		},
		{
			name:     "phase",
			err:      &conversation.PhaseError{Op: "answer", Phase: models.PhaseComplete},
			code:     "invalid_phase",
			conflict: true,
		},
		{
			name:       "answer",
			err:        fmt.Errorf("%w: bad cron", conversation.ErrInvalidAnswer),
			code:       "invalid_answer",
			validation: true,
		},
		{
			name:       "session id",
			err:        persistence.ErrInvalidSessionID,
			code:       "invalid_session_id",
			validation: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrap("Op", tt.err)

			var serviceErr *ServiceError
			require.ErrorAs(t, err, &serviceErr)
			assert.Equal(t, tt.code, serviceErr.Code)
			assert.Equal(t, "Op", serviceErr.Op)
			assert.ErrorIs(t, err, tt.err)

			assert.Equal(t, tt.validation, IsValidationError(err))
			assert.Equal(t, tt.notFound, IsNotFoundError(err))
			assert.Equal(t, tt.conflict, IsConflictError(err))
		})
	}
}

func TestWrap_Unclassified(t *testing.T) {
	cause := errors.New("connection reset")
	err := wrap("SaveSession", cause)

	var serviceErr *ServiceError
	assert.False(t, errors.As(err, &serviceErr))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "SaveSession: connection reset", err.Error())

	assert.NoError(t, wrap("SaveSession", nil))
}

func TestServiceError_Message(t *testing.T) {
	err := NewValidationError("ValidateWorkflow", "invalid_tier", `unknown tier "huge"`, ErrInvalidRequest)

	assert.Equal(t, `ValidateWorkflow: unknown tier "huge"`, err.Error())
	assert.True(t, IsValidationError(err))
}
