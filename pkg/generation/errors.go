package generation

import (
	"errors"
	"fmt"
)

var ErrNoGenerator = errors.New("no generator configured")

// GenerationError is a failed draft synthesis. It consumes the attempt and the
// loop moves on.
type GenerationError struct {
	Attempt int
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation attempt %d: %v", e.Attempt, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsGenerationError reports whether err is, or wraps, a GenerationError.
func IsGenerationError(err error) bool {
	var genErr *GenerationError

	return errors.As(err, &genErr)
}
