package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the orchestration layer. Callers map these to
// transport responses; nothing here is retried internally.
var (
	// ErrNoUsableImage means no submitted image yielded a face embedding.
	// Recoverable: the caller should re-capture.
	ErrNoUsableImage = errors.New("no usable face image")

	// ErrUnknownUser means no enrollment exists for the claimed identity.
	// Recoverable: the caller should enroll first.
	ErrUnknownUser = errors.New("user not enrolled")

	// ErrDegenerateVector means a compared vector had zero norm. This is a
	// provider contract breach, surfaced as-is rather than retried.
	ErrDegenerateVector = errors.New("degenerate embedding vector")
)

// ValidationError describes malformed caller input. Always recoverable by
// correcting the request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
