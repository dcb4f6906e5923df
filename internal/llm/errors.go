package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrModelNotFound = errors.New("model not found in catalog")
	ErrNoTransport   = errors.New("no transport registered for model")
)

// ValidationError reports every defect found in a request at once.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	if len(e.Reasons) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Reasons, "; ")
}

// Add appends a formatted reason.
func (e *ValidationError) Add(format string, args ...any) {
	e.Reasons = append(e.Reasons, fmt.Sprintf(format, args...))
}

// OrNil returns e when it holds at least one reason.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Reasons) == 0 {
		return nil
	}
	return e
}

// NotFoundError is returned when a referenced resource (model, template,
// bundle) does not exist.
type NotFoundError struct {
	Resource string
	ID       string
	Err      error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
