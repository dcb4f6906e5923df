package server

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"blueprint/internal/llm"
)

// connectError maps engine errors onto connect codes. Validation reasons
// travel in the message.
func connectError(err error) error {
	if err == nil {
		return nil
	}
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}
	switch {
	case llm.IsValidation(err):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case llm.IsNotFound(err):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func errorCode(err error) string {
	return connect.CodeOf(connectError(err)).String()
}
