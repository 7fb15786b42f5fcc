package service

import (
	"errors"

	"github.com/Marga-Ghale/ora-template-studio/internal/backend"
)

// ResultError is the error half of a Result. UserMessage is safe to show.
type ResultError struct {
	Message     string `json:"message"`
	UserMessage string `json:"userMessage,omitempty"`
}

// Result is returned by every operation that talks to the template backend.
// Callers branch on Success; failures never surface as raw errors.
type Result[T any] struct {
	Success bool         `json:"success"`
	Data    T            `json:"data,omitempty"`
	Error   *ResultError `json:"error,omitempty"`

	err error
}

func Ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func Fail[T any](err error) Result[T] {
	return Result[T]{Error: toResultError(err), err: err}
}

// Err returns the underlying error of a failed result, nil otherwise.
func (r Result[T]) Err() error { return r.err }

// UserMessage returns the text for the failure toast.
func (r Result[T]) UserMessage() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.UserMessage
}

func toResultError(err error) *ResultError {
	if err == nil {
		return &ResultError{Message: backend.GenericMessage, UserMessage: backend.GenericMessage}
	}
	if apiErr, ok := backend.AsAPIError(err); ok {
		return &ResultError{Message: apiErr.Message, UserMessage: apiErr.Display()}
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return &ResultError{Message: verr.Error(), UserMessage: verr.Error()}
	}
	if isServiceError(err) {
		return &ResultError{Message: err.Error(), UserMessage: userText(err)}
	}
	return &ResultError{Message: err.Error(), UserMessage: backend.GenericMessage}
}

func isServiceError(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrForbidden, ErrInvalidInput, ErrSessionClosed,
		ErrMissingSelection, ErrNotPersisted, ErrNoDraft,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func userText(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "The item you are looking for no longer exists."
	case errors.Is(err, ErrForbidden):
		return "You do not have access to this composition."
	case errors.Is(err, ErrSessionClosed):
		return "This editor was closed. Reopen the template to continue."
	default:
		return err.Error()
	}
}
