package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// GenericMessage is shown when the backend gives no usable message.
const GenericMessage = "Something went wrong. Please try again."

// APIError is a non-2xx answer from the template backend.
type APIError struct {
	Status      int
	Message     string
	UserMessage string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Display returns the text meant for the end user.
func (e *APIError) Display() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	if e.Message != "" {
		return e.Message
	}
	return GenericMessage
}

func (e *APIError) NotFound() bool { return e.Status == http.StatusNotFound }

type errorEnvelope struct {
	Error *struct {
		Message     string `json:"message"`
		UserMessage string `json:"userMessage"`
	} `json:"error"`
	Message string `json:"message"`
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		switch {
		case env.Error != nil:
			apiErr.Message = env.Error.Message
			apiErr.UserMessage = env.Error.UserMessage
		case env.Message != "":
			apiErr.Message = env.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
