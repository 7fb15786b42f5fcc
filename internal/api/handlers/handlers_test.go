package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Marga-Ghale/ora-template-studio/internal/backend"
	"github.com/Marga-Ghale/ora-template-studio/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &service.ValidationError{Messages: []string{"name is required"}}, http.StatusUnprocessableEntity},
		{"backend 404", &backend.APIError{Status: 404, Message: "gone"}, http.StatusNotFound},
		{"backend 409", fmt.Errorf("create: %w", &backend.APIError{Status: 409}), http.StatusConflict},
		{"backend 500", &backend.APIError{Status: 500}, http.StatusBadGateway},
		{"backend transport", &backend.APIError{Status: 0}, http.StatusBadGateway},
		{"not found", service.ErrNotFound, http.StatusNotFound},
		{"no draft", service.ErrNoDraft, http.StatusNotFound},
		{"forbidden", service.ErrForbidden, http.StatusForbidden},
		{"closed", service.ErrSessionClosed, http.StatusConflict},
		{"wrapped invalid input", fmt.Errorf("%w: bad index", service.ErrInvalidInput), http.StatusBadRequest},
		{"missing selection", service.ErrMissingSelection, http.StatusBadRequest},
		{"not persisted", service.ErrNotPersisted, http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestHandleServiceError_HidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	handleServiceError(c, errors.New("pq: connection reset"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body["error"])
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestHandleServiceError_ValidationDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	handleServiceError(c, &service.ValidationError{Messages: []string{"name is required", "add at least one milestone"}})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body struct {
		Details []string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"name is required", "add at least one milestone"}, body.Details)
}
