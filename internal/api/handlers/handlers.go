package handlers

import (
	"errors"
	"net/http"

	"github.com/Marga-Ghale/ora-template-studio/internal/backend"
	"github.com/Marga-Ghale/ora-template-studio/internal/service"
	"github.com/gin-gonic/gin"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	Composition *CompositionHandler
	Catalog     *CatalogHandler
	Activity    *ActivityHandler
}

// NewHandlers creates all handlers
func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Composition: NewCompositionHandler(services.Composition),
		Catalog:     NewCatalogHandler(services.Catalog),
		Activity:    NewActivityHandler(services.Activity),
	}
}

// ============================================
// Error mapping
// ============================================

// statusFor maps service and backend errors to HTTP statuses.
func statusFor(err error) int {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return http.StatusUnprocessableEntity
	}
	if apiErr, ok := backend.AsAPIError(err); ok {
		if apiErr.Status >= 500 || apiErr.Status < 400 {
			return http.StatusBadGateway
		}
		return apiErr.Status
	}

	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrNoDraft):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrMissingSelection),
		errors.Is(err, service.ErrNotPersisted):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError maps service errors to HTTP responses
func handleServiceError(c *gin.Context, err error) {
	status := statusFor(err)
	res := service.Fail[struct{}](err)

	body := gin.H{"error": res.Error.Message, "userMessage": res.Error.UserMessage}
	if status == http.StatusInternalServerError {
		body["error"] = "Internal server error"
	}
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		body["details"] = verr.Messages
	}
	_ = c.Error(err)
	c.JSON(status, body)
}

// respond writes a successful result as its envelope, or maps the failure.
func respond[T any](c *gin.Context, status int, res service.Result[T]) {
	if !res.Success {
		handleServiceError(c, res.Err())
		return
	}
	c.JSON(status, res)
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
