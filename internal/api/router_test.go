package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Marga-Ghale/ora-template-studio/internal/api/handlers"
	"github.com/Marga-Ghale/ora-template-studio/internal/api/middleware"
	"github.com/Marga-Ghale/ora-template-studio/internal/backend"
	"github.com/Marga-Ghale/ora-template-studio/internal/clock"
	"github.com/Marga-Ghale/ora-template-studio/internal/draft"
	"github.com/Marga-Ghale/ora-template-studio/internal/models"
	"github.com/Marga-Ghale/ora-template-studio/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend answers the few backend calls these tests make. Any other
// call panics through the nil embedded interface.
type stubBackend struct {
	service.TemplateBackend
	milestoneErr error
}

func (s *stubBackend) GetMilestoneTemplate(ctx context.Context, id string) (*models.MilestoneTemplate, error) {
	if s.milestoneErr != nil {
		return nil, s.milestoneErr
	}
	return &models.MilestoneTemplate{ID: id, Name: "Discovery", IsActive: true, Phases: []models.Phase{}}, nil
}

func newTestRouter(t *testing.T, be *stubBackend, checks map[string]HealthCheck) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c := clock.NewFake(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	services := service.NewServices(&service.ServiceDeps{
		Backend: be,
		Drafts:  draft.NewManager(draft.NewMemoryStorage(), c, draft.Options{}, nil),
		Clock:   c,
	})
	return NewRouter(RouterDeps{
		Handlers:     handlers.NewHandlers(services),
		HealthChecks: checks,
	})
}

type envelope struct {
	Success     bool            `json:"success"`
	Data        json.RawMessage `json:"data"`
	Error       string          `json:"error"`
	UserMessage string          `json:"userMessage"`
	Details     []string        `json:"details"`
}

func do(t *testing.T, r http.Handler, method, path, userID, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(middleware.UserHeader, userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func openSession(t *testing.T, r http.Handler, userID string) string {
	t.Helper()
	w, env := do(t, r, http.MethodPost, "/api/compositions", userID, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.True(t, env.Success)

	var state struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &state))
	require.NotEmpty(t, state.ID)
	return state.ID
}

func TestRouter_RequiresUser(t *testing.T) {
	r := newTestRouter(t, &stubBackend{}, nil)
	w, _ := do(t, r, http.MethodPost, "/api/compositions", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_CompositionLifecycle(t *testing.T) {
	r := newTestRouter(t, &stubBackend{}, nil)
	id := openSession(t, r, "alice")

	w, env := do(t, r, http.MethodGet, "/api/compositions/"+id, "alice", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	w, env = do(t, r, http.MethodPatch, "/api/compositions/"+id+"/form", "alice", `{"name":"Onboarding"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var state struct {
		Form struct {
			Name string `json:"name"`
		} `json:"form"`
		Dirty bool `json:"dirty"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &state))
	assert.Equal(t, "Onboarding", state.Form.Name)
	assert.True(t, state.Dirty)

	w, _ = do(t, r, http.MethodGet, "/api/compositions/"+id, "bob", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(t, r, http.MethodDelete, "/api/compositions/"+id, "alice", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, r, http.MethodGet, "/api/compositions/"+id, "alice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "The item you are looking for no longer exists.", env.UserMessage)
}

func TestRouter_SubmitValidationIs422(t *testing.T) {
	r := newTestRouter(t, &stubBackend{}, nil)
	id := openSession(t, r, "alice")

	w, env := do(t, r, http.MethodPost, "/api/compositions/"+id+"/submit", "alice", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Len(t, env.Details, 2)
	assert.True(t, strings.HasPrefix(env.UserMessage, "Please fix the following:"))
}

func TestRouter_BadReorderBody(t *testing.T) {
	r := newTestRouter(t, &stubBackend{}, nil)
	id := openSession(t, r, "alice")

	w, _ := do(t, r, http.MethodPost, "/api/compositions/"+id+"/reorder", "alice", `{"from":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/compositions/"+id+"/reorder", "alice", `{"from":0,"to":4}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_BackendErrorStatuses(t *testing.T) {
	be := &stubBackend{milestoneErr: &backend.APIError{Status: http.StatusNotFound, Message: "milestone template not found"}}
	r := newTestRouter(t, be, nil)

	w, env := do(t, r, http.MethodGet, "/api/milestone-templates/m9", "alice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "milestone template not found", env.UserMessage)

	be.milestoneErr = &backend.APIError{Status: http.StatusInternalServerError, Message: "boom"}
	w, _ = do(t, r, http.MethodGet, "/api/milestone-templates/m9", "alice", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	be.milestoneErr = nil
	w, env = do(t, r, http.MethodGet, "/api/milestone-templates/m9", "alice", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter(t, &stubBackend{}, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})
	w, _ := do(t, r, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	r = newTestRouter(t, &stubBackend{}, map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	w, _ = do(t, r, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestRouter_Metrics(t *testing.T) {
	r := newTestRouter(t, &stubBackend{}, nil)
	do(t, r, http.MethodGet, "/health", "", "")

	w, _ := do(t, r, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
