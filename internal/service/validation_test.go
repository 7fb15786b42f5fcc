package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Marga-Ghale/ora-template-studio/internal/backend"
	"github.com/Marga-Ghale/ora-template-studio/internal/composition"
	"github.com/Marga-Ghale/ora-template-studio/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validForm() models.ProjectTemplateForm {
	form := models.EmptyForm()
	form.Name = "Onboarding"
	form.Milestones = []models.MilestoneRef{{MilestoneTemplateID: "m1"}}
	return form
}

func TestValidateForm(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*models.ProjectTemplateForm)
		messages []string
	}{
		{
			name:   "valid",
			mutate: func(*models.ProjectTemplateForm) {},
		},
		{
			name:     "missing name",
			mutate:   func(f *models.ProjectTemplateForm) { f.Name = "" },
			messages: []string{"name is required"},
		},
		{
			name:     "name too long",
			mutate:   func(f *models.ProjectTemplateForm) { f.Name = strings.Repeat("x", 121) },
			messages: []string{"name must be at most 120 characters"},
		},
		{
			name:     "no milestones",
			mutate:   func(f *models.ProjectTemplateForm) { f.Milestones = nil },
			messages: []string{"milestones must contain at least 1 item(s)"},
		},
		{
			name: "reference without template id",
			mutate: func(f *models.ProjectTemplateForm) {
				f.Milestones = []models.MilestoneRef{{}}
			},
			messages: []string{"milestones[0].milestoneTemplateId is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			tt.mutate(&form)
			err := ValidateForm(form)
			if tt.messages == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.messages, verr.Messages)
		})
	}
}

func TestValidationError_Formatting(t *testing.T) {
	single := &ValidationError{Messages: []string{"name is required"}}
	assert.Equal(t, "name is required", single.Error())

	multi := &ValidationError{Messages: []string{"a", "b"}}
	assert.Equal(t, "Please fix the following:\n• a\n• b", multi.Error())
}

func TestValidateComposition_DetectsCycle(t *testing.T) {
	views := models.Views{Deliverables: []models.DeliverableView{
		{ID: "a", Precedence: []models.PrecedenceRef{{DeliverableID: "b"}}},
		{ID: "b", Precedence: []models.PrecedenceRef{{DeliverableID: "a"}}},
	}}
	err := validateComposition(validForm(), views)
	assert.ErrorIs(t, err, composition.ErrPrecedenceCycle)
	assert.Equal(t, cycleMessage, err.Error())

	assert.NoError(t, validateComposition(validForm(), models.Views{}))
}

func TestResult_UserMessages(t *testing.T) {
	apiErr := &backend.APIError{Status: 400, Message: "bad", UserMessage: "Name already taken"}
	assert.Equal(t, "Name already taken", Fail[bool](fmt.Errorf("wrapped: %w", apiErr)).UserMessage())

	assert.Equal(t, backend.GenericMessage, Fail[bool](errors.New("dial tcp: refused")).UserMessage())

	res := Fail[bool](ErrForbidden)
	assert.Equal(t, "You do not have access to this composition.", res.UserMessage())
	assert.ErrorIs(t, res.Err(), ErrForbidden)

	ok := Ok(true)
	assert.True(t, ok.Success)
	assert.Nil(t, ok.Error)
	assert.Empty(t, ok.UserMessage())
}
