package models

import "github.com/Marga-Ghale/ora-template-studio/internal/types"

// ============================================
// Project template form (validated top-level object)
// ============================================

// ProjectTemplateForm is the editable shape of a project template. The
// validate tags are the schema checked before submit.
type ProjectTemplateForm struct {
	Name        string         `json:"name" validate:"required,max=120"`
	Description *string        `json:"description,omitempty" validate:"omitempty,max=1000"`
	IsActive    bool           `json:"isActive"`
	Milestones  []MilestoneRef `json:"milestones" validate:"min=1,dive"`
	TagIDs      []string       `json:"tagIds" validate:"dive,required"`
}

// EmptyForm returns the form a brand new template starts from.
func EmptyForm() ProjectTemplateForm {
	return ProjectTemplateForm{
		IsActive:   true,
		Milestones: []MilestoneRef{},
		TagIDs:     []string{},
	}
}

// ToRequest converts the form into the backend write body.
func (f ProjectTemplateForm) ToRequest() ProjectTemplateRequest {
	return ProjectTemplateRequest{
		Name:        f.Name,
		Description: f.Description,
		IsActive:    f.IsActive,
		Milestones:  f.Milestones,
		TagIDs:      f.TagIDs,
	}
}

// DraftSnapshot is a persisted copy of an in-progress form.
// Timestamp is unix milliseconds.
type DraftSnapshot struct {
	ProjectTemplateForm
	Timestamp  int64  `json:"timestamp"`
	TemplateID string `json:"templateId,omitempty"`
	IsUpdate   bool   `json:"isUpdate,omitempty"`
}

// ============================================
// Flat views derived from the selected milestone templates
// ============================================

type MilestoneView struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	IsActive    bool    `json:"isActive"`
	Order       string  `json:"order"`
}

type PhaseView struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	MilestoneID string  `json:"milestoneId"`
	Order       string  `json:"order"`
}

type DeliverableView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Priority    types.Priority  `json:"priority"`
	Precedence  []PrecedenceRef `json:"precedence"`
	PhaseID     string          `json:"phaseId"`
	Order       string          `json:"order"`
}

// Views holds the three flat collections rendered by the composition editor.
type Views struct {
	Milestones   []MilestoneView   `json:"milestones"`
	Phases       []PhaseView       `json:"phases"`
	Deliverables []DeliverableView `json:"deliverables"`
}
