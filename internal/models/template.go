// ============================================
// FILE: internal/models/template.go
// ============================================
package models

import (
	"time"

	"github.com/Marga-Ghale/ora-template-studio/internal/types"
)

// ============================================
// Backend DTOs
// ============================================

// PrecedenceRef points at a deliverable that must be finished first.
type PrecedenceRef struct {
	DeliverableID string `json:"deliverableId" validate:"required"`
}

type Deliverable struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Priority    types.Priority  `json:"priority"`
	Precedence  []PrecedenceRef `json:"precedence"`
}

type Phase struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  *string       `json:"description,omitempty"`
	Deliverables []Deliverable `json:"deliverables"`
}

type MilestoneTemplate struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	IsActive    bool       `json:"isActive"`
	Phases      []Phase    `json:"phases"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// MilestoneRef is a reference from a project template to a milestone template,
// carrying the project-local overrides.
type MilestoneRef struct {
	MilestoneTemplateID string                 `json:"milestoneTemplateId" validate:"required"`
	IsRequired          bool                   `json:"isRequired"`
	CustomName          *string                `json:"customName,omitempty" validate:"omitempty,max=120"`
	Customizations      map[string]interface{} `json:"customizations,omitempty"`
}

// HasOverrides reports whether the user has changed anything on the reference.
func (r MilestoneRef) HasOverrides() bool {
	return r.IsRequired || r.CustomName != nil || len(r.Customizations) > 0
}

type ProjectTemplate struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	IsActive    bool           `json:"isActive"`
	Milestones  []MilestoneRef `json:"milestones"`
	TagIDs      []string       `json:"tagIds"`
	CreatedAt   *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time     `json:"updatedAt,omitempty"`
}

// DetailedMilestone is a milestone reference resolved to its template.
type DetailedMilestone struct {
	MilestoneRef
	MilestoneTemplate MilestoneTemplate `json:"milestoneTemplate"`
}

// DetailedProjectTemplate is the project template with every referenced
// milestone template inlined, as returned by /{id}/detailed.
type DetailedProjectTemplate struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description *string             `json:"description,omitempty"`
	IsActive    bool                `json:"isActive"`
	Milestones  []DetailedMilestone `json:"milestones"`
	Tags        []Tag               `json:"tags"`
}

type Tag struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Color *string `json:"color,omitempty"`
}

// Paginated is the page envelope used by every /paginated endpoint.
type Paginated[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// PageQuery carries list filters for paginated endpoints.
type PageQuery struct {
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
	Search string `form:"search"`
}

// ============================================
// Backend write requests
// ============================================

type CreateMilestoneTemplateRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

type UpdateMilestoneTemplateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

type PhaseRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

type DeliverableRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description *string         `json:"description"`
	Priority    types.Priority  `json:"priority" binding:"required,oneof=HIGH MEDIUM LOW"`
	Precedence  []PrecedenceRef `json:"precedence"`
}

type ChangePositionRequest struct {
	PositionID  string             `json:"positionId" binding:"required"`
	Type        types.PositionType `json:"type" binding:"required,oneof=milestone phase deliverable"`
	NewPosition int                `json:"newPosition" binding:"min=0"`
}

type ProjectTemplateRequest struct {
	Name        string         `json:"name"`
	Description *string        `json:"description,omitempty"`
	IsActive    bool           `json:"isActive"`
	Milestones  []MilestoneRef `json:"milestones"`
	TagIDs      []string       `json:"tagIds"`
}

type TagRequest struct {
	Name  string  `json:"name" binding:"required"`
	Color *string `json:"color"`
}
