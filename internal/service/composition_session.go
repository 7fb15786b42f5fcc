package service

import (
	"sync"
	"time"

	"github.com/Marga-Ghale/ora-template-studio/internal/clock"
	"github.com/Marga-Ghale/ora-template-studio/internal/composition"
	"github.com/Marga-Ghale/ora-template-studio/internal/models"
	"github.com/Marga-Ghale/ora-template-studio/internal/types"
)

// Session is one open composition editor. It owns the form, the milestone
// templates picked into it and the views derived from them. All fields
// below mu are guarded by it.
type Session struct {
	ID         string
	UserID     string
	Mode       string
	TemplateID string

	mu          sync.Mutex
	form        models.ProjectTemplateForm
	selected    []models.MilestoneTemplate
	local       composition.LocalEntities
	views       models.Views
	userEdited  bool
	loading     bool
	closed      bool
	recoverable *models.DraftSnapshot
	lastActive  time.Time
	autosave    *clock.Debouncer
}

// SessionState is what the editor renders.
type SessionState struct {
	ID                   string                     `json:"id"`
	Mode                 string                     `json:"mode"`
	TemplateID           string                     `json:"templateId,omitempty"`
	Form                 models.ProjectTemplateForm `json:"form"`
	SelectedMilestoneIDs []string                   `json:"selectedMilestoneIds"`
	Views                models.Views               `json:"views"`
	Dirty                bool                       `json:"dirty"`
	UserEdited           bool                       `json:"userEdited"`
	HasUnsavedChanges    bool                       `json:"hasUnsavedChanges"`
	RecoverableDraft     *models.DraftSnapshot      `json:"recoverableDraft,omitempty"`
	AutosavePending      bool                       `json:"autosavePending"`
	Saving               bool                       `json:"saving"`
	LastSavedTimestamp   *int64                     `json:"lastSavedTimestamp,omitempty"`
}

// FormPatch carries the top-level fields the user typed. Nil fields are left
// unchanged; an empty description clears it.
type FormPatch struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	IsActive    *bool    `json:"isActive"`
	TagIDs      []string `json:"tagIds"`
}

func (p FormPatch) empty() bool {
	return p.Name == nil && p.Description == nil && p.IsActive == nil && p.TagIDs == nil
}

func (s *Session) isUpdate() bool { return s.Mode == types.ModeUpdate }

func (s *Session) selectedIDs() []string {
	ids := make([]string, len(s.selected))
	for i, m := range s.selected {
		ids[i] = m.ID
	}
	return ids
}

func (s *Session) indexOf(milestoneID string) int {
	for i, m := range s.selected {
		if m.ID == milestoneID {
			return i
		}
	}
	return -1
}

// rederive recomputes the flat views after any change to selected or local.
func (s *Session) rederive() {
	s.views = composition.DeriveViews(s.selected, s.local)
}

// syncRefs appends a default reference for every newly selected template.
func (s *Session) syncRefs() {
	s.form.Milestones = composition.SyncMilestoneRefs(s.form.Milestones, s.selectedIDs())
}

// dirty reports whether the form differs from a blank one.
func (s *Session) dirty() bool {
	f := s.form
	return f.Name != "" || f.Description != nil || !f.IsActive ||
		len(f.TagIDs) > 0 || len(f.Milestones) > 0 || len(s.selected) > 0
}

// needsAutosave is the draft-worthiness test: any change at all when
// creating, an explicit user edit when updating.
func (s *Session) needsAutosave() bool {
	if s.isUpdate() {
		return s.userEdited
	}
	return s.dirty()
}

func (s *Session) cloneForm() models.ProjectTemplateForm {
	f := s.form
	f.Milestones = append([]models.MilestoneRef{}, s.form.Milestones...)
	f.TagIDs = append([]string{}, s.form.TagIDs...)
	if s.form.Description != nil {
		d := *s.form.Description
		f.Description = &d
	}
	return f
}

func (s *Session) applyPatch(p FormPatch) {
	if p.Name != nil {
		s.form.Name = *p.Name
	}
	if p.Description != nil {
		if *p.Description == "" {
			s.form.Description = nil
		} else {
			d := *p.Description
			s.form.Description = &d
		}
	}
	if p.IsActive != nil {
		s.form.IsActive = *p.IsActive
	}
	if p.TagIDs != nil {
		s.form.TagIDs = dedupe(p.TagIDs)
	}
}

func (s *Session) removeLocalPhase(id string) {
	out := s.local.Phases[:0]
	for _, p := range s.local.Phases {
		if p.ID != id {
			out = append(out, p)
		}
	}
	s.local.Phases = out
}

func (s *Session) removeLocalDeliverable(id string) {
	out := s.local.Deliverables[:0]
	for _, d := range s.local.Deliverables {
		if d.ID != id {
			out = append(out, d)
		}
	}
	s.local.Deliverables = out
}

func (s *Session) findDeliverableView(id string) (models.DeliverableView, bool) {
	for _, d := range s.views.Deliverables {
		if d.ID == id {
			return d, true
		}
	}
	return models.DeliverableView{}, false
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func formFromDetailed(t *models.DetailedProjectTemplate) models.ProjectTemplateForm {
	form := models.EmptyForm()
	form.Name = t.Name
	form.Description = t.Description
	form.IsActive = t.IsActive
	for _, m := range t.Milestones {
		form.Milestones = append(form.Milestones, m.MilestoneRef)
	}
	for _, tag := range t.Tags {
		form.TagIDs = append(form.TagIDs, tag.ID)
	}
	return form
}
