// Package composition holds the pure reducers behind the project-template
// editor: flattening selected milestone templates into views, hierarchical
// order labels, precedence editing and milestone-reference reconciliation.
// Nothing in this package performs I/O.
package composition

import (
	"strings"

	"github.com/Marga-Ghale/ora-template-studio/internal/models"
	"github.com/google/uuid"
)

// LocalIDPrefix marks entities created in the editor that the backend has
// not confirmed yet.
const LocalIDPrefix = "local-"

// NewLocalID returns a fresh client-only id.
func NewLocalID() string {
	return LocalIDPrefix + uuid.NewString()
}

// IsLocalID reports whether id was produced by NewLocalID.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// LocalEntities are editor-only phases and deliverables waiting for the
// backend. Entries without the local prefix are ignored by DeriveViews.
type LocalEntities struct {
	Phases       []models.PhaseView
	Deliverables []models.DeliverableView
}

// DeriveViews flattens the selected milestone templates into three ordered
// collections and merges client-only entities into them.
//
// Merge rules:
//   - source order is preserved, milestones first-seen wins on duplicate ids
//   - phases are tagged with their milestone, deliverables with their phase
//   - a local entity is dropped when its id already exists, when a sibling
//     under the same owner already carries the same name, or when its owner
//     is not part of the derived set
//
// Order labels are filled on the returned views.
func DeriveViews(selected []models.MilestoneTemplate, local LocalEntities) models.Views {
	views := models.Views{
		Milestones:   []models.MilestoneView{},
		Phases:       []models.PhaseView{},
		Deliverables: []models.DeliverableView{},
	}

	milestoneSeen := make(map[string]bool, len(selected))
	phaseSeen := make(map[string]bool)
	deliverableSeen := make(map[string]bool)

	for _, m := range selected {
		if milestoneSeen[m.ID] {
			continue
		}
		milestoneSeen[m.ID] = true
		views.Milestones = append(views.Milestones, models.MilestoneView{
			ID:          m.ID,
			Name:        m.Name,
			Description: m.Description,
			IsActive:    m.IsActive,
		})

		for _, p := range m.Phases {
			if phaseSeen[p.ID] {
				continue
			}
			phaseSeen[p.ID] = true
			views.Phases = append(views.Phases, models.PhaseView{
				ID:          p.ID,
				Name:        p.Name,
				Description: p.Description,
				MilestoneID: m.ID,
			})

			for _, d := range p.Deliverables {
				if deliverableSeen[d.ID] {
					continue
				}
				deliverableSeen[d.ID] = true
				views.Deliverables = append(views.Deliverables, toDeliverableView(d, p.ID))
			}
		}
	}

	for _, lp := range local.Phases {
		if !IsLocalID(lp.ID) || phaseSeen[lp.ID] || !milestoneSeen[lp.MilestoneID] {
			continue
		}
		if hasPhaseNamed(views.Phases, lp.MilestoneID, lp.Name) {
			continue
		}
		phaseSeen[lp.ID] = true
		lp.Order = ""
		views.Phases = append(views.Phases, lp)
	}

	for _, ld := range local.Deliverables {
		if !IsLocalID(ld.ID) || deliverableSeen[ld.ID] || !phaseSeen[ld.PhaseID] {
			continue
		}
		if hasDeliverableNamed(views.Deliverables, ld.PhaseID, ld.Name) {
			continue
		}
		deliverableSeen[ld.ID] = true
		ld.Order = ""
		ld.Precedence = precedenceWithoutSelf(ld.Precedence, ld.ID)
		views.Deliverables = append(views.Deliverables, ld)
	}

	// Local phases were appended after every template phase; keep each one
	// next to its milestone siblings so labels follow the visual grouping.
	views.Phases = groupPhasesByMilestone(views.Milestones, views.Phases)
	views.Deliverables = groupDeliverablesByPhase(views.Phases, views.Deliverables)

	ApplyLabels(&views)
	return views
}

func toDeliverableView(d models.Deliverable, phaseID string) models.DeliverableView {
	return models.DeliverableView{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Priority:    d.Priority,
		Precedence:  precedenceWithoutSelf(d.Precedence, d.ID),
		PhaseID:     phaseID,
	}
}

func clonePrecedence(refs []models.PrecedenceRef) []models.PrecedenceRef {
	out := make([]models.PrecedenceRef, len(refs))
	copy(out, refs)
	return out
}

// precedenceWithoutSelf copies refs, dropping any reference to selfID.
func precedenceWithoutSelf(refs []models.PrecedenceRef, selfID string) []models.PrecedenceRef {
	out := make([]models.PrecedenceRef, 0, len(refs))
	for _, ref := range refs {
		if ref.DeliverableID == selfID {
			continue
		}
		out = append(out, ref)
	}
	return out
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func hasPhaseNamed(phases []models.PhaseView, milestoneID, name string) bool {
	for _, p := range phases {
		if p.MilestoneID == milestoneID && sameName(p.Name, name) {
			return true
		}
	}
	return false
}

func hasDeliverableNamed(deliverables []models.DeliverableView, phaseID, name string) bool {
	for _, d := range deliverables {
		if d.PhaseID == phaseID && sameName(d.Name, name) {
			return true
		}
	}
	return false
}

func groupPhasesByMilestone(milestones []models.MilestoneView, phases []models.PhaseView) []models.PhaseView {
	out := make([]models.PhaseView, 0, len(phases))
	for _, m := range milestones {
		for _, p := range phases {
			if p.MilestoneID == m.ID {
				out = append(out, p)
			}
		}
	}
	return out
}

func groupDeliverablesByPhase(phases []models.PhaseView, deliverables []models.DeliverableView) []models.DeliverableView {
	out := make([]models.DeliverableView, 0, len(deliverables))
	for _, p := range phases {
		for _, d := range deliverables {
			if d.PhaseID == p.ID {
				out = append(out, d)
			}
		}
	}
	return out
}
