package composition

import (
	"strconv"

	"github.com/Marga-Ghale/ora-template-studio/internal/models"
)

// VisualOrder is the 1-based label of a milestone at index.
func VisualOrder(index int) string {
	return strconv.Itoa(index + 1)
}

// PhaseVisualOrder returns "{milestoneOrder}.{n}" where n is the phase's
// 1-based position among the phases of its milestone. It returns "" when the
// milestone or the phase cannot be found.
func PhaseVisualOrder(phase models.PhaseView, milestones []models.MilestoneView, phases []models.PhaseView) string {
	milestoneIndex := -1
	for i, m := range milestones {
		if m.ID == phase.MilestoneID {
			milestoneIndex = i
			break
		}
	}
	if milestoneIndex < 0 {
		return ""
	}

	position := 0
	for _, p := range phases {
		if p.MilestoneID != phase.MilestoneID {
			continue
		}
		position++
		if p.ID == phase.ID {
			return VisualOrder(milestoneIndex) + "." + strconv.Itoa(position)
		}
	}
	return ""
}

// DeliverableVisualOrder returns "{phaseOrder}.{n}" where n is the
// deliverable's 1-based position inside its phase, or "" when the owning
// phase chain cannot be resolved.
func DeliverableVisualOrder(deliverable models.DeliverableView, deliverables []models.DeliverableView, phases []models.PhaseView, milestones []models.MilestoneView) string {
	var owner *models.PhaseView
	for i := range phases {
		if phases[i].ID == deliverable.PhaseID {
			owner = &phases[i]
			break
		}
	}
	if owner == nil {
		return ""
	}

	phaseOrder := PhaseVisualOrder(*owner, milestones, phases)
	if phaseOrder == "" {
		return ""
	}

	position := 0
	for _, d := range deliverables {
		if d.PhaseID != deliverable.PhaseID {
			continue
		}
		position++
		if d.ID == deliverable.ID {
			return phaseOrder + "." + strconv.Itoa(position)
		}
	}
	return ""
}

// ApplyLabels recomputes every Order field in place. It must run after any
// reorder of the backing slices.
func ApplyLabels(v *models.Views) {
	milestoneOrder := make(map[string]string, len(v.Milestones))
	for i := range v.Milestones {
		v.Milestones[i].Order = VisualOrder(i)
		milestoneOrder[v.Milestones[i].ID] = v.Milestones[i].Order
	}

	phaseOrder := make(map[string]string, len(v.Phases))
	phaseCount := make(map[string]int, len(v.Milestones))
	for i := range v.Phases {
		p := &v.Phases[i]
		parent, ok := milestoneOrder[p.MilestoneID]
		if !ok {
			p.Order = ""
			continue
		}
		phaseCount[p.MilestoneID]++
		p.Order = parent + "." + strconv.Itoa(phaseCount[p.MilestoneID])
		phaseOrder[p.ID] = p.Order
	}

	deliverableCount := make(map[string]int, len(v.Phases))
	for i := range v.Deliverables {
		d := &v.Deliverables[i]
		parent, ok := phaseOrder[d.PhaseID]
		if !ok {
			d.Order = ""
			continue
		}
		deliverableCount[d.PhaseID]++
		d.Order = parent + "." + strconv.Itoa(deliverableCount[d.PhaseID])
	}
}
