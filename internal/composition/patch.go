package composition

import "github.com/Marga-Ghale/ora-template-studio/internal/models"

// The Apply* helpers patch the nested milestone templates held by an editor
// with what the backend returned, so the next DeriveViews pass agrees with
// what was persisted. They never modify their input; the returned slice
// shares no phase or deliverable slices with it.

// MoveIndex moves the element at from to position to. Out-of-range indexes
// return a copy of s unchanged.
func MoveIndex[T any](s []T, from, to int) []T {
	out := make([]T, len(s))
	copy(out, s)
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) || from == to {
		return out
	}
	item := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]T{item}, out[to:]...)...)
	return out
}

// ReplaceMilestone swaps in the aggregate returned by the backend for the
// milestone with the same id. The boolean is false if it was not selected.
func ReplaceMilestone(selected []models.MilestoneTemplate, m models.MilestoneTemplate) ([]models.MilestoneTemplate, bool) {
	out := cloneSelection(selected)
	for i := range out {
		if out[i].ID == m.ID {
			out[i] = cloneMilestone(m)
			return out, true
		}
	}
	return out, false
}

func ApplyPhaseAdded(selected []models.MilestoneTemplate, milestoneID string, phase models.Phase) []models.MilestoneTemplate {
	out := cloneSelection(selected)
	for i := range out {
		if out[i].ID != milestoneID {
			continue
		}
		if phase.Deliverables == nil {
			phase.Deliverables = []models.Deliverable{}
		}
		out[i].Phases = append(out[i].Phases, clonePhase(phase))
	}
	return out
}

// ApplyPhaseUpdated replaces name and description of the phase. Deliverables
// are kept from the local copy when the response omits them.
func ApplyPhaseUpdated(selected []models.MilestoneTemplate, milestoneID string, phase models.Phase) []models.MilestoneTemplate {
	out := cloneSelection(selected)
	for i := range out {
		if out[i].ID != milestoneID {
			continue
		}
		for j := range out[i].Phases {
			if out[i].Phases[j].ID != phase.ID {
				continue
			}
			if phase.Deliverables == nil {
				phase.Deliverables = out[i].Phases[j].Deliverables
			}
			out[i].Phases[j] = clonePhase(phase)
		}
	}
	return out
}

// ApplyPhaseDeleted removes the phase and strips every precedence reference
// that pointed at one of its deliverables.
func ApplyPhaseDeleted(selected []models.MilestoneTemplate, milestoneID, phaseID string) []models.MilestoneTemplate {
	out := cloneSelection(selected)
	removed := make(map[string]bool)
	for i := range out {
		if out[i].ID != milestoneID {
			continue
		}
		phases := out[i].Phases[:0]
		for _, p := range out[i].Phases {
			if p.ID == phaseID {
				for _, d := range p.Deliverables {
					removed[d.ID] = true
				}
				continue
			}
			phases = append(phases, p)
		}
		out[i].Phases = phases
	}
	return stripPrecedence(out, removed)
}

func ApplyDeliverableAdded(selected []models.MilestoneTemplate, milestoneID, phaseID string, d models.Deliverable) []models.MilestoneTemplate {
	out := cloneSelection(selected)
	for i := range out {
		if out[i].ID != milestoneID {
			continue
		}
		for j := range out[i].Phases {
			if out[i].Phases[j].ID == phaseID {
				out[i].Phases[j].Deliverables = append(out[i].Phases[j].Deliverables, cloneDeliverable(d))
			}
		}
	}
	return out
}

func ApplyDeliverableUpdated(selected []models.MilestoneTemplate, milestoneID, phaseID string, d models.Deliverable) []models.MilestoneTemplate {
	out := cloneSelection(selected)
	for i := range out {
		if out[i].ID != milestoneID {
			continue
		}
		for j := range out[i].Phases {
			if out[i].Phases[j].ID != phaseID {
				continue
			}
			for k := range out[i].Phases[j].Deliverables {
				if out[i].Phases[j].Deliverables[k].ID == d.ID {
					out[i].Phases[j].Deliverables[k] = cloneDeliverable(d)
				}
			}
		}
	}
	return out
}

// ApplyDeliverableDeleted removes the deliverable and every precedence
// reference to it.
func ApplyDeliverableDeleted(selected []models.MilestoneTemplate, milestoneID, phaseID, deliverableID string) []models.MilestoneTemplate {
	out := cloneSelection(selected)
	for i := range out {
		if out[i].ID != milestoneID {
			continue
		}
		for j := range out[i].Phases {
			if out[i].Phases[j].ID != phaseID {
				continue
			}
			kept := out[i].Phases[j].Deliverables[:0]
			for _, d := range out[i].Phases[j].Deliverables {
				if d.ID != deliverableID {
					kept = append(kept, d)
				}
			}
			out[i].Phases[j].Deliverables = kept
		}
	}
	return stripPrecedence(out, map[string]bool{deliverableID: true})
}

// FindPhaseOwner returns the milestone id that nests phaseID.
func FindPhaseOwner(selected []models.MilestoneTemplate, phaseID string) (string, bool) {
	for _, m := range selected {
		for _, p := range m.Phases {
			if p.ID == phaseID {
				return m.ID, true
			}
		}
	}
	return "", false
}

// FindDeliverableOwner returns the milestone and phase ids that nest
// deliverableID.
func FindDeliverableOwner(selected []models.MilestoneTemplate, deliverableID string) (milestoneID, phaseID string, ok bool) {
	for _, m := range selected {
		for _, p := range m.Phases {
			for _, d := range p.Deliverables {
				if d.ID == deliverableID {
					return m.ID, p.ID, true
				}
			}
		}
	}
	return "", "", false
}

// FindDeliverable returns the nested deliverable with id.
func FindDeliverable(selected []models.MilestoneTemplate, id string) (models.Deliverable, bool) {
	for _, m := range selected {
		for _, p := range m.Phases {
			for _, d := range p.Deliverables {
				if d.ID == id {
					return cloneDeliverable(d), true
				}
			}
		}
	}
	return models.Deliverable{}, false
}

func stripPrecedence(selected []models.MilestoneTemplate, removed map[string]bool) []models.MilestoneTemplate {
	if len(removed) == 0 {
		return selected
	}
	for i := range selected {
		for j := range selected[i].Phases {
			for k := range selected[i].Phases[j].Deliverables {
				d := &selected[i].Phases[j].Deliverables[k]
				kept := d.Precedence[:0]
				for _, ref := range d.Precedence {
					if !removed[ref.DeliverableID] {
						kept = append(kept, ref)
					}
				}
				d.Precedence = kept
			}
		}
	}
	return selected
}

func cloneSelection(selected []models.MilestoneTemplate) []models.MilestoneTemplate {
	out := make([]models.MilestoneTemplate, len(selected))
	for i, m := range selected {
		out[i] = cloneMilestone(m)
	}
	return out
}

func cloneMilestone(m models.MilestoneTemplate) models.MilestoneTemplate {
	phases := make([]models.Phase, len(m.Phases))
	for i, p := range m.Phases {
		phases[i] = clonePhase(p)
	}
	m.Phases = phases
	return m
}

func clonePhase(p models.Phase) models.Phase {
	deliverables := make([]models.Deliverable, len(p.Deliverables))
	for i, d := range p.Deliverables {
		deliverables[i] = cloneDeliverable(d)
	}
	p.Deliverables = deliverables
	return p
}

func cloneDeliverable(d models.Deliverable) models.Deliverable {
	d.Precedence = clonePrecedence(d.Precedence)
	return d
}

// CloneSelection deep-copies a selection.
func CloneSelection(selected []models.MilestoneTemplate) []models.MilestoneTemplate {
	return cloneSelection(selected)
}
