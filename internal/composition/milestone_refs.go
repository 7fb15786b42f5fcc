package composition

import "github.com/Marga-Ghale/ora-template-studio/internal/models"

// DefaultMilestoneRef is the reference appended for a newly selected template.
func DefaultMilestoneRef(milestoneTemplateID string) models.MilestoneRef {
	return models.MilestoneRef{MilestoneTemplateID: milestoneTemplateID}
}

// SyncMilestoneRefs appends a default reference for every selected id that
// has none yet. Existing references are never removed or rewritten, so user
// overrides survive repeated extraction passes. Duplicate references for the
// same id collapse to the first one.
func SyncMilestoneRefs(refs []models.MilestoneRef, selectedIDs []string) []models.MilestoneRef {
	out := make([]models.MilestoneRef, 0, len(refs)+len(selectedIDs))
	seen := make(map[string]bool, len(refs)+len(selectedIDs))

	for _, r := range refs {
		if seen[r.MilestoneTemplateID] {
			continue
		}
		seen[r.MilestoneTemplateID] = true
		out = append(out, r)
	}
	for _, id := range selectedIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, DefaultMilestoneRef(id))
	}
	return out
}

// AnyOverrides reports whether at least one reference carries a user override.
func AnyOverrides(refs []models.MilestoneRef) bool {
	for _, r := range refs {
		if r.HasOverrides() {
			return true
		}
	}
	return false
}

// ReorderMilestoneRefs applies the drag-and-drop order to the references.
// The pass is skipped when no reference has an override yet, which keeps
// the initial load from rewriting an order nobody touched. The second
// result reports whether the order changed.
func ReorderMilestoneRefs(refs []models.MilestoneRef, orderedIDs []string) ([]models.MilestoneRef, bool) {
	if !AnyOverrides(refs) {
		return refs, false
	}
	return OrderMilestoneRefs(refs, orderedIDs)
}

// OrderMilestoneRefs reorders refs to follow orderedIDs unconditionally.
// References missing from orderedIDs keep their relative order at the end.
func OrderMilestoneRefs(refs []models.MilestoneRef, orderedIDs []string) ([]models.MilestoneRef, bool) {
	byID := make(map[string]models.MilestoneRef, len(refs))
	for _, r := range refs {
		if _, dup := byID[r.MilestoneTemplateID]; !dup {
			byID[r.MilestoneTemplateID] = r
		}
	}

	out := make([]models.MilestoneRef, 0, len(byID))
	placed := make(map[string]bool, len(byID))
	for _, id := range orderedIDs {
		r, ok := byID[id]
		if !ok || placed[id] {
			continue
		}
		placed[id] = true
		out = append(out, r)
	}
	for _, r := range refs {
		if placed[r.MilestoneTemplateID] {
			continue
		}
		placed[r.MilestoneTemplateID] = true
		out = append(out, r)
	}

	changed := len(out) != len(refs)
	for i := 0; !changed && i < len(out); i++ {
		changed = out[i].MilestoneTemplateID != refs[i].MilestoneTemplateID
	}
	return out, changed
}

// UpsertMilestoneRef replaces the reference with the same template id, or
// appends ref when there is none.
func UpsertMilestoneRef(refs []models.MilestoneRef, ref models.MilestoneRef) []models.MilestoneRef {
	out := make([]models.MilestoneRef, 0, len(refs)+1)
	replaced := false
	for _, r := range refs {
		if r.MilestoneTemplateID == ref.MilestoneTemplateID {
			if replaced {
				continue
			}
			out = append(out, ref)
			replaced = true
			continue
		}
		out = append(out, r)
	}
	if !replaced {
		out = append(out, ref)
	}
	return out
}

// RemoveMilestoneRef drops every reference to milestoneTemplateID.
func RemoveMilestoneRef(refs []models.MilestoneRef, milestoneTemplateID string) []models.MilestoneRef {
	out := make([]models.MilestoneRef, 0, len(refs))
	for _, r := range refs {
		if r.MilestoneTemplateID != milestoneTemplateID {
			out = append(out, r)
		}
	}
	return out
}

// FindMilestoneRef returns the reference for milestoneTemplateID.
func FindMilestoneRef(refs []models.MilestoneRef, milestoneTemplateID string) (models.MilestoneRef, bool) {
	for _, r := range refs {
		if r.MilestoneTemplateID == milestoneTemplateID {
			return r, true
		}
	}
	return models.MilestoneRef{}, false
}
