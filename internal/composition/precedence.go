package composition

import (
	"errors"
	"strings"

	"github.com/Marga-Ghale/ora-template-studio/internal/models"
)

var (
	ErrPrecedenceCycle    = errors.New("precedence would create a cycle")
	ErrUnknownDeliverable = errors.New("deliverable is not part of the composition")
)

// PrecedenceManager edits the precedence list of a single deliverable. The
// candidate pool is read-only: only the current deliverable's list changes.
type PrecedenceManager struct {
	currentID  string
	precedence []models.PrecedenceRef
	pool       map[string]models.DeliverableView
}

// NewPrecedenceManager binds a manager to current, with pool being every
// deliverable currently in the composition (current may be among them).
func NewPrecedenceManager(current models.DeliverableView, pool []models.DeliverableView) *PrecedenceManager {
	m := &PrecedenceManager{
		currentID: current.ID,
		pool:      make(map[string]models.DeliverableView, len(pool)),
	}
	for _, d := range pool {
		m.pool[d.ID] = d
	}
	for _, ref := range current.Precedence {
		if ref.DeliverableID == current.ID || m.Contains(ref.DeliverableID) {
			continue
		}
		m.precedence = append(m.precedence, ref)
	}
	return m
}

// Toggle adds deliverableID to the precedence list when absent and removes it
// when present. It reports whether the reference is present afterwards.
// Toggling the current deliverable itself is a no-op.
func (m *PrecedenceManager) Toggle(deliverableID string) (bool, error) {
	if deliverableID == m.currentID {
		return false, nil
	}
	if m.Contains(deliverableID) {
		m.Remove(deliverableID)
		return false, nil
	}
	if _, ok := m.pool[deliverableID]; !ok {
		return false, ErrUnknownDeliverable
	}
	if m.reaches(deliverableID, m.currentID) {
		return false, ErrPrecedenceCycle
	}
	m.precedence = append(m.precedence, models.PrecedenceRef{DeliverableID: deliverableID})
	return true, nil
}

// Remove drops deliverableID from the precedence list if present.
func (m *PrecedenceManager) Remove(deliverableID string) {
	out := m.precedence[:0]
	for _, ref := range m.precedence {
		if ref.DeliverableID != deliverableID {
			out = append(out, ref)
		}
	}
	m.precedence = out
}

// Contains reports whether deliverableID currently precedes the deliverable.
func (m *PrecedenceManager) Contains(deliverableID string) bool {
	for _, ref := range m.precedence {
		if ref.DeliverableID == deliverableID {
			return true
		}
	}
	return false
}

// Precedence returns a copy of the current list, never nil.
func (m *PrecedenceManager) Precedence() []models.PrecedenceRef {
	return clonePrecedence(m.precedence)
}

// reaches walks precedence edges from start and reports whether target is
// reachable. The current deliverable's edges come from the manager, the rest
// from the pool.
func (m *PrecedenceManager) reaches(start, target string) bool {
	visited := make(map[string]bool)
	stack := []string{start}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == target {
			return true
		}
		if visited[id] {
			continue
		}
		visited[id] = true

		var edges []models.PrecedenceRef
		if id == m.currentID {
			edges = m.precedence
		} else {
			edges = m.pool[id].Precedence
		}
		for _, ref := range edges {
			if !visited[ref.DeliverableID] {
				stack = append(stack, ref.DeliverableID)
			}
		}
	}
	return false
}

// ============================================
// Candidate listing
// ============================================

// CandidateFilter narrows the candidate list. Empty fields match everything.
type CandidateFilter struct {
	Search  string `form:"search"`
	PhaseID string `form:"phaseId"`
}

// CandidateGroup is the set of candidates belonging to one phase.
type CandidateGroup struct {
	PhaseID      string                   `json:"phaseId"`
	PhaseName    string                   `json:"phaseName"`
	PhaseOrder   string                   `json:"phaseOrder"`
	MilestoneID  string                   `json:"milestoneId"`
	Deliverables []models.DeliverableView `json:"deliverables"`
}

// ListCandidates returns every deliverable except currentID, grouped by
// owning phase in phase order. Deliverables whose phase is unknown are
// grouped last under their phase id.
func ListCandidates(all []models.DeliverableView, phases []models.PhaseView, currentID string, filter CandidateFilter) []CandidateGroup {
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	groups := []CandidateGroup{}
	index := make(map[string]int, len(phases))
	for _, p := range phases {
		index[p.ID] = len(groups)
		groups = append(groups, CandidateGroup{
			PhaseID:      p.ID,
			PhaseName:    p.Name,
			PhaseOrder:   p.Order,
			MilestoneID:  p.MilestoneID,
			Deliverables: []models.DeliverableView{},
		})
	}

	for _, d := range all {
		if d.ID == currentID {
			continue
		}
		if filter.PhaseID != "" && d.PhaseID != filter.PhaseID {
			continue
		}
		if search != "" && !matchesSearch(d, search) {
			continue
		}
		i, ok := index[d.PhaseID]
		if !ok {
			i = len(groups)
			index[d.PhaseID] = i
			groups = append(groups, CandidateGroup{PhaseID: d.PhaseID, Deliverables: []models.DeliverableView{}})
		}
		d.Precedence = clonePrecedence(d.Precedence)
		groups[i].Deliverables = append(groups[i].Deliverables, d)
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g.Deliverables) > 0 {
			out = append(out, g)
		}
	}
	return out
}

func matchesSearch(d models.DeliverableView, search string) bool {
	if strings.Contains(strings.ToLower(d.Name), search) {
		return true
	}
	return d.Description != nil && strings.Contains(strings.ToLower(*d.Description), search)
}

// PrecedenceGraphHasCycle reports whether the precedence edges across all
// deliverables contain a cycle. Used to validate a composition before submit.
func PrecedenceGraphHasCycle(all []models.DeliverableView) bool {
	edges := make(map[string][]models.PrecedenceRef, len(all))
	for _, d := range all {
		edges[d.ID] = d.Precedence
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(all))

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		for _, ref := range edges[id] {
			switch color[ref.DeliverableID] {
			case grey:
				return true
			case white:
				if visit(ref.DeliverableID) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, d := range all {
		if color[d.ID] == white && visit(d.ID) {
			return true
		}
	}
	return false
}
