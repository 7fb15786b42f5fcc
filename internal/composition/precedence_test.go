package composition

import (
	"testing"

	"github.com/Marga-Ghale/ora-template-studio/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findDeliverable(t *testing.T, v models.Views, id string) models.DeliverableView {
	t.Helper()
	for _, d := range v.Deliverables {
		if d.ID == id {
			return d
		}
	}
	t.Fatalf("deliverable %s not found", id)
	return models.DeliverableView{}
}

func TestPrecedenceManager_Toggle(t *testing.T) {
	v := DeriveViews(sampleSelection(), LocalEntities{})

	t.Run("cross-phase toggle adds then removes", func(t *testing.T) {
		invoice := findDeliverable(t, v, "d3")
		m := NewPrecedenceManager(invoice, v.Deliverables)

		present, err := m.Toggle("d1")
		require.NoError(t, err)
		assert.True(t, present)
		assert.Equal(t, []models.PrecedenceRef{{DeliverableID: "d1"}}, m.Precedence())

		present, err = m.Toggle("d1")
		require.NoError(t, err)
		assert.False(t, present)
		assert.Equal(t, []models.PrecedenceRef{}, m.Precedence())
	})

	t.Run("self reference is ignored", func(t *testing.T) {
		invoice := findDeliverable(t, v, "d3")
		m := NewPrecedenceManager(invoice, v.Deliverables)

		present, err := m.Toggle("d3")
		require.NoError(t, err)
		assert.False(t, present)
		assert.Empty(t, m.Precedence())
	})

	t.Run("self reference already stored is dropped on load", func(t *testing.T) {
		invoice := findDeliverable(t, v, "d3")
		invoice.Precedence = []models.PrecedenceRef{{DeliverableID: "d3"}, {DeliverableID: "d1"}, {DeliverableID: "d1"}}
		m := NewPrecedenceManager(invoice, v.Deliverables)

		assert.Equal(t, []models.PrecedenceRef{{DeliverableID: "d1"}}, m.Precedence())
	})

	t.Run("unknown deliverable is rejected", func(t *testing.T) {
		m := NewPrecedenceManager(findDeliverable(t, v, "d3"), v.Deliverables)

		_, err := m.Toggle("missing")
		assert.ErrorIs(t, err, ErrUnknownDeliverable)
	})

	t.Run("edge closing a cycle is rejected", func(t *testing.T) {
		pool := DeriveViews(sampleSelection(), LocalEntities{}).Deliverables
		// d1 <- d2 <- d3 already; adding d3 as predecessor of d1 closes it.
		for i := range pool {
			switch pool[i].ID {
			case "d2":
				pool[i].Precedence = []models.PrecedenceRef{{DeliverableID: "d1"}}
			case "d3":
				pool[i].Precedence = []models.PrecedenceRef{{DeliverableID: "d2"}}
			}
		}
		var signContract models.DeliverableView
		for _, d := range pool {
			if d.ID == "d1" {
				signContract = d
			}
		}

		m := NewPrecedenceManager(signContract, pool)
		_, err := m.Toggle("d3")
		assert.ErrorIs(t, err, ErrPrecedenceCycle)
		assert.Empty(t, m.Precedence())
		assert.True(t, PrecedenceGraphHasCycle(withPrecedence(pool, "d1", "d3")))
	})

	t.Run("pool is never mutated", func(t *testing.T) {
		pool := DeriveViews(sampleSelection(), LocalEntities{}).Deliverables
		before := DeriveViews(sampleSelection(), LocalEntities{}).Deliverables

		m := NewPrecedenceManager(pool[2], pool)
		_, err := m.Toggle("d1")
		require.NoError(t, err)
		m.Remove("d1")

		assert.Equal(t, before, pool)
	})
}

func withPrecedence(pool []models.DeliverableView, id, dep string) []models.DeliverableView {
	out := make([]models.DeliverableView, len(pool))
	copy(out, pool)
	for i := range out {
		if out[i].ID == id {
			out[i].Precedence = append(clonePrecedence(out[i].Precedence), models.PrecedenceRef{DeliverableID: dep})
		}
	}
	return out
}

func TestPrecedenceGraphHasCycle(t *testing.T) {
	v := DeriveViews(sampleSelection(), LocalEntities{})
	assert.False(t, PrecedenceGraphHasCycle(v.Deliverables))
	assert.False(t, PrecedenceGraphHasCycle(withPrecedence(v.Deliverables, "d3", "d1")))
	assert.True(t, PrecedenceGraphHasCycle(withPrecedence(withPrecedence(v.Deliverables, "d3", "d1"), "d1", "d3")))
}

func TestListCandidates(t *testing.T) {
	v := DeriveViews(sampleSelection(), LocalEntities{})

	t.Run("excludes current and groups by phase", func(t *testing.T) {
		groups := ListCandidates(v.Deliverables, v.Phases, "d1", CandidateFilter{})

		require.Len(t, groups, 2)
		assert.Equal(t, "p1", groups[0].PhaseID)
		assert.Equal(t, "1.1", groups[0].PhaseOrder)
		require.Len(t, groups[0].Deliverables, 1)
		assert.Equal(t, "d2", groups[0].Deliverables[0].ID)
		assert.Equal(t, "p3", groups[1].PhaseID)
	})

	t.Run("filters by text and phase", func(t *testing.T) {
		groups := ListCandidates(v.Deliverables, v.Phases, "d1", CandidateFilter{Search: "INVOICE"})
		require.Len(t, groups, 1)
		assert.Equal(t, "d3", groups[0].Deliverables[0].ID)

		groups = ListCandidates(v.Deliverables, v.Phases, "d3", CandidateFilter{PhaseID: "p1"})
		require.Len(t, groups, 1)
		assert.Len(t, groups[0].Deliverables, 2)
	})

	t.Run("matches description", func(t *testing.T) {
		pool := make([]models.DeliverableView, len(v.Deliverables))
		copy(pool, v.Deliverables)
		pool[1].Description = strPtr("Passport and tax id")

		groups := ListCandidates(pool, v.Phases, "d1", CandidateFilter{Search: "passport"})
		require.Len(t, groups, 1)
		assert.Equal(t, "d2", groups[0].Deliverables[0].ID)
	})
}
