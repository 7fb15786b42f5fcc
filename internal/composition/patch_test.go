package composition

import (
	"testing"

	"github.com/Marga-Ghale/ora-template-studio/internal/models"
	"github.com/Marga-Ghale/ora-template-studio/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveIndex(t *testing.T) {
	s := []string{"a", "b", "c"}

	assert.Equal(t, []string{"c", "a", "b"}, MoveIndex(s, 2, 0))
	assert.Equal(t, []string{"b", "c", "a"}, MoveIndex(s, 0, 2))
	assert.Equal(t, []string{"a", "b", "c"}, MoveIndex(s, 5, 0))
	assert.Equal(t, []string{"a", "b", "c"}, MoveIndex(s, 0, -1))
	assert.Equal(t, []string{"a", "b", "c"}, s)
}

func TestApplyPhasePatches(t *testing.T) {
	t.Run("added phase lands at the end of its milestone", func(t *testing.T) {
		sel := sampleSelection()
		out := ApplyPhaseAdded(sel, "m1", models.Phase{ID: "p9", Name: "Review"})

		require.Len(t, out[0].Phases, 3)
		assert.Equal(t, "p9", out[0].Phases[2].ID)
		assert.NotNil(t, out[0].Phases[2].Deliverables)
		assert.Len(t, sel[0].Phases, 2)
	})

	t.Run("updated phase keeps local deliverables when omitted", func(t *testing.T) {
		out := ApplyPhaseUpdated(sampleSelection(), "m1", models.Phase{ID: "p1", Name: "Contracts"})

		assert.Equal(t, "Contracts", out[0].Phases[0].Name)
		assert.Len(t, out[0].Phases[0].Deliverables, 2)
	})

	t.Run("deleted phase strips references to its deliverables", func(t *testing.T) {
		sel := sampleSelection()
		sel[1].Phases[0].Deliverables[0].Precedence = []models.PrecedenceRef{{DeliverableID: "d1"}, {DeliverableID: "x"}}

		out := ApplyPhaseDeleted(sel, "m1", "p1")
		require.Len(t, out[0].Phases, 1)
		assert.Equal(t, []models.PrecedenceRef{{DeliverableID: "x"}}, out[1].Phases[0].Deliverables[0].Precedence)
		assert.Len(t, sel[1].Phases[0].Deliverables[0].Precedence, 2)
	})
}

func TestApplyDeliverablePatches(t *testing.T) {
	t.Run("add and update", func(t *testing.T) {
		out := ApplyDeliverableAdded(sampleSelection(), "m1", "p2", models.Deliverable{ID: "d9", Name: "Plan", Priority: types.PriorityLow})
		require.Len(t, out[0].Phases[1].Deliverables, 1)

		out = ApplyDeliverableUpdated(out, "m1", "p2", models.Deliverable{ID: "d9", Name: "Plan v2", Priority: types.PriorityHigh})
		assert.Equal(t, "Plan v2", out[0].Phases[1].Deliverables[0].Name)
		assert.Equal(t, types.PriorityHigh, out[0].Phases[1].Deliverables[0].Priority)
	})

	t.Run("delete strips references", func(t *testing.T) {
		sel := sampleSelection()
		sel[1].Phases[0].Deliverables[0].Precedence = []models.PrecedenceRef{{DeliverableID: "d2"}}

		out := ApplyDeliverableDeleted(sel, "m1", "p1", "d2")
		assert.Len(t, out[0].Phases[0].Deliverables, 1)
		assert.Empty(t, out[1].Phases[0].Deliverables[0].Precedence)
	})
}

func TestReplaceMilestone(t *testing.T) {
	out, ok := ReplaceMilestone(sampleSelection(), models.MilestoneTemplate{ID: "m2", Name: "Payments"})
	require.True(t, ok)
	assert.Equal(t, "Payments", out[1].Name)

	_, ok = ReplaceMilestone(sampleSelection(), models.MilestoneTemplate{ID: "nope"})
	assert.False(t, ok)
}

func TestFindOwners(t *testing.T) {
	sel := sampleSelection()

	owner, ok := FindPhaseOwner(sel, "p3")
	require.True(t, ok)
	assert.Equal(t, "m2", owner)

	m, p, ok := FindDeliverableOwner(sel, "d2")
	require.True(t, ok)
	assert.Equal(t, "m1", m)
	assert.Equal(t, "p1", p)

	d, ok := FindDeliverable(sel, "d3")
	require.True(t, ok)
	assert.Equal(t, "Send invoice", d.Name)

	_, _, ok = FindDeliverableOwner(sel, "missing")
	assert.False(t, ok)
}
