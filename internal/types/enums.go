package types

// Priority is the urgency attached to a deliverable.
type Priority string

// Deliverable priority values
const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// PositionType names the level of the template hierarchy a reposition targets.
type PositionType string

// Position types accepted by the change-position endpoint
const (
	PositionMilestone   PositionType = "milestone"
	PositionPhase       PositionType = "phase"
	PositionDeliverable PositionType = "deliverable"
)

// ToastLevel is the severity of a user-facing notification.
type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
	ToastInfo    ToastLevel = "info"
)

// Composition modes
const (
	ModeCreate = "create"
	ModeUpdate = "update"
)

// Activity actions recorded for composition sessions
const (
	ActivitySessionOpened   = "session_opened"
	ActivityDraftRecovered  = "draft_recovered"
	ActivityDraftDiscarded  = "draft_discarded"
	ActivityTemplateCreated = "template_created"
	ActivityTemplateUpdated = "template_updated"
)

// Valid values for validation
var ValidPriorities = []Priority{
	PriorityHigh, PriorityMedium, PriorityLow,
}

var ValidPositionTypes = []PositionType{
	PositionMilestone, PositionPhase, PositionDeliverable,
}

// Helper functions for validation
func IsValidPriority(priority Priority) bool {
	for _, p := range ValidPriorities {
		if p == priority {
			return true
		}
	}
	return false
}

func IsValidPositionType(positionType PositionType) bool {
	for _, t := range ValidPositionTypes {
		if t == positionType {
			return true
		}
	}
	return false
}
