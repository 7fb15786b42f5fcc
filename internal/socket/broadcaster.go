package socket

// Broadcaster provides high-level methods for broadcasting events
type Broadcaster struct {
	hub *Hub
}

func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// ============================================
// User feedback
// ============================================

// SendToast delivers a toast to every connection of userID.
func (b *Broadcaster) SendToast(userID string, toast map[string]interface{}) {
	b.hub.SendToUser(userID, MessageToast, toast)
}

// SendDraftStatus tells the user whether an autosave is in flight.
func (b *Broadcaster) SendDraftStatus(userID string, saving bool, lastSavedTimestamp *int64) {
	msgType := MessageDraftSaved
	if saving {
		msgType = MessageDraftSaving
	}
	payload := map[string]interface{}{"saving": saving}
	if lastSavedTimestamp != nil {
		payload["lastSavedTimestamp"] = *lastSavedTimestamp
	}
	b.hub.SendToUser(userID, msgType, payload)
}

// ============================================
// Composition sessions
// ============================================

// BroadcastSessionUpdated tells every viewer of a session that it changed.
func (b *Broadcaster) BroadcastSessionUpdated(sessionID string, payload map[string]interface{}) {
	b.hub.SendToRoom(SessionRoom(sessionID), MessageSessionUpdated, payload)
}

// BroadcastSessionClosed tells viewers the session ended.
func (b *Broadcaster) BroadcastSessionClosed(sessionID, reason string) {
	b.hub.SendToRoom(SessionRoom(sessionID), MessageSessionClosed, map[string]interface{}{
		"sessionId": sessionID,
		"reason":    reason,
	})
}
