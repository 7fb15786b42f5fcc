package notification

import (
	"github.com/Marga-Ghale/ora-template-studio/internal/socket"
	"github.com/Marga-Ghale/ora-template-studio/internal/types"
	"go.uber.org/zap"
)

// Toast is the short feedback shown after every mutation.
type Toast struct {
	Level   types.ToastLevel `json:"level"`
	Title   string           `json:"title"`
	Message string           `json:"message,omitempty"`
}

func Success(title, message string) Toast {
	return Toast{Level: types.ToastSuccess, Title: title, Message: message}
}

func Failure(title, message string) Toast {
	return Toast{Level: types.ToastError, Title: title, Message: message}
}

func Info(title, message string) Toast {
	return Toast{Level: types.ToastInfo, Title: title, Message: message}
}

// Notifier is what the composition services use to reach the user.
type Notifier interface {
	Toast(userID string, t Toast)
	DraftStatus(userID string, saving bool, lastSavedTimestamp *int64)
	SessionUpdated(sessionID string, payload map[string]interface{})
	SessionClosed(sessionID, reason string)
}

// Service delivers notifications over the WebSocket broadcaster and logs
// every toast. A nil broadcaster only logs.
type Service struct {
	broadcaster *socket.Broadcaster
	log         *zap.Logger
}

func NewService(broadcaster *socket.Broadcaster, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{broadcaster: broadcaster, log: log.Named("notification")}
}

func (s *Service) Toast(userID string, t Toast) {
	fields := []zap.Field{
		zap.String("user_id", userID),
		zap.String("level", string(t.Level)),
		zap.String("title", t.Title),
	}
	if t.Level == types.ToastError {
		s.log.Warn("Toast", append(fields, zap.String("message", t.Message))...)
	} else {
		s.log.Debug("Toast", fields...)
	}

	if s.broadcaster == nil {
		return
	}
	payload := map[string]interface{}{
		"level": string(t.Level),
		"title": t.Title,
	}
	if t.Message != "" {
		payload["message"] = t.Message
	}
	s.broadcaster.SendToast(userID, payload)
}

func (s *Service) DraftStatus(userID string, saving bool, lastSavedTimestamp *int64) {
	if s.broadcaster != nil {
		s.broadcaster.SendDraftStatus(userID, saving, lastSavedTimestamp)
	}
}

func (s *Service) SessionUpdated(sessionID string, payload map[string]interface{}) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastSessionUpdated(sessionID, payload)
	}
}

func (s *Service) SessionClosed(sessionID, reason string) {
	s.log.Debug("Session closed", zap.String("session_id", sessionID), zap.String("reason", reason))
	if s.broadcaster != nil {
		s.broadcaster.BroadcastSessionClosed(sessionID, reason)
	}
}
