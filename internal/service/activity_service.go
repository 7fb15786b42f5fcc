package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Marga-Ghale/ora-template-studio/internal/repository"
	sqlxtypes "github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"
)

// ============================================
// Activity Service
// ============================================

const DefaultActivityLimit = 50

// ActivityService defines activity log operations
type ActivityService interface {
	// Record logs a composition event. Failures are logged, never returned:
	// the activity log must not break the editor.
	Record(ctx context.Context, action, userID, sessionID, templateID string, metadata map[string]interface{})
	GetUserActivities(ctx context.Context, userID string, limit int) ([]*repository.Activity, error)
	GetSessionActivities(ctx context.Context, sessionID string) ([]*repository.Activity, error)
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}

type activityService struct {
	activityRepo repository.ActivityRepository
	log          *zap.Logger
}

// NewActivityService creates a new activity service. A nil repository turns
// it into a no-op.
func NewActivityService(activityRepo repository.ActivityRepository, log *zap.Logger) ActivityService {
	if log == nil {
		log = zap.NewNop()
	}
	return &activityService{activityRepo: activityRepo, log: log.Named("activity")}
}

func (s *activityService) Record(ctx context.Context, action, userID, sessionID, templateID string, metadata map[string]interface{}) {
	if s.activityRepo == nil {
		return
	}
	activity := &repository.Activity{
		Action:    action,
		UserID:    userID,
		SessionID: sessionID,
	}
	if templateID != "" {
		activity.TemplateID = &templateID
	}
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err == nil {
			activity.Metadata = sqlxtypes.JSONText(raw)
		}
	}
	if err := s.activityRepo.Create(ctx, activity); err != nil {
		s.log.Warn("Failed to record activity",
			zap.String("action", action),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

func (s *activityService) GetUserActivities(ctx context.Context, userID string, limit int) ([]*repository.Activity, error) {
	if s.activityRepo == nil {
		return []*repository.Activity{}, nil
	}
	if limit <= 0 || limit > 200 {
		limit = DefaultActivityLimit
	}
	return s.activityRepo.FindByUser(ctx, userID, limit)
}

func (s *activityService) GetSessionActivities(ctx context.Context, sessionID string) ([]*repository.Activity, error) {
	if s.activityRepo == nil {
		return []*repository.Activity{}, nil
	}
	return s.activityRepo.FindBySession(ctx, sessionID)
}

func (s *activityService) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	if s.activityRepo == nil {
		return 0, nil
	}
	return s.activityRepo.DeleteOlderThan(ctx, time.Now().Add(-retention))
}
