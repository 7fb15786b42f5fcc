package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	sqlxtypes "github.com/jmoiron/sqlx/types"
)

// Activity is one entry of the composition activity log.
type Activity struct {
	ID         string             `json:"id" db:"id"`
	Action     string             `json:"action" db:"action"`
	UserID     string             `json:"userId" db:"user_id"`
	SessionID  string             `json:"sessionId" db:"session_id"`
	TemplateID *string            `json:"templateId,omitempty" db:"template_id"`
	Metadata   sqlxtypes.JSONText `json:"metadata" db:"metadata"`
	CreatedAt  time.Time          `json:"createdAt" db:"created_at"`
}

type ActivityRepository interface {
	Create(ctx context.Context, activity *Activity) error
	FindByUser(ctx context.Context, userID string, limit int) ([]*Activity, error)
	FindBySession(ctx context.Context, sessionID string) ([]*Activity, error)
	DeleteOlderThan(ctx context.Context, olderThan time.Time) (int, error)
}

type activityRepository struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) ActivityRepository {
	return &activityRepository{db: db}
}

const activityColumns = `id, action, user_id, session_id, template_id, metadata, created_at`

func (r *activityRepository) Create(ctx context.Context, activity *Activity) error {
	if len(activity.Metadata) == 0 {
		activity.Metadata = sqlxtypes.JSONText(`{}`)
	}
	query := `
		INSERT INTO composition_activities (action, user_id, session_id, template_id, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return r.db.QueryRowxContext(ctx, query,
		activity.Action, activity.UserID, activity.SessionID, activity.TemplateID, activity.Metadata,
	).Scan(&activity.ID, &activity.CreatedAt)
}

func (r *activityRepository) FindByUser(ctx context.Context, userID string, limit int) ([]*Activity, error) {
	query := `SELECT ` + activityColumns + `
		FROM composition_activities WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	activities := []*Activity{}
	if err := r.db.SelectContext(ctx, &activities, query, userID, limit); err != nil {
		return nil, err
	}
	return activities, nil
}

func (r *activityRepository) FindBySession(ctx context.Context, sessionID string) ([]*Activity, error) {
	query := `SELECT ` + activityColumns + `
		FROM composition_activities WHERE session_id = $1
		ORDER BY created_at ASC`

	activities := []*Activity{}
	if err := r.db.SelectContext(ctx, &activities, query, sessionID); err != nil {
		return nil, err
	}
	return activities, nil
}

func (r *activityRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM composition_activities WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}
