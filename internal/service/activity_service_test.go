package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Marga-Ghale/ora-template-studio/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryActivityRepo struct {
	created   []*repository.Activity
	lastLimit int
	olderThan time.Time
	createErr error
}

func (r *memoryActivityRepo) Create(ctx context.Context, a *repository.Activity) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, a)
	return nil
}

func (r *memoryActivityRepo) FindByUser(ctx context.Context, userID string, limit int) ([]*repository.Activity, error) {
	r.lastLimit = limit
	return r.created, nil
}

func (r *memoryActivityRepo) FindBySession(ctx context.Context, sessionID string) ([]*repository.Activity, error) {
	out := []*repository.Activity{}
	for _, a := range r.created {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryActivityRepo) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int, error) {
	r.olderThan = olderThan
	return 3, nil
}

func TestActivityService_Record(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, nil)
	ctx := context.Background()

	svc.Record(ctx, "template_created", "alice", "s1", "pt1", map[string]interface{}{"name": "Onboarding"})
	svc.Record(ctx, "session_opened", "alice", "s2", "", nil)

	require.Len(t, repo.created, 2)
	first := repo.created[0]
	require.NotNil(t, first.TemplateID)
	assert.Equal(t, "pt1", *first.TemplateID)
	assert.JSONEq(t, `{"name":"Onboarding"}`, first.Metadata.String())
	assert.Nil(t, repo.created[1].TemplateID)

	got, err := svc.GetSessionActivities(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "session_opened", got[0].Action)
}

func TestActivityService_RecordSwallowsErrors(t *testing.T) {
	repo := &memoryActivityRepo{createErr: errors.New("db down")}
	svc := NewActivityService(repo, nil)
	assert.NotPanics(t, func() {
		svc.Record(context.Background(), "session_opened", "alice", "s1", "", nil)
	})
}

func TestActivityService_LimitsAndPurge(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, nil)
	ctx := context.Background()

	_, err := svc.GetUserActivities(ctx, "alice", 1000)
	require.NoError(t, err)
	assert.Equal(t, DefaultActivityLimit, repo.lastLimit)

	_, err = svc.GetUserActivities(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, repo.lastLimit)

	n, err := svc.PurgeOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), repo.olderThan, time.Minute)
}

func TestActivityService_NilRepoIsNoop(t *testing.T) {
	svc := NewActivityService(nil, nil)
	ctx := context.Background()
	svc.Record(ctx, "session_opened", "alice", "s1", "", nil)

	got, err := svc.GetUserActivities(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
