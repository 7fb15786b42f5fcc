package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	sqlxtypes "github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (ActivityRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewActivityRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestActivityRepository_Create(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	templateID := "pt-1"

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO composition_activities")).
		WithArgs("template_created", "u1", "s1", "pt-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("a1", now))

	a := &Activity{Action: "template_created", UserID: "u1", SessionID: "s1", TemplateID: &templateID}
	require.NoError(t, repo.Create(context.Background(), a))
	assert.Equal(t, "a1", a.ID)
	assert.Equal(t, now, a.CreatedAt)
	assert.Equal(t, sqlxtypes.JSONText(`{}`), a.Metadata)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepository_FindByUser(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "action", "user_id", "session_id", "template_id", "metadata", "created_at"}).
		AddRow("a2", "draft_recovered", "u1", "s1", nil, []byte(`{"slot":"create"}`), now).
		AddRow("a1", "session_opened", "u1", "s1", "pt-1", []byte(`{}`), now.Add(-time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta("FROM composition_activities WHERE user_id = $1")).
		WithArgs("u1", 20).
		WillReturnRows(rows)

	out, err := repo.FindByUser(context.Background(), "u1", 20)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "draft_recovered", out[0].Action)
	assert.Nil(t, out[0].TemplateID)
	assert.JSONEq(t, `{"slot":"create"}`, string(out[0].Metadata))
	require.NotNil(t, out[1].TemplateID)
	assert.Equal(t, "pt-1", *out[1].TemplateID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepository_FindBySessionEmpty(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE session_id = $1")).
		WithArgs("s9").
		WillReturnRows(sqlmock.NewRows([]string{"id", "action", "user_id", "session_id", "template_id", "metadata", "created_at"}))

	out, err := repo.FindBySession(context.Background(), "s9")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NotNil(t, out)
}

func TestActivityRepository_DeleteOlderThan(t *testing.T) {
	repo, mock := newMock(t)
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM composition_activities WHERE created_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
