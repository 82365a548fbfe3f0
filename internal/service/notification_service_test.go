package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-internship-api/internal/dto"
	"github.com/noah-isme/sma-internship-api/internal/models"
	appErrors "github.com/noah-isme/sma-internship-api/pkg/errors"
)

type notificationRepoStub struct {
	rows      []models.Notification
	created   []models.Notification
	createErr error
}

func (r *notificationRepoStub) ListByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range r.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *notificationRepoStub) CountUnread(ctx context.Context, userID string) (int, error) {
	count := 0
	for _, n := range r.rows {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *notificationRepoStub) Create(ctx context.Context, n *models.Notification) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, *n)
	return nil
}

func (r *notificationRepoStub) find(userID, id string) int {
	for i, n := range r.rows {
		if n.ID == id && n.UserID == userID {
			return i
		}
	}
	return -1
}

func (r *notificationRepoStub) MarkRead(ctx context.Context, userID, id string) error {
	i := r.find(userID, id)
	if i < 0 {
		return sql.ErrNoRows
	}
	r.rows[i].IsRead = true
	return nil
}

func (r *notificationRepoStub) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	var n int64
	for i := range r.rows {
		if r.rows[i].UserID == userID && !r.rows[i].IsRead {
			r.rows[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (r *notificationRepoStub) Delete(ctx context.Context, userID, id string) error {
	i := r.find(userID, id)
	if i < 0 {
		return sql.ErrNoRows
	}
	r.rows = append(r.rows[:i], r.rows[i+1:]...)
	return nil
}

type userLookupStub map[string]bool

func (u userLookupStub) Exists(ctx context.Context, id string) (bool, error) {
	return u[id], nil
}

func seededInbox() *notificationRepoStub {
	return &notificationRepoStub{rows: []models.Notification{
		{ID: "n1", UserID: "u1", Title: "a"},
		{ID: "n2", UserID: "u1", Title: "b", IsRead: true},
		{ID: "n3", UserID: "u2", Title: "c"},
	}}
}

func TestNotificationListReturnsUnreadCount(t *testing.T) {
	svc := NewNotificationService(seededInbox(), nil, nil, zap.NewNop())

	items, unread, err := svc.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 1, unread)

	items, unread, err = svc.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Zero(t, unread)
}

func TestNotificationOtherUsersRowsAreInvisible(t *testing.T) {
	repo := seededInbox()
	svc := NewNotificationService(repo, nil, nil, zap.NewNop())

	err := svc.MarkRead(context.Background(), "u1", "n3")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	err = svc.Delete(context.Background(), "u1", "n3")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.False(t, repo.rows[2].IsRead)
	assert.Len(t, repo.rows, 3)
}

func TestNotificationMarkAndDelete(t *testing.T) {
	repo := seededInbox()
	svc := NewNotificationService(repo, nil, nil, zap.NewNop())

	require.NoError(t, svc.MarkRead(context.Background(), "u1", "n1"))
	assert.True(t, repo.rows[0].IsRead)

	updated, err := svc.MarkAllRead(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	require.NoError(t, svc.Delete(context.Background(), "u1", "n2"))
	assert.Len(t, repo.rows, 2)
}

func TestCreateResumeRejectionEscapesReason(t *testing.T) {
	repo := &notificationRepoStub{}
	svc := NewNotificationService(repo, userLookupStub{"s1": true}, nil, zap.NewNop())

	n, err := svc.CreateResumeRejection(context.Background(), dto.ResumeRejectionRequest{
		StudentID: "s1",
		Reason:    "<b>missing</b> photo",
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "s1", n.UserID)
	assert.Contains(t, n.Message, "returned by Teacher.")
	assert.Contains(t, n.Message, "&lt;b&gt;missing&lt;/b&gt; photo")
	assert.Nil(t, n.LinkURL)
}

func TestCreateResumeRejectionErrors(t *testing.T) {
	repo := &notificationRepoStub{}
	svc := NewNotificationService(repo, userLookupStub{"s1": true}, nil, zap.NewNop())

	_, err := svc.CreateResumeRejection(context.Background(), dto.ResumeRejectionRequest{StudentID: "s1", Reason: "  "})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateResumeRejection(context.Background(), dto.ResumeRejectionRequest{StudentID: "ghost", Reason: "x"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	repo.createErr = errors.New("db down")
	_, err = svc.CreateResumeRejection(context.Background(), dto.ResumeRejectionRequest{StudentID: "s1", Reason: "x"})
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}
