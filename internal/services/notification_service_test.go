package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/bookhive/backend/internal/models"
	"github.com/anonto42/bookhive/backend/internal/workers"
	"github.com/anonto42/bookhive/backend/pkg/logger"
)

// fakeNotificationRepo keeps notifications in memory and applies the
// same dedup-window query as the real repository.
type fakeNotificationRepo struct {
	mu        sync.Mutex
	nextID    uint
	rows      []*models.Notification
	refreshes int
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{nextID: 1}
}

func (f *fakeNotificationRepo) CreateNotification(notification *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	notification.ID = f.nextID
	f.nextID++
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	stored := *notification
	f.rows = append(f.rows, &stored)
	return nil
}

func (f *fakeNotificationRepo) FindRecentDuplicate(recipientID uint, notifType models.NotificationType, sourceID string, since time.Time) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var newest *models.Notification
	for _, row := range f.rows {
		if row.RecipientID == recipientID && row.Type == notifType && row.SourceID == sourceID && !row.CreatedAt.Before(since) {
			if newest == nil || row.CreatedAt.After(newest.CreatedAt) {
				newest = row
			}
		}
	}
	if newest == nil {
		return nil, nil
	}
	copied := *newest
	return &copied, nil
}

func (f *fakeNotificationRepo) Refresh(id uint, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id {
			row.Message = message
			row.IsRead = false
			row.CreatedAt = time.Now()
			f.refreshes++
			return nil
		}
	}
	return fmt.Errorf("notification %d not found", id)
}

func (f *fakeNotificationRepo) GetByRecipientID(recipientID uint, page, limit int) ([]models.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, row := range f.rows {
		if row.RecipientID == recipientID {
			out = append(out, *row)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeNotificationRepo) GetUnreadCount(recipientID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, row := range f.rows {
		if row.RecipientID == recipientID && !row.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationRepo) MarkAsRead(notificationID, recipientID uint) error { return nil }
func (f *fakeNotificationRepo) MarkAllAsRead(recipientID uint) error              { return nil }

func (f *fakeNotificationRepo) countFor(recipientID uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, row := range f.rows {
		if row.RecipientID == recipientID {
			count++
		}
	}
	return count
}

// fakeUserRepo serves a static user set
type fakeUserRepo struct {
	users map[uint]*models.User
}

func newFakeUserRepo(ids ...uint) *fakeUserRepo {
	users := make(map[uint]*models.User, len(ids))
	for _, id := range ids {
		users[id] = &models.User{ID: id, Name: fmt.Sprintf("user-%d", id)}
	}
	return &fakeUserRepo{users: users}
}

func (f *fakeUserRepo) CreateUser(*models.User) error { return nil }

func (f *fakeUserRepo) GetUserByID(id uint) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d not found", id)
	}
	return user, nil
}

func (f *fakeUserRepo) GetUserByEmail(string) (*models.User, error) {
	return nil, fmt.Errorf("not found")
}

func (f *fakeUserRepo) GetUserByFirebaseUID(string) (*models.User, error) {
	return nil, fmt.Errorf("not found")
}

func (f *fakeUserRepo) GetUsersByIDs(ids []uint) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if user, ok := f.users[id]; ok {
			out = append(out, *user)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) UpdateFCMToken(uint, string) error { return nil }

func newNotificationServiceForTest(t *testing.T, notifications *fakeNotificationRepo, follows *fakeFollowRepo, users *fakeUserRepo) (NotificationService, *workers.FanoutPool) {
	t.Helper()
	pool := workers.NewFanoutPool(logger.NewNop(), 2, 2, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	pool.Start(ctx)

	svc := NewNotificationService(notifications, follows, users, pool, nil, 24*time.Hour, logger.NewNop())
	return svc, pool
}

func TestNotifyReplySkipsSelfReply(t *testing.T) {
	notifications := newFakeNotificationRepo()
	svc, _ := newNotificationServiceForTest(t, notifications, &fakeFollowRepo{}, newFakeUserRepo(1))

	reply := &models.Review{ID: 10, AuthorID: 1, BookID: "book-1"}
	// Replying under your own review produces no notification
	require.NoError(t, svc.NotifyReply(context.Background(), reply, 1))
	assert.Empty(t, notifications.rows)
}

func TestNotifyReplyCreatesOneNotification(t *testing.T) {
	notifications := newFakeNotificationRepo()
	svc, _ := newNotificationServiceForTest(t, notifications, &fakeFollowRepo{}, newFakeUserRepo(1, 2))

	reply := &models.Review{ID: 10, AuthorID: 2, BookID: "book-1"}
	require.NoError(t, svc.NotifyReply(context.Background(), reply, 1))

	require.Len(t, notifications.rows, 1)
	row := notifications.rows[0]
	assert.Equal(t, models.NotificationTypeReply, row.Type)
	assert.Equal(t, uint(1), row.RecipientID)
	assert.Equal(t, uint(2), row.ActorID)
	assert.Equal(t, "10", row.SourceID)
}

func TestNotifyDedupCollapsesIntoMostRecent(t *testing.T) {
	notifications := newFakeNotificationRepo()
	svc, _ := newNotificationServiceForTest(t, notifications, &fakeFollowRepo{}, newFakeUserRepo(1, 2))
	ctx := context.Background()

	reply := &models.Review{ID: 10, AuthorID: 2, BookID: "book-1"}
	require.NoError(t, svc.NotifyReply(ctx, reply, 1))
	require.NoError(t, svc.NotifyReply(ctx, reply, 1))
	require.NoError(t, svc.NotifyReply(ctx, reply, 1))

	assert.Len(t, notifications.rows, 1, "duplicates collapse instead of stacking")
	assert.Equal(t, 2, notifications.refreshes)
	assert.False(t, notifications.rows[0].IsRead, "a refreshed notification reads as new")
}

func TestFanoutNotifiesEveryFollowerOnce(t *testing.T) {
	notifications := newFakeNotificationRepo()
	follows := &fakeFollowRepo{followers: map[uint][]uint{1: {2, 3, 4}}}
	svc, pool := newNotificationServiceForTest(t, notifications, follows, newFakeUserRepo(1, 2, 3, 4))

	review := &models.Review{ID: 10, AuthorID: 1, BookID: "book-1", State: models.ReviewStateApproved}
	svc.FanoutReviewApproved(review)
	pool.Wait()

	for _, followerID := range []uint{2, 3, 4} {
		assert.Equal(t, 1, notifications.countFor(followerID))
	}
	assert.Equal(t, 0, notifications.countFor(1), "the author never hears about their own review")

	// Replaying the fan-out dedups per recipient
	svc.FanoutReviewApproved(review)
	pool.Wait()
	for _, followerID := range []uint{2, 3, 4} {
		assert.Equal(t, 1, notifications.countFor(followerID))
	}
}

func TestFanoutWithNoFollowersIsQuiet(t *testing.T) {
	notifications := newFakeNotificationRepo()
	svc, pool := newNotificationServiceForTest(t, notifications, &fakeFollowRepo{}, newFakeUserRepo(1))

	svc.FanoutReviewApproved(&models.Review{ID: 10, AuthorID: 1, BookID: "book-1"})
	pool.Wait()

	assert.Empty(t, notifications.rows)
}

func TestNotifyNewFollower(t *testing.T) {
	notifications := newFakeNotificationRepo()
	svc, _ := newNotificationServiceForTest(t, notifications, &fakeFollowRepo{}, newFakeUserRepo(1, 2))

	require.NoError(t, svc.NotifyNewFollower(context.Background(), 1, 2))

	require.Len(t, notifications.rows, 1)
	assert.Equal(t, models.NotificationTypeFollow, notifications.rows[0].Type)
	assert.Equal(t, uint(2), notifications.rows[0].RecipientID)
}
