package notifications

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func seedNotifications(t *testing.T, service *Service, count int, userID string) {
	t.Helper()
	base := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	for index := 0; index < count; index++ {
		notification := Notification{
			ID:        fmt.Sprintf("%s-%03d", userID, index),
			UserID:    userID,
			Title:     "Habit Reminder",
			Message:   "Don't forget",
			Type:      TypeReminder,
			CreatedAt: base.Add(time.Duration(index) * time.Minute),
		}
		if err := service.store.Insert(context.Background(), &notification); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
}

func newTestNotificationService(t *testing.T, listener ChangeListener) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{
		Database: openTestDatabase(t),
		Listener: listener,
		Clock:    func() time.Time { return time.Date(2024, time.March, 2, 8, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func TestListCapsAtMostRecentFifty(t *testing.T) {
	service := newTestNotificationService(t, nil)
	seedNotifications(t, service, 55, "user-1")
	seedNotifications(t, service, 3, "user-2")

	notifications, err := service.List(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(notifications) != 50 {
		t.Fatalf("expected 50 notifications, got %d", len(notifications))
	}
	if notifications[0].ID != "user-1-054" {
		t.Fatalf("expected newest first, got %s", notifications[0].ID)
	}
	if notifications[49].ID != "user-1-005" {
		t.Fatalf("expected oldest five to be cut, got %s", notifications[49].ID)
	}
	for _, notification := range notifications {
		if notification.UserID != "user-1" {
			t.Fatalf("leaked notification of %s", notification.UserID)
		}
	}
}

func TestMarkReadIsScopedToOwner(t *testing.T) {
	listener := &recordingListener{}
	service := newTestNotificationService(t, listener)
	seedNotifications(t, service, 1, "user-1")
	ctx := context.Background()

	err := service.MarkRead(ctx, "user-2", "user-1-000")
	if !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected not found for foreign notification, got %v", err)
	}
	if err := service.MarkRead(ctx, "user-1", "user-1-000"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	unread, err := service.UnreadCount(ctx, "user-1")
	if err != nil {
		t.Fatalf("unread count failed: %v", err)
	}
	if unread != 0 {
		t.Fatalf("expected no unread notifications, got %d", unread)
	}
	if len(listener.changes) != 1 || listener.changes[0].Kind != ChangeRead {
		t.Fatalf("expected one read change, got %#v", listener.changes)
	}
}

func TestMarkAllReadOnlyTouchesCaller(t *testing.T) {
	service := newTestNotificationService(t, nil)
	seedNotifications(t, service, 4, "user-1")
	seedNotifications(t, service, 2, "user-2")
	ctx := context.Background()

	changed, err := service.MarkAllRead(ctx, "user-1")
	if err != nil {
		t.Fatalf("mark all failed: %v", err)
	}
	if changed != 4 {
		t.Fatalf("expected four notifications marked, got %d", changed)
	}
	again, err := service.MarkAllRead(ctx, "user-1")
	if err != nil {
		t.Fatalf("second mark all failed: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected second pass to change nothing, got %d", again)
	}
	unread, err := service.UnreadCount(ctx, "user-2")
	if err != nil {
		t.Fatalf("unread count failed: %v", err)
	}
	if unread != 2 {
		t.Fatalf("expected other user untouched, got %d unread", unread)
	}
}

func TestServiceRejectsMissingUser(t *testing.T) {
	service := newTestNotificationService(t, nil)
	_, err := service.List(context.Background(), " ")
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "notifications.list.invalid_user_id" {
		t.Fatalf("expected invalid user id code, got %v", err)
	}
}
