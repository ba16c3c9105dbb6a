package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultListLimit = 50

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: operation + "." + reason, err: cause}
}

var errInvalidUserID = errors.New("user id is required")

type ServiceConfig struct {
	Database  *gorm.DB
	ListLimit int
	Clock     func() time.Time
	Listener  ChangeListener
	Logger    *zap.Logger
}

// Service exposes the caller-facing notification queries and read-state transitions.
type Service struct {
	store     *Store
	listLimit int
	clock     func() time.Time
	listener  ChangeListener
	logger    *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError("notifications.service.new", "missing_database", errMissingDispatcherDatabase)
	}
	limit := cfg.ListLimit
	if limit <= 0 {
		limit = defaultListLimit
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     NewStore(cfg.Database),
		listLimit: limit,
		clock:     clock,
		listener:  cfg.Listener,
		logger:    logger,
	}, nil
}

// List returns the caller's most recent notifications, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Notification, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, newServiceError("notifications.list", "invalid_user_id", errInvalidUserID)
	}
	notifications, err := s.store.Find(ctx, userID, s.listLimit)
	if err != nil {
		s.logError("notifications.list", "query_failed", err, zap.String("user_id", userID))
		return nil, newServiceError("notifications.list", "query_failed", err)
	}
	return notifications, nil
}

// UnreadCount returns how many of the caller's notifications are unread.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, newServiceError("notifications.unread_count", "invalid_user_id", errInvalidUserID)
	}
	count, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		s.logError("notifications.unread_count", "query_failed", err, zap.String("user_id", userID))
		return 0, newServiceError("notifications.unread_count", "query_failed", err)
	}
	return count, nil
}

// MarkRead flags one of the caller's notifications as read.
func (s *Service) MarkRead(ctx context.Context, userID string, notificationID string) error {
	userID = strings.TrimSpace(userID)
	notificationID = strings.TrimSpace(notificationID)
	if userID == "" {
		return newServiceError("notifications.mark_read", "invalid_user_id", errInvalidUserID)
	}
	if notificationID == "" {
		return newServiceError("notifications.mark_read", "not_found", ErrNotificationNotFound)
	}
	matched, err := s.store.MarkRead(ctx, notificationID, userID)
	if err != nil {
		s.logError("notifications.mark_read", "update_failed", err, zap.String("notification_id", notificationID))
		return newServiceError("notifications.mark_read", "update_failed", err)
	}
	if !matched {
		return newServiceError("notifications.mark_read", "not_found", ErrNotificationNotFound)
	}
	s.notify(userID, []string{notificationID})
	return nil
}

// MarkAllRead flags every unread notification of the caller and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, newServiceError("notifications.mark_all_read", "invalid_user_id", errInvalidUserID)
	}
	ids, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		s.logError("notifications.mark_all_read", "update_failed", err, zap.String("user_id", userID))
		return 0, newServiceError("notifications.mark_all_read", "update_failed", err)
	}
	s.notify(userID, ids)
	return len(ids), nil
}

func (s *Service) notify(userID string, ids []string) {
	if s.listener == nil || len(ids) == 0 {
		return
	}
	s.listener.NotificationsChanged(Change{
		UserID:          userID,
		Kind:            ChangeRead,
		NotificationIDs: ids,
		Timestamp:       s.clock().UTC(),
	})
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("notifications service error", attrs...)
}
