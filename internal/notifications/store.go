package notifications

import (
	"context"

	"gorm.io/gorm"
)

// Store is the notification record accessor.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Find returns the user's most recent notifications, newest first.
func (s *Store) Find(ctx context.Context, userID string, limit int) ([]Notification, error) {
	var notifications []Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (s *Store) Insert(ctx context.Context, notification *Notification) error {
	return s.db.WithContext(ctx).Create(notification).Error
}

// MarkRead flags one of the user's notifications as read. It reports whether a record matched.
func (s *Store) MarkRead(ctx context.Context, notificationID string, userID string) (bool, error) {
	result := s.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("is_read", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkAllRead flags every unread notification of the user and returns the affected ids.
func (s *Store) MarkAllRead(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Notification{}).
			Where("user_id = ? AND is_read = ?", userID, false).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&Notification{}).
			Where("id IN ? AND user_id = ?", ids, userID).
			Update("is_read", true).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CountUnread returns the number of unread notifications the user has.
func (s *Store) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
