package notifications

import (
	"errors"
	"time"
)

// Type classifies a notification for presentation.
type Type string

const (
	TypeReminder Type = "reminder"
	TypeStreak   Type = "streak"
	TypeSystem   Type = "system"
)

var (
	// ErrNotificationNotFound indicates the notification does not exist or belongs to another user.
	ErrNotificationNotFound = errors.New("notifications: notification not found")
	// ErrInvalidType indicates a notification type outside the supported set.
	ErrInvalidType = errors.New("notifications: invalid type")
)

func (t Type) valid() bool {
	switch t {
	case TypeReminder, TypeStreak, TypeSystem:
		return true
	default:
		return false
	}
}

// Notification is an in-app message. Only its read flag ever changes after creation.
type Notification struct {
	ID        string    `gorm:"column:id;primaryKey;size:64;not null"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index:idx_notifications_user_created,priority:1"`
	Title     string    `gorm:"column:title;size:200;not null"`
	Message   string    `gorm:"column:message;type:text;not null"`
	Type      Type      `gorm:"column:type;size:16;not null"`
	Read      bool      `gorm:"column:is_read;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_notifications_user_created,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Notification) TableName() string {
	return "notifications"
}
