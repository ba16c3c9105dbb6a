package notifications

import "time"

// ChangeKind enumerates notification writes observed by a ChangeListener.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "notification-created"
	ChangeRead    ChangeKind = "notification-read"
)

// Change describes notifications that were created or marked read.
type Change struct {
	UserID          string
	Kind            ChangeKind
	NotificationIDs []string
	Timestamp       time.Time
}
