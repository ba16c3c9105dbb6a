package users

import (
	"encoding/json"
	"strings"
	"time"
)

// User is the local profile mirrored from the external identity service.
type User struct {
	ExternalID           string    `gorm:"column:external_id;primaryKey;size:190;not null"`
	Email                string    `gorm:"column:email;size:320;not null;default:''"`
	FirstName            string    `gorm:"column:first_name;size:190;not null;default:''"`
	LastName             string    `gorm:"column:last_name;size:190;not null;default:''"`
	PushSubscriptionJSON string    `gorm:"column:push_subscription;type:text;not null;default:''"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user profiles.
func (User) TableName() string {
	return "users"
}

// PushSubscription mirrors the browser PushSubscription JSON shape.
type PushSubscription struct {
	Endpoint       string   `json:"endpoint"`
	ExpirationTime *int64   `json:"expirationTime"`
	Keys           PushKeys `json:"keys"`
}

// PushKeys carries the client public key and auth secret of a subscription.
type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

func (s PushSubscription) valid() bool {
	return normalize(s.Endpoint) != "" && normalize(s.Keys.P256dh) != "" && normalize(s.Keys.Auth) != ""
}

// PushSubscription decodes the stored subscription descriptor.
// The boolean is false when none is stored or the stored value is unusable.
func (u User) PushSubscription() (PushSubscription, bool) {
	if normalize(u.PushSubscriptionJSON) == "" {
		return PushSubscription{}, false
	}
	var subscription PushSubscription
	if err := json.Unmarshal([]byte(u.PushSubscriptionJSON), &subscription); err != nil {
		return PushSubscription{}, false
	}
	if !subscription.valid() {
		return PushSubscription{}, false
	}
	return subscription, true
}

// HasEmail reports whether an email address is known for the user.
func (u User) HasEmail() bool {
	return normalize(u.Email) != ""
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
