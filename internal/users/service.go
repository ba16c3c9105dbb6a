package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/habitual/internal/auth"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	// ErrUserNotFound indicates no profile exists for the identifier.
	ErrUserNotFound = errors.New("users: user not found")
	// ErrInvalidPushSubscription indicates a subscription without endpoint or keys.
	ErrInvalidPushSubscription = errors.New("users: invalid push subscription")
)

// ServiceConfig describes the dependencies required for user profile resolution.
type ServiceConfig struct {
	Database *gorm.DB
}

// Service manages local user profiles keyed by the canonical external identifier.
type Service struct {
	db *gorm.DB
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	return &Service{db: cfg.Database}, nil
}

// CanonicalUserID returns the canonical user id for the provided session claims.
func CanonicalUserID(claims auth.SessionClaims) (string, error) {
	subject := deriveSubject(claims)
	if subject == "" {
		return "", ErrInvalidIdentity
	}
	return subject, nil
}

// ResolveUser returns the profile for the session claims, creating it on first access
// and refreshing email and names when the identity service reports new values.
// Concurrent first requests for one identity converge on a single record.
func (s *Service) ResolveUser(ctx context.Context, claims auth.SessionClaims) (User, error) {
	externalID, err := CanonicalUserID(claims)
	if err != nil {
		return User{}, err
	}
	profile := claims.Profile()

	candidate := User{
		ExternalID: externalID,
		Email:      profile.Email,
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
	}
	created := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate)
	if created.Error != nil {
		return User{}, created.Error
	}
	if created.RowsAffected == 1 {
		return candidate, nil
	}

	user, err := s.FindByExternalID(ctx, externalID)
	if err != nil {
		return User{}, err
	}
	updates := profileUpdates(&user, profile)
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(&User{}).
		Where("external_id = ?", externalID).
		Updates(updates).Error; err != nil {
		return User{}, err
	}
	return user, nil
}

// profileUpdates applies the non-empty profile values that differ from the stored user
// and returns the matching column updates.
func profileUpdates(user *User, profile auth.Profile) map[string]interface{} {
	updates := map[string]interface{}{}
	if profile.Email != "" && profile.Email != user.Email {
		updates["email"] = profile.Email
		user.Email = profile.Email
	}
	if profile.FirstName != "" && profile.FirstName != user.FirstName {
		updates["first_name"] = profile.FirstName
		user.FirstName = profile.FirstName
	}
	if profile.LastName != "" && profile.LastName != user.LastName {
		updates["last_name"] = profile.LastName
		user.LastName = profile.LastName
	}
	return updates
}

// FindByExternalID loads the profile for the canonical user id.
func (s *Service) FindByExternalID(ctx context.Context, externalID string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("external_id = ?", normalize(externalID)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// UpsertPushSubscription stores the browser push subscription for the user.
func (s *Service) UpsertPushSubscription(ctx context.Context, externalID string, subscription PushSubscription) error {
	if !subscription.valid() {
		return ErrInvalidPushSubscription
	}
	encoded, err := json.Marshal(subscription)
	if err != nil {
		return err
	}
	return s.setPushSubscription(ctx, externalID, string(encoded))
}

// ClearPushSubscription removes any stored push subscription for the user.
func (s *Service) ClearPushSubscription(ctx context.Context, externalID string) error {
	return s.setPushSubscription(ctx, externalID, "")
}

func (s *Service) setPushSubscription(ctx context.Context, externalID string, encoded string) error {
	result := s.db.WithContext(ctx).Model(&User{}).
		Where("external_id = ?", normalize(externalID)).
		Update("push_subscription", encoded)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func deriveSubject(claims auth.SessionClaims) string {
	subject := normalize(claims.Subject)

	raw := normalize(claims.UserID)
	if raw != "" {
		if strings.Contains(raw, ":") {
			segments := strings.SplitN(raw, ":", 2)
			if normalize(segments[0]) != "" && normalize(segments[1]) != "" {
				subject = normalize(segments[1])
			}
		} else if subject == "" {
			subject = raw
		}
	}

	if subject == "" {
		subject = normalize(claims.UserEmail)
	}

	return subject
}
