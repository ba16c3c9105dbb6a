package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the session JWT payload issued by the identity service.
// Given and family names win over the display name when both are present.
type SessionClaims struct {
	UserID          string `json:"user_id"`
	UserEmail       string `json:"user_email"`
	UserDisplayName string `json:"user_display_name"`
	UserGivenName   string `json:"user_given_name,omitempty"`
	UserFamilyName  string `json:"user_family_name,omitempty"`
	jwt.RegisteredClaims
}

// Profile is the contact data a session carries for the local user record.
type Profile struct {
	Email     string
	FirstName string
	LastName  string
}

// Profile extracts the email and names from the claims.
func (c SessionClaims) Profile() Profile {
	profile := Profile{
		Email:     strings.TrimSpace(c.UserEmail),
		FirstName: strings.TrimSpace(c.UserGivenName),
		LastName:  strings.TrimSpace(c.UserFamilyName),
	}
	if profile.FirstName != "" || profile.LastName != "" {
		return profile
	}
	fields := strings.Fields(c.UserDisplayName)
	switch len(fields) {
	case 0:
	case 1:
		profile.FirstName = fields[0]
	default:
		profile.FirstName = fields[0]
		profile.LastName = strings.Join(fields[1:], " ")
	}
	return profile
}
