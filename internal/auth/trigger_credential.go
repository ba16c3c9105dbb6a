package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// ErrInvalidTriggerCredential indicates a missing or mismatched pre-shared trigger secret.
var ErrInvalidTriggerCredential = errors.New("auth: invalid trigger credential")

// TriggerCredential guards scheduler endpoints with a pre-shared secret.
// An empty secret rejects every presented credential.
type TriggerCredential struct {
	secret []byte
}

// NewTriggerCredential wraps the configured shared secret.
func NewTriggerCredential(secret string) TriggerCredential {
	return TriggerCredential{secret: []byte(strings.TrimSpace(secret))}
}

// Verify compares the presented credential in constant time.
func (c TriggerCredential) Verify(presented string) error {
	if len(c.secret) == 0 {
		return ErrInvalidTriggerCredential
	}
	candidate := []byte(strings.TrimSpace(presented))
	if len(candidate) == 0 || subtle.ConstantTimeCompare(candidate, c.secret) != 1 {
		return ErrInvalidTriggerCredential
	}
	return nil
}

// CredentialFromRequest returns the bearer credential carried by the request, if any.
func CredentialFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
}
