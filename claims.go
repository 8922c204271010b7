package accounts

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jananicare/accounts/middleware/session"
)

// SessionClaims is the payload of the session cookie
type SessionClaims struct {
	jwt.RegisteredClaims
	UID         string `json:"uid,omitempty"`
	PasswordFP  string `json:"pwh,omitempty"`
	Superuser   bool   `json:"su,omitempty"`
	Impersonate bool   `json:"imp,omitempty"`
}

var _ session.Claims = (*SessionClaims)(nil)

// UserID returns the account id
func (c *SessionClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject
}

// Fingerprint returns the password fingerprint the session was issued for
func (c *SessionClaims) Fingerprint() string {
	return c.PasswordFP
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return time.Time{}
}

// PasswordFingerprint derives a short value from the stored hash so a
// password change anywhere ends every other session
func PasswordFingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte("jananicare.session." + passwordHash))
	return hex.EncodeToString(sum[:8])
}
