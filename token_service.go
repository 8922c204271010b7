package accounts

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/jananicare/accounts/middleware/session"
)

// DefaultSessionDuration matches the session cookie age
const DefaultSessionDuration = 30 * time.Minute

// SessionTokens signs and validates session cookies
type SessionTokens struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

var _ session.Validator = (*SessionTokens)(nil)

// NewSessionTokens creates the session token service
func NewSessionTokens(signingKey []byte, ttl time.Duration, issuer string, audience []string, logger Logger) *SessionTokens {
	if logger == nil {
		logger = defLogger{}
	}
	if ttl <= 0 {
		ttl = DefaultSessionDuration
	}
	return &SessionTokens{
		signingKey: signingKey,
		ttl:        ttl,
		issuer:     issuer,
		audience:   jwt.ClaimStrings(audience),
		logger:     logger,
		now:        time.Now,
	}
}

// SessionTokensFromConfig builds the service from the session settings
func SessionTokensFromConfig(cfg Config, logger Logger) *SessionTokens {
	return NewSessionTokens([]byte(cfg.GetSigningKey()), cfg.GetSessionDuration(), cfg.GetIssuer(), cfg.GetAudience(), logger)
}

// WithClock overrides time.Now
func (ts *SessionTokens) WithClock(now func() time.Time) *SessionTokens {
	if now != nil {
		ts.now = now
	}
	return ts
}

// TTL is how long a session stays valid
func (ts *SessionTokens) TTL() time.Duration {
	return ts.ttl
}

// Generate creates a session token for the account
func (ts *SessionTokens) Generate(account *Account) (string, error) {
	return ts.generate(account, false)
}

func (ts *SessionTokens) generate(account *Account, impersonate bool) (string, error) {
	if account == nil || account.ID == uuid.Nil {
		return "", errors.New("account must not be nil", errors.CategoryInternal)
	}

	now := ts.now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        newMessageID(),
			Issuer:    ts.issuer,
			Subject:   account.ID.String(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
		UID:         account.ID.String(),
		PasswordFP:  PasswordFingerprint(account.PasswordHash),
		Superuser:   account.IsSuperuser,
		Impersonate: impersonate,
	}

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary claims using the configured signing key.
func (ts *SessionTokens) SignClaims(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign session")
	}

	return signed, nil
}

// Parse validates a token string and returns its claims
func (ts *SessionTokens) Parse(tokenString string) (*SessionClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("session validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode).
			WithCode(errors.CodeUnauthorized)
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("session validate could not decode claims")
	return nil, ErrUnableToFindSession
}

// Validate implements session.Validator
func (ts *SessionTokens) Validate(tokenString string) (session.Claims, error) {
	claims, err := ts.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
