package accounts

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTokenBucket is the width of one timestamp bucket
	DefaultTokenBucket = 24 * time.Hour
	// DefaultTokenMaxAge is how many buckets a token stays valid
	DefaultTokenMaxAge = 3

	activationTokenSalt = "jananicare.accounts.activation"
	tokenMACSize        = 20
)

// tokenEpoch anchors bucket numbers so tokens stay short
var tokenEpoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// TokenState is the snapshot of account state a token is bound to.
// Any change to these fields invalidates outstanding tokens.
type TokenState struct {
	AccountID    uuid.UUID
	PasswordHash string
	IsActive     bool
}

// TokenStateOf captures the bound state of an account
func TokenStateOf(a *Account) TokenState {
	return TokenState{
		AccountID:    a.ID,
		PasswordHash: a.PasswordHash,
		IsActive:     a.IsActive,
	}
}

// TokenGenerator issues stateless activation tokens
type TokenGenerator struct {
	key    []byte
	bucket time.Duration
	maxAge int64
	now    func() time.Time
}

// TokenOption configures a TokenGenerator
type TokenOption func(*TokenGenerator)

// WithTokenBucket sets the bucket width
func WithTokenBucket(d time.Duration) TokenOption {
	return func(g *TokenGenerator) {
		if d > 0 {
			g.bucket = d
		}
	}
}

// WithTokenMaxAge sets how many elapsed buckets a token survives
func WithTokenMaxAge(buckets int) TokenOption {
	return func(g *TokenGenerator) {
		if buckets >= 0 {
			g.maxAge = int64(buckets)
		}
	}
}

// WithTokenClock replaces the clock, used by tests
func WithTokenClock(now func() time.Time) TokenOption {
	return func(g *TokenGenerator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewTokenGenerator derives the signing key from the server secret
func NewTokenGenerator(secret string, opts ...TokenOption) *TokenGenerator {
	sum := sha256.Sum256([]byte(activationTokenSalt + secret))
	g := &TokenGenerator{
		key:    sum[:],
		bucket: DefaultTokenBucket,
		maxAge: DefaultTokenMaxAge,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

var _ ActivationTokens = (*TokenGenerator)(nil)

// Issue returns a token for the current state of the account
func (g *TokenGenerator) Issue(account *Account) string {
	return g.issueAt(TokenStateOf(account), g.currentBucket())
}

// Verify recomputes the token against the account's current state
func (g *TokenGenerator) Verify(account *Account, token string) bool {
	if account == nil || token == "" {
		return false
	}

	rawBucket, rawMAC, ok := strings.Cut(token, "-")
	if !ok || rawBucket == "" || rawMAC == "" {
		return false
	}

	bucket, err := strconv.ParseInt(rawBucket, 36, 64)
	if err != nil || bucket < 0 {
		return false
	}

	got, err := hex.DecodeString(rawMAC)
	if err != nil || len(got) != tokenMACSize {
		return false
	}

	if !hmac.Equal(got, g.sign(TokenStateOf(account), bucket)) {
		return false
	}

	current := g.currentBucket()
	if bucket > current {
		return false
	}

	return current-bucket <= g.maxAge
}

func (g *TokenGenerator) issueAt(state TokenState, bucket int64) string {
	return strconv.FormatInt(bucket, 36) + "-" + hex.EncodeToString(g.sign(state, bucket))
}

func (g *TokenGenerator) currentBucket() int64 {
	elapsed := g.now().UTC().Sub(tokenEpoch)
	if elapsed < 0 {
		return 0
	}
	return int64(elapsed / g.bucket)
}

func (g *TokenGenerator) sign(state TokenState, bucket int64) []byte {
	mac := hmac.New(sha256.New, g.key)
	writeField(mac, state.AccountID[:])
	writeField(mac, []byte(state.PasswordHash))
	writeField(mac, []byte(strconv.FormatBool(state.IsActive)))
	writeField(mac, []byte(strconv.FormatInt(bucket, 10)))
	return mac.Sum(nil)[:tokenMACSize]
}

// writeField length prefixes every field so values cannot bleed into each other
func writeField(h hash.Hash, value []byte) {
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(value)))
	h.Write(size[:])
	h.Write(value)
}
