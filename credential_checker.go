package accounts

import (
	"context"
	"sync"

	"github.com/goliatone/go-errors"
)

// MaxLoginAttempts is the number of failed attempts allowed within CoolDownPeriod
var MaxLoginAttempts = 5

// CoolDownPeriod is the window used to count failed login attempts
var CoolDownPeriod = "24h"

// CredentialStore is the account lookup the ModelBackend needs
type CredentialStore interface {
	FindByLogin(ctx context.Context, identifier string) (*Account, error)
	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
}

// ModelBackend checks credentials against the accounts table. The
// identifier may be a username or an email, in any letter case.
type ModelBackend struct {
	store        CredentialStore
	logger       Logger
	activitySink ActivitySink

	dummyOnce sync.Once
	dummyHash string
}

var _ AccountCredentialChecker = (*ModelBackend)(nil)

// NewModelBackend creates a credential checker backed by store
func NewModelBackend(store CredentialStore) *ModelBackend {
	return &ModelBackend{
		store:        store,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (b *ModelBackend) WithLogger(logger Logger) *ModelBackend {
	if logger != nil {
		b.logger = logger
	}
	return b
}

func (b *ModelBackend) WithActivitySink(sink ActivitySink) *ModelBackend {
	b.activitySink = normalizeActivitySink(sink)
	return b
}

// Check resolves identifier and verifies secret
func (b *ModelBackend) Check(ctx context.Context, identifier, secret string) (*Account, error) {
	account, err := b.store.FindByLogin(ctx, identifier)
	if err != nil {
		if isNotFound(err) {
			// keep the response time close to a real password check
			_ = ComparePasswordAndHash(secret, b.dummy())
			b.failure(ctx, nil, identifier, ErrMismatchedHashAndPassword)
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during verification")
	}

	if account.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(*account.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to calculate login attempt cool down")
		}

		if expired {
			account.LoginAttempts = 0
		}
	}

	if account.LoginAttempts >= MaxLoginAttempts {
		b.failure(ctx, account, identifier, ErrTooManyLoginAttempts)
		return nil, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(secret, account.PasswordHash); err != nil {
		if err2 := b.store.TrackAttemptedLogin(ctx, account); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}
		b.failure(ctx, account, identifier, ErrMismatchedHashAndPassword)
		return nil, ErrMismatchedHashAndPassword
	}

	if !account.IsActive {
		b.failure(ctx, account, identifier, ErrAccountInactive)
		return nil, ErrAccountInactive
	}

	if err := b.store.TrackSuccessfulLogin(ctx, account); err != nil {
		b.logger.Error("failed to track successful login", "error", err)
	}

	recordActivity(ctx, b.activitySink, b.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     accountActor(account),
		AccountID: account.ID.String(),
	})

	return account, nil
}

func (b *ModelBackend) dummy() string {
	b.dummyOnce.Do(func() {
		b.dummyHash = RandomPasswordHash()
	})
	return b.dummyHash
}

func (b *ModelBackend) failure(ctx context.Context, account *Account, identifier string, err error) {
	event := ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{Type: "unknown"},
		Metadata: map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		},
	}
	if account != nil {
		event.Actor = accountActor(account)
		event.AccountID = account.ID.String()
	}
	recordActivity(ctx, b.activitySink, b.logger, event)
}
