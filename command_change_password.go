package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ChangePasswordMessage changes the password of the signed in account
type ChangePasswordMessage struct {
	AccountID  uuid.UUID
	Payload    PasswordChangePayload
	OnResponse func(account *Account)
}

func (e ChangePasswordMessage) Type() string { return "account.password.change" }

// ChangePasswordHandler checks the old password and stores the new hash.
// Changing the hash invalidates outstanding activation tokens and sessions.
type ChangePasswordHandler struct {
	repo         RepositoryManager
	logger       Logger
	activitySink ActivitySink
}

func NewChangePasswordHandler(repo RepositoryManager) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		repo:         repo,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (h *ChangePasswordHandler) WithLogger(logger Logger) *ChangePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ChangePasswordHandler) WithActivitySink(sink ActivitySink) *ChangePasswordHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account, err := h.repo.Accounts().GetByID(ctx, event.AccountID)
	if err != nil {
		if isNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryNotFound, "account not found")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}

	payload := event.Payload
	validate := func() error { return payload.validate(account) }
	if verr := goerrors.ValidateWithOzzo(validate, "invalid password data"); verr != nil {
		return verr
	}

	if err := ComparePasswordAndHash(payload.OldPassword, account.PasswordHash); err != nil {
		return NewFieldError(
			"old_password",
			"your old password was entered incorrectly, please enter it again",
			TextCodeInvalidCreds,
		)
	}

	hash, err := HashPassword(payload.NewPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.repo.Accounts().SetPasswordTx(ctx, tx, account.ID, hash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store password")
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "password change transaction failed")
	}

	account.PasswordHash = hash

	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor:     accountActor(account),
		AccountID: account.ID.String(),
	})

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}
