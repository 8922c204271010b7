package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// ConfirmEmailMessage promotes the staged email of the referenced account
type ConfirmEmailMessage struct {
	Ref        string
	OnResponse func(account *Account)
}

func (e ConfirmEmailMessage) Type() string { return "account.email.confirm" }

// ConfirmEmailHandler finishes an email change. Links do not expire, a
// second visit fails because nothing is staged anymore.
type ConfirmEmailHandler struct {
	repo         RepositoryManager
	logger       Logger
	activitySink ActivitySink
}

func NewConfirmEmailHandler(repo RepositoryManager) *ConfirmEmailHandler {
	return &ConfirmEmailHandler{
		repo:         repo,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (h *ConfirmEmailHandler) WithLogger(logger Logger) *ConfirmEmailHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ConfirmEmailHandler) WithActivitySink(sink ActivitySink) *ConfirmEmailHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *ConfirmEmailHandler) Execute(ctx context.Context, event ConfirmEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email confirmation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmEmailHandler) execute(ctx context.Context, event ConfirmEmailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	id, err := DecodeAccountRef(event.Ref)
	if err != nil {
		h.logger.Debug("email confirmation link rejected", "reason", "malformed reference")
		return ErrInvalidLink
	}

	var account *Account
	var previous string

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().GetByIDTx(ctx, tx, id)
		if err != nil {
			if isNotFound(err) {
				return ErrInvalidLink
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
		}

		profile := account.Profile
		if !profile.HasPendingEmail() {
			h.logger.Debug("email confirmation link rejected", "reason", "no pending email", "account", id)
			return ErrInvalidLink
		}

		taken, err := h.repo.Accounts().IsEmailTaken(ctx, tx, *profile.UnconfirmedEmail, account.ID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email")
		}
		if taken {
			return ErrEmailTaken
		}

		previous = account.Email
		account.Email = *profile.UnconfirmedEmail
		profile.UnconfirmedEmail = nil

		if err := h.repo.Accounts().UpdateTx(ctx, tx, account, "email"); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save account")
		}

		if err := h.repo.Profiles().UpdateTx(ctx, tx, profile, "unconfirmed_email"); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save profile")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "email confirmation transaction failed")
	}

	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventEmailConfirmed,
		Actor:     accountActor(account),
		AccountID: account.ID.String(),
		Metadata: map[string]any{
			"previous": previous,
			"email":    account.Email,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}
