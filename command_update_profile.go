package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const SubjectConfirmEmail = "Confirm your new email address on Janani Care"

// UpdateProfileMessage edits the profile of the signed in account
type UpdateProfileMessage struct {
	AccountID  uuid.UUID
	Update     ProfileUpdate
	Site       Site
	OnResponse func(resp *UpdateProfileResponse)
}

func (e UpdateProfileMessage) Type() string { return "account.profile.update" }

type UpdateProfileResponse struct {
	Account *Account
	// PendingEmail is set when the update staged a new address
	PendingEmail string
}

// UpdateProfileHandler applies individual and organization profile updates
type UpdateProfileHandler struct {
	repo         RepositoryManager
	notifier     Notifier
	logger       Logger
	activitySink ActivitySink
}

func NewUpdateProfileHandler(repo RepositoryManager, notifier Notifier) *UpdateProfileHandler {
	return &UpdateProfileHandler{
		repo:         repo,
		notifier:     notifier,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (h *UpdateProfileHandler) WithLogger(logger Logger) *UpdateProfileHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdateProfileHandler) WithActivitySink(sink ActivitySink) *UpdateProfileHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Update == nil {
		return goerrors.New("missing profile update", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	if verr := goerrors.ValidateWithOzzo(event.Update.Validate, "invalid profile data"); verr != nil {
		return verr
	}

	var account *Account
	var staged string

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().GetByIDTx(ctx, tx, event.AccountID)
		if err != nil {
			if isNotFound(err) {
				return goerrors.Wrap(err, goerrors.CategoryNotFound, "account not found")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
		}

		profile := account.Profile
		if profile == nil {
			if profile, err = h.repo.Profiles().GetByAccountIDTx(ctx, tx, account.ID); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load profile")
			}
			account.Profile = profile
		}

		if profile.IsOrganization != (event.Update.Kind() == KindOrganization) {
			return ErrProfileKindMismatch
		}

		event.Update.apply(account, profile)

		if staged, err = h.stageEmail(ctx, tx, account, event.Update.SubmittedEmail()); err != nil {
			return err
		}

		if err := h.repo.Accounts().UpdateTx(ctx, tx, account, "first_name", "last_name"); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save account")
		}

		columns := append([]string{"unconfirmed_email"}, editableProfileColumns...)
		if err := h.repo.Profiles().UpdateTx(ctx, tx, profile, columns...); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save profile")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "profile update transaction failed")
	}

	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventProfileUpdated,
		Actor:     accountActor(account),
		AccountID: account.ID.String(),
	})

	if staged != "" {
		recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
			EventType: ActivityEventEmailChangeRequested,
			Actor:     accountActor(account),
			AccountID: account.ID.String(),
			Metadata: map[string]any{
				"email": staged,
			},
		})

		err := h.notifier.SendTemplate(ctx, SubjectConfirmEmail, "emails/email_confirmation", map[string]any{
			"account": account,
			"email":   staged,
			"domain":  event.Site.Domain,
			"link":    event.Site.URL(ConfirmEmailPath(account)),
		}, staged)
		if err != nil {
			h.logger.Error("failed to send email confirmation", "account", account.ID, "error", err)
			return err
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(&UpdateProfileResponse{
			Account:      account,
			PendingEmail: staged,
		})
	}

	return nil
}

// stageEmail keeps the live email and parks a changed address in
// unconfirmed_email. It returns the staged address, empty when unchanged.
func (h *UpdateProfileHandler) stageEmail(ctx context.Context, tx bun.IDB, account *Account, submitted string) (string, error) {
	if submitted == "" || submitted == account.Email {
		return "", nil
	}

	taken, err := h.repo.Accounts().IsEmailTaken(ctx, tx, submitted, account.ID)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email")
	}
	if taken {
		return "", NewFieldError("email", ErrEmailTaken.Message, TextCodeEmailTaken)
	}

	account.Profile.UnconfirmedEmail = &submitted
	return submitted, nil
}
