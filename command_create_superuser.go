package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// CreateSuperuserMessage creates an active staff superuser from the command line
type CreateSuperuserMessage struct {
	Payload    SignupPayload
	OnResponse func(account *Account)
}

func (e CreateSuperuserMessage) Type() string { return "account.superuser.create" }

// CreateSuperuserHandler skips activation, the operator is trusted
type CreateSuperuserHandler struct {
	repo         RepositoryManager
	logger       Logger
	activitySink ActivitySink
}

func NewCreateSuperuserHandler(repo RepositoryManager) *CreateSuperuserHandler {
	return &CreateSuperuserHandler{
		repo:         repo,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (h *CreateSuperuserHandler) WithLogger(logger Logger) *CreateSuperuserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *CreateSuperuserHandler) WithActivitySink(sink ActivitySink) *CreateSuperuserHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *CreateSuperuserHandler) Execute(ctx context.Context, event CreateSuperuserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during superuser creation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateSuperuserHandler) execute(ctx context.Context, event CreateSuperuserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	payload := event.Payload
	payload.Username = strings.TrimSpace(payload.Username)
	payload.Email = strings.TrimSpace(payload.Email)

	if verr := goerrors.ValidateWithOzzo(payload.Validate, "invalid superuser data"); verr != nil {
		return verr
	}

	hash, err := HashPassword(payload.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	account := &Account{
		Username:     payload.Username,
		Email:        payload.Email,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      true,
		IsSuperuser:  true,
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := checkIdentityAvailable(ctx, tx, h.repo.Accounts(), account, "invalid superuser data"); err != nil {
			return err
		}

		created, err := h.repo.Accounts().CreateTx(ctx, tx, account)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}
		account = created

		profile, err := h.repo.Profiles().CreateTx(ctx, tx, &Profile{
			AccountID: account.ID,
			Active:    true,
		})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create profile")
		}
		account.Profile = profile
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "superuser transaction failed")
	}

	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventSuperuserCreated,
		Actor:     ActorRef{Type: "system"},
		AccountID: account.ID.String(),
	})

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}

// checkIdentityAvailable reports taken usernames and emails as field errors
func checkIdentityAvailable(ctx context.Context, tx bun.IDB, accounts Accounts, account *Account, message string) error {
	fields := map[string]string{}

	taken, err := accounts.IsUsernameTaken(ctx, tx, account.Username)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username")
	}
	if taken {
		fields["username"] = "a user with that username already exists"
	}

	taken, err = accounts.IsEmailTaken(ctx, tx, account.Email, account.ID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email")
	}
	if taken {
		fields["email"] = ErrEmailTaken.Message
	}

	if len(fields) > 0 {
		return goerrors.NewValidationFromMap(message, fields).
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}
