package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

const (
	SubjectActivateAccount      = "Activate your account on Janani Care"
	SubjectActivateOrganization = "Activate your NGO account on Janani Care"
)

// SignupMessage registers a new inactive account
type SignupMessage struct {
	Kind       AccountKind
	Payload    SignupPayload
	Site       Site
	UseHashid  bool
	OnResponse func(resp *SignupResponse)
}

func (e SignupMessage) Type() string { return "account.signup" }

type SignupResponse struct {
	Account *Account
	Kind    AccountKind
}

// SignupHandler creates the account and profile then mails the activation link
type SignupHandler struct {
	repo         RepositoryManager
	tokens       ActivationTokens
	notifier     Notifier
	logger       Logger
	activitySink ActivitySink
}

func NewSignupHandler(repo RepositoryManager, tokens ActivationTokens, notifier Notifier) *SignupHandler {
	return &SignupHandler{
		repo:         repo,
		tokens:       tokens,
		notifier:     notifier,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (h *SignupHandler) WithLogger(logger Logger) *SignupHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *SignupHandler) WithActivitySink(sink ActivitySink) *SignupHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *SignupHandler) Execute(ctx context.Context, event SignupMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account signup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignupHandler) execute(ctx context.Context, event SignupMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	kind := event.Kind
	if kind == "" {
		kind = KindIndividual
	}

	payload := event.Payload
	payload.Username = strings.TrimSpace(payload.Username)
	payload.Email = strings.TrimSpace(payload.Email)

	if verr := goerrors.ValidateWithOzzo(payload.Validate, "invalid signup data"); verr != nil {
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
		IsActive:     false,
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(strings.ToLower(payload.Username)); err == nil {
			account.ID = id
		}
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := checkIdentityAvailable(ctx, tx, h.repo.Accounts(), account, "invalid signup data"); err != nil {
			return err
		}

		created, err := h.repo.Accounts().CreateTx(ctx, tx, account)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}
		account = created

		profile, err := h.repo.Profiles().CreateTx(ctx, tx, &Profile{
			AccountID:      account.ID,
			IsOrganization: kind == KindOrganization,
			Active:         kind != KindOrganization,
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
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account signup transaction failed")
	}

	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventSignup,
		Actor:     accountActor(account),
		AccountID: account.ID.String(),
		Metadata: map[string]any{
			"kind": string(kind),
		},
	})

	subject, template := SubjectActivateAccount, "emails/activation"
	if kind == KindOrganization {
		subject, template = SubjectActivateOrganization, "emails/organization_activation"
	}

	token := h.tokens.Issue(account)
	if err := h.notifier.SendTemplate(ctx, subject, template, map[string]any{
		"account": account,
		"domain":  event.Site.Domain,
		"link":    event.Site.URL(ActivationPath(kind, account, token)),
	}, payload.Email); err != nil {
		h.logger.Error("failed to send activation email", "account", account.ID, "error", err)
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(&SignupResponse{
			Account: account,
			Kind:    kind,
		})
	}

	return nil
}
