package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// ActivationStage is the outcome of an activation request
type ActivationStage string

const (
	ActivationInvalidLink ActivationStage = "invalid_link"
	ActivationShowForm    ActivationStage = "show_form"
	ActivationFormInvalid ActivationStage = "form_invalid"
	ActivationCompleted   ActivationStage = "completed"
)

const SubjectOrganizationRegistered = "New NGO registration on Janani Care"

// ActivateMessage carries the link parts and, on submit, the completion form.
// A nil Completion is a first visit.
type ActivateMessage struct {
	Kind       AccountKind
	Ref        string
	Token      string
	Completion Completion
	Site       Site
	OnResponse func(resp *ActivateResponse)
}

func (e ActivateMessage) Type() string { return "account.activate" }

type ActivateResponse struct {
	Stage   ActivationStage
	Account *Account
	Form    Completion
	Errors  FieldErrors
}

// ActivateHandler verifies activation links and completes registrations
type ActivateHandler struct {
	repo         RepositoryManager
	tokens       ActivationTokens
	notifier     Notifier
	logger       Logger
	activitySink ActivitySink
}

func NewActivateHandler(repo RepositoryManager, tokens ActivationTokens, notifier Notifier) *ActivateHandler {
	return &ActivateHandler{
		repo:         repo,
		tokens:       tokens,
		notifier:     notifier,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (h *ActivateHandler) WithLogger(logger Logger) *ActivateHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ActivateHandler) WithActivitySink(sink ActivitySink) *ActivateHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *ActivateHandler) Execute(ctx context.Context, event ActivateMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account activation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateHandler) execute(ctx context.Context, event ActivateMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	resp := &ActivateResponse{Stage: ActivationInvalidLink}
	respond := func() error {
		if event.OnResponse != nil {
			event.OnResponse(resp)
		}
		return nil
	}

	account, err := h.resolve(ctx, event)
	if err != nil {
		if goerrors.Is(err, ErrInvalidLink) {
			return respond()
		}
		return err
	}
	resp.Account = account

	if event.Completion == nil {
		resp.Stage = ActivationShowForm
		resp.Form = prefillCompletion(event.Kind, account)
		return respond()
	}

	resp.Form = event.Completion
	if verr := goerrors.ValidateWithOzzo(event.Completion.Validate, "invalid registration data"); verr != nil {
		fields, _ := AsFieldErrors(verr)
		resp.Stage = ActivationFormInvalid
		resp.Errors = fields
		return respond()
	}

	completion := event.Completion
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		activated, err := h.repo.Accounts().ActivateTx(ctx, tx, account.ID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate account")
		}
		if !activated {
			return ErrInvalidLink
		}
		account.IsActive = true

		profile := account.Profile
		if profile == nil {
			if profile, err = h.repo.Profiles().GetByAccountIDTx(ctx, tx, account.ID); err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load profile")
			}
		}

		completion.apply(account, profile)
		if completion.Kind() == KindOrganization {
			profile.IsOrganization = true
			profile.Active = false
		} else {
			profile.Active = true
		}
		account.Profile = profile

		if err := h.repo.Accounts().UpdateTx(ctx, tx, account, "first_name", "last_name"); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save account")
		}

		if err := h.repo.Profiles().UpdateTx(ctx, tx, profile, activationProfileColumns...); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save profile")
		}

		return nil
	})

	if err != nil {
		if goerrors.Is(err, ErrInvalidLink) {
			resp.Stage = ActivationInvalidLink
			resp.Account = nil
			return respond()
		}
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account activation transaction failed")
	}

	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: ActivityEventActivated,
		Actor:     accountActor(account),
		AccountID: account.ID.String(),
		Metadata: map[string]any{
			"kind": string(completion.Kind()),
		},
	})

	if completion.Kind() == KindOrganization {
		if err := h.notifyStaff(ctx, event.Site, account); err != nil {
			return err
		}
	}

	resp.Stage = ActivationCompleted
	return respond()
}

// resolve reports every broken link as ErrInvalidLink
func (h *ActivateHandler) resolve(ctx context.Context, event ActivateMessage) (*Account, error) {
	id, err := DecodeAccountRef(event.Ref)
	if err != nil {
		h.logger.Debug("activation link rejected", "reason", "malformed reference")
		return nil, ErrInvalidLink
	}

	account, err := h.repo.Accounts().GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			h.logger.Debug("activation link rejected", "reason", "unknown account", "account", id)
			return nil, ErrInvalidLink
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for activation")
	}

	if !h.tokens.Verify(account, event.Token) {
		h.logger.Debug("activation link rejected", "reason", "token mismatch", "account", id)
		return nil, ErrInvalidLink
	}

	// an individual link must not activate an NGO signup and the other way round
	if event.Kind != account.Kind() {
		h.logger.Debug("activation link rejected", "reason", "kind mismatch", "account", id,
			"link", event.Kind, "account_kind", account.Kind())
		return nil, ErrInvalidLink
	}
	if event.Completion != nil && event.Completion.Kind() != account.Kind() {
		h.logger.Debug("activation link rejected", "reason", "form kind mismatch", "account", id,
			"form", event.Completion.Kind(), "account_kind", account.Kind())
		return nil, ErrInvalidLink
	}

	return account, nil
}

func (h *ActivateHandler) notifyStaff(ctx context.Context, site Site, account *Account) error {
	staff, err := h.repo.Accounts().StaffEmails(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list staff accounts")
	}

	err = h.notifier.SendTemplate(ctx, SubjectOrganizationRegistered, "emails/ngo_approval_request", map[string]any{
		"account": account,
		"profile": account.Profile,
		"domain":  site.Domain,
		"link":    site.URL(ReviewPath(account.Profile)),
	}, staff...)
	if err != nil {
		h.logger.Error("failed to notify staff about organization", "account", account.ID, "error", err)
		return err
	}
	return nil
}

// editableProfileColumns are the profile columns the edit forms may change
var editableProfileColumns = []string{
	"organization_name",
	"phone",
	"address",
	"city",
	"country_id",
	"state_id",
	"description",
	"website",
}

// activationProfileColumns also settle the kind and the approval gate,
// only activation and review may write those
var activationProfileColumns = append([]string{"is_organization", "active"}, editableProfileColumns...)

func prefillCompletion(kind AccountKind, account *Account) Completion {
	if kind == KindOrganization {
		out := OrganizationCompletion{AddressFields: AddressOf(account.Profile)}
		if account.Profile != nil {
			out.OrganizationName = account.Profile.OrganizationName
			out.Description = account.Profile.Description
			out.Website = account.Profile.Website
		}
		return out
	}
	return IndividualCompletion{
		FirstName:     account.FirstName,
		LastName:      account.LastName,
		AddressFields: AddressOf(account.Profile),
	}
}
