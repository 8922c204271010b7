package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ReviewDecision is the administrator verdict on an organization
type ReviewDecision string

const (
	ReviewApprove ReviewDecision = "approve"
	ReviewReject  ReviewDecision = "reject"
)

const (
	SubjectOrganizationApproved = "Your NGO account was approved"
	SubjectOrganizationRejected = "Your NGO account was rejected"
)

// ReviewOrganizationMessage approves or rejects an organization profile
type ReviewOrganizationMessage struct {
	Actor      *Account
	ProfileID  uuid.UUID
	Decision   ReviewDecision
	Site       Site
	OnResponse func(profile *Profile)
}

func (e ReviewOrganizationMessage) Type() string { return "organization.review" }

// ReviewOrganizationHandler toggles the approval gate and tells the
// organization. Repeating a decision still sends the email.
type ReviewOrganizationHandler struct {
	repo         RepositoryManager
	notifier     Notifier
	logger       Logger
	activitySink ActivitySink
}

func NewReviewOrganizationHandler(repo RepositoryManager, notifier Notifier) *ReviewOrganizationHandler {
	return &ReviewOrganizationHandler{
		repo:         repo,
		notifier:     notifier,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (h *ReviewOrganizationHandler) WithLogger(logger Logger) *ReviewOrganizationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ReviewOrganizationHandler) WithActivitySink(sink ActivitySink) *ReviewOrganizationHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

func (h *ReviewOrganizationHandler) Execute(ctx context.Context, event ReviewOrganizationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during organization review",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ReviewOrganizationHandler) execute(ctx context.Context, event ReviewOrganizationMessage) error {
	if event.Actor == nil || !event.Actor.IsActive || !event.Actor.IsSuperuser {
		return ErrForbidden
	}

	var approve bool
	switch event.Decision {
	case ReviewApprove:
		approve = true
	case ReviewReject:
		approve = false
	default:
		return goerrors.New("unknown review decision", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"decision": string(event.Decision)})
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	profile, err := h.repo.Profiles().GetByID(ctx, event.ProfileID)
	if err != nil {
		if isNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryNotFound, "organization not found").
				WithCode(goerrors.CodeNotFound)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load organization")
	}

	if !profile.IsOrganization || profile.Account == nil {
		return goerrors.New("organization not found", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound).
			WithMetadata(map[string]any{"profile_id": event.ProfileID.String()})
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.repo.Profiles().SetApprovalTx(ctx, tx, profile.ID, approve); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store review decision")
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "organization review transaction failed")
	}

	profile.Active = approve

	eventType, subject, template := ActivityEventOrganizationApproved, SubjectOrganizationApproved, "emails/ngo_approved"
	if !approve {
		eventType, subject, template = ActivityEventOrganizationRejected, SubjectOrganizationRejected, "emails/ngo_rejected"
	}

	recordActivity(ctx, h.activitySink, h.logger, ActivityEvent{
		EventType: eventType,
		Actor:     accountActor(event.Actor),
		AccountID: profile.AccountID.String(),
		Metadata: map[string]any{
			"profile_id": profile.ID.String(),
		},
	})

	err = h.notifier.SendTemplate(ctx, subject, template, map[string]any{
		"account": profile.Account,
		"profile": profile,
		"domain":  event.Site.Domain,
		"link":    event.Site.URL("/login"),
	}, profile.Account.Email)
	if err != nil {
		h.logger.Error("failed to notify organization about review", "profile", profile.ID, "error", err)
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(profile)
	}

	return nil
}
