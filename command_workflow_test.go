package accounts_test

import (
	"context"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/jananicare/accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

var testSite = accounts.Site{Scheme: "https", Domain: "jananicare.test"}

type workflow struct {
	db        *bun.DB
	repo      accounts.RepositoryManager
	tokens    *accounts.TokenGenerator
	transport *recordingTransport
	notifier  *accounts.Dispatcher
}

func newWorkflow(t *testing.T) *workflow {
	t.Helper()
	db := newTestDB(t)
	transport := &recordingTransport{}
	return &workflow{
		db:        db,
		repo:      accounts.NewRepositoryManager(db),
		tokens:    accounts.NewTokenGenerator("workflow-secret"),
		transport: transport,
		notifier:  accounts.NewDispatcher(transport, stubRenderer{}),
	}
}

func (w *workflow) signup(t *testing.T, kind accounts.AccountKind, username, email string) *accounts.Account {
	t.Helper()
	var account *accounts.Account
	err := accounts.NewSignupHandler(w.repo, w.tokens, w.notifier).Execute(context.Background(), accounts.SignupMessage{
		Kind: kind,
		Payload: accounts.SignupPayload{
			Username:  username,
			Email:     email,
			Password:  "plum-orchard-41",
			Password2: "plum-orchard-41",
		},
		Site: testSite,
		OnResponse: func(resp *accounts.SignupResponse) {
			account = resp.Account
		},
	})
	require.NoError(t, err)
	require.NotNil(t, account)
	return account
}

// lastLink pulls the ref and token out of the last activation email
func (w *workflow) lastLink(t *testing.T) (string, string) {
	t.Helper()
	require.NotEmpty(t, w.transport.sent)
	body := w.transport.sent[len(w.transport.sent)-1].Body
	_, link, ok := strings.Cut(body, "/activate/")
	require.True(t, ok, body)
	parts := strings.Split(link, "/")
	require.Len(t, parts, 2)
	return parts[0], parts[1]
}

func (w *workflow) activate(t *testing.T, kind accounts.AccountKind, ref, token string, completion accounts.Completion) *accounts.ActivateResponse {
	t.Helper()
	var resp *accounts.ActivateResponse
	err := accounts.NewActivateHandler(w.repo, w.tokens, w.notifier).Execute(context.Background(), accounts.ActivateMessage{
		Kind:       kind,
		Ref:        ref,
		Token:      token,
		Completion: completion,
		Site:       testSite,
		OnResponse: func(r *accounts.ActivateResponse) { resp = r },
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func TestSignupAndActivation(t *testing.T) {
	w := newWorkflow(t)
	ctx := context.Background()

	jane := w.signup(t, accounts.KindIndividual, "jane", "jane@x.org")
	assert.False(t, jane.IsActive)

	require.Len(t, w.transport.sent, 1)
	mail := w.transport.sent[0]
	assert.Equal(t, accounts.SubjectActivateAccount, mail.Subject)
	assert.Equal(t, []string{"jane@x.org"}, mail.Recipients)
	assert.Contains(t, mail.Body, "https://jananicare.test/accounts/activate/")

	ref, token := w.lastLink(t)

	t.Run("first visit shows the form without mutating", func(t *testing.T) {
		resp := w.activate(t, accounts.KindIndividual, ref, token, nil)
		assert.Equal(t, accounts.ActivationShowForm, resp.Stage)
		assert.IsType(t, accounts.IndividualCompletion{}, resp.Form)

		stored, err := w.repo.Accounts().GetByID(ctx, jane.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsActive)
	})

	t.Run("invalid completion keeps the account inactive", func(t *testing.T) {
		resp := w.activate(t, accounts.KindIndividual, ref, token, accounts.IndividualCompletion{})
		assert.Equal(t, accounts.ActivationFormInvalid, resp.Stage)
		assert.Contains(t, resp.Errors, "first_name")

		stored, err := w.repo.Accounts().GetByID(ctx, jane.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsActive)
	})

	t.Run("organization route can not activate an individual signup", func(t *testing.T) {
		tests := []struct {
			name       string
			kind       accounts.AccountKind
			completion accounts.Completion
		}{
			{name: "first visit", kind: accounts.KindOrganization},
			{name: "organization form", kind: accounts.KindOrganization, completion: accounts.OrganizationCompletion{OrganizationName: "Not an NGO"}},
			{name: "organization form on the individual route", kind: accounts.KindIndividual, completion: accounts.OrganizationCompletion{OrganizationName: "Not an NGO"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				sent := len(w.transport.sent)
				resp := w.activate(t, tt.kind, ref, token, tt.completion)
				assert.Equal(t, accounts.ActivationInvalidLink, resp.Stage)
				assert.Nil(t, resp.Account)

				stored, err := w.repo.Accounts().GetByID(ctx, jane.ID)
				require.NoError(t, err)
				assert.False(t, stored.IsActive)
				assert.False(t, stored.Profile.IsOrganization)
				assert.Len(t, w.transport.sent, sent)
			})
		}
	})

	t.Run("completion activates", func(t *testing.T) {
		resp := w.activate(t, accounts.KindIndividual, ref, token, accounts.IndividualCompletion{
			FirstName: "Jane",
			LastName:  "Doe",
			AddressFields: accounts.AddressFields{
				Phone: "098765 43210",
				City:  "Pune",
			},
		})
		require.Equal(t, accounts.ActivationCompleted, resp.Stage)

		stored, err := w.repo.Accounts().GetByID(ctx, jane.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsActive)
		assert.Equal(t, "Jane Doe", stored.FullName())
		assert.True(t, stored.Profile.Active)
		assert.Equal(t, "+919876543210", stored.Profile.Phone)
		assert.True(t, stored.IsOperational())
	})

	t.Run("replayed link is invalid", func(t *testing.T) {
		resp := w.activate(t, accounts.KindIndividual, ref, token, nil)
		assert.Equal(t, accounts.ActivationInvalidLink, resp.Stage)
		assert.Nil(t, resp.Account)
	})

	t.Run("broken links are all invalid", func(t *testing.T) {
		tests := map[string][2]string{
			"malformed ref":  {"***", token},
			"unknown ref":    {accounts.EncodeAccountRef(uuid.New()), token},
			"tampered token": {ref, tamper(token)},
			"empty token":    {ref, ""},
		}
		for name, link := range tests {
			t.Run(name, func(t *testing.T) {
				resp := w.activate(t, accounts.KindIndividual, link[0], link[1], nil)
				assert.Equal(t, accounts.ActivationInvalidLink, resp.Stage)
			})
		}
	})
}

func TestSignupWithHashid(t *testing.T) {
	w := newWorkflow(t)
	ctx := context.Background()

	var account *accounts.Account
	err := accounts.NewSignupHandler(w.repo, w.tokens, w.notifier).Execute(ctx, accounts.SignupMessage{
		Kind:      accounts.KindIndividual,
		UseHashid: true,
		Payload: accounts.SignupPayload{
			Username:  "Jane",
			Email:     "jane@x.org",
			Password:  "plum-orchard-41",
			Password2: "plum-orchard-41",
		},
		Site:       testSite,
		OnResponse: func(resp *accounts.SignupResponse) { account = resp.Account },
	})
	require.NoError(t, err)
	require.NotNil(t, account)

	expected, err := hashid.NewUUID("jane")
	require.NoError(t, err)
	assert.Equal(t, expected, account.ID)

	stored, err := w.repo.Accounts().GetByID(ctx, expected)
	require.NoError(t, err)
	assert.Equal(t, "Jane", stored.Username)

	ref, _ := w.lastLink(t)
	assert.Equal(t, accounts.EncodeAccountRef(expected), ref)
}

func TestSignupRejectsTakenIdentity(t *testing.T) {
	w := newWorkflow(t)
	w.signup(t, accounts.KindIndividual, "jane", "jane@x.org")

	err := accounts.NewSignupHandler(w.repo, w.tokens, w.notifier).Execute(context.Background(), accounts.SignupMessage{
		Payload: accounts.SignupPayload{
			Username:  "JANE",
			Email:     "Jane@X.org",
			Password:  "plum-orchard-41",
			Password2: "plum-orchard-41",
		},
		Site: testSite,
	})
	require.Error(t, err)

	fields, ok := accounts.AsFieldErrors(err)
	require.True(t, ok)
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "email")
	assert.Len(t, w.transport.sent, 1, "no second activation email")
}

func TestSignupValidation(t *testing.T) {
	w := newWorkflow(t)

	tests := []struct {
		name    string
		payload accounts.SignupPayload
		field   string
	}{
		{name: "missing username", payload: accounts.SignupPayload{Email: "a@x.org", Password: "plum-orchard-41", Password2: "plum-orchard-41"}, field: "username"},
		{name: "bad email", payload: accounts.SignupPayload{Username: "asha", Email: "nope", Password: "plum-orchard-41", Password2: "plum-orchard-41"}, field: "email"},
		{name: "short password", payload: accounts.SignupPayload{Username: "asha", Email: "a@x.org", Password: "k9#a", Password2: "k9#a"}, field: "password1"},
		{name: "numeric password", payload: accounts.SignupPayload{Username: "asha", Email: "a@x.org", Password: "4815162342", Password2: "4815162342"}, field: "password1"},
		{name: "common password", payload: accounts.SignupPayload{Username: "asha", Email: "a@x.org", Password: "password123", Password2: "password123"}, field: "password1"},
		{name: "similar password", payload: accounts.SignupPayload{Username: "ashalata", Email: "a@x.org", Password: "ashalata1", Password2: "ashalata1"}, field: "password1"},
		{name: "mismatch", payload: accounts.SignupPayload{Username: "asha", Email: "a@x.org", Password: "plum-orchard-41", Password2: "plum-orchard-42"}, field: "password2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := accounts.NewSignupHandler(w.repo, w.tokens, w.notifier).Execute(context.Background(), accounts.SignupMessage{
				Payload: tt.payload,
				Site:    testSite,
			})
			require.Error(t, err)
			fields, ok := accounts.AsFieldErrors(err)
			require.True(t, ok)
			assert.Contains(t, fields, tt.field)
		})
	}

	assert.Empty(t, w.transport.sent)
}

func TestOrganizationActivationWaitsForApproval(t *testing.T) {
	w := newWorkflow(t)
	ctx := context.Background()

	admin := w.signup(t, accounts.KindIndividual, "admin", "admin@x.org")
	admin.IsActive, admin.IsStaff, admin.IsSuperuser = true, true, true
	require.NoError(t, w.repo.Accounts().UpdateTx(ctx, w.db, admin, "is_active", "is_staff", "is_superuser"))

	ngo := w.signup(t, accounts.KindOrganization, "seva", "seva@x.org")
	assert.Equal(t, accounts.SubjectActivateOrganization, w.transport.sent[len(w.transport.sent)-1].Subject)

	ref, token := w.lastLink(t)

	t.Run("individual route can not activate an organization signup", func(t *testing.T) {
		tests := []struct {
			name       string
			kind       accounts.AccountKind
			completion accounts.Completion
		}{
			{name: "first visit", kind: accounts.KindIndividual},
			{name: "individual form", kind: accounts.KindIndividual, completion: accounts.IndividualCompletion{FirstName: "Seva", LastName: "Trust"}},
			{name: "individual form on the organization route", kind: accounts.KindOrganization, completion: accounts.IndividualCompletion{FirstName: "Seva", LastName: "Trust"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				sent := len(w.transport.sent)
				resp := w.activate(t, tt.kind, ref, token, tt.completion)
				assert.Equal(t, accounts.ActivationInvalidLink, resp.Stage)

				stored, err := w.repo.Accounts().GetByID(ctx, ngo.ID)
				require.NoError(t, err)
				assert.False(t, stored.IsActive)
				assert.True(t, stored.Profile.IsOrganization)
				assert.False(t, stored.Profile.Active)
				assert.False(t, stored.IsOperational())
				assert.Len(t, w.transport.sent, sent, "no staff notification")
			})
		}
	})

	resp := w.activate(t, accounts.KindOrganization, ref, token, accounts.OrganizationCompletion{
		OrganizationName: "Seva Trust",
		Website:          "https://seva.example.org",
	})
	require.Equal(t, accounts.ActivationCompleted, resp.Stage)

	stored, err := w.repo.Accounts().GetByID(ctx, ngo.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.True(t, stored.Profile.IsOrganization)
	assert.False(t, stored.Profile.Active)
	assert.False(t, stored.IsOperational())

	staffMail := w.transport.sent[len(w.transport.sent)-1]
	assert.Equal(t, accounts.SubjectOrganizationRegistered, staffMail.Subject)
	assert.Equal(t, []string{"admin@x.org"}, staffMail.Recipients)

	pending, err := w.repo.Profiles().ListPendingOrganizations(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	review := accounts.NewReviewOrganizationHandler(w.repo, w.notifier)

	t.Run("approve sends exactly one email", func(t *testing.T) {
		before := len(w.transport.sent)
		err := review.Execute(ctx, accounts.ReviewOrganizationMessage{
			Actor:     admin,
			ProfileID: pending[0].ID,
			Decision:  accounts.ReviewApprove,
			Site:      testSite,
		})
		require.NoError(t, err)
		require.Len(t, w.transport.sent, before+1)
		mail := w.transport.sent[before]
		assert.Equal(t, accounts.SubjectOrganizationApproved, mail.Subject)
		assert.Equal(t, []string{"seva@x.org"}, mail.Recipients)

		stored, err := w.repo.Accounts().GetByID(ctx, ngo.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsOperational())
	})

	t.Run("profile edits keep the approval", func(t *testing.T) {
		err := accounts.NewUpdateProfileHandler(w.repo, w.notifier).Execute(ctx, accounts.UpdateProfileMessage{
			AccountID: ngo.ID,
			Update: accounts.OrganizationProfileUpdate{
				Email:            "seva@x.org",
				OrganizationName: "Seva Trust India",
				Website:          "https://seva.example.org",
			},
			Site: testSite,
		})
		require.NoError(t, err)

		stored, err := w.repo.Accounts().GetByID(ctx, ngo.ID)
		require.NoError(t, err)
		assert.Equal(t, "Seva Trust India", stored.Profile.OrganizationName)
		assert.True(t, stored.Profile.IsOrganization)
		assert.True(t, stored.IsOperational())
	})

	t.Run("reject closes the gate", func(t *testing.T) {
		err := review.Execute(ctx, accounts.ReviewOrganizationMessage{
			Actor:     admin,
			ProfileID: pending[0].ID,
			Decision:  accounts.ReviewReject,
			Site:      testSite,
		})
		require.NoError(t, err)
		assert.Equal(t, accounts.SubjectOrganizationRejected, w.transport.sent[len(w.transport.sent)-1].Subject)

		stored, err := w.repo.Accounts().GetByID(ctx, ngo.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsOperational())
	})

	t.Run("individual profiles can not be reviewed", func(t *testing.T) {
		err := review.Execute(ctx, accounts.ReviewOrganizationMessage{
			Actor:     admin,
			ProfileID: admin.Profile.ID,
			Decision:  accounts.ReviewApprove,
		})
		assert.True(t, goerrors.IsNotFound(err))
	})
}

func TestEmailReconfirmation(t *testing.T) {
	w := newWorkflow(t)
	ctx := context.Background()

	jane := w.signup(t, accounts.KindIndividual, "jane", "old@x.org")
	w.signup(t, accounts.KindIndividual, "other", "other@x.org")

	update := accounts.NewUpdateProfileHandler(w.repo, w.notifier)
	confirm := accounts.NewConfirmEmailHandler(w.repo)

	t.Run("changed email is staged", func(t *testing.T) {
		var resp *accounts.UpdateProfileResponse
		err := update.Execute(ctx, accounts.UpdateProfileMessage{
			AccountID: jane.ID,
			Update: accounts.UserProfileUpdate{
				FirstName: "Jane",
				LastName:  "Doe",
				Email:     "new@x.org",
			},
			Site:       testSite,
			OnResponse: func(r *accounts.UpdateProfileResponse) { resp = r },
		})
		require.NoError(t, err)
		assert.Equal(t, "new@x.org", resp.PendingEmail)

		stored, err := w.repo.Accounts().GetByID(ctx, jane.ID)
		require.NoError(t, err)
		assert.Equal(t, "old@x.org", stored.Email)
		require.True(t, stored.Profile.HasPendingEmail())
		assert.Equal(t, "new@x.org", *stored.Profile.UnconfirmedEmail)

		mail := w.transport.sent[len(w.transport.sent)-1]
		assert.Equal(t, accounts.SubjectConfirmEmail, mail.Subject)
		assert.Equal(t, []string{"new@x.org"}, mail.Recipients)
		assert.Contains(t, mail.Body, accounts.ConfirmEmailPath(jane))
	})

	t.Run("confirmation promotes the staged email", func(t *testing.T) {
		require.NoError(t, confirm.Execute(ctx, accounts.ConfirmEmailMessage{Ref: accounts.EncodeAccountRef(jane.ID)}))

		stored, err := w.repo.Accounts().GetByID(ctx, jane.ID)
		require.NoError(t, err)
		assert.Equal(t, "new@x.org", stored.Email)
		assert.False(t, stored.Profile.HasPendingEmail())
	})

	t.Run("second confirmation is invalid", func(t *testing.T) {
		err := confirm.Execute(ctx, accounts.ConfirmEmailMessage{Ref: accounts.EncodeAccountRef(jane.ID)})
		assert.ErrorIs(t, err, accounts.ErrInvalidLink)
	})

	t.Run("bad references are invalid", func(t *testing.T) {
		for _, ref := range []string{"", "@@", accounts.EncodeAccountRef(uuid.New())} {
			err := confirm.Execute(ctx, accounts.ConfirmEmailMessage{Ref: ref})
			assert.ErrorIs(t, err, accounts.ErrInvalidLink, ref)
		}
	})

	t.Run("email of another account is a field error", func(t *testing.T) {
		sent := len(w.transport.sent)
		err := update.Execute(ctx, accounts.UpdateProfileMessage{
			AccountID: jane.ID,
			Update: accounts.UserProfileUpdate{
				FirstName: "Jane",
				LastName:  "Doe",
				Email:     "OTHER@x.org",
			},
			Site: testSite,
		})
		fields, ok := accounts.AsFieldErrors(err)
		require.True(t, ok)
		assert.Contains(t, fields, "email")
		assert.Len(t, w.transport.sent, sent)
	})

	t.Run("unchanged email sends nothing", func(t *testing.T) {
		sent := len(w.transport.sent)
		err := update.Execute(ctx, accounts.UpdateProfileMessage{
			AccountID: jane.ID,
			Update: accounts.UserProfileUpdate{
				FirstName: "Janaki",
				LastName:  "Doe",
				Email:     "new@x.org",
			},
			Site: testSite,
		})
		require.NoError(t, err)
		assert.Len(t, w.transport.sent, sent)
	})

	t.Run("organization email change is staged and confirmed", func(t *testing.T) {
		ngo := w.signup(t, accounts.KindOrganization, "seva", "seva@x.org")
		ref, token := w.lastLink(t)
		resp := w.activate(t, accounts.KindOrganization, ref, token, accounts.OrganizationCompletion{OrganizationName: "Seva Trust"})
		require.Equal(t, accounts.ActivationCompleted, resp.Stage)

		var updated *accounts.UpdateProfileResponse
		err := update.Execute(ctx, accounts.UpdateProfileMessage{
			AccountID: ngo.ID,
			Update: accounts.OrganizationProfileUpdate{
				Email:            "office@seva.org",
				OrganizationName: "Seva Trust",
			},
			Site:       testSite,
			OnResponse: func(r *accounts.UpdateProfileResponse) { updated = r },
		})
		require.NoError(t, err)
		assert.Equal(t, "office@seva.org", updated.PendingEmail)

		mail := w.transport.sent[len(w.transport.sent)-1]
		assert.Equal(t, accounts.SubjectConfirmEmail, mail.Subject)
		assert.Equal(t, []string{"office@seva.org"}, mail.Recipients)

		stored, err := w.repo.Accounts().GetByID(ctx, ngo.ID)
		require.NoError(t, err)
		assert.Equal(t, "seva@x.org", stored.Email)
		assert.True(t, stored.Profile.IsOrganization)
		assert.False(t, stored.Profile.Active, "still waiting for approval")

		require.NoError(t, confirm.Execute(ctx, accounts.ConfirmEmailMessage{Ref: accounts.EncodeAccountRef(ngo.ID)}))

		stored, err = w.repo.Accounts().GetByID(ctx, ngo.ID)
		require.NoError(t, err)
		assert.Equal(t, "office@seva.org", stored.Email)
		assert.False(t, stored.Profile.HasPendingEmail())
		assert.False(t, stored.Profile.Active)
	})

	t.Run("organization payload on an individual profile", func(t *testing.T) {
		err := update.Execute(ctx, accounts.UpdateProfileMessage{
			AccountID: jane.ID,
			Update: accounts.OrganizationProfileUpdate{
				Email:            "new@x.org",
				OrganizationName: "Not an NGO",
			},
			Site: testSite,
		})
		assert.ErrorIs(t, err, accounts.ErrProfileKindMismatch)
	})
}

func TestChangePassword(t *testing.T) {
	w := newWorkflow(t)
	ctx := context.Background()

	jane := w.signup(t, accounts.KindIndividual, "jane", "jane@x.org")
	token := w.tokens.Issue(jane)
	handler := accounts.NewChangePasswordHandler(w.repo)

	t.Run("wrong old password", func(t *testing.T) {
		err := handler.Execute(ctx, accounts.ChangePasswordMessage{
			AccountID: jane.ID,
			Payload: accounts.PasswordChangePayload{
				OldPassword:  "not-it-at-all",
				NewPassword:  "fig-harbour-77",
				NewPassword2: "fig-harbour-77",
			},
		})
		fields, ok := accounts.AsFieldErrors(err)
		require.True(t, ok)
		assert.Contains(t, fields, "old_password")
	})

	t.Run("new password is stored", func(t *testing.T) {
		var updated *accounts.Account
		err := handler.Execute(ctx, accounts.ChangePasswordMessage{
			AccountID: jane.ID,
			Payload: accounts.PasswordChangePayload{
				OldPassword:  "plum-orchard-41",
				NewPassword:  "fig-harbour-77",
				NewPassword2: "fig-harbour-77",
			},
			OnResponse: func(a *accounts.Account) { updated = a },
		})
		require.NoError(t, err)
		require.NotNil(t, updated)

		stored, err := w.repo.Accounts().GetByID(ctx, jane.ID)
		require.NoError(t, err)
		assert.NoError(t, accounts.ComparePasswordAndHash("fig-harbour-77", stored.PasswordHash))
		assert.False(t, w.tokens.Verify(stored, token), "password change invalidates activation tokens")
	})
}

func TestCreateSuperuser(t *testing.T) {
	w := newWorkflow(t)
	ctx := context.Background()
	w.signup(t, accounts.KindIndividual, "jane", "jane@example.org")

	handler := accounts.NewCreateSuperuserHandler(w.repo)

	t.Run("taken username and email", func(t *testing.T) {
		err := handler.Execute(ctx, accounts.CreateSuperuserMessage{
			Payload: accounts.SignupPayload{
				Username:  "jane",
				Email:     "JANE@example.org",
				Password:  "plum-orchard-41",
				Password2: "plum-orchard-41",
			},
		})
		fields, ok := accounts.AsFieldErrors(err)
		require.True(t, ok)
		assert.Contains(t, fields, "username")
		assert.Contains(t, fields, "email")
	})

	t.Run("creates an active superuser that receives staff mail", func(t *testing.T) {
		var created *accounts.Account
		err := handler.Execute(ctx, accounts.CreateSuperuserMessage{
			Payload: accounts.SignupPayload{
				Username:  "root",
				Email:     "root@jananicare.test",
				Password:  "plum-orchard-41",
				Password2: "plum-orchard-41",
			},
			OnResponse: func(a *accounts.Account) { created = a },
		})
		require.NoError(t, err)
		require.NotNil(t, created)

		stored, err := w.repo.Accounts().GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsActive)
		assert.True(t, stored.IsSuperuser)
		require.NotNil(t, stored.Profile)
		assert.False(t, stored.Profile.IsOrganization)

		staff, err := w.repo.Accounts().StaffEmails(ctx)
		require.NoError(t, err)
		assert.Contains(t, staff, "root@jananicare.test")
	})
}

func tamper(token string) string {
	last := token[len(token)-1]
	if last == '0' {
		return token[:len(token)-1] + "1"
	}
	return token[:len(token)-1] + "0"
}
