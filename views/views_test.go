package views_test

import (
	"bytes"
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jananicare/accounts"
	"github.com/jananicare/accounts/views"
)

func TestEmbeddedTemplates(t *testing.T) {
	expected := []string{
		"accounts/login.html",
		"accounts/signup.html",
		"accounts/organization_signup.html",
		"accounts/activation_pending.html",
		"accounts/complete_registration.html",
		"accounts/complete_organization_registration.html",
		"accounts/activation_completed.html",
		"accounts/link_invalid.html",
		"accounts/view_profile.html",
		"accounts/ngo_profile.html",
		"accounts/edit_profile.html",
		"accounts/edit_ngo_profile.html",
		"accounts/change_password.html",
		"accounts/ngo_approval.html",
		"emails/activation.html",
		"emails/organization_activation.html",
		"emails/email_confirmation.html",
		"emails/ngo_approval_request.html",
		"emails/ngo_approved.html",
		"emails/ngo_rejected.html",
		"errors/400.html",
		"errors/403.html",
		"errors/404.html",
		"errors/429.html",
		"errors/500.html",
	}

	for _, name := range expected {
		_, err := fs.Stat(views.FS(), name)
		assert.NoError(t, err, name)
	}
}

func TestEmailTemplates(t *testing.T) {
	engine, err := views.NewEngine(views.Options{Functions: accounts.TemplateHelpers()})
	require.NoError(t, err)

	account := &accounts.Account{Username: "helping_hands", Email: "team@helpinghands.org"}
	profile := &accounts.Profile{OrganizationName: "Helping <Hands>"}

	tests := []struct {
		template string
		data     map[string]any
		contains []string
	}{
		{
			template: "emails/activation",
			data:     map[string]any{"account": account, "domain": "jananicare.org", "link": "https://jananicare.org/accounts/activate/abc/1-2?x=1&y=2"},
			contains: []string{"Hi helping_hands", "https://jananicare.org/accounts/activate/abc/1-2?x=1&y=2"},
		},
		{
			template: "emails/organization_activation",
			data:     map[string]any{"account": account, "domain": "jananicare.org", "link": "https://jananicare.org/accounts/organization/activate/abc/1-2"},
			contains: []string{"register", "/accounts/organization/activate/abc/1-2"},
		},
		{
			template: "emails/email_confirmation",
			data:     map[string]any{"account": account, "email": "new@helpinghands.org", "domain": "jananicare.org", "link": "https://jananicare.org/accounts/confirm-email/abc"},
			contains: []string{"new@helpinghands.org", "/accounts/confirm-email/abc"},
		},
		{
			template: "emails/ngo_approval_request",
			data:     map[string]any{"account": account, "profile": profile, "domain": "jananicare.org", "link": "https://jananicare.org/accounts/ngo-approval/42"},
			contains: []string{"Helping <Hands>", "team@helpinghands.org", "/accounts/ngo-approval/42"},
		},
		{
			template: "emails/ngo_approved",
			data:     map[string]any{"account": account, "profile": profile, "domain": "jananicare.org", "link": "https://jananicare.org/login"},
			contains: []string{"approved", "https://jananicare.org/login"},
		},
		{
			template: "emails/ngo_rejected",
			data:     map[string]any{"account": account, "profile": profile, "domain": "jananicare.org", "link": "https://jananicare.org/login"},
			contains: []string{"could not approve", "https://jananicare.org/login"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, engine.Render(&out, tt.template, tt.data))
			for _, want := range tt.contains {
				assert.Contains(t, out.String(), want)
			}
			assert.NotContains(t, out.String(), "&amp;")
		})
	}
}

func TestDispatcherRendersWithEngine(t *testing.T) {
	engine, err := views.NewEngine(views.Options{Functions: accounts.TemplateHelpers()})
	require.NoError(t, err)

	var sent *accounts.Notification
	dispatcher := accounts.NewDispatcher(accounts.TransportFunc(func(_ context.Context, msg *accounts.Notification) error {
		sent = msg
		return nil
	}), engine)

	err = dispatcher.SendTemplate(context.Background(), accounts.SubjectActivateAccount, "emails/activation", map[string]any{
		"account": &accounts.Account{Username: "jane"},
		"domain":  "jananicare.org",
		"link":    "https://jananicare.org/accounts/activate/x/y",
	}, "jane@example.org")
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.True(t, strings.Contains(sent.Body, "https://jananicare.org/accounts/activate/x/y"))
}

func TestPagesRender(t *testing.T) {
	engine, err := views.NewEngine(views.Options{Functions: accounts.TemplateHelpers()})
	require.NoError(t, err)

	var out bytes.Buffer
	err = engine.Render(&out, "accounts/login", map[string]any{
		"errors":     accounts.FieldErrors{"authentication": "Please enter a correct username and password."},
		"record":     accounts.LoginRequest{Identifier: "jane"},
		"csrf_field": `<input type="hidden" name="_token" value="tok">`,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), `value="jane"`)
	assert.Contains(t, out.String(), `name="_token"`)
	assert.Contains(t, out.String(), "Please enter a correct username and password.")
	assert.Contains(t, out.String(), `<a href="/accounts/organization/signup">Register an NGO</a>`, "layout should wrap the page")
	assert.Contains(t, out.String(), "<title>Log in</title>")
}
