package accounts

import (
	"maps"

	"github.com/goliatone/go-router"

	"github.com/jananicare/accounts/middleware/csrf"
)

var TemplateUserKey = "current_user"

// TemplateHelpers returns the functions views use to branch on the
// signed in account. Register them with the view engine at startup.
//
//	{% if is_authenticated(current_user) %}
//	{% if is_superuser(current_user) %}
//	{{ csrf_field }}
func TemplateHelpers() map[string]any {
	return map[string]any{
		"is_authenticated": isAuthenticated,
		"is_superuser":     isSuperuser,
		"is_organization":  isOrganization,
		"is_operational":   isOperational,
		"display_name":     displayName,
	}
}

// MergeTemplateData adds the current account and the CSRF helpers
// to the view context
func MergeTemplateData(ctx router.Context, data router.ViewContext) router.ViewContext {
	out := router.ViewContext{}
	if account, ok := CurrentAccount(ctx); ok {
		out[TemplateUserKey] = account
	}
	maps.Copy(out, csrf.CSRFTemplateHelpersWithRouter(ctx, csrf.DefaultContextKey))
	maps.Copy(out, data)
	return out
}

func accountOf(user any) *Account {
	switch u := user.(type) {
	case *Account:
		return u
	case Account:
		return &u
	default:
		return nil
	}
}

func isAuthenticated(user any) bool {
	return accountOf(user) != nil
}

func isSuperuser(user any) bool {
	a := accountOf(user)
	return a != nil && a.IsActive && a.IsSuperuser
}

func isOrganization(user any) bool {
	a := accountOf(user)
	return a != nil && a.Kind() == KindOrganization
}

func isOperational(user any) bool {
	return accountOf(user).IsOperational()
}

func displayName(user any) string {
	a := accountOf(user)
	if a == nil {
		return ""
	}
	if a.Kind() == KindOrganization && a.Profile.OrganizationName != "" {
		return a.Profile.OrganizationName
	}
	if name := a.FullName(); name != "" {
		return name
	}
	return a.Username
}
