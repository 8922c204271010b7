package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-router"
)

// Logger is the logging contract used across the package.
// Arguments after the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds session and link options
type Config interface {
	GetSigningKey() string
	GetContextKey() string
	GetSessionDuration() time.Duration
	GetIssuer() string
	GetAudience() []string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
	GetSecureCookies() bool
}

// Site carries the request scoped values used to build absolute links
type Site struct {
	Scheme string
	Domain string
}

// URL joins the site base with the given path
func (s Site) URL(path string) string {
	scheme := s.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s%s", scheme, s.Domain, path)
}

// LoginPayload is what the login form submits
type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
}

// HTTPAuthenticator manages the session cookie
type HTTPAuthenticator interface {
	Login(c router.Context, payload LoginPayload) (*Account, error)
	Logout(c router.Context)
	Impersonate(c router.Context, account *Account) error
	ProtectedRoute() router.MiddlewareFunc
	OptionalSession() router.MiddlewareFunc
	RequireSuperuser() router.MiddlewareFunc
	SetRedirect(c router.Context)
	GetRedirectOrDefault(c router.Context) string
}

// AccountCredentialChecker resolves an identifier and a secret to an account
type AccountCredentialChecker interface {
	Check(ctx context.Context, identifier, secret string) (*Account, error)
}

// ActivationTokens issues and verifies activation tokens
type ActivationTokens interface {
	Issue(account *Account) string
	Verify(account *Account, token string) bool
}

// Notifier sends templated messages
type Notifier interface {
	SendTemplate(ctx context.Context, subject, template string, data map[string]any, recipients ...string) error
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] ACCOUNTS " + formatLine(msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] ACCOUNTS " + formatLine(msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] ACCOUNTS " + formatLine(msg, args))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] ACCOUNTS " + formatLine(msg, args))
}

func formatLine(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	b.WriteString("\n")
	return b.String()
}
