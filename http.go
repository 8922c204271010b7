package accounts

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"

	"github.com/jananicare/accounts/middleware/session"
)

// LoginRoute is where anonymous visitors of protected pages are sent
const LoginRoute = "/login"

// RouteAuthenticator manages the session cookie on top of a credential checker
type RouteAuthenticator struct {
	checker          AccountCredentialChecker
	tokens           *SessionTokens
	accounts         Accounts
	cfg              Config
	cookieDuration   time.Duration
	activitySink     ActivitySink
	Logger           Logger
	AuthErrorHandler func(c router.Context, err error) error
	ErrorHandler     func(c router.Context, err error) error
}

var _ HTTPAuthenticator = (*RouteAuthenticator)(nil)

// NewHTTPAuthenticator wires the checker used for logins, the token
// service for cookies and the account store used to resolve sessions
func NewHTTPAuthenticator(checker AccountCredentialChecker, tokens *SessionTokens, accounts Accounts, cfg Config) *RouteAuthenticator {
	cookieDuration := DefaultSessionDuration
	if cfg.GetSessionDuration() > 0 {
		cookieDuration = cfg.GetSessionDuration()
	}

	a := &RouteAuthenticator{
		checker:        checker,
		tokens:         tokens,
		accounts:       accounts,
		cfg:            cfg,
		cookieDuration: cookieDuration,
		activitySink:   noopActivitySink{},
		Logger:         defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a
}

// WithLogger sets the logger
func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

// WithActivitySink records logins and logouts
func (a *RouteAuthenticator) WithActivitySink(sink ActivitySink) *RouteAuthenticator {
	a.activitySink = normalizeActivitySink(sink)
	return a
}

func (a *RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

// ProtectedRoute requires a valid session, anonymous requests are
// redirected to the login page
func (a *RouteAuthenticator) ProtectedRoute() router.MiddlewareFunc {
	return a.sessionMiddleware(func(ctx router.Context, err error) error {
		return a.ErrorHandler(ctx, a.asAuthError(err))
	})
}

// OptionalSession loads the account when a valid session exists and lets
// every other request through
func (a *RouteAuthenticator) OptionalSession() router.MiddlewareFunc {
	return a.sessionMiddleware(func(ctx router.Context, err error) error {
		a.Logger.Debug("optional session skipped", "error", err)
		return ctx.Next()
	})
}

func (a *RouteAuthenticator) sessionMiddleware(errHandler router.ErrorHandler) router.MiddlewareFunc {
	return session.New(session.Config{
		Validator:       a.tokens,
		Resolver:        a.resolve,
		ErrorHandler:    errHandler,
		ContextKey:      CurrentAccountKey,
		TemplateUserKey: TemplateUserKey,
		TokenLookup:     "cookie:" + a.cfg.GetContextKey(),
		ContextEnricher: func(c context.Context, principal any) context.Context {
			account, _ := principal.(*Account)
			return WithContext(c, account)
		},
	})
}

// RequireSuperuser must run after ProtectedRoute
func (a *RouteAuthenticator) RequireSuperuser() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			account, ok := CurrentAccount(ctx)
			if !ok {
				return a.AuthErrorHandler(ctx, ErrUnableToFindSession)
			}
			if !account.IsActive || !account.IsSuperuser {
				return a.ErrorHandler(ctx, ErrForbidden)
			}
			return next(ctx)
		}
	}
}

// resolve loads the account behind a session. Sessions issued before the
// latest password change no longer match the fingerprint.
func (a *RouteAuthenticator) resolve(ctx context.Context, claims session.Claims) (any, error) {
	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, ErrSessionInvalid
	}

	account, err := a.accounts.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrSessionInvalid
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load session account")
	}

	if !account.IsActive || claims.Fingerprint() != PasswordFingerprint(account.PasswordHash) {
		return nil, ErrSessionInvalid
	}

	return account, nil
}

// Login checks the credentials and sets the session cookie
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) (*Account, error) {
	account, err := a.checker.Check(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Info("login rejected", "error", err)
		return nil, err
	}

	if err := a.Impersonate(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// Logout clears the session cookie
func (a *RouteAuthenticator) Logout(ctx router.Context) {
	if account, ok := CurrentAccount(ctx); ok {
		recordActivity(ctx.Context(), a.activitySink, a.Logger, ActivityEvent{
			EventType: ActivityEventLogout,
			Actor:     accountActor(account),
			AccountID: account.ID.String(),
		})
	}
	a.cookieDel(ctx, a.cfg.GetContextKey())
}

// Impersonate starts a session for the account without checking
// credentials. Used after activation and after a password change.
func (a *RouteAuthenticator) Impersonate(ctx router.Context, account *Account) error {
	token, err := a.tokens.Generate(account)
	if err != nil {
		a.Logger.Error("failed to issue session", "error", err)
		return err
	}

	a.setCookieToken(ctx, token, a.cookieDuration)
	return nil
}

// GetRedirectOrDefault returns the page stored by SetRedirect
func (a *RouteAuthenticator) GetRedirectOrDefault(ctx router.Context) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()

	r := ctx.Cookies(rejectedRoute)
	if r == "" || !isLocalPath(r) {
		r = a.cfg.GetRejectedRouteDefault()
	}
	a.cookieDel(ctx, rejectedRoute)
	return r
}

// SetRedirect remembers the current page for after login
func (a *RouteAuthenticator) SetRedirect(ctx router.Context) {
	rejectedRoute := a.cfg.GetRejectedRouteKey()

	a.Logger.Debug("setting redirect cookie", "key", rejectedRoute, "path", ctx.OriginalURL())

	ctx.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    ctx.OriginalURL(),
		Path:     "/",
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   a.cfg.GetSecureCookies(),
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Path:     "/",
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   a.cfg.GetSecureCookies(),
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cfg.GetSecureCookies(),
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) asAuthError(err error) *errors.Error {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr
	}
	if errors.Is(err, session.ErrSessionMissing) {
		return ErrUnableToFindSession
	}
	return errors.Wrap(err, errors.CategoryAuth, "invalid session").
		WithCode(errors.CodeUnauthorized)
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	richErr := a.asAuthError(err)

	a.Logger.Info(
		"authentication error, redirecting to login",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	a.SetRedirect(c)

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect(LoginRoute, statusCode)
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"request error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth:
		return a.AuthErrorHandler(c, richErr)
	case errors.CategoryAuthz:
		return c.Status(http.StatusForbidden).Render("errors/403", router.ViewContext{
			"error": richErr,
		})
	case errors.CategoryNotFound:
		return c.Status(http.StatusNotFound).Render("errors/404", router.ViewContext{
			"error": richErr,
		})
	case errors.CategoryRateLimit:
		return c.Status(http.StatusTooManyRequests).Render("errors/429", router.ViewContext{
			"error": richErr,
		})
	default:
		return c.Status(http.StatusInternalServerError).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}

// isLocalPath guards the post login redirect against off site targets
func isLocalPath(p string) bool {
	return len(p) > 0 && p[0] == '/' && (len(p) == 1 || (p[1] != '/' && p[1] != '\\'))
}
