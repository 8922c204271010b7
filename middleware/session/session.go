package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-router"
)

var (
	defaultTokenLookup  = "cookie:sessionid"
	ErrSessionMissing   = errors.New("missing or malformed session")
	ErrResolverRequired = errors.New("session middleware: Resolver is required")
)

// Claims is the minimum a validated session token exposes
type Claims interface {
	UserID() string
	Fingerprint() string
}

// Validator parses a raw token into Claims
type Validator interface {
	Validate(tokenString string) (Claims, error)
}

// Resolver loads the principal behind the claims. Returning an error
// rejects the request through the ErrorHandler.
type Resolver func(ctx context.Context, claims Claims) (any, error)

type Config struct {
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler
	Validator      Validator
	Resolver       Resolver
	// ContextKey is the locals key for the resolved principal
	ContextKey string
	// TokenLookup is a comma separated list of source:name pairs,
	// e.g. "cookie:sessionid,header:Authorization"
	TokenLookup string
	AuthScheme  string
	// TemplateUserKey also exposes the principal to views
	TemplateUserKey string
	// ContextEnricher propagates the principal to the standard context
	ContextEnricher func(c context.Context, principal any) context.Context
}

func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			raw, err := ExtractRawTokenFromContext(ctx, cfg.getExtractors())
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			claims, err := cfg.Validator.Validate(raw)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			principal, err := cfg.Resolver(ctx.Context(), claims)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, principal)
			if cfg.TemplateUserKey != "" && cfg.TemplateUserKey != cfg.ContextKey {
				ctx.Locals(cfg.TemplateUserKey, principal)
			}

			if cfg.ContextEnricher != nil {
				ctx.SetContext(cfg.ContextEnricher(ctx.Context(), principal))
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			if errors.Is(err, ErrSessionMissing) {
				return c.Status(router.StatusBadRequest).SendString(ErrSessionMissing.Error())
			}
			return c.Status(router.StatusUnauthorized).SendString("Invalid or expired session")
		}
	}

	if cfg.Validator == nil {
		panic("ACCOUNTS: session middleware configuration: Validator is required.")
	}

	if cfg.Resolver == nil {
		panic(ErrResolverRequired.Error())
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "current_account"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config) getExtractors() []Extractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

func ExtractRawTokenFromContext(ctx router.Context, extractors []Extractor) (string, error) {
	raw, err := "", ErrSessionMissing
	for _, extractor := range extractors {
		raw, err = extractor(ctx)
		if raw != "" && err == nil {
			break
		}
	}
	return raw, err
}

type Extractor func(c router.Context) (string, error)

// GetExtractors parses a lookup such as "cookie:sessionid,header:Authorization"
func GetExtractors(tokenLookup string, authSchemes ...string) []Extractor {
	extractors := make([]Extractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			extractors = append(extractors, fromHeader(parts[1], authScheme))
		case "query":
			extractors = append(extractors, fromQuery(parts[1]))
		case "cookie":
			extractors = append(extractors, fromCookie(parts[1]))
		}
	}

	return extractors
}

func fromHeader(header string, authScheme string) Extractor {
	authScheme = strings.TrimSpace(authScheme)
	return func(c router.Context) (string, error) {
		a := c.Header(header)
		l := len(authScheme)
		if l == 0 {
			return "", fmt.Errorf("%w: missing auth scheme", ErrSessionMissing)
		}
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrSessionMissing
	}
}

func fromQuery(param string) Extractor {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", ErrSessionMissing
		}
		return token, nil
	}
}

func fromCookie(name string) Extractor {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrSessionMissing
		}
		return token, nil
	}
}
