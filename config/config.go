package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/jananicare/accounts"
	"github.com/jananicare/accounts/mailer"
)

// MinSecretKeyLength keeps SECRET_KEY usable as an HMAC and CSRF key
const MinSecretKeyLength = 32

type Config struct {
	Debug        bool     `env:"DEBUG" env-default:"false"`
	SecretKey    string   `env:"SECRET_KEY" env-required:"true"`
	HTTPAddr     string   `env:"HTTP_ADDR" env-default:":8080"`
	MetricsAddr  string   `env:"METRICS_ADDR" env-default:":9090"`
	AllowedHosts []string `env:"ALLOWED_HOSTS" env-separator:"," env-default:"localhost"`
	DatabaseURL  string   `env:"DATABASE_URL" env-default:"file:jananicare.db?cache=shared"`
	BcryptCost   int      `env:"BCRYPT_COST" env-default:"10"`
	AuditLog     string   `env:"AUDIT_LOG"`

	// UseHashid derives account ids from the lowercased username
	UseHashid     bool          `env:"USE_HASHID" env-default:"false"`
	DBPingTimeout time.Duration `env:"DB_PING_TIMEOUT" env-default:"5s"`

	Site      Site
	Email     Email
	Session   Session
	Tokens    Tokens
	RateLimit RateLimit
}

type Site struct {
	Scheme string `env:"SITE_SCHEME" env-default:"http"`
	Domain string `env:"SITE_DOMAIN" env-default:"localhost:8080"`
}

type Email struct {
	From     string `env:"SERVER_EMAIL" env-default:"root@localhost"`
	Host     string `env:"EMAIL_HOST"`
	Port     int    `env:"EMAIL_PORT" env-default:"587"`
	User     string `env:"EMAIL_HOST_USER"`
	Password string `env:"EMAIL_HOST_PASSWORD"`
}

type Session struct {
	CookieName      string        `env:"SESSION_COOKIE_NAME" env-default:"sessionid"`
	CookieAge       time.Duration `env:"SESSION_COOKIE_AGE" env-default:"30m"`
	Issuer          string        `env:"SESSION_ISSUER" env-default:"jananicare"`
	RedirectCookie  string        `env:"LOGIN_REDIRECT_COOKIE" env-default:"login_redirect"`
	LoginRedirectTo string        `env:"LOGIN_REDIRECT_URL" env-default:"/accounts/profile"`
}

type Tokens struct {
	Bucket time.Duration `env:"ACTIVATION_BUCKET" env-default:"24h"`
	MaxAge int           `env:"ACTIVATION_MAX_AGE" env-default:"3"`
}

type RateLimit struct {
	PerSecond float64 `env:"RATE_LIMIT_PER_SECOND" env-default:"0.2"`
	Burst     int     `env:"RATE_LIMIT_BURST" env-default:"10"`
}

var _ accounts.Config = (*Config)(nil)

// Load reads the optional dotenv files and then the process environment.
// Variables already set in the environment win over dotenv values.
func Load(dotenv ...string) (*Config, error) {
	if err := godotenv.Load(dotenv...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load dotenv: %w", err)
	}

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad panics when the configuration cannot be read
func MustLoad(dotenv ...string) *Config {
	cfg, err := Load(dotenv...)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks values cleanenv cannot express
func (c *Config) Validate() error {
	if len(c.SecretKey) < MinSecretKeyLength {
		return fmt.Errorf("SECRET_KEY must be at least %d characters", MinSecretKeyLength)
	}
	if !c.Debug && c.Email.Host == "" {
		return errors.New("EMAIL_HOST is required when DEBUG is off")
	}
	if c.Site.Scheme != "http" && c.Site.Scheme != "https" {
		return fmt.Errorf("SITE_SCHEME must be http or https, got %q", c.Site.Scheme)
	}
	return nil
}

// Usage describes every variable, printed by the server help
func (c *Config) Usage(header string) string {
	var b strings.Builder
	_ = cleanenv.FUsage(&b, c, &header)()
	return b.String()
}

func (c *Config) GetSigningKey() string {
	return c.SecretKey
}

func (c *Config) GetContextKey() string {
	return c.Session.CookieName
}

func (c *Config) GetSessionDuration() time.Duration {
	return c.Session.CookieAge
}

func (c *Config) GetIssuer() string {
	return c.Session.Issuer
}

func (c *Config) GetAudience() []string {
	return []string{c.Site.Domain}
}

func (c *Config) GetRejectedRouteKey() string {
	return c.Session.RedirectCookie
}

func (c *Config) GetRejectedRouteDefault() string {
	return c.Session.LoginRedirectTo
}

func (c *Config) GetSecureCookies() bool {
	return c.Site.Scheme == "https"
}

// GetSite returns the scheme and domain used in emailed links
func (c *Config) GetSite() accounts.Site {
	return accounts.Site{Scheme: c.Site.Scheme, Domain: c.Site.Domain}
}

// GetSMTP returns the mail relay settings
func (c *Config) GetSMTP() mailer.SMTPConfig {
	return mailer.SMTPConfig{
		Host:     c.Email.Host,
		Port:     c.Email.Port,
		Username: c.Email.User,
		Password: c.Email.Password,
		From:     c.Email.From,
		Domain:   c.Site.Domain,
	}
}

// GetTokenOptions configures the activation token generator
func (c *Config) GetTokenOptions() []accounts.TokenOption {
	return []accounts.TokenOption{
		accounts.WithTokenBucket(c.Tokens.Bucket),
		accounts.WithTokenMaxAge(c.Tokens.MaxAge),
	}
}
