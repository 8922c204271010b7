package main

import (
	"context"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	mflash "github.com/goliatone/go-router/middleware/flash"
	"github.com/uptrace/bun"
	"golang.org/x/time/rate"

	"github.com/jananicare/accounts"
	"github.com/jananicare/accounts/activitymap"
	"github.com/jananicare/accounts/config"
	"github.com/jananicare/accounts/mailer"
	"github.com/jananicare/accounts/middleware/csrf"
	"github.com/jananicare/accounts/middleware/ratelimit"
	"github.com/jananicare/accounts/views"
)

// throttledPaths are the form posts that guess or create credentials
var throttledPaths = []string{
	accounts.LoginRoute,
	"/accounts/signup",
	"/accounts/organization/signup",
	"/accounts/change-password",
}

func serve(ctx context.Context, cfg *config.Config, db *bun.DB, lgr *glog.BaseLogger) error {
	logger := lgr.GetLogger("server")

	repo := accounts.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		return err
	}

	engine, err := views.NewEngine(views.Options{
		Debug:     cfg.Debug,
		Functions: accounts.TemplateHelpers(),
	})
	if err != nil {
		return err
	}

	metrics := accounts.NewMetrics("jananicare")
	sinks := []accounts.ActivitySink{metrics, accounts.LoggingActivitySink(lgr.GetLogger("activity"))}
	if cfg.AuditLog != "" {
		f, err := os.OpenFile(cfg.AuditLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return err
		}
		defer f.Close()
		sinks = append(sinks, activitymap.NewWriterSink(f))
	}
	sink := accounts.MultiActivitySink(sinks...)

	var transport accounts.Transport = mailer.NewSMTP(cfg.GetSMTP())
	if cfg.Debug {
		transport = mailer.NewConsole(os.Stdout)
	}
	notifier := accounts.NewDispatcher(transport, engine).
		WithLogger(lgr.GetLogger("notifier")).
		WithActivitySink(sink)

	tokens := accounts.NewTokenGenerator(cfg.GetSigningKey(), cfg.GetTokenOptions()...)

	checker := accounts.NewModelBackend(repo.Accounts()).
		WithLogger(lgr.GetLogger("auth:backend")).
		WithActivitySink(sink)

	auther := accounts.NewHTTPAuthenticator(
		checker,
		accounts.SessionTokensFromConfig(cfg, lgr.GetLogger("auth:tokens")),
		repo.Accounts(),
		cfg,
	).WithLogger(lgr.GetLogger("auth:http")).WithActivitySink(sink)

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			UnescapePath:      true,
			PassLocalsToViews: true,
			Views:             engine,
		})
		app.Use(allowedHosts(cfg.AllowedHosts))
		app.Use(metrics.FiberMiddleware())
		return router.DefaultFiberOptions(app)
	})

	r := srv.Router()
	r.WithLogger(lgr.GetLogger("router"))
	r.Use(csrf.New(csrf.Config{
		SecureKey:    csrf.DeriveKey(cfg.GetSigningKey()),
		CookieSecure: cfg.GetSecureCookies(),
	}))
	r.Use(mflash.New(mflash.ConfigDefault))
	r.Use(ratelimit.New(ratelimit.Config{
		Limit: rate.Limit(cfg.RateLimit.PerSecond),
		Burst: cfg.RateLimit.Burst,
		Filter: func(c router.Context) bool {
			path, _, _ := strings.Cut(c.OriginalURL(), "?")
			return !slices.Contains(throttledPaths, path)
		},
		LimitReached: func(c router.Context) error {
			return c.Status(http.StatusTooManyRequests).Render("errors/429", accounts.MergeTemplateData(c, router.ViewContext{
				"error_message": accounts.MessageLoginThrottled,
			}))
		},
	}))

	r.Get("/", func(c router.Context) error {
		return c.Redirect("/accounts/profile", http.StatusFound)
	}).SetName("home")

	accounts.RegisterAccountRoutes(r, func(c *accounts.AccountsController) *accounts.AccountsController {
		c.Debug = cfg.Debug
		c.UseHashid = cfg.UseHashid
		c.Site = cfg.GetSite()
		c.Repo = repo
		c.Tokens = tokens
		c.Notifier = notifier
		c.Auther = auther
		c.ActivitySink = sink
		c.WithLogger(lgr.GetLogger("accounts:ctrl"))
		return c
	})

	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux(metrics),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr, "site", cfg.GetSite().URL("/"))
		if err := srv.Serve(cfg.HTTPAddr); err != nil {
			logger.Error("http server stopped", "error", err)
		}
	}()

	sig := WaitExitSignal()
	logger.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	return metricsSrv.Shutdown(shutdownCtx)
}

func metricsMux(metrics *accounts.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// allowedHosts rejects requests for hosts the site does not serve.
// A "*" entry allows any host.
func allowedHosts(hosts []string) fiber.Handler {
	allowed := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		allowed[strings.ToLower(strings.TrimSpace(h))] = true
	}

	return func(c *fiber.Ctx) error {
		if allowed["*"] {
			return c.Next()
		}
		host := strings.ToLower(c.Hostname())
		if i := strings.LastIndexByte(host, ':'); i > 0 && !strings.Contains(host[i:], "]") {
			host = host[:i]
		}
		if !allowed[host] {
			return c.Status(fiber.StatusBadRequest).SendString("Bad Request (400)")
		}
		return c.Next()
	}
}
