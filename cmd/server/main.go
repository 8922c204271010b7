package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/jananicare/accounts"
	"github.com/jananicare/accounts/config"
)

const usage = `usage: server [command]

commands:
  serve            run the web server (default)
  migrate          apply pending database migrations
  createsuperuser  create an active superuser account
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, (&config.Config{}).Usage("environment:"))
		os.Exit(1)
	}

	lgr := newLogger(cfg.Debug)
	logger := lgr.GetLogger("app")

	if cfg.Debug {
		safe := *cfg
		safe.SecretKey = "********"
		safe.Email.Password = "********"
		logger.Debug("configuration loaded", "config", print.MaybeHighlightJSON(safe))
	}

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	ctx := context.Background()

	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	accounts.SetPasswordHashCost(cfg.BcryptCost)

	switch command {
	case "serve":
		err = serve(ctx, cfg, db, lgr)
	case "migrate":
		err = migrate(ctx, cfg, db, lgr)
	case "createsuperuser":
		err = createSuperuser(ctx, db, os.Stdin, os.Stdout, lgr.GetLogger("createsuperuser"))
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func newLogger(debug bool) *glog.BaseLogger {
	if debug {
		return glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Trace),
			glog.WithName("app"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	}
	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName("app"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

// openDB picks the dialect from the DSN, postgres URLs go through pgx and
// anything else is treated as a sqlite file
func openDB(dsn string) (*bun.DB, error) {
	if isPostgresDSN(dsn) {
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
