package main

import (
	"context"
	"io/fs"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"

	"github.com/jananicare/accounts"
	"github.com/jananicare/accounts/config"
)

// persistenceConfig exposes the database settings to the persistence client
type persistenceConfig struct {
	debug       bool
	dsn         string
	pingTimeout time.Duration
}

func newPersistenceConfig(cfg *config.Config) persistenceConfig {
	return persistenceConfig{
		debug:       cfg.Debug,
		dsn:         cfg.DatabaseURL,
		pingTimeout: cfg.DBPingTimeout,
	}
}

func (p persistenceConfig) GetDebug() bool {
	return p.debug
}

func (p persistenceConfig) GetDriver() string {
	if isPostgresDSN(p.dsn) {
		return "pgx"
	}
	return "sqlite"
}

func (p persistenceConfig) GetServer() string {
	return p.dsn
}

func (p persistenceConfig) GetPingTimeout() time.Duration {
	if p.pingTimeout <= 0 {
		return 5 * time.Second
	}
	return p.pingTimeout
}

func (p persistenceConfig) GetOtelIdentifier() string {
	return ""
}

// newPersistence builds the client that runs dialect checked migrations
// and loads the reference data fixtures
func newPersistence(cfg persistenceConfig, db *bun.DB, logger glog.Logger) (*persistence.Client, error) {
	for _, model := range accounts.Models() {
		persistence.RegisterModel(model)
	}

	client, err := persistence.New(cfg, db.DB, db.Dialect())
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create persistence client")
	}
	client.SetLogger(logger)

	migrationsFS, err := fs.Sub(accounts.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return nil, err
	}
	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)
	client.RegisterFixtures(accounts.GetFixturesFS())

	return client, nil
}

func migrate(ctx context.Context, cfg *config.Config, db *bun.DB, lgr *glog.BaseLogger) error {
	logger := lgr.GetLogger("migrate")

	client, err := newPersistence(newPersistenceConfig(cfg), db, lgr.GetLogger("persistence"))
	if err != nil {
		return err
	}

	if err := client.ValidateDialects(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "migrations do not cover every dialect")
	}

	if err := client.Migrate(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to apply migrations")
	}

	if report := client.Report(); report != nil && !report.IsZero() {
		logger.Info("migrations applied", "report", report.String())
	} else {
		logger.Info("database is up to date")
	}

	return seedReferenceData(ctx, client, logger)
}

// seedReferenceData loads the geo fixtures into an empty database only,
// profiles reference the rows so they are never truncated
func seedReferenceData(ctx context.Context, client *persistence.Client, logger accounts.Logger) error {
	count, err := client.DB().NewSelect().Model((*accounts.Country)(nil)).Count(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to count countries")
	}
	if count > 0 {
		logger.Debug("reference data present", "countries", count)
		return nil
	}

	if err := client.Seed(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to load reference data")
	}
	logger.Info("reference data loaded")
	return nil
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
