package accounts

import (
	"context"
	"embed"
	"io/fs"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

//go:embed data/fixtures/*.yml
var fixturesFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// GetFixturesFS returns the reference data fixtures, countries and states
func GetFixturesFS() embed.FS {
	return fixturesFS
}

// Models lists the bun models fixtures and the persistence client register
func Models() []any {
	return []any{
		(*Account)(nil),
		(*Profile)(nil),
		(*Country)(nil),
		(*State)(nil),
	}
}

// NewMigrations loads the embedded SQL migrations
func NewMigrations() (*migrate.Migrations, error) {
	sub, err := fs.Sub(migrationsFS, "data/sql/migrations")
	if err != nil {
		return nil, err
	}

	migrations := migrate.NewMigrations()
	if err := migrations.Discover(sub); err != nil {
		return nil, err
	}
	return migrations, nil
}

// Migrate applies every pending migration and returns the names applied
func Migrate(ctx context.Context, db *bun.DB) ([]string, error) {
	migrations, err := NewMigrations()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load migrations")
	}

	migrator := migrate.NewMigrator(db, migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to init migrations")
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to apply migrations")
	}

	applied := []string{}
	if group == nil || group.IsZero() {
		return applied, nil
	}

	for _, m := range group.Migrations {
		applied = append(applied, m.Name+"_"+m.Comment)
	}
	return applied, nil
}
