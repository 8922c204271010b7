package accounts

import (
	"context"

	"github.com/uptrace/bun"
)

// Geo reads the country and state reference data
type Geo interface {
	Countries(ctx context.Context) ([]Country, error)
	StatesByCountry(ctx context.Context, countryID int64) ([]State, error)
}

type geoRepo struct {
	db *bun.DB
}

// NewGeoRepository creates the bun backed reference data reader
func NewGeoRepository(db *bun.DB) Geo {
	return &geoRepo{db: db}
}

func (r *geoRepo) Countries(ctx context.Context) ([]Country, error) {
	out := []Country{}
	err := r.db.NewSelect().
		Model(&out).
		OrderExpr("?TableAlias.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StatesByCountry never returns nil so the JSON encoding is always a list
func (r *geoRepo) StatesByCountry(ctx context.Context, countryID int64) ([]State, error) {
	out := []State{}
	err := r.db.NewSelect().
		Model(&out).
		Where("?TableAlias.country_id = ?", countryID).
		OrderExpr("?TableAlias.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return out, nil
}
