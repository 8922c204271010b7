package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var setApprovalSQL = `UPDATE "profiles"
SET
	"active" = ?,
	"updated_at" = current_timestamp
WHERE
	"id" = ?
	AND "is_organization" = TRUE;`

// Profiles is the profile store
type Profiles interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByAccountIDTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*Profile, error)
	CreateTx(ctx context.Context, tx bun.IDB, profile *Profile) (*Profile, error)
	UpdateTx(ctx context.Context, tx bun.IDB, profile *Profile, columns ...string) error
	SetApprovalTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) error
	ListPendingOrganizations(ctx context.Context) ([]*Profile, error)
}

type profilesRepo struct {
	base repository.Repository[*Profile]
	db   *bun.DB
}

var _ Profiles = (*profilesRepo)(nil)

// NewProfilesRepository creates the bun backed profile store
func NewProfilesRepository(db *bun.DB) Profiles {
	base := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "account_id"
		},
	})
	return &profilesRepo{base: base, db: db}
}

func withAccount(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Relation("Account")
}

func (r *profilesRepo) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return r.base.GetByID(ctx, id.String(), withAccount)
}

func (r *profilesRepo) GetByAccountIDTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*Profile, error) {
	record := &Profile{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.account_id = ?", accountID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"account_id": accountID.String(),
				})
		}
		return nil, err
	}
	return record, nil
}

func (r *profilesRepo) CreateTx(ctx context.Context, tx bun.IDB, profile *Profile) (*Profile, error) {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	return r.base.CreateTx(ctx, tx, profile)
}

// UpdateTx writes the given columns, updated_at is always refreshed
func (r *profilesRepo) UpdateTx(ctx context.Context, tx bun.IDB, profile *Profile, columns ...string) error {
	now := time.Now().UTC()
	profile.UpdatedAt = &now

	q := tx.NewUpdate().Model(profile).WherePK()
	if len(columns) > 0 {
		q = q.Column(append(append([]string{}, columns...), "updated_at")...)
	} else {
		q = q.ExcludeColumn("id", "account_id", "created_at")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": profile.ID.String(),
			})
	}
	return nil
}

// SetApprovalTx only touches organization profiles
func (r *profilesRepo) SetApprovalTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) error {
	res, err := tx.NewRaw(setApprovalSQL, active, id).Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}
	return nil
}

// ListPendingOrganizations returns unapproved organizations whose account
// finished activation, oldest first
func (r *profilesRepo) ListPendingOrganizations(ctx context.Context) ([]*Profile, error) {
	var records []*Profile
	err := r.db.NewSelect().
		Model(&records).
		Relation("Account").
		Where("?TableAlias.is_organization = ?", true).
		Where("?TableAlias.active = ?", false).
		Where("account.is_active = ?", true).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}
