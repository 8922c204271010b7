package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ActivateAccountSQL flips the active flag only if nobody else did it first
var ActivateAccountSQL = `UPDATE "accounts"
SET
	"is_active" = TRUE,
	"updated_at" = current_timestamp
WHERE
	"id" = ?
	AND "is_active" = FALSE;`

var SetPasswordSQL = `UPDATE "accounts"
SET
	"password_hash" = ?,
	"updated_at" = current_timestamp
WHERE
	"id" = ?;`

var trackFailedLoginSQL = `UPDATE "accounts"
SET
	"login_attempts" = ?,
	"login_attempt_at" = current_timestamp
WHERE
	"id" = ?;`

var trackLoginSQL = `UPDATE "accounts"
SET
	"last_login_at" = current_timestamp,
	"login_attempt_at" = NULL,
	"login_attempts" = 0
WHERE
	"id" = ?;`

// Accounts is the account store
type Accounts interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error)
	FindByLogin(ctx context.Context, identifier string) (*Account, error)
	IsUsernameTaken(ctx context.Context, tx bun.IDB, username string) (bool, error)
	IsEmailTaken(ctx context.Context, tx bun.IDB, email string, exclude uuid.UUID) (bool, error)
	CreateTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	UpdateTx(ctx context.Context, tx bun.IDB, account *Account, columns ...string) error
	ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error)
	SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
	StaffEmails(ctx context.Context) ([]string, error)
	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
}

type accountsRepo struct {
	base repository.Repository[*Account]
	db   *bun.DB
}

var _ Accounts = (*accountsRepo)(nil)

// NewAccountsRepository creates the bun backed account store
func NewAccountsRepository(db *bun.DB) Accounts {
	base := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
	})

	return &accountsRepo{base: base, db: db}
}

func withProfile(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Relation("Profile")
}

func (r *accountsRepo) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return r.base.GetByID(ctx, id.String(), withProfile)
}

func (r *accountsRepo) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Relation("Profile").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}
	return record, nil
}

// FindByLogin matches the identifier against username or email ignoring
// case. A username match wins over an email match.
func (r *accountsRepo) FindByLogin(ctx context.Context, identifier string) (*Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, repository.NewRecordNotFound()
	}

	record := &Account{}
	err := r.db.NewSelect().
		Model(record).
		Relation("Profile").
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("LOWER(?TableAlias.username) = LOWER(?)", identifier).
				WhereOr("LOWER(?TableAlias.email) = LOWER(?)", identifier)
		}).
		OrderExpr("CASE WHEN LOWER(?TableAlias.username) = LOWER(?) THEN 0 ELSE 1 END", identifier).
		OrderExpr("?TableAlias.created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"identifier": identifier,
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *accountsRepo) IsUsernameTaken(ctx context.Context, tx bun.IDB, username string) (bool, error) {
	return tx.NewSelect().
		Model((*Account)(nil)).
		Where("LOWER(?TableAlias.username) = LOWER(?)", strings.TrimSpace(username)).
		Exists(ctx)
}

func (r *accountsRepo) IsEmailTaken(ctx context.Context, tx bun.IDB, email string, exclude uuid.UUID) (bool, error) {
	q := tx.NewSelect().
		Model((*Account)(nil)).
		Where("LOWER(?TableAlias.email) = LOWER(?)", strings.TrimSpace(email))
	if exclude != uuid.Nil {
		q = q.Where("?TableAlias.id != ?", exclude)
	}
	return q.Exists(ctx)
}

func (r *accountsRepo) CreateTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	account.Email = strings.TrimSpace(account.Email)
	account.Username = strings.TrimSpace(account.Username)
	return r.base.CreateTx(ctx, tx, account)
}

// UpdateTx writes the given columns, updated_at is always refreshed
func (r *accountsRepo) UpdateTx(ctx context.Context, tx bun.IDB, account *Account, columns ...string) error {
	now := time.Now().UTC()
	account.UpdatedAt = &now

	q := tx.NewUpdate().Model(account).WherePK()
	if len(columns) > 0 {
		q = q.Column(append(append([]string{}, columns...), "updated_at")...)
	} else {
		q = q.ExcludeColumn("id", "created_at")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": account.ID.String(),
			})
	}

	return nil
}

// ActivateTx reports false when the account was already active or missing
func (r *accountsRepo) ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error) {
	res, err := tx.NewRaw(ActivateAccountSQL, id).Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func (r *accountsRepo) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := tx.NewRaw(SetPasswordSQL, passwordHash, id).Exec(ctx)
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

func (r *accountsRepo) StaffEmails(ctx context.Context) ([]string, error) {
	var emails []string
	err := r.db.NewSelect().
		Model((*Account)(nil)).
		Column("email").
		Where("?TableAlias.is_staff = ?", true).
		Where("?TableAlias.is_active = ?", true).
		Where("?TableAlias.email != ''").
		OrderExpr("?TableAlias.email ASC").
		Scan(ctx, &emails)
	if err != nil {
		return nil, err
	}
	return emails, nil
}

func (r *accountsRepo) TrackAttemptedLogin(ctx context.Context, account *Account) error {
	_, err := r.db.NewRaw(trackFailedLoginSQL, account.LoginAttempts+1, account.ID).Exec(ctx)
	return err
}

func (r *accountsRepo) TrackSuccessfulLogin(ctx context.Context, account *Account) error {
	_, err := r.db.NewRaw(trackLoginSQL, account.ID).Exec(ctx)
	return err
}
