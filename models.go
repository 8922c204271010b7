package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountKind tells individual accounts apart from NGO accounts
type AccountKind string

const (
	// KindIndividual is a donor or volunteer account
	KindIndividual AccountKind = "individual"
	// KindOrganization is an NGO account, gated by administrator approval
	KindOrganization AccountKind = "organization"
)

// Account is the identity record used to sign in
type Account struct {
	bun.BaseModel  `bun:"table:accounts,alias:acc"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email          string     `bun:"email,notnull" json:"email,omitempty"`
	FirstName      string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName       string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	IsActive       bool       `bun:"is_active,notnull" json:"is_active"`
	IsStaff        bool       `bun:"is_staff,notnull" json:"is_staff"`
	IsSuperuser    bool       `bun:"is_superuser,notnull" json:"is_superuser"`
	LoginAttempts  int        `bun:"login_attempts,notnull" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at,nullzero" json:"login_attempt_at,omitempty"`
	LastLoginAt    *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	Profile        *Profile   `bun:"rel:has-one,join:id=account_id" json:"profile,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// FullName joins first and last name
func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Kind reports the account kind based on its profile
func (a *Account) Kind() AccountKind {
	if a.Profile != nil && a.Profile.IsOrganization {
		return KindOrganization
	}
	return KindIndividual
}

// IsOperational reports whether the account can be treated as fully
// active. Organizations also need their profile approved.
func (a *Account) IsOperational() bool {
	if a == nil || !a.IsActive {
		return false
	}
	if a.Profile != nil && a.Profile.IsOrganization {
		return a.Profile.Active
	}
	return true
}

// Profile holds the public attributes of an account
type Profile struct {
	bun.BaseModel    `bun:"table:profiles,alias:prf"`
	ID               uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID        uuid.UUID  `bun:"account_id,notnull,unique,type:uuid" json:"account_id,omitempty"`
	Account          *Account   `bun:"rel:belongs-to,join:account_id=id" json:"account,omitempty"`
	IsOrganization   bool       `bun:"is_organization,notnull" json:"is_organization"`
	Active           bool       `bun:"active,notnull" json:"active"`
	UnconfirmedEmail *string    `bun:"unconfirmed_email" json:"unconfirmed_email,omitempty"`
	OrganizationName string     `bun:"organization_name,notnull" json:"organization_name,omitempty"`
	Phone            string     `bun:"phone,notnull" json:"phone,omitempty"`
	Address          string     `bun:"address,notnull" json:"address,omitempty"`
	City             string     `bun:"city,notnull" json:"city,omitempty"`
	CountryID        *int64     `bun:"country_id" json:"country_id,omitempty"`
	StateID          *int64     `bun:"state_id" json:"state_id,omitempty"`
	Description      string     `bun:"description,notnull" json:"description,omitempty"`
	Website          string     `bun:"website,notnull" json:"website,omitempty"`
	CreatedAt        *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt        *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// HasPendingEmail reports whether an email change awaits confirmation
func (p *Profile) HasPendingEmail() bool {
	return p != nil && p.UnconfirmedEmail != nil && *p.UnconfirmedEmail != ""
}

// PendingApproval is true for organizations still waiting for an administrator
func (p *Profile) PendingApproval() bool {
	return p != nil && p.IsOrganization && !p.Active
}

// Country is reference data for the address dropdowns
type Country struct {
	bun.BaseModel `bun:"table:countries,alias:cty"`
	ID            int64  `bun:"id,pk" json:"id"`
	Name          string `bun:"name,notnull" json:"name"`
	Code          string `bun:"code,notnull" json:"code"`
}

// State belongs to a Country
type State struct {
	bun.BaseModel `bun:"table:states,alias:st"`
	ID            int64  `bun:"id,pk" json:"id"`
	CountryID     int64  `bun:"country_id,notnull" json:"-"`
	Name          string `bun:"name,notnull" json:"name"`
	Code          string `bun:"code,notnull" json:"code"`
}
