package accounts_test

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/jananicare/accounts"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockRepositoryManager implements accounts.RepositoryManager
type MockRepositoryManager struct {
	mock.Mock
	accounts *MockAccounts
	profiles *MockProfiles
	geo      *MockGeo
}

func NewMockRepositoryManager() *MockRepositoryManager {
	return &MockRepositoryManager{
		accounts: new(MockAccounts),
		profiles: new(MockProfiles),
		geo:      new(MockGeo),
	}
}

func (m *MockRepositoryManager) Validate() error {
	return nil
}

func (m *MockRepositoryManager) MustValidate() {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	if err := args.Error(0); err != nil {
		return err
	}
	var tx bun.Tx
	return f(ctx, tx)
}

func (m *MockRepositoryManager) Accounts() accounts.Accounts { return m.accounts }
func (m *MockRepositoryManager) Profiles() accounts.Profiles { return m.profiles }
func (m *MockRepositoryManager) Geo() accounts.Geo           { return m.geo }

// MockAccounts implements accounts.Accounts
type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) GetByID(ctx context.Context, id uuid.UUID) (*accounts.Account, error) {
	args := m.Called(ctx, id)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccounts) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*accounts.Account, error) {
	args := m.Called(ctx, tx, id)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccounts) FindByLogin(ctx context.Context, identifier string) (*accounts.Account, error) {
	args := m.Called(ctx, identifier)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccounts) IsUsernameTaken(ctx context.Context, tx bun.IDB, username string) (bool, error) {
	args := m.Called(ctx, tx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccounts) IsEmailTaken(ctx context.Context, tx bun.IDB, email string, exclude uuid.UUID) (bool, error) {
	args := m.Called(ctx, tx, email, exclude)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccounts) CreateTx(ctx context.Context, tx bun.IDB, account *accounts.Account) (*accounts.Account, error) {
	args := m.Called(ctx, tx, account)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockAccounts) UpdateTx(ctx context.Context, tx bun.IDB, account *accounts.Account, columns ...string) error {
	args := m.Called(ctx, tx, account, columns)
	return args.Error(0)
}

func (m *MockAccounts) ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, tx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccounts) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

func (m *MockAccounts) StaffEmails(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	emails, _ := args.Get(0).([]string)
	return emails, args.Error(1)
}

func (m *MockAccounts) TrackAttemptedLogin(ctx context.Context, account *accounts.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccounts) TrackSuccessfulLogin(ctx context.Context, account *accounts.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

// MockProfiles implements accounts.Profiles
type MockProfiles struct {
	mock.Mock
}

func (m *MockProfiles) GetByID(ctx context.Context, id uuid.UUID) (*accounts.Profile, error) {
	args := m.Called(ctx, id)
	return profileArg(args, 0), args.Error(1)
}

func (m *MockProfiles) GetByAccountIDTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*accounts.Profile, error) {
	args := m.Called(ctx, tx, accountID)
	return profileArg(args, 0), args.Error(1)
}

func (m *MockProfiles) CreateTx(ctx context.Context, tx bun.IDB, profile *accounts.Profile) (*accounts.Profile, error) {
	args := m.Called(ctx, tx, profile)
	return profileArg(args, 0), args.Error(1)
}

func (m *MockProfiles) UpdateTx(ctx context.Context, tx bun.IDB, profile *accounts.Profile, columns ...string) error {
	args := m.Called(ctx, tx, profile, columns)
	return args.Error(0)
}

func (m *MockProfiles) SetApprovalTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) error {
	args := m.Called(ctx, tx, id, active)
	return args.Error(0)
}

func (m *MockProfiles) ListPendingOrganizations(ctx context.Context) ([]*accounts.Profile, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]*accounts.Profile)
	return out, args.Error(1)
}

// MockGeo implements accounts.Geo
type MockGeo struct {
	mock.Mock
}

func (m *MockGeo) Countries(ctx context.Context) ([]accounts.Country, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]accounts.Country)
	return out, args.Error(1)
}

func (m *MockGeo) StatesByCountry(ctx context.Context, countryID int64) ([]accounts.State, error) {
	args := m.Called(ctx, countryID)
	out, _ := args.Get(0).([]accounts.State)
	return out, args.Error(1)
}

// MockNotifier implements accounts.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendTemplate(ctx context.Context, subject, template string, data map[string]any, recipients ...string) error {
	args := m.Called(ctx, subject, template, data, recipients)
	return args.Error(0)
}

// MockLoginPayload implements accounts.LoginPayload
type MockLoginPayload struct {
	Identifier string
	Password   string
}

func (m MockLoginPayload) GetIdentifier() string {
	return m.Identifier
}

func (m MockLoginPayload) GetPassword() string {
	return m.Password
}

func accountArg(args mock.Arguments, i int) *accounts.Account {
	a, _ := args.Get(i).(*accounts.Account)
	return a
}

func profileArg(args mock.Arguments, i int) *accounts.Profile {
	p, _ := args.Get(i).(*accounts.Profile)
	return p
}

// runTx lets RunInTx execute the callback with a zero bun.Tx
func runTx(m *MockRepositoryManager) *mock.Call {
	return m.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).Return(nil)
}

// MockHTTPAuthenticator implements accounts.HTTPAuthenticator
type MockHTTPAuthenticator struct {
	mock.Mock
}

func (m *MockHTTPAuthenticator) Login(c router.Context, payload accounts.LoginPayload) (*accounts.Account, error) {
	args := m.Called(c, payload)
	return accountArg(args, 0), args.Error(1)
}

func (m *MockHTTPAuthenticator) Logout(c router.Context) {
	m.Called(c)
}

func (m *MockHTTPAuthenticator) Impersonate(c router.Context, account *accounts.Account) error {
	args := m.Called(c, account)
	return args.Error(0)
}

func (m *MockHTTPAuthenticator) ProtectedRoute() router.MiddlewareFunc {
	return passThrough
}

func (m *MockHTTPAuthenticator) OptionalSession() router.MiddlewareFunc {
	return passThrough
}

func (m *MockHTTPAuthenticator) RequireSuperuser() router.MiddlewareFunc {
	return passThrough
}

func (m *MockHTTPAuthenticator) SetRedirect(c router.Context) {
	m.Called(c)
}

func (m *MockHTTPAuthenticator) GetRedirectOrDefault(c router.Context) string {
	args := m.Called(c)
	return args.String(0)
}

func passThrough(next router.HandlerFunc) router.HandlerFunc {
	return next
}

// recordingFlasher keeps flash data instead of writing cookies
type recordingFlasher struct {
	success []router.ViewContext
	errors  []router.ViewContext
}

func (f *recordingFlasher) WithSuccess(ctx router.Context, data router.ViewContext) router.Context {
	f.success = append(f.success, data)
	return ctx
}

func (f *recordingFlasher) WithError(ctx router.Context, data router.ViewContext) router.Context {
	f.errors = append(f.errors, data)
	return ctx
}
