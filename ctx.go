package accounts

import (
	"context"

	"github.com/goliatone/go-router"
)

// CurrentAccountKey is the router locals key holding the signed in account
const CurrentAccountKey = "current_account"

var accountCtxKey = &contextKey{"account"}

type contextKey struct {
	name string
}

// WithContext sets the Account in the given context
func WithContext(r context.Context, account *Account) context.Context {
	return context.WithValue(r, accountCtxKey, account)
}

// FromContext finds the account from the context.
func FromContext(ctx context.Context) (*Account, bool) {
	raw, ok := ctx.Value(accountCtxKey).(*Account)
	return raw, ok && raw != nil
}

// CurrentAccount returns the account stored by the session middleware
func CurrentAccount(ctx router.Context) (*Account, bool) {
	raw := ctx.Locals(CurrentAccountKey)
	if raw == nil {
		return nil, false
	}
	account, ok := raw.(*Account)
	return account, ok && account != nil
}
