package accounts_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/jananicare/accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountContext(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		account := &accounts.Account{ID: uuid.New(), Username: "jane"}
		ctx := accounts.WithContext(context.Background(), account)

		got, ok := accounts.FromContext(ctx)
		require.True(t, ok)
		assert.Same(t, account, got)
	})

	t.Run("empty context", func(t *testing.T) {
		_, ok := accounts.FromContext(context.Background())
		assert.False(t, ok)
	})

	t.Run("nil account", func(t *testing.T) {
		ctx := accounts.WithContext(context.Background(), nil)
		_, ok := accounts.FromContext(ctx)
		assert.False(t, ok)
	})
}

func TestCurrentAccount(t *testing.T) {
	tests := []struct {
		name   string
		locals any
		want   bool
	}{
		{name: "no session", want: false},
		{name: "account stored", locals: &accounts.Account{ID: uuid.New()}, want: true},
		{name: "typed nil", locals: (*accounts.Account)(nil), want: false},
		{name: "unexpected type", locals: "jane", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := router.NewMockContext()
			if tt.locals != nil {
				ctx.LocalsMock[accounts.CurrentAccountKey] = tt.locals
			}

			account, ok := accounts.CurrentAccount(ctx)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, tt.locals, account)
			}
		})
	}
}
