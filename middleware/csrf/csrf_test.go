package csrf

import (
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testSecret = strings.Repeat("ab", DefaultTokenLength)

func newTestSecureKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func newMockContextWithBase(method, cookie string) *router.MockContext {
	ctx := router.NewMockContext()
	ctx.On("Method").Return(method)
	ctx.CookiesM[DefaultCookieName] = cookie
	ctx.On("Locals", DefaultContextKey, mock.Anything).Return(nil)
	ctx.On("Locals", DefaultContextKey+"_field", mock.Anything).Return(nil)
	ctx.On("Locals", DefaultContextKey+"_header", mock.Anything).Return(nil)
	ctx.On("LocalsMerge", mock.Anything, mock.Anything).Return(map[string]any{}).Maybe()
	return ctx
}

func testConfig(captured *error) Config {
	return Config{
		SecureKey: newTestSecureKey(),
		ErrorHandler: func(ctx router.Context, err error) error {
			if captured != nil {
				*captured = err
			}
			return err
		},
	}
}

func TestDoubleSubmitSuccess(t *testing.T) {
	handler := New(testConfig(nil))(func(ctx router.Context) error { return nil })

	getCtx := newMockContextWithBase("GET", testSecret)
	require.NoError(t, handler(getCtx))
	getCtx.AssertNotCalled(t, "Cookie", mock.Anything)

	tokenVal, ok := getCtx.LocalsMock[DefaultContextKey].(string)
	require.True(t, ok)
	require.NotEmpty(t, tokenVal)

	postCtx := newMockContextWithBase("POST", testSecret)
	postCtx.On("FormValue", DefaultFormFieldName).Return(tokenVal)

	require.NoError(t, handler(postCtx))
	assert.True(t, postCtx.NextCalled)
}

func TestHeaderTokenAccepted(t *testing.T) {
	handler := New(testConfig(nil))(func(ctx router.Context) error { return nil })

	getCtx := newMockContextWithBase("GET", testSecret)
	require.NoError(t, handler(getCtx))
	tokenVal := getCtx.LocalsMock[DefaultContextKey].(string)

	postCtx := newMockContextWithBase("POST", testSecret)
	postCtx.On("FormValue", DefaultFormFieldName).Return("")
	postCtx.HeadersM[DefaultHeaderName] = tokenVal

	require.NoError(t, handler(postCtx))
	assert.True(t, postCtx.NextCalled)
}

func TestFirstVisitSetsCookie(t *testing.T) {
	handler := New(testConfig(nil))(func(ctx router.Context) error { return nil })

	ctx := newMockContextWithBase("GET", "")
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == DefaultCookieName && len(c.Value) == 2*DefaultTokenLength && c.HTTPOnly
	})).Return().Once()

	require.NoError(t, handler(ctx))
	assert.True(t, ctx.NextCalled)
	ctx.AssertExpectations(t)
}

func TestRejections(t *testing.T) {
	otherSecret := strings.Repeat("cd", DefaultTokenLength)

	handler := New(testConfig(nil))(func(ctx router.Context) error { return nil })
	getCtx := newMockContextWithBase("GET", testSecret)
	require.NoError(t, handler(getCtx))
	valid := getCtx.LocalsMock[DefaultContextKey].(string)

	tests := []struct {
		name   string
		cookie string
		token  string
		want   error
	}{
		{name: "no cookie", cookie: "", token: valid, want: ErrCookieMissing},
		{name: "no token", cookie: testSecret, token: "", want: ErrTokenMissing},
		{name: "tampered", cookie: testSecret, token: "tampered", want: ErrTokenMismatch},
		{name: "token from another browser", cookie: otherSecret, token: valid, want: ErrTokenMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured error
			handler := New(testConfig(&captured))(func(ctx router.Context) error { return nil })

			ctx := newMockContextWithBase("POST", tt.cookie)
			ctx.On("Cookie", mock.Anything).Return().Maybe()
			ctx.On("FormValue", DefaultFormFieldName).Return(tt.token).Maybe()

			err := handler(ctx)
			require.Error(t, err)
			assert.ErrorIs(t, captured, tt.want)
			assert.False(t, ctx.NextCalled)
		})
	}
}

func TestTokenExpiration(t *testing.T) {
	cfg := configDefault(Config{SecureKey: newTestSecureKey(), Expiration: time.Minute})
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	token, err := generateToken(cfg, testSecret, issued)
	require.NoError(t, err)

	assert.NoError(t, verifyToken(cfg, testSecret, token, issued.Add(30*time.Second)))
	assert.ErrorIs(t, verifyToken(cfg, testSecret, token, issued.Add(2*time.Minute)), ErrTokenExpired)
}

func TestShortSecureKeyPanics(t *testing.T) {
	require.Panics(t, func() {
		handler := New(Config{SecureKey: []byte("short")})(func(ctx router.Context) error { return nil })
		handler(newMockContextWithBase("GET", testSecret))
	})
}

func TestDeriveKeyLength(t *testing.T) {
	assert.Len(t, DeriveKey("x"), 32)
	assert.NotEqual(t, DeriveKey("x"), DeriveKey("y"))
}

func TestTemplateHelpersWithRouter(t *testing.T) {
	ctx := router.NewMockContext()
	ctx.LocalsMock[DefaultContextKey] = "tok"

	helpers := CSRFTemplateHelpersWithRouter(ctx, "")
	assert.Equal(t, "tok", helpers["csrf_token"])
	assert.Contains(t, helpers["csrf_field"], `name="`+DefaultFormFieldName+`" value="tok"`)
	assert.Equal(t, DefaultHeaderName, helpers["csrf_header_name"])
}
