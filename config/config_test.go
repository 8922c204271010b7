package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jananicare/accounts/config"
)

const testSecret = "0123456789abcdef0123456789abcdef-test"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SECRET_KEY", testSecret)
	t.Setenv("DEBUG", "true")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "sessionid", cfg.GetContextKey())
	assert.Equal(t, 30*time.Minute, cfg.GetSessionDuration())
	assert.Equal(t, 587, cfg.Email.Port)
	assert.Equal(t, "root@localhost", cfg.GetSMTP().From)
	assert.Equal(t, []string{"localhost"}, cfg.AllowedHosts)
	assert.False(t, cfg.GetSecureCookies())
	assert.Equal(t, "http://localhost:8080/x", cfg.GetSite().URL("/x"))
	assert.Len(t, cfg.GetTokenOptions(), 2)
	assert.False(t, cfg.UseHashid)
	assert.Equal(t, 5*time.Second, cfg.DBPingTimeout)
}

func TestLoadDotenvAndOverrides(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte(
		"SECRET_KEY="+testSecret+"\n"+
			"SITE_SCHEME=https\n"+
			"SITE_DOMAIN=jananicare.org\n"+
			"EMAIL_HOST=smtp.jananicare.org\n"+
			"SESSION_COOKIE_AGE=45m\n"+
			"ALLOWED_HOSTS=jananicare.org,www.jananicare.org\n"+
			"USE_HASHID=true\n",
	), 0o600))

	t.Setenv("SITE_DOMAIN", "staging.jananicare.org")
	t.Cleanup(func() {
		for _, k := range []string{"SECRET_KEY", "SITE_SCHEME", "EMAIL_HOST", "SESSION_COOKIE_AGE", "ALLOWED_HOSTS", "USE_HASHID"} {
			os.Unsetenv(k)
		}
	})

	cfg, err := config.Load(env)
	require.NoError(t, err)

	assert.Equal(t, "staging.jananicare.org", cfg.Site.Domain, "environment wins over dotenv")
	assert.True(t, cfg.GetSecureCookies())
	assert.Equal(t, 45*time.Minute, cfg.GetSessionDuration())
	assert.Equal(t, []string{"jananicare.org", "www.jananicare.org"}, cfg.AllowedHosts)
	assert.Equal(t, []string{"staging.jananicare.org"}, cfg.GetAudience())
	assert.True(t, cfg.UseHashid)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{"DEBUG": "true"}},
		{name: "short secret", env: map[string]string{"SECRET_KEY": "short", "DEBUG": "true"}},
		{name: "smtp required in production", env: map[string]string{"SECRET_KEY": testSecret}},
		{name: "bad scheme", env: map[string]string{"SECRET_KEY": testSecret, "DEBUG": "true", "SITE_SCHEME": "ftp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SECRET_KEY", "")
			os.Unsetenv("SECRET_KEY")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
