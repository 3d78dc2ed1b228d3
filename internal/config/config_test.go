package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/learnhabit/internal/security/secretbox"
)

const testMasterKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=" // base64("0123456789abcdef0123456789abcdef")

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "LOG_LEVEL", "SERVER_ADDR", "STORAGE_DRIVER", "STORAGE_DSN",
		"REDIS_ADDR", "CACHE_KIND", "VERIFY_PIN_TTL", "VERIFY_MAX_ATTEMPTS",
		"VERIFY_RESEND_COOLDOWN", "RATE_ENABLED", "RATE_LIMIT", "RATE_WINDOW",
		"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_APP_PASSWORD",
		"SMTP_PASSWORD_ENC", "SECRETBOX_MASTER_KEY", "TICKET_SECRET", "RESEND_API_KEY",
		"RATE_TRUSTED_PROXIES",
	} {
		t.Setenv(k, "")
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	clearEnv(t)
	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "dev", c.App.Env)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "memory", c.Storage.Driver)
	assert.Equal(t, "memory", c.Cache.Kind)
	assert.Equal(t, 10*time.Minute, c.Verification.PINTTL)
	assert.Equal(t, 3, c.Verification.MaxAttempts)
	assert.Equal(t, 60*time.Second, c.Verification.ResendCooldown)
	assert.Equal(t, 587, c.SMTP.Port)
	assert.Equal(t, 30*time.Second, c.SMTP.Timeout)
	assert.Equal(t, "Learning Habit Tracker", c.Email.AppName)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	p := writeYAML(t, `
server:
  addr: ":9000"
storage:
  driver: pg
  dsn: postgres://u:p@localhost/db
verification:
  pin_ttl: 5m
  resend_cooldown: 30s
rate:
  enabled: true
  window: 2m
`)
	t.Setenv("VERIFY_MAX_ATTEMPTS", "5")
	t.Setenv("RATE_LIMIT", "7")
	t.Setenv("SERVER_ADDR", ":9100")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":9100", c.Server.Addr)
	assert.Equal(t, "postgres", c.Storage.Driver)
	assert.Equal(t, 5*time.Minute, c.Verification.PINTTL)
	assert.Equal(t, 30*time.Second, c.Verification.ResendCooldown)
	assert.Equal(t, 5, c.Verification.MaxAttempts)
	assert.True(t, c.Rate.Enabled)
	assert.Equal(t, 7, c.Rate.Limit)
	assert.Equal(t, 2*time.Minute, c.Rate.Window)

	sc := c.StoreConfig()
	assert.Equal(t, "postgres", sc.Driver)
	assert.Equal(t, 24*time.Hour+5*time.Minute, sc.Retention())
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeYAML(t, "server: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: parse")
}

func TestValidate_Errors(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_DRIVER", "postgres")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.dsn is required")

	t.Setenv("STORAGE_DRIVER", "cassandra")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestValidate_ProdRequiresTicketSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "prod")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticket_secret")

	t.Setenv("TICKET_SECRET", strings.Repeat("s", 32))
	c, err := Load("")
	require.NoError(t, err)
	assert.True(t, c.IsProd())
}

func TestLoad_BadSMTPAppPasswordIsOnlyAWarning(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMTP_HOST", "smtp.gmail.com")
	t.Setenv("SMTP_USERNAME", "bot@example.com")
	t.Setenv("SMTP_APP_PASSWORD", strings.Repeat("x", 15))
	t.Setenv("RESEND_API_KEY", "re_test")
	c, err := Load("")
	require.NoError(t, err)
	require.Len(t, c.Warnings(), 1)
	assert.Contains(t, c.Warnings()[0], "app password")
	assert.Equal(t, "re_test", c.ProvidersConfig().Resend.APIKey)

	t.Setenv("SMTP_APP_PASSWORD", "abcd efgh ijkl mnop")
	c, err = Load("")
	require.NoError(t, err)
	assert.Empty(t, c.Warnings())
	assert.Len(t, c.ProvidersConfig().SMTP.AppPassword, 19)
}

func TestLoad_TrustedProxies(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.7 ,::1")
	c, err := Load("")
	require.NoError(t, err)

	got, err := c.TrustedProxies()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "10.0.0.0/8", got[0].String())
	assert.Equal(t, "192.168.1.7/32", got[1].String())
	assert.Equal(t, "::1/128", got[2].String())

	t.Setenv("RATE_TRUSTED_PROXIES", "10.0.0.0/8,not-an-ip")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate.trusted_proxies")
}

func TestCacheConfigView(t *testing.T) {
	clearEnv(t)
	t.Setenv("CACHE_KIND", "redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	c, err := Load("")
	require.NoError(t, err)

	cc := c.CacheConfig()
	assert.Equal(t, "redis", cc.Driver)
	assert.Equal(t, "cache:6379", cc.Addr)
}

func TestLoad_DecryptsSMTPPassword(t *testing.T) {
	clearEnv(t)
	box, err := secretbox.New(testMasterKey)
	require.NoError(t, err)
	enc, err := box.Encrypt("abcdefghijklmnop")
	require.NoError(t, err)

	t.Setenv("SMTP_HOST", "smtp.gmail.com")
	t.Setenv("SMTP_USERNAME", "bot@example.com")
	t.Setenv("SMTP_PASSWORD_ENC", enc)

	_, err = Load("")
	require.Error(t, err, "sin master key no se puede descifrar")

	t.Setenv("SECRETBOX_MASTER_KEY", testMasterKey)
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "abcdefghijklmnop", c.SMTP.AppPassword)
	assert.Equal(t, "abcdefghijklmnop", c.SMTPConfig().AppPassword)
}
