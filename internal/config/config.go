package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/learnhabit/internal/cache"
	"github.com/dropDatabas3/learnhabit/internal/email"
	"github.com/dropDatabas3/learnhabit/internal/email/smtp"
	"github.com/dropDatabas3/learnhabit/internal/security/secretbox"
	"github.com/dropDatabas3/learnhabit/internal/store"
	"github.com/dropDatabas3/learnhabit/internal/verification"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"app_env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // memory | postgres | redis
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns int `yaml:"max_conns"`
			MinConns int `yaml:"min_conns"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	// Redis lo comparten el store redis, el cache y el rate limiter.
	Redis struct {
		Addr     string `yaml:"addr"`
		DB       int    `yaml:"db"`
		Password string `yaml:"password"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	Cache struct {
		Kind string `yaml:"kind"` // memory | redis
	} `yaml:"cache"`

	Verification struct {
		PINTTL           time.Duration `yaml:"pin_ttl"`
		MaxAttempts      int           `yaml:"max_attempts"`
		ResendCooldown   time.Duration `yaml:"resend_cooldown"`
		VerifiedCacheTTL time.Duration `yaml:"verified_cache_ttl"`
	} `yaml:"verification"`

	Rate struct {
		Enabled bool          `yaml:"enabled"`
		Limit   int           `yaml:"limit"`
		Window  time.Duration `yaml:"window"`
		// TrustedProxies son IPs o CIDRs cuyo X-Forwarded-For se respeta.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"rate"`

	Email struct {
		AppName      string `yaml:"app_name"`
		TemplatesDir string `yaml:"templates_dir"`
	} `yaml:"email"`

	Resend struct {
		APIKey string `yaml:"api_key"`
		From   string `yaml:"from"`
	} `yaml:"resend"`

	SMTP struct {
		Host               string        `yaml:"host"`
		Port               int           `yaml:"port"`
		Username           string        `yaml:"username"`
		AppPassword        string        `yaml:"app_password"`
		PasswordEnc        string        `yaml:"password_enc"` // secretbox; se usa si app_password está vacío
		From               string        `yaml:"from"`
		Timeout            time.Duration `yaml:"timeout"`
		InsecureSkipVerify bool          `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	SendGrid struct {
		APIKey string `yaml:"api_key"`
		From   string `yaml:"from"`
	} `yaml:"sendgrid"`

	Security struct {
		SecretBoxMasterKey string        `yaml:"secretbox_master_key"` // base64(32 bytes)
		TicketSecret       string        `yaml:"ticket_secret"`
		TicketIssuer       string        `yaml:"ticket_issuer"`
		TicketTTL          time.Duration `yaml:"ticket_ttl"`
	} `yaml:"security"`
}

// Load lee el YAML (si existe), aplica defaults, env y secretos, y valida.
// Un path vacío o inexistente deja solo defaults + env.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.resolveSecrets(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	c.Storage.Driver = store.NormalizeDriver(c.Storage.Driver)
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Verification.PINTTL <= 0 {
		c.Verification.PINTTL = verification.DefaultPINTTL
	}
	if c.Verification.MaxAttempts <= 0 {
		c.Verification.MaxAttempts = verification.DefaultMaxAttempts
	}
	if c.Verification.ResendCooldown <= 0 {
		c.Verification.ResendCooldown = verification.DefaultResendCooldown
	}
	if c.Verification.VerifiedCacheTTL <= 0 {
		c.Verification.VerifiedCacheTTL = 10 * time.Minute
	}
	if c.Rate.Limit <= 0 {
		c.Rate.Limit = 30
	}
	if c.Rate.Window <= 0 {
		c.Rate.Window = time.Minute
	}
	if c.Email.AppName == "" {
		c.Email.AppName = email.DefaultAppName
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = smtp.DefaultPort
	}
	if c.SMTP.Timeout <= 0 {
		c.SMTP.Timeout = smtp.DefaultTimeout
	}
	if c.Security.TicketIssuer == "" {
		c.Security.TicketIssuer = "learnhabit"
	}
	if c.Security.TicketTTL <= 0 {
		c.Security.TicketTTL = 30 * time.Minute
	}
}

// resolveSecrets descifra smtp.password_enc cuando no hay app_password en claro.
func (c *Config) resolveSecrets() error {
	if c.SMTP.AppPassword != "" || c.SMTP.PasswordEnc == "" {
		return nil
	}
	if c.Security.SecretBoxMasterKey == "" {
		return errors.New("config: smtp.password_enc requires security.secretbox_master_key")
	}
	plain, err := secretbox.DecryptWithKey(c.Security.SecretBoxMasterKey, c.SMTP.PasswordEnc)
	if err != nil {
		return fmt.Errorf("config: decrypt smtp.password_enc: %w", err)
	}
	c.SMTP.AppPassword = plain
	return nil
}

// IsProd indica APP_ENV=prod.
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa el YAML con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}

	// REDIS
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Redis.Prefix = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}

	// VERIFICATION
	if v, ok := getEnvDur("VERIFY_PIN_TTL"); ok {
		c.Verification.PINTTL = v
	}
	if v, ok := getEnvInt("VERIFY_MAX_ATTEMPTS"); ok {
		c.Verification.MaxAttempts = v
	}
	if v, ok := getEnvDur("VERIFY_RESEND_COOLDOWN"); ok {
		c.Verification.ResendCooldown = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_LIMIT"); ok {
		c.Rate.Limit = v
	}
	if v, ok := getEnvDur("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvStr("RATE_TRUSTED_PROXIES"); ok {
		c.Rate.TrustedProxies = splitList(v)
	}

	// EMAIL
	if v, ok := getEnvStr("EMAIL_APP_NAME"); ok {
		c.Email.AppName = v
	}
	if v, ok := getEnvStr("EMAIL_TEMPLATES_DIR"); ok {
		c.Email.TemplatesDir = v
	}
	if v, ok := getEnvStr("RESEND_API_KEY"); ok {
		c.Resend.APIKey = v
	}
	if v, ok := getEnvStr("RESEND_FROM"); ok {
		c.Resend.From = v
	}
	if v, ok := getEnvStr("SENDGRID_API_KEY"); ok {
		c.SendGrid.APIKey = v
	}
	if v, ok := getEnvStr("SENDGRID_FROM"); ok {
		c.SendGrid.From = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_APP_PASSWORD"); ok {
		c.SMTP.AppPassword = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD_ENC"); ok {
		c.SMTP.PasswordEnc = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvDur("SMTP_TIMEOUT"); ok {
		c.SMTP.Timeout = v
	}
	if v, ok := getEnvBool("SMTP_INSECURE_SKIP_VERIFY"); ok {
		c.SMTP.InsecureSkipVerify = v
	}

	// SECURITY
	if v, ok := getEnvStr("SECRETBOX_MASTER_KEY"); ok {
		c.Security.SecretBoxMasterKey = v
	}
	if v, ok := getEnvStr("TICKET_SECRET"); ok {
		c.Security.TicketSecret = v
	}
	if v, ok := getEnvDur("TICKET_TTL"); ok {
		c.Security.TicketTTL = v
	}
}

// Validate chequea los valores críticos. En prod además exige ticket_secret
// y prohíbe insecure_skip_verify.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory", "redis":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q not supported", c.Storage.Driver))
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.kind %q not supported", c.Cache.Kind))
	}
	if c.Verification.MaxAttempts < 1 {
		errs = append(errs, errors.New("verification.max_attempts must be >= 1"))
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("smtp.port %d out of range", c.SMTP.Port))
	}
	if _, err := c.TrustedProxies(); err != nil {
		errs = append(errs, err)
	}
	if c.IsProd() {
		if len(c.Security.TicketSecret) < 32 {
			errs = append(errs, errors.New("security.ticket_secret must be at least 32 bytes in prod"))
		}
		if c.SMTP.InsecureSkipVerify {
			errs = append(errs, errors.New("smtp.insecure_skip_verify is not allowed in prod"))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Warnings lista problemas que no impiden arrancar. Credenciales SMTP mal
// formadas solo deshabilitan ese provider en la práctica: el cliente las
// rechaza antes de conectar y la cadena sigue con el siguiente.
func (c *Config) Warnings() []string {
	var out []string
	if c.SMTP.Host != "" && c.SMTP.Username != "" && c.SMTP.AppPassword != "" {
		if err := smtp.ValidateCredentials(c.SMTPConfig()); err != nil {
			out = append(out, fmt.Sprintf("smtp: %v", err))
		}
	}
	return out
}

// ---- Vistas por componente ----

// TrustedProxies parsea rate.trusted_proxies; una IP suelta vale como /32 o /128.
func (c *Config) TrustedProxies() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.Rate.TrustedProxies))
	for _, raw := range c.Rate.TrustedProxies {
		if p, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, p.Masked())
			continue
		}
		ip, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("rate.trusted_proxies: %q is not an IP or CIDR", raw)
		}
		ip = ip.Unmap()
		out = append(out, netip.PrefixFrom(ip, ip.BitLen()))
	}
	return out, nil
}

func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Driver:   c.Cache.Kind,
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Prefix:   c.Redis.Prefix,
	}
}

func (c *Config) StoreConfig() store.Config {
	var sc store.Config
	sc.Driver = c.Storage.Driver
	sc.DSN = c.Storage.DSN
	sc.Postgres.MaxConns = c.Storage.Postgres.MaxConns
	sc.Postgres.MinConns = c.Storage.Postgres.MinConns
	sc.Redis.Addr = c.Redis.Addr
	sc.Redis.Password = c.Redis.Password
	sc.Redis.Prefix = c.Redis.Prefix
	sc.Redis.DB = c.Redis.DB
	sc.PINTTL = c.Verification.PINTTL
	sc.ResendCooldown = c.Verification.ResendCooldown
	return sc
}

func (c *Config) SMTPConfig() smtp.Config {
	sc := smtp.Config{
		Host:        c.SMTP.Host,
		Port:        c.SMTP.Port,
		Username:    c.SMTP.Username,
		AppPassword: c.SMTP.AppPassword,
		From:        c.SMTP.From,
		Timeout:     c.SMTP.Timeout,
	}
	if c.SMTP.InsecureSkipVerify {
		sc.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // sólo dev
	}
	return sc
}

func (c *Config) ProvidersConfig() email.ProvidersConfig {
	return email.ProvidersConfig{
		Resend:   email.ResendConfig{APIKey: c.Resend.APIKey, From: c.Resend.From},
		SMTP:     c.SMTPConfig(),
		SendGrid: email.SendGridConfig{APIKey: c.SendGrid.APIKey, From: c.SendGrid.From},
	}
}

func (c *Config) VerificationConfig() verification.Config {
	return verification.Config{
		PINTTL:           c.Verification.PINTTL,
		MaxAttempts:      c.Verification.MaxAttempts,
		ResendCooldown:   c.Verification.ResendCooldown,
		VerifiedCacheTTL: c.Verification.VerifiedCacheTTL,
	}
}
