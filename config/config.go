// Package config holds the immutable startup configuration for keygate.
//
// Configuration is assembled once at process start from environment
// variables, with an optional YAML file for the SSH key listing. The
// resulting Config value is injected into the API — nothing in the request
// path reads the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"gopkg.in/yaml.v3"
)

const (
	defaultAddr            = ":8080"
	defaultSessionTTL      = 7 * 24 * time.Hour
	defaultRateLimitMax    = 5
	defaultRateLimitWindow = 15 * time.Minute
)

// SSHKey is one entry of the protected key listing.
type SSHKey struct {
	Name        string `yaml:"name" json:"name"`
	Key         string `yaml:"key" json:"key"`
	Fingerprint string `yaml:"fingerprint,omitempty" json:"fingerprint,omitempty"`
}

// Telegram configures the best-effort login notification channel.
// Both fields empty disables notifications.
type Telegram struct {
	BotToken string
	ChatID   string
}

// Config is the immutable configuration for the whole subsystem.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string

	// Password is the gate secret, sealed in an enclave so it never sits
	// in plain heap memory between requests. Nil means the server is
	// misconfigured; login then fails with a generic 500.
	Password *memguard.Enclave
	// PasswordIsHash reports whether the configured secret is a bcrypt
	// hash rather than the plaintext password. Detected once at load time.
	PasswordIsHash bool

	// TOTPSecret is the base32-encoded TOTP secret. Its mere presence is
	// the sole signal that multi-factor authentication is required.
	TOTPSecret string

	SessionTTL      time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration

	// Keys is the secret payload served by the protected endpoint.
	Keys []SSHKey

	TrustedProxies []string
	CORSOrigins    []string

	DataDir  string
	RedisURL string

	Telegram Telegram
}

// MFAEnabled reports whether a TOTP code is required to log in.
func (c *Config) MFAEnabled() bool { return c.TOTPSecret != "" }

// HasPassword reports whether a gate password was configured.
func (c *Config) HasPassword() bool { return c.Password != nil }

// Load builds a Config from the environment. A missing password is not an
// error here — the API reports it as a server misconfiguration at request
// time, so the process can still start and serve health checks.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:      envStr("KEYGATE_ADDR", defaultAddr),
		TOTPSecret:      strings.TrimSpace(os.Getenv("KEYGATE_TOTP_SECRET")),
		SessionTTL:      defaultSessionTTL,
		RateLimitMax:    envInt("KEYGATE_RATE_LIMIT_MAX", defaultRateLimitMax),
		RateLimitWindow: defaultRateLimitWindow,
		TrustedProxies:  envList("KEYGATE_TRUSTED_PROXIES"),
		CORSOrigins:     envList("KEYGATE_CORS_ORIGINS"),
		DataDir:         os.Getenv("KEYGATE_DATA_DIR"),
		RedisURL:        os.Getenv("KEYGATE_REDIS_URL"),
		Telegram: Telegram{
			BotToken: os.Getenv("KEYGATE_TELEGRAM_BOT_TOKEN"),
			ChatID:   os.Getenv("KEYGATE_TELEGRAM_CHAT_ID"),
		},
	}

	if raw := os.Getenv("KEYGATE_SESSION_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing KEYGATE_SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = d
	}
	if raw := os.Getenv("KEYGATE_RATE_LIMIT_WINDOW"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing KEYGATE_RATE_LIMIT_WINDOW: %w", err)
		}
		cfg.RateLimitWindow = d
	}
	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = defaultRateLimitMax
	}

	if secret := os.Getenv("KEYGATE_PASSWORD"); secret != "" {
		cfg.SetPassword(secret)
	}

	if path := os.Getenv("KEYGATE_KEYS_FILE"); path != "" {
		keys, err := LoadKeysFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Keys = keys
	}

	return cfg, nil
}

// SetPassword seals the given secret into the config's enclave and records
// whether it is a bcrypt hash.
func (c *Config) SetPassword(secret string) {
	c.PasswordIsHash = looksLikeBcrypt(secret)
	c.Password = memguard.NewEnclave([]byte(secret))
}

// keysFile is the on-disk shape of the SSH key listing.
type keysFile struct {
	Keys []SSHKey `yaml:"keys"`
}

// LoadKeysFile reads the SSH key listing from a YAML file.
func LoadKeysFile(path string) ([]SSHKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keys file: %w", err)
	}
	var kf keysFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parsing keys file %s: %w", path, err)
	}
	for i, k := range kf.Keys {
		if strings.TrimSpace(k.Key) == "" {
			return nil, fmt.Errorf("keys file %s: entry %d has an empty key", path, i)
		}
	}
	return kf.Keys, nil
}

func looksLikeBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") ||
		strings.HasPrefix(s, "$2b$") ||
		strings.HasPrefix(s, "$2y$")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
