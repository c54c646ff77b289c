// Package config reads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Ledger backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Mail transports.
const (
	MailLog         = "log"
	MailRedisStream = "redisstream"
	MailAMQP        = "amqp"
)

const minSigningKeyLen = 16

// Config holds every setting the warden process needs
type Config struct {
	SigningKey []byte

	AccessTokenTTL  time.Duration
	RenewalTokenTTL time.Duration
	ResetTokenTTL   time.Duration
	VerifyTokenTTL  time.Duration

	HTTPAddr      string
	LedgerBackend string
	DatabaseURL   string
	RedisURL      string

	MailTransport string
	AMQPURL       string
	MailFrom      string
	ResetURLBase  string
	VerifyURLBase string

	BcryptCost            int
	RevokeSessionsOnReset bool
	JanitorInterval       time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads the given dotenv files (".env" when none are given) and then
// the environment. Missing dotenv files are ignored; variables already set
// in the environment win.
func Load(files ...string) (*Config, error) {
	_ = godotenv.Load(files...)
	return FromEnv()
}

// FromEnv builds a Config from the current environment and validates it
func FromEnv() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		SigningKey: []byte(os.Getenv("SIGNING_KEY")),

		AccessTokenTTL:  time.Duration(p.int("ACCESS_TOKEN_TTL_MINUTES", 15)) * time.Minute,
		RenewalTokenTTL: time.Duration(p.int("RENEWAL_TOKEN_TTL_DAYS", 30)) * 24 * time.Hour,
		ResetTokenTTL:   time.Duration(p.int("RESET_TOKEN_TTL_MINUTES", 30)) * time.Minute,
		VerifyTokenTTL:  time.Duration(p.int("VERIFY_TOKEN_TTL_MINUTES", 1440)) * time.Minute,

		HTTPAddr:      getString("HTTP_ADDR", ":9000"),
		LedgerBackend: getString("LEDGER_BACKEND", BackendPostgres),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),

		MailTransport: getString("MAIL_TRANSPORT", MailLog),
		AMQPURL:       os.Getenv("AMQP_URL"),
		MailFrom:      getString("MAIL_FROM", "no-reply@localhost"),
		ResetURLBase:  getString("RESET_URL_BASE", "http://localhost:9000/reset-password?token="),
		VerifyURLBase: getString("VERIFY_URL_BASE", "http://localhost:9000/verify-email?token="),

		BcryptCost:            p.int("BCRYPT_COST", 12),
		RevokeSessionsOnReset: p.bool("REVOKE_SESSIONS_ON_RESET", false),
		JanitorInterval:       p.duration("JANITOR_INTERVAL", time.Hour),

		LogLevel:  getString("LOG_LEVEL", "info"),
		LogFormat: getString("LOG_FORMAT", "json"),
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that depend on each other
func (c *Config) Validate() error {
	var errs []error

	if len(c.SigningKey) < minSigningKeyLen {
		errs = append(errs, fmt.Errorf("SIGNING_KEY must be at least %d bytes", minSigningKeyLen))
	}
	for name, ttl := range map[string]time.Duration{
		"ACCESS_TOKEN_TTL_MINUTES": c.AccessTokenTTL,
		"RENEWAL_TOKEN_TTL_DAYS":   c.RenewalTokenTTL,
		"RESET_TOKEN_TTL_MINUTES":  c.ResetTokenTTL,
		"VERIFY_TOKEN_TTL_MINUTES": c.VerifyTokenTTL,
	} {
		if ttl <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.JanitorInterval < 0 {
		errs = append(errs, errors.New("JANITOR_INTERVAL must not be negative"))
	}

	switch c.LedgerBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis ledger"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres ledger"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_BACKEND %q", c.LedgerBackend))
	}

	switch c.MailTransport {
	case MailLog:
	case MailRedisStream:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redisstream mail transport"))
		}
	case MailAMQP:
		if c.AMQPURL == "" {
			errs = append(errs, errors.New("AMQP_URL is required for the amqp mail transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_TRANSPORT %q", c.MailTransport))
	}

	return errors.Join(errs...)
}

func getString(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}

// parser collects conversion errors so every bad variable is reported at once.
type parser struct {
	errs []error
}

func (p *parser) int(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func (p *parser) bool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}
