// Package config loads runtime configuration from the environment, an
// optional .env file and command-line flags (flags win).
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration.
type Config struct {
	Port        int
	StoreDriver string // sqlite | postgres | memory
	DatabaseURL string
	LockTimeout time.Duration

	RefundPercent             int
	BlockCancelAfterDeparture bool

	JWTSecret   string
	JWTIssuer   string
	TokenTTL    time.Duration
	CORSOrigins []string

	// AdminEmail and AdminPassword, when both set, seed an admin account
	// at startup.
	AdminEmail    string
	AdminPassword string

	AuditBackend string // channel | redis | kafka
	RedisAddr    string
	KafkaBrokers []string

	LogLevel  string
	LogFormat string // json | console

	ReconcileInterval time.Duration // 0 disables the scheduler
}

// Load reads .env (if present), then the environment, then args.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return parse(args, os.Getenv)
}

func parse(args []string, getenv func(string) string) (Config, error) {
	var errs []error
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	envInt := func(key string, def int) int {
		v := env(key, "")
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return n
	}
	envDuration := func(key string, def time.Duration) time.Duration {
		v := env(key, "")
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return d
	}
	envBool := func(key string, def bool) bool {
		v := env(key, "")
		if v == "" {
			return def
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return b
	}

	cfg := Config{
		Port:                      envInt("PORT", 8080),
		StoreDriver:               env("STORE_DRIVER", "sqlite"),
		DatabaseURL:               env("DATABASE_URL", "seatledger.db"),
		LockTimeout:               envDuration("LOCK_TIMEOUT", 5*time.Second),
		RefundPercent:             envInt("REFUND_PERCENT", 80),
		BlockCancelAfterDeparture: envBool("BLOCK_CANCEL_AFTER_DEPARTURE", false),
		JWTSecret:                 env("JWT_SECRET", ""),
		JWTIssuer:                 env("JWT_ISSUER", "seat-ledger"),
		TokenTTL:                  envDuration("TOKEN_TTL", 24*time.Hour),
		AdminEmail:                env("ADMIN_EMAIL", ""),
		AdminPassword:             env("ADMIN_PASSWORD", ""),
		CORSOrigins:               parseCSV(env("CORS_ALLOWED_ORIGINS", "*")),
		AuditBackend:              env("AUDIT_BACKEND", "channel"),
		RedisAddr:                 env("REDIS_ADDR", ""),
		KafkaBrokers:              parseCSV(env("KAFKA_BROKERS", "")),
		LogLevel:                  env("LOG_LEVEL", "info"),
		LogFormat:                 env("LOG_FORMAT", "json"),
		ReconcileInterval:         envDuration("RECONCILE_INTERVAL", time.Hour),
	}

	flags := flag.NewFlagSet("seat-ledger", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flags.StringVar(&cfg.StoreDriver, "store", cfg.StoreDriver, "store driver: sqlite, postgres or memory")
	flags.StringVar(&cfg.DatabaseURL, "db", cfg.DatabaseURL, "SQLite path or Postgres URL")
	flags.DurationVar(&cfg.LockTimeout, "lock-timeout", cfg.LockTimeout, "max wait for a row lock")
	flags.IntVar(&cfg.RefundPercent, "refund-percent", cfg.RefundPercent, "refund percent on cancellation")
	flags.StringVar(&cfg.AuditBackend, "audit", cfg.AuditBackend, "audit backend: channel, redis or kafka")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flags.DurationVar(&cfg.ReconcileInterval, "reconcile-interval", cfg.ReconcileInterval, "reconciliation interval, 0 disables")
	if err := flags.Parse(args); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.StoreDriver {
	case "sqlite", "memory":
	case "postgres":
		if !strings.HasPrefix(c.DatabaseURL, "postgres://") && !strings.HasPrefix(c.DatabaseURL, "postgresql://") {
			errs = append(errs, errors.New("postgres store requires a postgres:// DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.RefundPercent < 0 || c.RefundPercent > 100 {
		errs = append(errs, fmt.Errorf("REFUND_PERCENT %d outside [0, 100]", c.RefundPercent))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.AuditBackend {
	case "channel":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("AUDIT_BACKEND=redis requires REDIS_ADDR"))
		}
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("AUDIT_BACKEND=kafka requires KAFKA_BROKERS"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUDIT_BACKEND %q", c.AuditBackend))
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.LockTimeout <= 0 {
		errs = append(errs, errors.New("LOCK_TIMEOUT must be positive"))
	}
	if c.ReconcileInterval < 0 {
		errs = append(errs, errors.New("RECONCILE_INTERVAL must not be negative"))
	}
	return errors.Join(errs...)
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%d", c.Port)
}

func parseCSV(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
