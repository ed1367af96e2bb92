package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	LedgerGorm  = "gorm"
	LedgerRedis = "redis"
)

type Config struct {
	ServiceName string
	Addr        string
	LogLevel    string

	DBDriver    string
	DatabaseURL string
	SQLitePath  string

	PrivateKeyPath     string
	RefreshTokenSecret []byte

	LedgerBackend       string
	LedgerSweepInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaTopic   string

	ESURL        string
	ESUser       string
	ESPassword   string
	ESAuditIndex string

	CookieDomain string
	CookieSecure bool
}

// Load reads .env when present and then the process environment.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "auth-service"),
		Addr:        EnvDefault("AUTH_ADDR", ":5501"),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    EnvDefault("DB_DRIVER", "postgres"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  EnvDefault("SQLITE_PATH", "auth.db"),

		PrivateKeyPath:     EnvDefault("PRIVATE_KEY_PATH", "certs/private.pem"),
		RefreshTokenSecret: []byte(os.Getenv("REFRESH_TOKEN_SECRET")),

		LedgerBackend:       EnvDefault("LEDGER_BACKEND", LedgerGorm),
		LedgerSweepInterval: EnvDurationDefault("LEDGER_SWEEP_INTERVAL", time.Hour),

		RedisAddr:     EnvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       EnvIntDefault("REDIS_DB", 0),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   EnvDefault("KAFKA_TOPIC", "user_events"),

		ESURL:        os.Getenv("ES_URL"),
		ESUser:       os.Getenv("ES_USER"),
		ESPassword:   os.Getenv("ES_PASSWORD"),
		ESAuditIndex: EnvDefault("ES_AUDIT_INDEX", "auth-audit"),

		CookieDomain: EnvDefault("COOKIE_DOMAIN", "localhost"),
		CookieSecure: EnvBoolDefault("COOKIE_SECURE", false),
	}
}

// DSN is the connection string for the configured driver.
func (c Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.SQLitePath
	}
	return c.DatabaseURL
}

func (c Config) Validate() error {
	var errs []error
	if len(c.RefreshTokenSecret) == 0 {
		errs = append(errs, errors.New("missing required env REFRESH_TOKEN_SECRET"))
	}
	if c.PrivateKeyPath == "" {
		errs = append(errs, errors.New("missing required env PRIVATE_KEY_PATH"))
	}
	switch c.DBDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("missing required env DATABASE_URL"))
		}
	case "sqlite":
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("missing required env SQLITE_PATH"))
		}
	default:
		errs = append(errs, errors.New("DB_DRIVER must be postgres or sqlite"))
	}
	switch c.LedgerBackend {
	case LedgerGorm:
	case LedgerRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("missing required env REDIS_ADDR"))
		}
	default:
		errs = append(errs, errors.New("LEDGER_BACKEND must be gorm or redis"))
	}
	return errors.Join(errs...)
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
