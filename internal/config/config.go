package config

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int
	LogLevel   string

	DatabaseURL string
	DBDriver    string

	AccessSecret  []byte
	RefreshSecret []byte
	PasswordHash  string

	KafkaBrokers []string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string
}

// LoadConfig reads .env when present and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	port, portErr := EnvIntDefault("SERVER_PORT", 5000)

	cfg := &Config{
		ServerPort: port,
		LogLevel:   EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: databaseURL(),
		DBDriver:    EnvDefault("DB_DRIVER", "pgx"),

		AccessSecret:  []byte(os.Getenv("AUTH_TOKEN_SECRET")),
		RefreshSecret: []byte(os.Getenv("REFRESH_TOKEN_SECRET")),
		PasswordHash:  EnvDefault("PASSWORD_HASH", "hmac"),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "posts"),
	}

	if err := errors.Join(portErr, cfg.Validate()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.AccessSecret) == 0 {
		errs = append(errs, errors.New("missing required env AUTH_TOKEN_SECRET"))
	}
	if len(c.RefreshSecret) == 0 {
		errs = append(errs, errors.New("missing required env REFRESH_TOKEN_SECRET"))
	}
	if len(c.AccessSecret) > 0 && bytes.Equal(c.AccessSecret, c.RefreshSecret) {
		errs = append(errs, errors.New("AUTH_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT %d out of range", c.ServerPort))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("missing required env DATABASE_URL or DB_HOST"))
	}
	switch c.DBDriver {
	case "pgx", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	return errors.Join(errs...)
}

func databaseURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), host,
		EnvDefault("DB_PORT", "5432"), EnvDefault("DB_NAME", "blog"),
	)
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

// EnvIntDefault returns def when key is unset and an error when it is not a number.
func EnvIntDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
