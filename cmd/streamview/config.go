package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/streamview/backend/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultJWTAlg       = "HS256"
	defaultAccessTTL    = 15 * time.Minute
	defaultRefreshTTL   = 30 * 24 * time.Hour
	defaultCORSOrigins  = "*"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Environment (dev, prod); selects text or JSON logging
	Environment string

	// Address on which the service listens
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret used to sign access tokens (symmetric)
	// Required; use cmd/gensecret to mint one
	SecretKey string

	// JWT signing algorithm
	JWTAlg string

	// Token lifetimes
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Comma-separated allowed CORS origins, or "*" for all
	CORSOrigins string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		Environment: defaultEnvironment,
		ListenAddr:  defaultListenAddr,
		JWTAlg:      defaultJWTAlg,
		AccessTTL:   defaultAccessTTL,
		RefreshTTL:  defaultRefreshTTL,
		CORSOrigins: defaultCORSOrigins,
	}
}

// Validate required options are set; called once after all sources are loaded
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return errors.New("DATABASE_URL must be set")
	}
	if c.SecretKey == "" {
		return errors.New("JWT_SECRET must be set")
	}
	return nil
}

// ParsedCORSOrigins returns the origins list for the CORS middleware
func (c *Config) ParsedCORSOrigins() []string {
	raw := strings.TrimSpace(c.CORSOrigins)
	if raw == "" || raw == "*" {
		return []string{"*"}
	}

	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Load variables from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}

	// Parse integral env value into a duration with the given unit
	setDuration := func(o *time.Duration, unit time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return fmt.Errorf("expected positive integer, got %q", value)
			}
			*o = time.Duration(n) * unit
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":                 setString(&c.ListenAddr),
		"DATABASE_URL":                setString(&c.DatabaseDSN),
		"JWT_SECRET":                  setString(&c.SecretKey),
		"JWT_ALG":                     setString(&c.JWTAlg),
		"ACCESS_TOKEN_EXPIRE_MINUTES": setDuration(&c.AccessTTL, time.Minute),
		"REFRESH_TOKEN_EXPIRE_DAYS":   setDuration(&c.RefreshTTL, 24*time.Hour),
		"CORS_ORIGINS":                setString(&c.CORSOrigins),
		"LOG_LEVEL":                   setString(&c.LogLevel),
		"ENVIRONMENT":                 setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("streamview", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key to sign access tokens")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.CORSOrigins, "cors-origins", c.CORSOrigins, "Comma-separated allowed CORS origins")

	return fs.Parse(args)
}
