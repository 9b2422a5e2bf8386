// Package config loads the server settings from command-line flags, environment
// variables and an optional .env file.
package config

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration.
type Config struct {
	Env      string // development or production
	Port     int
	DBPath   string
	LogLevel string

	JWTSecret string
	// SecretGenerated is true when no JWT_SECRET was configured in development and
	// a random one was made up. Sessions then end with every restart.
	SecretGenerated bool
	SessionTTL      time.Duration

	LoginRatePerMinute int
	CORSOrigins        []string
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load builds the configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables (through getenv).
// 3. The .env file named by -env-file (default ".env"), if it exists.
// 4. Default values (lowest priority).
//
// args excludes the program name. getenv is os.Getenv in production.
func Load(args []string, getenv func(string) string) (*Config, error) {
	fs := flag.NewFlagSet("blog", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	env := fs.String("env", "", "Environment (development, production)")
	port := fs.String("port", "", "HTTP port (default: 8080)")
	dbPath := fs.String("db", "", "Path to the SQLite database (default: data/blog.db)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	sessionTTL := fs.String("session-ttl", "", "Session lifetime (default: 24h)")
	loginRate := fs.String("login-rate", "", "Login attempts per minute per IP (default: 5)")
	corsOrigins := fs.String("cors-origins", "", "Comma-separated origins allowed on /api (default: *)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	dotenv, err := readEnvFile(*envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", *envFile, err)
	}

	src := source{getenv: getenv, dotenv: dotenv}

	cfg := &Config{
		Env:       src.value(*env, "ENV", "development"),
		DBPath:    src.value(*dbPath, "DB_PATH", "data/blog.db"),
		LogLevel:  strings.ToLower(src.value(*logLevel, "LOG_LEVEL", "info")),
		JWTSecret: src.value("", "JWT_SECRET", ""),
	}

	portStr := src.value(*port, "PORT", "8080")
	if cfg.Port, err = strconv.Atoi(portStr); err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", portStr, err)
	}

	ttlStr := src.value(*sessionTTL, "SESSION_TTL", "24h")
	if cfg.SessionTTL, err = time.ParseDuration(ttlStr); err != nil {
		return nil, fmt.Errorf("invalid session TTL %q: %w", ttlStr, err)
	}

	rateStr := src.value(*loginRate, "LOGIN_RATE", "5")
	if cfg.LoginRatePerMinute, err = strconv.Atoi(rateStr); err != nil {
		return nil, fmt.Errorf("invalid login rate %q: %w", rateStr, err)
	}

	for _, o := range strings.Split(src.value(*corsOrigins, "CORS_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if cfg.JWTSecret == "" && cfg.Env == "development" {
		if cfg.JWTSecret, err = randomSecret(); err != nil {
			return nil, err
		}
		cfg.SecretGenerated = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all config values are present and in range.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "production" {
		return fmt.Errorf("invalid environment: %s (must be development or production)", c.Env)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH cannot be empty")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be set to at least 16 characters")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.LoginRatePerMinute < 1 {
		return errors.New("LOGIN_RATE must be at least 1")
	}
	return nil
}

// source resolves one setting across the flag, environment and .env layers.
type source struct {
	getenv func(string) string
	dotenv map[string]string
}

func (s source) value(flagValue, key, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if s.getenv != nil {
		if v := s.getenv(key); v != "" {
			return v
		}
	}
	if v := s.dotenv[key]; v != "" {
		return v
	}
	return defaultValue
}

// readEnvFile parses KEY=value lines. Blank lines and # comments are skipped, an
// optional "export " prefix and matching surrounding quotes are stripped.
func readEnvFile(path string) (map[string]string, error) {
	file, err := os.Open(path) //#nosec G304 -- path comes from the operator
	if err != nil {
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected KEY=value", lineNum)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		values[key] = value
	}

	return values, scanner.Err()
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
