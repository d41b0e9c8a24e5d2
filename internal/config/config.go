// Package config loads runtime configuration from the environment.
//
// A .env file in the working directory is read first when present; real
// environment variables always win over it.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Sandbox backends.
const (
	SandboxPiston = "piston"
	SandboxDocker = "docker"
)

// Config holds everything the server needs at startup.
type Config struct {
	Port   int
	DBPath string

	// JWTSecret verifies identity tokens. Empty disables authenticated routes.
	JWTSecret string

	// Webhook signing secrets. An empty secret disables that webhook route.
	ClerkWebhookSecret        string
	LemonSqueezyWebhookSecret string

	Sandbox   string
	PistonURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EventsChannel string

	LanguagesFile string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	LogLevel  string
	LogFormat string
}

// Load reads .env (if any) and the environment.
func Load() (*Config, error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	port, err := getEnvAsInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	redisDB, err := getEnvAsInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                      port,
		DBPath:                    getEnv("DB_PATH", "data/codecraft.db"),
		JWTSecret:                 os.Getenv("JWT_SECRET"),
		ClerkWebhookSecret:        os.Getenv("CLERK_WEBHOOK_SECRET"),
		LemonSqueezyWebhookSecret: os.Getenv("LEMON_SQUEEZY_WEBHOOK_SIGNATURE"),
		Sandbox:                   strings.ToLower(getEnv("SANDBOX", SandboxPiston)),
		PistonURL:                 getEnv("PISTON_URL", "https://emkc.org/api/v2/piston"),
		RedisAddr:                 os.Getenv("REDIS_ADDR"),
		RedisPassword:             os.Getenv("REDIS_PASSWORD"),
		RedisDB:                   redisDB,
		EventsChannel:             getEnv("EVENTS_CHANNEL", "codecraft.events"),
		LanguagesFile:             os.Getenv("LANGUAGES_FILE"),
		GitHubClientID:            os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret:        os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubCallbackURL:         os.Getenv("GITHUB_CALLBACK_URL"),
		LogLevel:                  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:                 strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}
	if cfg.Sandbox != SandboxPiston && cfg.Sandbox != SandboxDocker {
		return nil, fmt.Errorf("config: SANDBOX must be %q or %q, got %q", SandboxPiston, SandboxDocker, cfg.Sandbox)
	}

	return cfg, nil
}

// SlogLevel maps LogLevel onto slog. Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw) // Atoi = ASCII to Integer
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s value %q", key, raw)
	}
	return v, nil
}
