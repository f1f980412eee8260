package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the control plane.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	SessionOutboundCapacity int
	SessionReplyTimeout     time.Duration

	DefaultCharacterName string
	DefaultAvatarRef     string

	AutonomousEnabled     bool
	AutonomousMinInterval time.Duration
	AutonomousMaxInterval time.Duration

	ChatCooldown       time.Duration
	ChatResponseOrigin string // presenter session id used by the ingest pipeline and scheduler

	AuditDSN string // empty disables the audit sink; "sqlite://path" or a postgres DSN

	RedisAddr string // empty keeps spam-filter windows in-process; the quality cooldowns are always in-process

	AgentMode    string // "mock" | "http"
	AgentHTTPURL string

	ChatWebhookEnabled bool
	ChatWebhookBuffer  int
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:        envOrDefault("APP_METRICS_NAMESPACE", "vtuber_cp"),
		AllowAnyOrigin:          false,
		SessionOutboundCapacity: 64,
		SessionReplyTimeout:     1 * time.Second,
		DefaultCharacterName:    envOrDefault("DEFAULT_CHARACTER_NAME", "Character"),
		DefaultAvatarRef:        envOrDefault("DEFAULT_AVATAR_REF", ""),
		AutonomousEnabled:       false,
		AutonomousMinInterval:   120 * time.Second,
		AutonomousMaxInterval:   240 * time.Second,
		ChatCooldown:            30 * time.Second,
		ChatResponseOrigin:      envOrDefault("CHAT_PRESENTER_SESSION", "default"),
		AuditDSN:                stringsTrimSpace("AUDIT_DSN"),
		RedisAddr:               stringsTrimSpace("REDIS_ADDR"),
		AgentMode:               envOrDefault("AGENT_MODE", "mock"),
		AgentHTTPURL:            stringsTrimSpace("AGENT_HTTP_URL"),
		ChatWebhookEnabled:      true,
		ChatWebhookBuffer:       256,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionReplyTimeout, err = durationFromEnv("APP_SESSION_REPLY_TIMEOUT", cfg.SessionReplyTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionOutboundCapacity, err = intFromEnv("APP_SESSION_OUTBOUND_CAPACITY", cfg.SessionOutboundCapacity)
	if err != nil {
		return Config{}, err
	}
	cfg.AutonomousEnabled, err = boolFromEnv("AUTONOMOUS_ENABLED", cfg.AutonomousEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.AutonomousMinInterval, err = durationFromEnv("AUTONOMOUS_MIN_INTERVAL", cfg.AutonomousMinInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.AutonomousMaxInterval, err = durationFromEnv("AUTONOMOUS_MAX_INTERVAL", cfg.AutonomousMaxInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatCooldown, err = durationFromEnv("CHAT_RESPONSE_COOLDOWN", cfg.ChatCooldown)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatWebhookEnabled, err = boolFromEnv("CHAT_WEBHOOK_ENABLED", cfg.ChatWebhookEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatWebhookBuffer, err = intFromEnv("CHAT_WEBHOOK_BUFFER", cfg.ChatWebhookBuffer)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionOutboundCapacity <= 0 {
		return Config{}, fmt.Errorf("APP_SESSION_OUTBOUND_CAPACITY must be positive")
	}
	if cfg.AutonomousMinInterval <= 0 || cfg.AutonomousMaxInterval <= 0 {
		return Config{}, fmt.Errorf("AUTONOMOUS_MIN_INTERVAL and AUTONOMOUS_MAX_INTERVAL must be positive")
	}
	if cfg.AutonomousMinInterval > cfg.AutonomousMaxInterval {
		return Config{}, fmt.Errorf("AUTONOMOUS_MIN_INTERVAL must be <= AUTONOMOUS_MAX_INTERVAL")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
