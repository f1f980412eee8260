package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.AutonomousMinInterval > cfg.AutonomousMaxInterval {
		t.Fatalf("min interval %v > max interval %v", cfg.AutonomousMinInterval, cfg.AutonomousMaxInterval)
	}
	if cfg.AutonomousEnabled {
		t.Fatalf("AutonomousEnabled default should be false")
	}
}

func TestLoadRejectsInvertedIntervals(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("AUTONOMOUS_MIN_INTERVAL", "5m")
	t.Setenv("AUTONOMOUS_MAX_INTERVAL", "1m")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error when min_interval > max_interval")
	}
}

func TestLoadUsesExplicitBindAddr(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9191")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9191" {
		t.Fatalf("BindAddr = %q, want :9191", cfg.BindAddr)
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_SESSION_OUTBOUND_CAPACITY",
		"APP_SESSION_REPLY_TIMEOUT",
		"DEFAULT_CHARACTER_NAME",
		"DEFAULT_AVATAR_REF",
		"AUTONOMOUS_ENABLED",
		"AUTONOMOUS_MIN_INTERVAL",
		"AUTONOMOUS_MAX_INTERVAL",
		"CHAT_RESPONSE_COOLDOWN",
		"CHAT_PRESENTER_SESSION",
		"AUDIT_DSN",
		"REDIS_ADDR",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
