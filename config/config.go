package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const DefaultDeskName = "松蔭大学ITサポートデスク"

type Config struct {
	ListenSocket string
	BaseURL      string
	DeskName     string

	GoogleClientID string
	SessionSecret  string
	SessionTTL     time.Duration
	SecureCookie   bool
	AdminEmails    []string
	AdminCacheTTL  time.Duration

	SlackChannel string

	TriggerTimeout      time.Duration
	TriggerMaxAttempts  int
	DispatchConcurrency int
	ReconcileSchedule   string
	ReconcileGrace      time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		ListenSocket:      valueOrDefault("LISTEN_SOCKET", ":3000"),
		BaseURL:           strings.TrimRight(valueOrDefault("BASE_URL", "http://localhost:3000"), "/"),
		DeskName:          valueOrDefault("DESK_NAME", DefaultDeskName),
		GoogleClientID:    strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		SessionSecret:     strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		AdminEmails:       parseList(os.Getenv("ADMIN_EMAILS")),
		SlackChannel:      strings.TrimSpace(os.Getenv("SLACK_CHANNEL")),
		ReconcileSchedule: valueOrDefault("RECONCILE_SCHEDULE", "@every 5m"),
	}

	var err error
	if cfg.SessionTTL, err = positiveDurationOrDefault("SESSION_TTL", 12*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.AdminCacheTTL, err = positiveDurationOrDefault("ADMIN_CACHE_TTL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.TriggerTimeout, err = positiveDurationOrDefault("TRIGGER_TIMEOUT", 60*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileGrace, err = durationOrDefault("RECONCILE_GRACE", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileGrace < 0 {
		return Config{}, fmt.Errorf("invalid RECONCILE_GRACE: must not be negative")
	}

	if cfg.TriggerMaxAttempts, err = positiveIntOrDefault("TRIGGER_MAX_ATTEMPTS", 5); err != nil {
		return Config{}, err
	}
	if cfg.DispatchConcurrency, err = positiveIntOrDefault("DISPATCH_CONCURRENCY", 16); err != nil {
		return Config{}, err
	}

	secure := strings.TrimSpace(os.Getenv("COOKIE_SECURE"))
	if secure != "" {
		v, err := strconv.ParseBool(secure)
		if err != nil {
			return Config{}, fmt.Errorf("invalid COOKIE_SECURE: %w", err)
		}
		cfg.SecureCookie = v
	} else {
		cfg.SecureCookie = strings.HasPrefix(cfg.BaseURL, "https://")
	}

	if cfg.GoogleClientID == "" {
		return Config{}, fmt.Errorf("GOOGLE_CLIENT_ID is required")
	}
	if cfg.SessionSecret == "" {
		return Config{}, fmt.Errorf("SESSION_SECRET is required")
	}

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func durationOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// 0以下だと全てのトリガがすぐにタイムアウトする
func positiveDurationOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	d, err := durationOrDefault(key, fallback)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func positiveIntOrDefault(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: %s", key, v)
	}
	return n, nil
}

func parseList(raw string) []string {
	var res []string
	for _, p := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		res = append(res, trimmed)
	}
	return res
}
