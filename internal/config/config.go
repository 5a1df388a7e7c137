// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	APIRoot       string
	StatusAPI     string
	SessionCookie string
	FeedURL       string

	Limit   int
	Period  int
	Timeout time.Duration
	Refresh time.Duration

	TelegramBotToken string
	LaunchChatID     int64
	LaunchUserID     int64
	LocalUserID      string
	AllowedUsers     []int64

	JournalPath string
	LogLevel    string
	LogFile     string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	root := strings.TrimRight(strings.TrimSpace(os.Getenv("TICKETWATCH_API_ROOT")), "/")
	if root == "" {
		return nil, fmt.Errorf("TICKETWATCH_API_ROOT is required")
	}
	if u, err := url.Parse(root); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("TICKETWATCH_API_ROOT %q is not an absolute URL", root)
	}

	cfg := &Config{
		APIRoot:          root,
		StatusAPI:        envOr("TICKETWATCH_STATUS_API", root+"/status"),
		SessionCookie:    os.Getenv("TICKETWATCH_SESSION_COOKIE"),
		FeedURL:          os.Getenv("TICKETWATCH_FEED_URL"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		LocalUserID:      os.Getenv("TICKETWATCH_USER_ID"),
		JournalPath:      envOr("JOURNAL_PATH", "./data/journal.db"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogFile:          os.Getenv("TICKETWATCH_LOG_FILE"),
	}

	var err error
	if cfg.Limit, err = intEnv("TICKETWATCH_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.Limit < 1 || cfg.Limit > 50 {
		return nil, fmt.Errorf("TICKETWATCH_LIMIT must be between 1 and 50, got %d", cfg.Limit)
	}
	if cfg.Period, err = intEnv("TICKETWATCH_PERIOD", 60); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = durationEnv("TICKETWATCH_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.Refresh, err = durationEnv("TICKETWATCH_REFRESH", time.Minute); err != nil {
		return nil, err
	}
	if cfg.LaunchChatID, err = int64Env("TELEGRAM_LAUNCH_CHAT_ID"); err != nil {
		return nil, err
	}
	if cfg.LaunchUserID, err = int64Env("TELEGRAM_LAUNCH_USER_ID"); err != nil {
		return nil, err
	}

	if raw := os.Getenv("TICKETWATCH_ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in TICKETWATCH_ALLOWED_USERS: %w", s, err)
			}
			cfg.AllowedUsers = append(cfg.AllowedUsers, uid)
		}
	}

	return cfg, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func int64Env(key string) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

// durationEnv accepts Go durations ("30s") or bare seconds ("30").
func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		raw = strconv.Itoa(n) + "s"
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}
