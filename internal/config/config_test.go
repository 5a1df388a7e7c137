package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var envKeys = []string{
	"TICKETWATCH_API_ROOT", "TICKETWATCH_STATUS_API", "TICKETWATCH_SESSION_COOKIE",
	"TICKETWATCH_FEED_URL", "TICKETWATCH_LIMIT", "TICKETWATCH_PERIOD", "TICKETWATCH_TIMEOUT",
	"TICKETWATCH_REFRESH", "TELEGRAM_BOT_TOKEN", "TELEGRAM_LAUNCH_CHAT_ID",
	"TELEGRAM_LAUNCH_USER_ID", "TICKETWATCH_USER_ID", "TICKETWATCH_ALLOWED_USERS",
	"JOURNAL_PATH", "LOG_LEVEL", "TICKETWATCH_LOG_FILE",
}

func defaults(root string) *Config {
	return &Config{
		APIRoot:     root,
		StatusAPI:   root + "/status",
		Limit:       10,
		Period:      60,
		Timeout:     20 * time.Second,
		Refresh:     time.Minute,
		JournalPath: "./data/journal.db",
		LogLevel:    "info",
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name:    "missing api root",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:    "relative api root",
			env:     map[string]string{"TICKETWATCH_API_ROOT": "/api/liff"},
			wantErr: true,
		},
		{
			name: "api root only, defaults applied",
			env:  map[string]string{"TICKETWATCH_API_ROOT": "https://bot.example.com/api/liff/"},
			want: defaults("https://bot.example.com/api/liff"),
		},
		{
			name: "all values set",
			env: map[string]string{
				"TICKETWATCH_API_ROOT":       "https://bot.example.com/api/liff",
				"TICKETWATCH_STATUS_API":     "https://status.example.com/bulk",
				"TICKETWATCH_SESSION_COOKIE": "sid=abc",
				"TICKETWATCH_FEED_URL":       "https://tickets.example.com/rss",
				"TICKETWATCH_LIMIT":          "25",
				"TICKETWATCH_PERIOD":         "120",
				"TICKETWATCH_TIMEOUT":        "5s",
				"TICKETWATCH_REFRESH":        "90",
				"TELEGRAM_BOT_TOKEN":         "tok",
				"TELEGRAM_LAUNCH_CHAT_ID":    "-100123",
				"TELEGRAM_LAUNCH_USER_ID":    "42",
				"TICKETWATCH_USER_ID":        "U1",
				"TICKETWATCH_ALLOWED_USERS":  " 42 , 43 , ",
				"JOURNAL_PATH":               "/tmp/j.db",
				"LOG_LEVEL":                  "debug",
				"TICKETWATCH_LOG_FILE":       "/tmp/tw.log",
			},
			want: &Config{
				APIRoot:          "https://bot.example.com/api/liff",
				StatusAPI:        "https://status.example.com/bulk",
				SessionCookie:    "sid=abc",
				FeedURL:          "https://tickets.example.com/rss",
				Limit:            25,
				Period:           120,
				Timeout:          5 * time.Second,
				Refresh:          90 * time.Second,
				TelegramBotToken: "tok",
				LaunchChatID:     -100123,
				LaunchUserID:     42,
				LocalUserID:      "U1",
				AllowedUsers:     []int64{42, 43},
				JournalPath:      "/tmp/j.db",
				LogLevel:         "debug",
				LogFile:          "/tmp/tw.log",
			},
		},
		{
			name:    "limit out of range",
			env:     map[string]string{"TICKETWATCH_API_ROOT": "https://x.example", "TICKETWATCH_LIMIT": "51"},
			wantErr: true,
		},
		{
			name:    "invalid period",
			env:     map[string]string{"TICKETWATCH_API_ROOT": "https://x.example", "TICKETWATCH_PERIOD": "soon"},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			env:     map[string]string{"TICKETWATCH_API_ROOT": "https://x.example", "TICKETWATCH_TIMEOUT": "-1s"},
			wantErr: true,
		},
		{
			name:    "invalid chat id",
			env:     map[string]string{"TICKETWATCH_API_ROOT": "https://x.example", "TELEGRAM_LAUNCH_CHAT_ID": "abc"},
			wantErr: true,
		},
		{
			name:    "invalid allowed user",
			env:     map[string]string{"TICKETWATCH_API_ROOT": "https://x.example", "TICKETWATCH_ALLOWED_USERS": "1,x"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range envKeys {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsUserAllowed(t *testing.T) {
	tests := []struct {
		name         string
		allowedUsers []int64
		userID       int64
		want         bool
	}{
		{name: "empty list allows everyone", userID: 42, want: true},
		{name: "user in list", allowedUsers: []int64{10, 20, 30}, userID: 20, want: true},
		{name: "user not in list", allowedUsers: []int64{10, 20, 30}, userID: 99, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{AllowedUsers: tt.allowedUsers}
			if diff := cmp.Diff(tt.want, cfg.IsUserAllowed(tt.userID)); diff != "" {
				t.Errorf("IsUserAllowed() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
