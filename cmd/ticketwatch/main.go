package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ticketwatch/internal/api"
	"ticketwatch/internal/config"
	"ticketwatch/internal/fetcher"
	"ticketwatch/internal/filter"
	"ticketwatch/internal/host"
	"ticketwatch/internal/journal"
	"ticketwatch/internal/listing"
	"ticketwatch/internal/model"
	"ticketwatch/internal/orchestrator"
	"ticketwatch/internal/session"
	"ticketwatch/internal/watchstate"
)

var (
	flagKeyword     string
	flagOnlyConcert bool
	flagLimit       int
)

var rootCmd = &cobra.Command{
	Use:   "ticketwatch",
	Short: "Browse ticketed events and manage availability watches",
	Long: `ticketwatch lists ticketed events from the watch backend and lets you
start or stop periodic availability checks, or run a one-off check.

Configuration is read from the environment (TICKETWATCH_API_ROOT is required).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagKeyword, "keyword", "k", "", "only listings matching keyword (/regex/ for feeds)")
	rootCmd.PersistentFlags().BoolVar(&flagOnlyConcert, "only-concert", false, "only concerts and live shows")
	rootCmd.PersistentFlags().IntVarP(&flagLimit, "limit", "n", 0, "listings per page (default TICKETWATCH_LIMIT)")

	rootCmd.AddCommand(browseCmd, listCmd, watchCmd, unwatchCmd, checkCmd, followCmd, historyCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app is everything a command needs, built once from configuration.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	http    api.HTTPClient
	client  *api.Client
	host    host.Host
	session model.Session
	store   *watchstate.Store
	journal *journal.SQLite
	loader  *listing.Loader
	orch    *orchestrator.Orchestrator

	closers []io.Closer
}

// newApp wires the application from configuration.
func newApp(ctx context.Context, interactive bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a := &app{cfg: cfg}

	// The interactive UI owns the terminal, so its logs go to the log file
	// or nowhere.
	var logOut io.Writer = os.Stderr
	if interactive {
		logOut = io.Discard
	}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		a.closers = append(a.closers, f)
		logOut = f
	}
	a.log = newLogger(cfg.LogLevel, logOut)

	criteria := filter.Criteria{Keyword: flagKeyword, OnlyConcert: flagOnlyConcert}
	if err := criteria.Validate(); err != nil {
		a.Close()
		return nil, fmt.Errorf("keyword: %w", err)
	}

	a.http = api.NewHTTPClient(cfg.Timeout)
	a.client = api.New(cfg.APIRoot, cfg.StatusAPI, a.http, api.WithSessionCookie(cfg.SessionCookie))

	h, err := newHost(cfg, a.log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.host = h

	a.session, err = session.Resolve(ctx, a.host, a.log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	a.log.Debug("session resolved", "chat_id", a.session.ChatID, "in_client", a.host.IsInClient())

	if dir := filepath.Dir(cfg.JournalPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			a.Close()
			return nil, fmt.Errorf("create journal directory %s: %w", dir, err)
		}
	}
	a.journal, err = journal.NewSQLite(cfg.JournalPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open journal %s: %w", cfg.JournalPath, err)
	}
	a.closers = append(a.closers, a.journal)

	var source listing.Source = a.client
	if cfg.FeedURL != "" {
		source = fetcher.NewFeedSource(a.http, cfg.FeedURL)
	}
	limit := cfg.Limit
	if flagLimit > 0 {
		limit = flagLimit
	}

	a.store = watchstate.New()
	a.loader = listing.NewLoader(source, a.client, a.store, a.session, listing.Options{
		Limit:       limit,
		Keyword:     flagKeyword,
		OnlyConcert: flagOnlyConcert,
	}, a.log)
	a.orch = orchestrator.New(a.client, a.store, a.session, a.host, a.journal, a.log)
	return a, nil
}

// newHost returns the Telegram host when a bot token is configured and the
// local host otherwise. A Telegram host that cannot start aborts with an
// explanation rather than falling back silently.
func newHost(cfg *config.Config, log *slog.Logger) (host.Host, error) {
	if cfg.TelegramBotToken == "" {
		return host.Local{UserID: cfg.LocalUserID}, nil
	}
	if len(cfg.AllowedUsers) > 0 && cfg.LaunchUserID == 0 {
		return nil, errors.New("telegram user unknown, set TELEGRAM_LAUNCH_USER_ID to use an allow list")
	}
	if !cfg.IsUserAllowed(cfg.LaunchUserID) {
		return nil, fmt.Errorf("telegram user %d is not allowed to use this app", cfg.LaunchUserID)
	}
	tg, err := host.NewTelegram(cfg.TelegramBotToken, host.Launch{
		ChatID: cfg.LaunchChatID,
		UserID: cfg.LaunchUserID,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("messaging host unavailable, check TELEGRAM_BOT_TOKEN: %w", err)
	}
	return tg, nil
}

// Close releases the journal and log file.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
