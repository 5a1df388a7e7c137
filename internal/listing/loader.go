// Package listing loads the listing page and hydrates watch state for it.
package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"ticketwatch/internal/api"
	"ticketwatch/internal/model"
	"ticketwatch/internal/watchstate"
)

// ErrLoadInProgress is returned when Load is called while another load runs.
// The call is dropped, not queued.
var ErrLoadInProgress = errors.New("listing load already in progress")

// Source lists listings in a given mode.
type Source interface {
	List(ctx context.Context, p api.ListParams) (*api.ListResult, error)
}

// StatusSource fetches watch state for a set of URLs.
type StatusSource interface {
	Statuses(ctx context.Context, chatID string, urls []string) (map[string]model.WatchPatch, error)
}

// Options tunes a Loader.
type Options struct {
	Limit       int
	Keyword     string
	OnlyConcert bool
}

// Result is the outcome of one load.
type Result struct {
	Items []model.Listing
	// SourceMode is the mode reported by the response that was adopted.
	SourceMode string
	// Fallback is set when the exhaustive fetch replaced an empty primary one.
	Fallback bool
	// Hydrated is set when bulk status succeeded and replaced the store.
	Hydrated bool
	// Unmatched lists URLs the status response had no entry for after
	// canonicalization.
	Unmatched []string
}

// Loader fetches listings with a fallback and hydrates a watch-state store.
type Loader struct {
	source  Source
	status  StatusSource
	store   *watchstate.Store
	session model.Session
	opts    Options
	log     *slog.Logger
	running atomic.Bool
}

// NewLoader creates a Loader. status may be nil when no status endpoint is
// available.
func NewLoader(source Source, status StatusSource, store *watchstate.Store, sess model.Session, opts Options, log *slog.Logger) *Loader {
	return &Loader{
		source:  source,
		status:  status,
		store:   store,
		session: sess,
		opts:    opts,
		log:     log,
	}
}

// Load fetches listings in primary mode and falls back to exhaustive mode on
// an empty result. Errors from the primary fetch are returned as is; status
// hydration failures are logged only.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	if !l.running.CompareAndSwap(false, true) {
		return nil, ErrLoadInProgress
	}
	defer l.running.Store(false)

	params := api.ListParams{
		Mode:        api.ModePrimary,
		Limit:       api.ClampLimit(l.opts.Limit),
		Keyword:     l.opts.Keyword,
		OnlyConcert: l.opts.OnlyConcert,
	}
	primary, err := l.source.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("load %s listings: %w", api.ModePrimary, err)
	}

	res := &Result{Items: primary.Items, SourceMode: modeOr(primary.Mode, api.ModePrimary)}

	if len(primary.Items) == 0 {
		params.Mode = api.ModeExhaustive
		fallback, err := l.source.List(ctx, params)
		switch {
		case err != nil:
			l.log.Warn("fallback listing fetch", "error", err)
		case len(fallback.Items) > 0:
			res = &Result{
				Items:      fallback.Items,
				SourceMode: modeOr(fallback.Mode, api.ModeExhaustive),
				Fallback:   true,
			}
		}
	}

	l.log.Debug("listings loaded", "count", len(res.Items), "mode", res.SourceMode, "fallback", res.Fallback)

	urls := CollectURLs(res.Items)
	if l.status == nil || !l.session.Resolved() || len(urls) == 0 {
		return res, nil
	}

	statuses, err := l.status.Statuses(ctx, l.session.ChatID, urls)
	if err != nil {
		l.log.Warn("hydrate watch status", "chat_id", l.session.ChatID, "urls", len(urls), "error", err)
		return res, nil
	}
	l.store.Hydrate(statuses)
	res.Hydrated = true
	for _, u := range urls {
		if _, ok := l.store.Get(u); !ok {
			res.Unmatched = append(res.Unmatched, u)
		}
	}
	if len(res.Unmatched) > 0 {
		l.log.Warn("watch status keys did not match listings", "unmatched", len(res.Unmatched), "first", res.Unmatched[0])
	}
	return res, nil
}

// CollectURLs returns the non-empty listing URLs, deduplicated in order.
func CollectURLs(items []model.Listing) []string {
	seen := make(map[string]bool, len(items))
	var urls []string
	for _, it := range items {
		if it.URL == "" || seen[it.URL] {
			continue
		}
		seen[it.URL] = true
		urls = append(urls, it.URL)
	}
	return urls
}

func modeOr(mode, def string) string {
	if mode == "" {
		return def
	}
	return mode
}
