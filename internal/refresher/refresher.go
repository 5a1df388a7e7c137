// Package refresher reloads the listing page on a timer and reports what
// changed since the previous load.
package refresher

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"ticketwatch/internal/canon"
	"ticketwatch/internal/listing"
	"ticketwatch/internal/model"
	"ticketwatch/internal/watchstate"
)

// DefaultInterval is used when no positive interval is configured.
const DefaultInterval = time.Minute

// Loader is the listing load the refresher repeats.
type Loader interface {
	Load(ctx context.Context) (*listing.Result, error)
}

// Reporter receives the result of every completed cycle.
type Reporter interface {
	Report(ctx context.Context, u Update)
}

// Change is a watch-state transition seen between two loads.
type Change struct {
	URL    string
	Before model.WatchState
	After  model.WatchState
	// Existed is false when the listing had no state before.
	Existed bool
}

// Update describes one reload.
type Update struct {
	Cycle  int
	Result *listing.Result
	// Added are listings whose canonical URL was not in the previous load.
	// Every listing counts as added on the first cycle.
	Added   []model.Listing
	Changed []Change
	Err     error
}

// Refresher periodically reloads listings.
type Refresher struct {
	loader   Loader
	store    *watchstate.Store
	reporter Reporter
	log      *slog.Logger
	tick     time.Duration

	cycle int
	seen  map[string]bool
}

// New creates a Refresher ticking every interval.
func New(loader Loader, store *watchstate.Store, reporter Reporter, interval time.Duration, log *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Refresher{
		loader:   loader,
		store:    store,
		reporter: reporter,
		log:      log,
		tick:     interval,
		seen:     make(map[string]bool),
	}
}

// Run starts the refresh loop, blocking until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	r.refresh(ctx)

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	before := r.store.Snapshot()

	res, err := r.loader.Load(ctx)
	if errors.Is(err, listing.ErrLoadInProgress) {
		r.log.Debug("reload skipped, load in progress")
		return
	}
	r.cycle++
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.log.Error("reload listings", "cycle", r.cycle, "error", err)
		r.reporter.Report(ctx, Update{Cycle: r.cycle, Err: err})
		return
	}

	u := Update{Cycle: r.cycle, Result: res}
	next := make(map[string]bool, len(res.Items))
	for _, l := range res.Items {
		if l.URL == "" {
			continue
		}
		key := canon.Canonicalize(l.URL)
		if next[key] {
			continue
		}
		next[key] = true
		if !r.seen[key] {
			u.Added = append(u.Added, l)
		}
	}
	r.seen = next
	u.Changed = diff(before, r.store.Snapshot())

	if len(u.Added) > 0 || len(u.Changed) > 0 {
		r.log.Info("listings refreshed", "cycle", r.cycle, "added", len(u.Added), "changed", len(u.Changed))
	}
	r.reporter.Report(ctx, u)
}

// diff lists entries of after that differ from before, ordered by URL.
// Entries that disappeared are not reported.
func diff(before, after map[string]model.WatchState) []Change {
	var changes []Change
	for k, a := range after {
		b, ok := before[k]
		if ok && b == a {
			continue
		}
		changes = append(changes, Change{URL: k, Before: b, After: a, Existed: ok})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].URL < changes[j].URL })
	return changes
}
