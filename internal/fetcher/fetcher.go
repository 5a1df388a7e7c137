// Package fetcher reads listings from an RSS or Atom event feed.
package fetcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"ticketwatch/internal/api"
	"ticketwatch/internal/filter"
	"ticketwatch/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	client HTTPClient
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch downloads and parses a feed from the given URL.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "ticketwatch/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &api.StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// ItemGUID returns the GUID for a feed item.
// If the item has no GUID, a SHA-256 hash of title+link is used.
func ItemGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}

// FeedSource serves listings from a feed. It has no server-side filtering,
// so keyword and concert criteria are applied locally.
type FeedSource struct {
	fetcher *Fetcher
	url     string
}

// NewFeedSource creates a listing source for the feed at url.
func NewFeedSource(client HTTPClient, url string) *FeedSource {
	return &FeedSource{fetcher: New(client), url: url}
}

// List fetches the feed and converts its items. Primary mode honours the
// limit; exhaustive mode returns up to api.MaxLimit items.
func (s *FeedSource) List(ctx context.Context, p api.ListParams) (*api.ListResult, error) {
	feed, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	limit := api.ClampLimit(p.Limit)
	if p.Mode == api.ModeExhaustive {
		limit = api.MaxLimit
	}
	criteria := filter.Criteria{Keyword: p.Keyword, OnlyConcert: p.OnlyConcert}

	return &api.ListResult{
		Items: Listings(feed.Items, criteria, limit),
		Mode:  p.Mode,
	}, nil
}

// Listings converts feed items that pass criteria, skipping duplicates, and
// stops after limit items.
func Listings(items []*gofeed.Item, criteria filter.Criteria, limit int) []model.Listing {
	keep := criteria.Matcher()
	seen := make(map[string]bool, len(items))
	var out []model.Listing
	for _, item := range items {
		if len(out) >= limit {
			break
		}
		guid := ItemGUID(item)
		if seen[guid] {
			continue
		}
		seen[guid] = true

		l := ToListing(item)
		if !keep.Keep(filter.Item{Title: l.Title, Venue: l.Venue}) {
			continue
		}
		out = append(out, l)
	}
	return out
}

// ToListing maps a feed item onto a listing. Event details come from custom
// elements (date, venue, remaining, status) when the feed provides them.
func ToListing(item *gofeed.Item) model.Listing {
	l := model.Listing{
		URL:        strings.TrimSpace(item.Link),
		Title:      strings.TrimSpace(item.Title),
		DateText:   custom(item, "date", "eventDate"),
		Venue:      custom(item, "venue", "place"),
		StatusText: custom(item, "status", "statusText"),
	}
	if l.DateText == "" && item.PublishedParsed != nil {
		l.DateText = item.PublishedParsed.Format("2006/01/02 15:04")
	}
	if n, err := strconv.Atoi(custom(item, "remaining", "remain")); err == nil && n >= 0 {
		l.RemainingCount = &n
	}

	switch {
	case item.Image != nil && item.Image.URL != "":
		l.CoverImageURL = item.Image.URL
	default:
		for _, enc := range item.Enclosures {
			if enc != nil && strings.HasPrefix(enc.Type, "image/") {
				l.CoverImageURL = enc.URL
				break
			}
		}
	}
	return l
}

func custom(item *gofeed.Item, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(item.Custom[k]); v != "" {
			return v
		}
	}
	return ""
}
