// Package model defines the domain types used across the application.
package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Listing is one ticketed event offered to the user.
type Listing struct {
	URL            string
	Title          string
	DateText       string
	Venue          string
	CoverImageURL  string
	RemainingCount *int
	StatusText     string
}

// UnmarshalJSON accepts the field aliases the listing endpoint has used over time.
func (l *Listing) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*l = Listing{
		URL:           firstString(raw, "url", "details_url", "detailsUrl"),
		Title:         firstString(raw, "title", "name"),
		DateText:      firstString(raw, "dateText", "date_text", "date"),
		Venue:         firstString(raw, "venue", "place"),
		CoverImageURL: firstString(raw, "coverImageUrl", "image_url", "image"),
		StatusText:    firstString(raw, "statusText", "status_text"),
	}
	for _, key := range []string{"remainingCount", "remaining", "remain"} {
		if n, ok := intField(raw, key); ok && n >= 0 {
			l.RemainingCount = &n
			break
		}
	}
	return nil
}

// MarshalJSON writes the canonical field names.
func (l Listing) MarshalJSON() ([]byte, error) {
	type wire struct {
		URL            string `json:"url,omitempty"`
		Title          string `json:"title"`
		DateText       string `json:"dateText,omitempty"`
		Venue          string `json:"venue,omitempty"`
		CoverImageURL  string `json:"coverImageUrl,omitempty"`
		RemainingCount *int   `json:"remainingCount,omitempty"`
		StatusText     string `json:"statusText,omitempty"`
	}
	return json.Marshal(wire(l))
}

func firstString(raw map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func intField(raw map[string]json.RawMessage, key string) (int, bool) {
	v, ok := raw[key]
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return int(f), true
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, true
		}
	}
	return 0, false
}

// WatchState is the client's merged view of one watch task.
// An empty TaskID means the server reported no task identifier.
type WatchState struct {
	Found    bool
	Enabled  bool
	Watching bool
	TaskID   string
	Period   int
}

// WatchPatch is a partial WatchState. Nil fields are absent and leave the
// existing value untouched when merged.
type WatchPatch struct {
	Found    *bool   `json:"found,omitempty"`
	Enabled  *bool   `json:"enabled,omitempty"`
	Watching *bool   `json:"watching,omitempty"`
	TaskID   *string `json:"taskId,omitempty"`
	Period   *int    `json:"period,omitempty"`
}

// Apply merges p over s and returns the result.
func (p WatchPatch) Apply(s WatchState) WatchState {
	if p.Found != nil {
		s.Found = *p.Found
	}
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.Watching != nil {
		s.Watching = *p.Watching
	}
	if p.TaskID != nil {
		s.TaskID = *p.TaskID
	}
	if p.Period != nil {
		s.Period = *p.Period
	}
	return s
}

// Bool returns a pointer to b, for building patches.
func Bool(b bool) *bool { return &b }

// String returns a pointer to s, for building patches.
func String(s string) *string { return &s }

// Session identifies the chat scope actions apply to.
type Session struct {
	ChatID string
}

// Resolved reports whether a chat identity is available.
func (s Session) Resolved() bool { return s.ChatID != "" }

// ActionKind names one of the three card actions.
type ActionKind string

// Card actions.
const (
	ActionWatch      ActionKind = "watch"
	ActionUnwatch    ActionKind = "unwatch"
	ActionQuickCheck ActionKind = "quick_check"
)

// Outcome levels for a settled action.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarn    = "warn"
	LevelError   = "error"
)

// JournalEntry records one settled action.
type JournalEntry struct {
	ID        int64
	ChatID    string
	Action    ActionKind
	URLCanon  string
	Level     string
	Message   string
	TaskID    string
	CreatedAt time.Time
}
