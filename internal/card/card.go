// Package card is the per-listing UI unit: what a listing card shows and the
// request lock that keeps one action in flight at a time.
package card

import (
	"fmt"
	"strings"
	"sync"

	"ticketwatch/internal/model"
)

// PlaceholderImage is shown when a cover image fails to load.
const PlaceholderImage = "https://placehold.co/600x400?text=No+Image"

// Status line and watch indicator texts.
const (
	StatusUnknown     = "cannot currently determine remaining count"
	IndicatorWatching = "watching"
	IndicatorDisabled = "task disabled"
	IndicatorInactive = "task exists but inactive"
)

// Feedback is the transient line under a card.
type Feedback struct {
	Level string
	Text  string
}

// Button is one action trigger.
type Button struct {
	Action  model.ActionKind
	Label   string
	Enabled bool
}

// View is an immutable snapshot of everything a card renders.
type View struct {
	Title     string
	Image     string
	Meta      []string
	Link      string
	Status    string
	Indicator string
	Buttons   []Button
	Feedback  Feedback
	Pending   bool
	Action    model.ActionKind
}

// Card owns one listing's rendering state and request lock. It is safe for
// concurrent use.
type Card struct {
	index   int
	listing model.Listing

	mu          sync.Mutex
	pending     bool
	action      model.ActionKind
	status      string
	feedback    Feedback
	image       string
	imageFailed bool
}

// New creates a card for the listing at zero-based position index.
func New(index int, l model.Listing) *Card {
	return &Card{
		index:   index,
		listing: l,
		status:  initialStatus(l),
		image:   l.CoverImageURL,
	}
}

// Listing returns the card's listing.
func (c *Card) Listing() model.Listing { return c.listing }

// Title is the 1-based position padded to two digits followed by the title.
func (c *Card) Title() string {
	return fmt.Sprintf("%02d %s", c.index+1, c.listing.Title)
}

// Acquire takes the card's request lock for action. It reports false when
// another action already holds it.
func (c *Card) Acquire(action model.ActionKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		return false
	}
	c.pending = true
	c.action = action
	return true
}

// Release frees the request lock.
func (c *Card) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false
	c.action = ""
}

// Pending reports whether a request is in flight.
func (c *Card) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// SetFeedback replaces the feedback line.
func (c *Card) SetFeedback(level, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feedback = Feedback{Level: level, Text: text}
}

// SetAvailability updates the status line from an action result. It is a
// no-op when neither value is present.
func (c *Card) SetAvailability(remain *int, text string) {
	line := statusLine(remain, text)
	if line == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = line
}

// Status returns the current status line.
func (c *Card) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// ImageFailed swaps the cover for the placeholder. Only the first failure
// swaps, so a failing placeholder does not loop.
func (c *Card) ImageFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.imageFailed {
		return
	}
	c.imageFailed = true
	c.image = PlaceholderImage
}

// View snapshots the card, deriving the watch indicator from st. ok is false
// when the store has no entry for the listing.
func (c *Card) View(st model.WatchState, ok bool) View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Title:     c.Title(),
		Image:     c.image,
		Meta:      metaLines(c.listing),
		Link:      c.listing.URL,
		Status:    c.status,
		Indicator: Indicator(st, ok),
		Feedback:  c.feedback,
		Pending:   c.pending,
		Action:    c.action,
	}
	for _, b := range []Button{
		{Action: model.ActionWatch, Label: "Watch"},
		{Action: model.ActionUnwatch, Label: "Unwatch"},
		{Action: model.ActionQuickCheck, Label: "Check now"},
	} {
		b.Enabled = !c.pending
		v.Buttons = append(v.Buttons, b)
	}
	return v
}

// Indicator describes the watch state of a listing.
func Indicator(st model.WatchState, ok bool) string {
	switch {
	case !ok:
		return ""
	case st.TaskID != "" && st.Enabled:
		return IndicatorWatching
	case st.TaskID != "":
		return IndicatorDisabled
	case st.Found:
		return IndicatorInactive
	}
	return ""
}

func initialStatus(l model.Listing) string {
	if line := statusLine(l.RemainingCount, l.StatusText); line != "" {
		return line
	}
	return StatusUnknown
}

func statusLine(remain *int, text string) string {
	if remain != nil {
		return fmt.Sprintf("remaining %d", *remain)
	}
	return strings.TrimSpace(text)
}

func metaLines(l model.Listing) []string {
	var lines []string
	if l.DateText != "" {
		lines = append(lines, "date: "+l.DateText)
	}
	if l.Venue != "" {
		lines = append(lines, "venue: "+l.Venue)
	}
	if l.RemainingCount != nil {
		lines = append(lines, fmt.Sprintf("remaining: %d", *l.RemainingCount))
	}
	return lines
}
