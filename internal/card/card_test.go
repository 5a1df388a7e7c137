package card

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ticketwatch/internal/model"
)

func intPtr(n int) *int { return &n }

func TestTitle(t *testing.T) {
	c := New(0, model.Listing{Title: "Spring Tour"})
	if diff := cmp.Diff("01 Spring Tour", c.Title()); diff != "" {
		t.Errorf("Title() mismatch (-want +got):\n%s", diff)
	}
	c = New(11, model.Listing{Title: "Encore"})
	if diff := cmp.Diff("12 Encore", c.Title()); diff != "" {
		t.Errorf("Title() mismatch (-want +got):\n%s", diff)
	}
}

func TestInitialStatus(t *testing.T) {
	tests := []struct {
		name    string
		listing model.Listing
		want    string
	}{
		{name: "remaining count", listing: model.Listing{RemainingCount: intPtr(4), StatusText: "ignored"}, want: "remaining 4"},
		{name: "zero remaining", listing: model.Listing{RemainingCount: intPtr(0)}, want: "remaining 0"},
		{name: "free text", listing: model.Listing{StatusText: "sold out"}, want: "sold out"},
		{name: "nothing known", listing: model.Listing{}, want: StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, New(0, tt.listing).Status()); diff != "" {
				t.Errorf("Status() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSetAvailability(t *testing.T) {
	c := New(0, model.Listing{StatusText: "before"})

	c.SetAvailability(nil, "")
	if diff := cmp.Diff("before", c.Status()); diff != "" {
		t.Errorf("empty update changed status (-want +got):\n%s", diff)
	}

	c.SetAvailability(intPtr(9), "")
	if diff := cmp.Diff("remaining 9", c.Status()); diff != "" {
		t.Errorf("Status() mismatch (-want +got):\n%s", diff)
	}

	c.SetAvailability(nil, "sold out")
	if diff := cmp.Diff("sold out", c.Status()); diff != "" {
		t.Errorf("Status() mismatch (-want +got):\n%s", diff)
	}
}

func TestIndicator(t *testing.T) {
	tests := []struct {
		name string
		st   model.WatchState
		ok   bool
		want string
	}{
		{name: "no entry", ok: false, want: ""},
		{name: "enabled task", st: model.WatchState{TaskID: "T1", Enabled: true, Found: true}, ok: true, want: IndicatorWatching},
		{name: "disabled task", st: model.WatchState{TaskID: "T1", Found: true}, ok: true, want: IndicatorDisabled},
		{name: "found without id", st: model.WatchState{Found: true}, ok: true, want: IndicatorInactive},
		{name: "nothing found", st: model.WatchState{}, ok: true, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Indicator(tt.st, tt.ok)); diff != "" {
				t.Errorf("Indicator() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLockDisablesButtons(t *testing.T) {
	c := New(0, model.Listing{URL: "https://t/e", Title: "A"})

	if !c.Acquire(model.ActionWatch) {
		t.Fatal("expected first Acquire to succeed")
	}
	if c.Acquire(model.ActionQuickCheck) {
		t.Fatal("expected second Acquire to fail while pending")
	}

	v := c.View(model.WatchState{}, false)
	if !v.Pending || v.Action != model.ActionWatch {
		t.Errorf("view pending=%v action=%q, want pending watch", v.Pending, v.Action)
	}
	for _, b := range v.Buttons {
		if b.Enabled {
			t.Errorf("button %s enabled while pending", b.Action)
		}
	}

	c.Release()
	v = c.View(model.WatchState{}, false)
	for _, b := range v.Buttons {
		if !b.Enabled {
			t.Errorf("button %s disabled after release", b.Action)
		}
	}
	if !c.Acquire(model.ActionUnwatch) {
		t.Error("expected Acquire after Release to succeed")
	}
}

func TestAcquireIsExclusive(t *testing.T) {
	c := New(0, model.Listing{})
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Acquire(model.ActionWatch) {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if won != 1 {
		t.Errorf("%d goroutines acquired the lock, want 1", won)
	}
}

func TestImageFallbackOnce(t *testing.T) {
	c := New(0, model.Listing{CoverImageURL: "https://t/cover.jpg"})
	if diff := cmp.Diff("https://t/cover.jpg", c.View(model.WatchState{}, false).Image); diff != "" {
		t.Errorf("Image mismatch (-want +got):\n%s", diff)
	}

	c.ImageFailed()
	c.ImageFailed()
	if diff := cmp.Diff(PlaceholderImage, c.View(model.WatchState{}, false).Image); diff != "" {
		t.Errorf("Image mismatch (-want +got):\n%s", diff)
	}
	if !c.imageFailed {
		t.Error("expected imageFailed to be set")
	}
}

func TestViewMetaAndLink(t *testing.T) {
	full := New(2, model.Listing{
		URL:            "https://t/e",
		Title:          "Show",
		DateText:       "2025/06/10",
		Venue:          "Arena",
		RemainingCount: intPtr(3),
	})
	v := full.View(model.WatchState{}, false)
	want := []string{"date: 2025/06/10", "venue: Arena", "remaining: 3"}
	if diff := cmp.Diff(want, v.Meta); diff != "" {
		t.Errorf("Meta mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("https://t/e", v.Link); diff != "" {
		t.Errorf("Link mismatch (-want +got):\n%s", diff)
	}

	bare := New(0, model.Listing{Title: "Bare"}).View(model.WatchState{}, false)
	if len(bare.Meta) != 0 || bare.Link != "" {
		t.Errorf("expected no meta or link, got %v %q", bare.Meta, bare.Link)
	}
}
