package watchstate

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"ticketwatch/internal/model"
)

func TestMergePreservesUntouchedFields(t *testing.T) {
	s := New()
	s.Merge("https://x/e", model.WatchPatch{
		Found:   model.Bool(true),
		Enabled: model.Bool(true),
		TaskID:  model.String("T1"),
	})

	got := s.Merge("https://x/e", model.WatchPatch{Enabled: model.Bool(false)})

	want := model.WatchState{Found: true, Enabled: false, TaskID: "T1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
}

func TestLookupsAreCanonical(t *testing.T) {
	s := New()
	s.Merge("https://x/e?b=2&a=1#frag", model.WatchPatch{Watching: model.Bool(true)})

	got, ok := s.Get("https://x/e?a=1&b=2")
	if !ok {
		t.Fatal("expected entry under canonical key")
	}
	if !got.Watching {
		t.Errorf("Watching = false, want true")
	}
	if diff := cmp.Diff(1, s.Len()); diff != "" {
		t.Errorf("Len() mismatch (-want +got):\n%s", diff)
	}
}

func TestGetMissing(t *testing.T) {
	s := New()
	got, ok := s.Get("https://x/missing")
	if ok {
		t.Fatalf("expected no entry, got %+v", got)
	}
	if diff := cmp.Diff(model.WatchState{}, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}
}

func TestHydrateReplacesMap(t *testing.T) {
	s := New()
	s.Merge("https://x/old", model.WatchPatch{Found: model.Bool(true)})

	s.Hydrate(map[string]model.WatchPatch{
		"https://x/new?b=1&a=2#x": {
			Found:    model.Bool(true),
			Enabled:  model.Bool(true),
			Watching: model.Bool(true),
			TaskID:   model.String("abc123"),
		},
	})

	if _, ok := s.Get("https://x/old"); ok {
		t.Error("expected old entry to be dropped by Hydrate")
	}

	got, ok := s.Get("https://x/new?a=2&b=1")
	if !ok {
		t.Fatal("expected hydrated entry under canonical key")
	}
	want := model.WatchState{Found: true, Enabled: true, Watching: true, TaskID: "abc123"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("hydrated entry mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	s := New()
	s.Merge("https://x/e", model.WatchPatch{Found: model.Bool(true)})

	snap := s.Snapshot()
	snap["https://x/e"] = model.WatchState{}

	got, _ := s.Get("https://x/e")
	if !got.Found {
		t.Error("mutating the snapshot changed the store")
	}
}
