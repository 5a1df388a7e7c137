package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ticketwatch/internal/config"
	"ticketwatch/internal/host"
	"ticketwatch/internal/listing"
	"ticketwatch/internal/model"
	"ticketwatch/internal/refresher"
)

type recordingHost struct {
	host.Local
	sent []host.Message
}

func (r *recordingHost) IsInClient() bool { return true }

func (r *recordingHost) SendMessages(_ context.Context, msgs []host.Message) error {
	r.sent = append(r.sent, msgs...)
	return nil
}

func TestPrintReporter(t *testing.T) {
	var buf bytes.Buffer
	h := &recordingHost{}
	rep := &printReporter{out: &buf, host: h, log: slog.New(slog.NewTextHandler(io.Discard, nil))}

	added := model.Listing{URL: "https://t/e?id=7", Title: "New Show", StatusText: "on sale"}
	rep.Report(context.Background(), refresher.Update{
		Cycle:  2,
		Result: &listing.Result{Items: []model.Listing{added}},
		Added:  []model.Listing{added},
		Changed: []refresher.Change{{
			URL:     "https://t/e?id=1",
			Before:  model.WatchState{Found: true, Enabled: true, TaskID: "T1"},
			After:   model.WatchState{Found: true, TaskID: "T1"},
			Existed: true,
		}},
	})

	out := buf.String()
	for _, want := range []string{"1 listings, 1 new, 1 changed", "+ New Show  on sale", "watching -> task disabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	want := []host.Message{{Text: "New listings:\n\nNew Show (on sale)\nhttps://t/e?id=7"}}
	if diff := cmp.Diff(want, h.sent); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
}

func TestPrintReporterFirstCycleDoesNotNotify(t *testing.T) {
	h := &recordingHost{}
	rep := &printReporter{out: io.Discard, host: h, log: slog.New(slog.NewTextHandler(io.Discard, nil))}

	l := model.Listing{URL: "https://t/e?id=1", Title: "A"}
	rep.Report(context.Background(), refresher.Update{
		Cycle:  1,
		Result: &listing.Result{Items: []model.Listing{l}},
		Added:  []model.Listing{l},
	})
	if len(h.sent) != 0 {
		t.Errorf("sent %d messages on first cycle, want 0", len(h.sent))
	}
}

func TestNewHost(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	h, err := newHost(&config.Config{LocalUserID: "U1"}, log)
	if err != nil {
		t.Fatalf("local host: %v", err)
	}
	if diff := cmp.Diff(host.Host(host.Local{UserID: "U1"}), h); diff != "" {
		t.Errorf("host mismatch (-want +got):\n%s", diff)
	}

	_, err = newHost(&config.Config{TelegramBotToken: "tok", LaunchUserID: 5, AllowedUsers: []int64{1}}, log)
	if err == nil {
		t.Fatal("expected disallowed user to be rejected")
	}

	_, err = newHost(&config.Config{TelegramBotToken: "tok", AllowedUsers: []int64{1}}, log)
	if err == nil || !strings.Contains(err.Error(), "TELEGRAM_LAUNCH_USER_ID") {
		t.Fatalf("newHost with allow list and no launch user: err = %v, want unknown user error", err)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"unknown": slog.LevelInfo,
	}
	for level, want := range tests {
		l := newLogger(level, io.Discard)
		if !l.Enabled(context.Background(), want) {
			t.Errorf("newLogger(%q) does not enable %v", level, want)
		}
		if want > slog.LevelDebug && l.Enabled(context.Background(), want-1) {
			t.Errorf("newLogger(%q) enables below %v", level, want)
		}
	}
}
