package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ticketwatch/internal/card"
	"ticketwatch/internal/host"
	"ticketwatch/internal/model"
	"ticketwatch/internal/refresher"
)

var (
	flagEvery  time.Duration
	flagNotify bool
)

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Reload listings periodically and print what changed",
	RunE:  runFollow,
}

func init() {
	followCmd.Flags().DurationVar(&flagEvery, "every", 0, "reload interval (default TICKETWATCH_REFRESH)")
	followCmd.Flags().BoolVar(&flagNotify, "notify", false, "also send new listings to the launch chat")
}

func runFollow(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	every := a.cfg.Refresh
	if flagEvery > 0 {
		every = flagEvery
	}

	rep := &printReporter{out: cmd.OutOrStdout(), log: a.log}
	if flagNotify {
		if !a.host.IsInClient() {
			return fmt.Errorf("--notify needs a Telegram launch chat (TELEGRAM_LAUNCH_CHAT_ID)")
		}
		rep.host = a.host
	}

	a.log.Info("following listings", "every", every)
	refresher.New(a.loader, a.store, rep, every, a.log).Run(ctx)
	return nil
}

// printReporter writes refresh updates and optionally forwards new listings
// to the host chat.
type printReporter struct {
	out  io.Writer
	host host.Host
	log  *slog.Logger
}

func (p *printReporter) Report(ctx context.Context, u refresher.Update) {
	stamp := time.Now().Format("15:04:05")
	if u.Err != nil {
		fmt.Fprintf(p.out, "%s reload #%d failed: %v\n", stamp, u.Cycle, u.Err)
		return
	}
	fmt.Fprintf(p.out, "%s reload #%d: %d listings, %d new, %d changed\n",
		stamp, u.Cycle, len(u.Result.Items), len(u.Added), len(u.Changed))

	var lines []string
	for i, l := range u.Added {
		status := card.New(i, l).Status()
		fmt.Fprintf(p.out, "  + %s  %s\n", l.Title, status)
		lines = append(lines, fmt.Sprintf("%s (%s)\n%s", l.Title, status, l.URL))
	}
	for _, c := range u.Changed {
		fmt.Fprintf(p.out, "  ~ %s  %s -> %s\n", c.URL, describe(c.Before, c.Existed), describe(c.After, true))
	}

	if p.host == nil || len(lines) == 0 || u.Cycle == 1 {
		return
	}
	msg := host.Message{Text: "New listings:\n\n" + strings.Join(lines, "\n\n")}
	if err := p.host.SendMessages(ctx, []host.Message{msg}); err != nil {
		p.log.Warn("notify new listings", "count", len(lines), "error", err)
	}
}

func describe(st model.WatchState, existed bool) string {
	if ind := card.Indicator(st, existed); ind != "" {
		return ind
	}
	return "not watched"
}
