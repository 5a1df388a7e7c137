package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ticketwatch/internal/canon"
	"ticketwatch/internal/card"
	"ticketwatch/internal/model"
	"ticketwatch/internal/orchestrator"
)

var (
	flagPeriod  string
	flagHistory int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print listings with their availability and watch state",
	RunE:  runList,
}

var watchCmd = &cobra.Command{
	Use:   "watch <url>",
	Short: "Start a periodic availability check for a listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, model.ActionWatch, args[0])
	},
}

var unwatchCmd = &cobra.Command{
	Use:   "unwatch <url>",
	Short: "Stop the periodic check for a listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, model.ActionUnwatch, args[0])
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Run a one-off availability check for a listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, model.ActionQuickCheck, args[0])
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent actions recorded for this chat",
	RunE:  runHistory,
}

func init() {
	watchCmd.Flags().StringVarP(&flagPeriod, "period", "p", "", "recheck period in seconds (minimum 15, default TICKETWATCH_PERIOD)")
	historyCmd.Flags().IntVar(&flagHistory, "entries", 20, "number of entries to show")
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load listings: %w", err)
	}

	out := cmd.OutOrStdout()
	source := res.SourceMode
	if res.Fallback {
		source += ", fallback"
	}
	fmt.Fprintf(out, "%d listings (%s)\n\n", len(res.Items), source)
	for i, l := range res.Items {
		st, ok := a.store.Get(l.URL)
		printCard(out, card.New(i, l).View(st, ok))
	}
	return nil
}

// runAction performs one card action for a listing URL outside the TUI.
func runAction(cmd *cobra.Command, action model.ActionKind, rawURL string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if action == model.ActionUnwatch {
		a.seedTask(ctx, rawURL)
	}

	period := flagPeriod
	if period == "" {
		period = fmt.Sprint(a.cfg.Period)
	}

	c := card.New(0, model.Listing{URL: strings.TrimSpace(rawURL)})
	outcome := a.orch.Dispatch(ctx, c, orchestrator.Request{Action: action, Period: period})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "[%s] %s\n", outcome.Level, outcome.Message)
	if status := c.Status(); status != card.StatusUnknown {
		fmt.Fprintf(out, "status: %s\n", status)
	}
	if outcome.State != nil {
		if ind := card.Indicator(*outcome.State, true); ind != "" {
			fmt.Fprintf(out, "task: %s %s\n", outcome.State.TaskID, ind)
		}
	}
	if outcome.Delivered {
		fmt.Fprintln(out, "sent to chat")
	}

	if outcome.Refused || outcome.Level == model.LevelError {
		return fmt.Errorf("%s: %s", action, outcome.Message)
	}
	return nil
}

// seedTask fills the store for one URL so Unwatch can send a task hint. The
// server's state is preferred; the journal is the fallback.
func (a *app) seedTask(ctx context.Context, rawURL string) {
	if !a.session.Resolved() {
		return
	}
	statuses, err := a.client.Statuses(ctx, a.session.ChatID, []string{rawURL})
	if err != nil {
		a.log.Warn("fetch watch status", "url", rawURL, "error", err)
	} else {
		a.store.Hydrate(statuses)
	}
	if st, _ := a.store.Get(rawURL); st.TaskID != "" {
		return
	}

	taskID, err := a.journal.LastTask(ctx, a.session.ChatID, canon.Canonicalize(rawURL))
	if err != nil {
		a.log.Warn("read journal", "error", err)
		return
	}
	if taskID != "" {
		a.store.Merge(rawURL, model.WatchPatch{TaskID: model.String(taskID)})
	}
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.journal.List(ctx, a.session.ChatID, flagHistory)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No recorded actions.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tLEVEL\tTASK\tURL\tMESSAGE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Action, e.Level, dash(e.TaskID), e.URLCanon, e.Message)
	}
	return tw.Flush()
}

func printCard(w io.Writer, v card.View) {
	fmt.Fprintln(w, v.Title)
	for _, m := range v.Meta {
		fmt.Fprintf(w, "  %s\n", m)
	}
	if v.Link != "" {
		fmt.Fprintf(w, "  %s\n", v.Link)
	}
	fmt.Fprintf(w, "  %s\n", v.Status)
	if v.Indicator != "" {
		fmt.Fprintf(w, "  [%s]\n", v.Indicator)
	}
	fmt.Fprintln(w)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
