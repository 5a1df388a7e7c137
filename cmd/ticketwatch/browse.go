package main

import (
	"context"
	"fmt"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ticketwatch/internal/api"
	"ticketwatch/internal/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Open the interactive listing page",
	Long: `Open the interactive listing page.

Keys:
  ↑/↓ j/k  - Move between listings
  w        - Watch the focused listing
  u        - Unwatch the focused listing
  c        - Check availability now
  p        - Edit the recheck period
  r        - Reload listings
  q        - Quit`,
	RunE: runBrowse,
}

func runBrowse(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	m := tui.New(ctx, a.loader, a.orch, a.store, tui.Options{
		Period: a.cfg.Period,
		Probe:  imageProbe(a.http),
	}, a.log)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

// imageProbe checks that a cover image answers a HEAD request with 2xx.
func imageProbe(client api.HTTPClient) tui.ImageProbe {
	return func(ctx context.Context, url string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("head image: %w", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &api.StatusError{StatusCode: resp.StatusCode}
		}
		return nil
	}
}
