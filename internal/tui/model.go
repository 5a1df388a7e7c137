// Package tui is the interactive listing page: it loads listings, renders one
// card per listing and dispatches card actions through the orchestrator.
package tui

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"ticketwatch/internal/card"
	"ticketwatch/internal/listing"
	"ticketwatch/internal/model"
	"ticketwatch/internal/orchestrator"
	"ticketwatch/internal/watchstate"
)

// Loader loads the listing page.
type Loader interface {
	Load(ctx context.Context) (*listing.Result, error)
}

// ImageProbe reports whether a cover image can be fetched.
type ImageProbe func(ctx context.Context, url string) error

// Options configures a Model.
type Options struct {
	// Period is the initial recheck period, in seconds, for new watches.
	Period int
	// Probe, when set, is run for every cover image after a load.
	Probe ImageProbe
}

type loadedMsg struct {
	res *listing.Result
	err error
}

type outcomeMsg struct {
	index int
	out   orchestrator.Outcome
}

type imageFailedMsg struct {
	index int
	gen   int
}

// Model is the bubbletea model for the listing page.
type Model struct {
	ctx   context.Context
	log   *slog.Logger
	theme theme
	keys  keyMap

	loader Loader
	orch   *orchestrator.Orchestrator
	store  *watchstate.Store
	probe  ImageProbe

	cards  []*card.Card
	cursor int
	// offset is the first card-list row on screen.
	offset int
	// gen counts loads so stale image probes are ignored.
	gen int

	result  *listing.Result
	loading bool
	loadErr error
	alert   *orchestrator.Outcome

	period  textinput.Model
	editing bool
	spinner spinner.Model
	help    help.Model

	width  int
	height int
}

// New creates the page model.
func New(ctx context.Context, loader Loader, orch *orchestrator.Orchestrator, store *watchstate.Store, opts Options, log *slog.Logger) Model {
	s := spinner.New()
	s.Spinner = spinner.MiniDot

	ti := textinput.New()
	ti.Prompt = "period (s): "
	ti.Placeholder = strconv.Itoa(orchestrator.MinPeriod)
	ti.CharLimit = 6
	ti.Width = 8
	ti.SetValue(strconv.Itoa(opts.Period))

	return Model{
		ctx:     ctx,
		log:     log,
		theme:   newTheme(),
		keys:    keys,
		loader:  loader,
		orch:    orch,
		store:   store,
		probe:   opts.Probe,
		loading: true,
		period:  ti,
		spinner: s,
		help:    help.New(),
	}
}

// Init starts the first load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

func (m Model) load() tea.Cmd {
	loader, ctx := m.loader, m.ctx
	return func() tea.Msg {
		res, err := loader.Load(ctx)
		return loadedMsg{res: res, err: err}
	}
}

// Update handles a message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.follow()
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.updatePeriod(msg)
		}
		next, cmd := m.handleKey(msg)
		page := next.(Model)
		page.follow()
		return page, cmd

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loadedMsg:
		return m.handleLoaded(msg)

	case outcomeMsg:
		if msg.out.Alert {
			out := msg.out
			m.alert = &out
		}
		m.follow()
		return m, nil

	case imageFailedMsg:
		if msg.gen == m.gen && msg.index < len(m.cards) {
			m.cards[msg.index].ImageFailed()
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.alert = nil

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.cards)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Period):
		m.editing = true
		return m, m.period.Focus()
	case key.Matches(msg, m.keys.Reload):
		if m.loading {
			return m, nil
		}
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, m.load())
	case key.Matches(msg, m.keys.Watch):
		return m.dispatch(model.ActionWatch)
	case key.Matches(msg, m.keys.Unwatch):
		return m.dispatch(model.ActionUnwatch)
	case key.Matches(msg, m.keys.Check):
		return m.dispatch(model.ActionQuickCheck)
	}
	return m, nil
}

func (m Model) updatePeriod(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.editing = false
		m.period.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.period, cmd = m.period.Update(msg)
	return m, cmd
}

// dispatch takes the focused card's lock synchronously so a second key press
// before the request runs is refused as busy.
func (m Model) dispatch(action model.ActionKind) (tea.Model, tea.Cmd) {
	if len(m.cards) == 0 {
		return m, nil
	}
	index := m.cursor
	job, refused := m.orch.Start(m.cards[index], orchestrator.Request{
		Action: action,
		Period: m.period.Value(),
	})
	if refused != nil {
		if refused.Alert {
			m.alert = refused
		}
		return m, nil
	}

	ctx := m.ctx
	run := func() tea.Msg {
		return outcomeMsg{index: index, out: job.Run(ctx)}
	}
	return m, tea.Batch(m.spinner.Tick, run)
}

func (m Model) handleLoaded(msg loadedMsg) (tea.Model, tea.Cmd) {
	if errors.Is(msg.err, listing.ErrLoadInProgress) {
		return m, nil
	}
	m.loading = false
	if msg.err != nil {
		m.log.Error("load listings", "error", msg.err)
		m.loadErr = msg.err
		return m, nil
	}

	m.loadErr = nil
	m.result = msg.res
	m.gen++
	m.cards = make([]*card.Card, len(msg.res.Items))
	for i, l := range msg.res.Items {
		m.cards[i] = card.New(i, l)
	}
	m.cursor = min(m.cursor, max(len(m.cards)-1, 0))
	m.follow()

	return m, m.probeImages()
}

func (m Model) probeImages() tea.Cmd {
	if m.probe == nil {
		return nil
	}
	var cmds []tea.Cmd
	for i, c := range m.cards {
		src := c.Listing().CoverImageURL
		if src == "" {
			continue
		}
		index, gen, probe, ctx := i, m.gen, m.probe, m.ctx
		cmds = append(cmds, func() tea.Msg {
			if err := probe(ctx, src); err != nil {
				return imageFailedMsg{index: index, gen: gen}
			}
			return nil
		})
	}
	return tea.Batch(cmds...)
}

func (m Model) busy() bool {
	if m.loading {
		return true
	}
	for _, c := range m.cards {
		if c.Pending() {
			return true
		}
	}
	return false
}
