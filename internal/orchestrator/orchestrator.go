// Package orchestrator runs the Watch, Unwatch and QuickCheck request flows
// for a card: validation, locking, the backend call and reconciliation of
// the reply into the watch-state store and the card.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"ticketwatch/internal/api"
	"ticketwatch/internal/canon"
	"ticketwatch/internal/card"
	"ticketwatch/internal/host"
	"ticketwatch/internal/model"
	"ticketwatch/internal/watchstate"
)

// MinPeriod is the shortest recheck period, in seconds, the backend accepts.
const MinPeriod = 15

// User-facing refusal texts.
const (
	MsgNoURL     = "This listing has no link, so it cannot be watched or checked."
	MsgNoSession = "Could not identify this chat. Open the app from a conversation to manage watches."
	MsgBusy      = "A request for this listing is already in progress."
)

// API is the subset of the backend client the orchestrator calls.
type API interface {
	Watch(ctx context.Context, req api.WatchRequest) (*api.Reply, error)
	Unwatch(ctx context.Context, req api.UnwatchRequest) (*api.Reply, error)
	QuickCheck(ctx context.Context, listingURL string) (*api.Reply, error)
}

// Recorder persists settled actions.
type Recorder interface {
	Record(ctx context.Context, e *model.JournalEntry) error
}

// Request is one user-triggered action. Period is the raw recheck period for
// Watch and is ignored otherwise.
type Request struct {
	Action model.ActionKind
	Period string
}

// Outcome is what the user is told once an action settles or is refused.
type Outcome struct {
	Action  model.ActionKind
	Level   string
	Message string
	// Alert marks outcomes that should interrupt the user.
	Alert bool
	// Refused means no request was sent.
	Refused bool
	// Delivered is set when a quick-check message reached the host chat.
	Delivered bool
	// State is the merged watch state when the store changed.
	State *model.WatchState
}

// Orchestrator dispatches card actions.
type Orchestrator struct {
	api     API
	store   *watchstate.Store
	session model.Session
	host    host.Host
	journal Recorder
	log     *slog.Logger
}

// New creates an Orchestrator. h and journal may be nil.
func New(client API, store *watchstate.Store, sess model.Session, h host.Host, journal Recorder, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		api:     client,
		store:   store,
		session: sess,
		host:    h,
		journal: journal,
		log:     log,
	}
}

// Session returns the session actions are scoped to.
func (o *Orchestrator) Session() model.Session { return o.session }

// EnsurePeriod parses raw seconds and clamps the result to at least
// MinPeriod. Anything unparseable becomes MinPeriod.
func EnsurePeriod(raw string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || f < MinPeriod || f > math.MaxInt32 {
		return MinPeriod
	}
	return int(f)
}

// Job is an accepted action holding its card's lock. Run must be called
// exactly once.
type Job struct {
	o      *Orchestrator
	card   *card.Card
	req    Request
	url    string
	period int
}

// Start validates req against c and takes the card lock. On refusal it
// returns a nil Job and the outcome to show; no request is made.
func (o *Orchestrator) Start(c *card.Card, req Request) (*Job, *Outcome) {
	refuse := func(level, msg string, alert bool) (*Job, *Outcome) {
		c.SetFeedback(level, msg)
		return nil, &Outcome{Action: req.Action, Level: level, Message: msg, Alert: alert, Refused: true}
	}

	switch req.Action {
	case model.ActionWatch, model.ActionUnwatch, model.ActionQuickCheck:
	default:
		return refuse(model.LevelError, fmt.Sprintf("Unknown action %q.", req.Action), true)
	}

	listingURL := c.Listing().URL
	if listingURL == "" {
		return refuse(model.LevelWarn, MsgNoURL, true)
	}
	if req.Action != model.ActionQuickCheck && !o.session.Resolved() {
		return refuse(model.LevelWarn, MsgNoSession, true)
	}
	if !c.Acquire(req.Action) {
		return nil, &Outcome{Action: req.Action, Level: model.LevelWarn, Message: MsgBusy, Refused: true}
	}

	j := &Job{o: o, card: c, req: req, url: listingURL}
	switch req.Action {
	case model.ActionWatch:
		j.period = EnsurePeriod(req.Period)
		c.SetFeedback(model.LevelInfo, "Starting watch...")
	case model.ActionUnwatch:
		c.SetFeedback(model.LevelInfo, "Stopping watch...")
	case model.ActionQuickCheck:
		c.SetFeedback(model.LevelInfo, "Checking availability...")
	}
	return j, nil
}

// Dispatch starts and runs req on c.
func (o *Orchestrator) Dispatch(ctx context.Context, c *card.Card, req Request) Outcome {
	j, refused := o.Start(c, req)
	if refused != nil {
		return *refused
	}
	return j.Run(ctx)
}

// Run sends the request and reconciles the reply. The card lock is released
// on every path.
func (j *Job) Run(ctx context.Context) Outcome {
	defer j.card.Release()

	var out Outcome
	switch j.req.Action {
	case model.ActionWatch:
		out = j.watch(ctx)
	case model.ActionUnwatch:
		out = j.unwatch(ctx)
	case model.ActionQuickCheck:
		out = j.quickCheck(ctx)
	}
	out.Action = j.req.Action

	j.card.SetFeedback(out.Level, out.Message)
	j.o.record(ctx, j.url, out)
	return out
}

func (j *Job) watch(ctx context.Context) Outcome {
	reply, err := j.o.api.Watch(ctx, api.WatchRequest{
		ChatID: j.o.session.ChatID,
		URL:    j.url,
		Period: j.period,
	})
	if err != nil {
		j.o.log.Error("watch request", "url", j.url, "error", err)
		return failure("Watch failed: " + api.UserMessage(err))
	}
	if !reply.OK {
		return failure("Watch failed: " + reply.Failure("request was not accepted"))
	}

	period := j.period
	if reply.Period > 0 {
		period = reply.Period
	}
	patch := model.WatchPatch{
		Watching: model.Bool(true),
		Enabled:  model.Bool(true),
		Found:    model.Bool(true),
		Period:   &period,
	}
	if id := reply.Task(); id != "" {
		patch.TaskID = model.String(id)
	}
	st := j.o.store.Merge(j.url, patch)
	j.card.SetAvailability(availability(reply))

	msg := reply.Message
	if msg == "" {
		msg = fmt.Sprintf("Watching every %d seconds.", period)
	}
	return Outcome{Level: model.LevelSuccess, Message: msg, State: &st}
}

func (j *Job) unwatch(ctx context.Context) Outcome {
	prior, _ := j.o.store.Get(j.url)
	reply, err := j.o.api.Unwatch(ctx, api.UnwatchRequest{
		ChatID:   j.o.session.ChatID,
		URL:      j.url,
		TaskCode: prior.TaskID,
	})
	if err != nil {
		j.o.log.Error("unwatch request", "url", j.url, "error", err)
		return failure("Unwatch failed: " + api.UserMessage(err))
	}

	switch {
	case reply.Reason == api.ReasonNoWatch:
		st := j.o.store.Merge(j.url, model.WatchPatch{
			Watching: model.Bool(false),
			Enabled:  model.Bool(false),
			Found:    model.Bool(false),
		})
		msg := reply.Message
		if msg == "" {
			msg = "This listing has no active watch."
		}
		return Outcome{Level: model.LevelInfo, Message: msg, State: &st}

	case reply.OK:
		taskID := reply.Task()
		if taskID == "" {
			taskID = prior.TaskID
		}
		st := j.o.store.Merge(j.url, model.WatchPatch{
			Watching: model.Bool(false),
			Enabled:  model.Bool(false),
			Found:    model.Bool(true),
			TaskID:   model.String(taskID),
		})
		j.card.SetAvailability(availability(reply))
		msg := "Watch stopped."
		if taskID != "" {
			msg = fmt.Sprintf("Watch %s stopped.", taskID)
		}
		return Outcome{Level: model.LevelSuccess, Message: msg, State: &st}
	}

	return failure("Unwatch failed: " + reply.Failure("request was not accepted"))
}

func (j *Job) quickCheck(ctx context.Context) Outcome {
	reply, err := j.o.api.QuickCheck(ctx, j.url)
	if err != nil {
		j.o.log.Error("quick check request", "url", j.url, "error", err)
		return failure("Check failed: " + api.UserMessage(err))
	}
	if !reply.OK {
		return failure("Check failed: " + reply.Failure("request was not accepted"))
	}

	j.card.SetAvailability(availability(reply))

	out := Outcome{Level: model.LevelSuccess, Message: reply.Message}
	if out.Message == "" {
		out.Message = "Checked: " + j.card.Status()
	}
	if reply.Message != "" && j.o.host != nil && j.o.host.IsInClient() {
		if err := j.o.host.SendMessages(ctx, []host.Message{{Text: reply.Message}}); err != nil {
			j.o.log.Warn("deliver quick check message", "url", j.url, "error", err)
		} else {
			out.Delivered = true
		}
	}
	return out
}

func (o *Orchestrator) record(ctx context.Context, listingURL string, out Outcome) {
	if o.journal == nil {
		return
	}
	e := &model.JournalEntry{
		ChatID:   o.session.ChatID,
		Action:   out.Action,
		URLCanon: canon.Canonicalize(listingURL),
		Level:    out.Level,
		Message:  out.Message,
	}
	// Only a settled watch or unwatch confirms the task id.
	if out.State != nil && out.Level == model.LevelSuccess && out.Action != model.ActionQuickCheck {
		e.TaskID = out.State.TaskID
	}
	if err := o.journal.Record(ctx, e); err != nil {
		o.log.Warn("record action", "action", out.Action, "error", err)
	}
}

func failure(msg string) Outcome {
	return Outcome{Level: model.LevelError, Message: msg, Alert: true}
}

func availability(r *api.Reply) (*int, string) {
	remain, text, _ := r.Availability()
	return remain, text
}
