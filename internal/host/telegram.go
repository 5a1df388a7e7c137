package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
}

// Launch identifies the Telegram conversation a mini-app was opened from.
// Zero values mean unknown.
type Launch struct {
	ChatID int64
	UserID int64
}

// Telegram is a Host backed by the Telegram Bot API.
type Telegram struct {
	api        telegramAPI
	launch     Launch
	log        *slog.Logger
	attempts   uint
	retryDelay time.Duration
}

// NewTelegram initializes the Bot API with token.
func NewTelegram(token string, launch Launch, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return newTelegram(api, launch, log), nil
}

func newTelegram(api telegramAPI, launch Launch, log *slog.Logger) *Telegram {
	return &Telegram{
		api:        api,
		launch:     launch,
		log:        log,
		attempts:   3,
		retryDelay: 500 * time.Millisecond,
	}
}

// IsInClient reports whether a launch conversation is known.
func (t *Telegram) IsInClient() bool {
	return t.launch.ChatID != 0
}

// Context classifies the launch chat.
func (t *Telegram) Context(_ context.Context) (*Context, error) {
	if t.launch.ChatID == 0 {
		return nil, errors.New("no launch chat")
	}
	chat, err := t.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: t.launch.ChatID}})
	if err != nil {
		return nil, fmt.Errorf("get chat %d: %w", t.launch.ChatID, err)
	}

	id := strconv.FormatInt(chat.ID, 10)
	c := &Context{}
	if t.launch.UserID != 0 {
		c.UserID = strconv.FormatInt(t.launch.UserID, 10)
	}
	switch {
	case chat.IsPrivate():
		c.Type = ContextUser
		c.UserID = id
	case chat.IsGroup(), chat.IsSuperGroup():
		c.Type = ContextGroup
		c.GroupID = id
	case chat.IsChannel():
		c.Type = ContextRoom
		c.RoomID = id
	}
	return c, nil
}

// Profile looks up the launching user.
func (t *Telegram) Profile(_ context.Context) (*Profile, error) {
	if t.launch.UserID == 0 {
		return nil, errors.New("no launch user")
	}
	chat, err := t.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: t.launch.UserID}})
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", t.launch.UserID, err)
	}
	name := strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	if name == "" {
		name = chat.UserName
	}
	return &Profile{UserID: strconv.FormatInt(chat.ID, 10), DisplayName: name}, nil
}

// SendMessages posts msgs to the launch chat, retrying transient failures.
func (t *Telegram) SendMessages(ctx context.Context, msgs []Message) error {
	if t.launch.ChatID == 0 {
		return ErrUnsupported
	}
	for _, m := range msgs {
		out := tgbotapi.NewMessage(t.launch.ChatID, m.Text)
		out.DisableWebPagePreview = true
		err := retry.Do(
			func() error {
				_, err := t.api.Send(out)
				return err
			},
			retry.Attempts(t.attempts),
			retry.Delay(t.retryDelay),
			retry.Context(ctx),
			retry.OnRetry(func(n uint, err error) {
				t.log.Debug("retrying send", "chat_id", t.launch.ChatID, "attempt", n, "error", err)
			}),
		)
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}
