// Package bot implements the file bot: token redemption behind the channel
// gate, operator posting, and upload observation.
package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/filegate/internal/event"
	"github.com/p-blackswan/filegate/internal/gate"
	"github.com/p-blackswan/filegate/internal/media"
	"github.com/p-blackswan/filegate/internal/metrics"
	"github.com/p-blackswan/filegate/internal/posting"
	"github.com/p-blackswan/filegate/internal/requestid"
	"github.com/p-blackswan/filegate/internal/scheduler"
	"github.com/p-blackswan/filegate/internal/telegram"
	"github.com/p-blackswan/filegate/internal/tokens"
)

// Name identifies the file bot's event source and handler.
const Name = "file"

// Messenger is the transport surface the file bot needs.
type Messenger interface {
	SendDocument(ctx context.Context, chatID int64, fileID, caption string) (int, error)
	SendText(ctx context.Context, chatID int64, text string, kb *telegram.Keyboard) (int, error)
	SendPhoto(ctx context.Context, chatID int64, photo, caption string, kb *telegram.Keyboard) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	EditReplyMarkup(ctx context.Context, chatID int64, messageID int, kb *telegram.Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	Username() string
}

// Settings is the deployment-specific part of the bot.
type Settings struct {
	AnnounceChatID int64  // channel receiving announcements
	CoverImage     string // announcement photo; text post when empty
	WelcomeImage   string // bare /start photo; text reply when empty
	WelcomeCaption string
	WelcomeButtons []telegram.Button
	PoweredBy      string        // channel credited in announcement footers
	DeleteAfter    time.Duration // lifetime of delivered files
}

// Deps are the collaborators the bot drives.
type Deps struct {
	Messenger  Messenger
	Tokens     tokens.Store
	Users      tokens.UserStore
	Gate       *gate.Gate
	Scheduler  *scheduler.Scheduler
	Aggregator *media.Aggregator
	Pipeline   *posting.Pipeline
	Metrics    *metrics.Metrics
}

// Bot handles file bot events.
type Bot struct {
	Deps
	settings Settings
	logger   zerolog.Logger
}

// New creates the file bot.
func New(deps Deps, settings Settings, logger zerolog.Logger) *Bot {
	if settings.DeleteAfter <= 0 {
		settings.DeleteAfter = scheduler.DefaultDelay
	}
	return &Bot{
		Deps:     deps,
		settings: settings,
		logger:   logger.With().Str("component", "bot").Logger(),
	}
}

func (b *Bot) Name() string { return Name }

// Handle dispatches one event. Unrelated events are ignored.
func (b *Bot) Handle(ctx context.Context, ev event.Event) error {
	switch ev.Kind {
	case event.KindCommand:
		msg := ev.Message()
		switch msg.Command() {
		case "start":
			return b.handleStart(ctx, msg)
		case "postfile":
			return b.handlePostFile(ctx, msg)
		case "stats":
			return b.handleStats(ctx, msg)
		}
	case event.KindMedia:
		b.handleMedia(ctx, ev.Message())
	case event.KindCallback:
		return b.handleCallback(ctx, ev.Update.CallbackQuery)
	}
	return nil
}

func (b *Bot) handleMedia(ctx context.Context, msg *tgbotapi.Message) {
	item := itemFromMessage(msg)
	if b.Aggregator.Observe(*item) {
		requestid.Logger(ctx, b.logger).Debug().
			Str("group_id", item.GroupID).
			Int("message_id", item.MessageID).
			Msg("upload observed")
	}
}

func (b *Bot) reply(ctx context.Context, msg *tgbotapi.Message, text string) {
	if _, err := b.Messenger.SendText(ctx, msg.Chat.ID, text, nil); err != nil {
		requestid.Logger(ctx, b.logger).Warn().Err(err).Int64("chat_id", msg.Chat.ID).Msg("reply failed")
	}
}

func itemFromMessage(msg *tgbotapi.Message) *media.Item {
	if msg == nil {
		return nil
	}
	item := &media.Item{MessageID: msg.MessageID, GroupID: msg.MediaGroupID}
	if msg.Document != nil {
		item.Document = &media.Document{FileID: msg.Document.FileID, FileName: msg.Document.FileName}
	}
	return item
}

func username(msg *tgbotapi.Message) string {
	if msg.From == nil {
		return ""
	}
	return msg.From.UserName
}
