// Package event defines the Event type and EventSource interface.
// Every Telegram update the bots receive flows through the runtime as an Event.
package event

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

// Kind classifies an update for routing.
type Kind string

const (
	KindCommand     Kind = "command"
	KindMedia       Kind = "media"
	KindMessage     Kind = "message"
	KindCallback    Kind = "callback"
	KindChannelPost Kind = "channel_post"
	KindIgnored     Kind = "ignored"
)

// Event is the unit of work handled by the runtime.
type Event struct {
	ID       string
	Bot      string // name of the source that received the update
	Kind     Kind
	Update   tgbotapi.Update
	Received time.Time
}

// EventSource is implemented by anything that can emit events.
// The runtime starts each source before entering its loop.
type EventSource interface {
	// Name returns the source identifier, used as Event.Bot.
	Name() string

	// Subscribe starts delivering events to out until ctx is cancelled.
	// Subscribe must be non-blocking; it should start a goroutine internally.
	Subscribe(ctx context.Context, out chan<- Event) error
}

// NewEvent wraps an update with a generated ID and the current time.
func NewEvent(bot string, upd tgbotapi.Update) Event {
	return Event{
		ID:       uuid.NewString(),
		Bot:      bot,
		Kind:     Classify(upd),
		Update:   upd,
		Received: time.Now().UTC(),
	}
}

// Classify assigns a Kind to an update.
func Classify(upd tgbotapi.Update) Kind {
	switch {
	case upd.CallbackQuery != nil:
		return KindCallback
	case upd.ChannelPost != nil:
		return KindChannelPost
	case upd.Message != nil:
		msg := upd.Message
		if msg.IsCommand() {
			return KindCommand
		}
		if msg.Document != nil || msg.Video != nil {
			return KindMedia
		}
		return KindMessage
	}
	return KindIgnored
}

// Message returns the message carried by a command, media or plain message event.
func (e Event) Message() *tgbotapi.Message {
	return e.Update.Message
}

// UserID returns the ID of the user behind the update, or 0 for channel posts.
func (e Event) UserID() int64 {
	switch {
	case e.Update.CallbackQuery != nil && e.Update.CallbackQuery.From != nil:
		return e.Update.CallbackQuery.From.ID
	case e.Update.Message != nil && e.Update.Message.From != nil:
		return e.Update.Message.From.ID
	}
	return 0
}
