package event

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Updater is the long-polling half of *tgbotapi.BotAPI.
type Updater interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramSource long-polls the Bot API for updates and emits Events.
type TelegramSource struct {
	name    string
	updater Updater
	timeout int // long-poll timeout in seconds
	allowed []string
	logger  zerolog.Logger
}

// TelegramSourceOption configures TelegramSource.
type TelegramSourceOption func(*TelegramSource)

func TelegramWithLogger(l zerolog.Logger) TelegramSourceOption {
	return func(s *TelegramSource) { s.logger = l }
}

func TelegramWithPollTimeout(secs int) TelegramSourceOption {
	return func(s *TelegramSource) {
		if secs > 0 {
			s.timeout = secs
		}
	}
}

// TelegramWithAllowedUpdates restricts the update types requested from the
// Bot API (e.g. "message", "callback_query", "channel_post").
func TelegramWithAllowedUpdates(kinds ...string) TelegramSourceOption {
	return func(s *TelegramSource) { s.allowed = kinds }
}

// NewTelegramSource creates a polling source named after the bot it serves.
func NewTelegramSource(name string, updater Updater, opts ...TelegramSourceOption) *TelegramSource {
	s := &TelegramSource{
		name:    name,
		updater: updater,
		timeout: 60,
		logger:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With().Str("component", "source").Str("bot", name).Logger()
	return s
}

func (s *TelegramSource) Name() string { return s.name }

// Subscribe starts long-polling in a goroutine.
func (s *TelegramSource) Subscribe(ctx context.Context, out chan<- Event) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = s.timeout
	cfg.AllowedUpdates = s.allowed

	updates := s.updater.GetUpdatesChan(cfg)
	go s.pump(ctx, updates, out)
	return nil
}

func (s *TelegramSource) pump(ctx context.Context, updates tgbotapi.UpdatesChannel, out chan<- Event) {
	defer s.updater.StopReceivingUpdates()
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				s.logger.Warn().Msg("update channel closed")
				return
			}
			ev := NewEvent(s.name, upd)
			if ev.Kind == KindIgnored {
				s.logger.Debug().Int("update_id", upd.UpdateID).Msg("ignoring update")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
