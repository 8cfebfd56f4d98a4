package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/p-blackswan/filegate/internal/gate"
	"github.com/p-blackswan/filegate/internal/requestid"
	"github.com/p-blackswan/filegate/internal/telegram"
	"github.com/p-blackswan/filegate/internal/tokens"
)

// handleStart greets a bare /start and redeems /start <token>.
func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	userID := msg.From.ID
	log := requestid.Logger(ctx, b.logger).With().Int64("user_id", userID).Logger()

	if isNew, err := b.Users.AddUser(ctx, userID); err != nil {
		log.Warn().Err(err).Msg("record user failed")
	} else if isNew {
		log.Info().Msg("new user")
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		b.sendWelcome(ctx, userID)
		return nil
	}
	key := args[0]

	tok, found, err := b.Tokens.Lookup(ctx, key)
	if err != nil {
		b.reply(ctx, msg, msgCouldNotSend)
		b.Metrics.RecordRedemption("start", "error")
		return fmt.Errorf("lookup %s: %w", key, err)
	}
	if !found {
		log.Info().Str("token", key).Msg("unknown token")
		b.reply(ctx, msg, msgNotAvailable)
		b.Metrics.RecordRedemption("start", "unknown")
		return nil
	}

	if missing := b.unsatisfied(ctx, userID); len(missing) > 0 {
		if _, err := b.Messenger.SendText(ctx, userID, msgJoinPrompt, joinKeyboard(missing, key)); err != nil {
			log.Warn().Err(err).Msg("join prompt failed")
		}
		b.Metrics.RecordRedemption("start", "gated")
		return nil
	}

	if err := b.deliver(ctx, userID, tok); err != nil {
		b.reply(ctx, msg, msgCouldNotSend)
		b.Metrics.RecordRedemption("start", "failed")
		return fmt.Errorf("deliver %s: %w", key, err)
	}
	b.Metrics.RecordRedemption("start", "delivered")
	return nil
}

// handleCallback re-runs the gate for a "try again" press.
func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.From == nil {
		return nil
	}
	log := requestid.Logger(ctx, b.logger).With().Int64("user_id", q.From.ID).Logger()

	if !strings.HasPrefix(q.Data, "retry") {
		log.Debug().Str("data", q.Data).Msg("ignoring callback")
		return b.answer(ctx, q, "", false)
	}

	key, err := gate.ParseRetry(q.Data)
	if errors.Is(err, gate.ErrInvalidRetry) {
		b.Metrics.RecordRedemption("retry", "invalid")
		return b.answer(ctx, q, msgInvalidToken, true)
	}

	tok, found, err := b.Tokens.Lookup(ctx, key)
	if err != nil {
		b.Metrics.RecordRedemption("retry", "error")
		_ = b.answer(ctx, q, msgCouldNotSend, false)
		return fmt.Errorf("lookup %s: %w", key, err)
	}
	if !found {
		b.Metrics.RecordRedemption("retry", "unknown")
		return b.answer(ctx, q, msgNotAvailable, true)
	}

	if missing := b.unsatisfied(ctx, q.From.ID); len(missing) > 0 {
		if q.Message != nil {
			if err := b.Messenger.EditReplyMarkup(ctx, q.Message.Chat.ID, q.Message.MessageID, joinKeyboard(missing, key)); err != nil {
				log.Warn().Err(err).Msg("refresh join prompt failed")
			}
		}
		b.Metrics.RecordRedemption("retry", "gated")
		return b.answer(ctx, q, msgStillNotJoined, false)
	}

	if err := b.deliver(ctx, q.From.ID, tok); err != nil {
		b.Metrics.RecordRedemption("retry", "failed")
		_ = b.answer(ctx, q, msgCouldNotSend, false)
		return fmt.Errorf("deliver %s: %w", key, err)
	}
	b.Metrics.RecordRedemption("retry", "delivered")

	if q.Message != nil {
		if err := b.Messenger.DeleteMessage(ctx, q.Message.Chat.ID, q.Message.MessageID); err != nil {
			log.Warn().Err(err).Msg("remove join prompt failed")
		}
	}
	return b.answer(ctx, q, msgSentToDM, false)
}

// deliver sends the file, announces its expiry and arms the deletion.
func (b *Bot) deliver(ctx context.Context, userID int64, tok tokens.Token) error {
	log := requestid.Logger(ctx, b.logger)

	msgID, err := b.Messenger.SendDocument(ctx, userID, tok.FileID, tok.FileName)
	if err != nil {
		return err
	}
	if _, err := b.Messenger.SendText(ctx, userID, autoDeleteNotice(b.settings.DeleteAfter), nil); err != nil {
		log.Warn().Err(err).Msg("auto-delete notice failed")
	}
	p := b.Scheduler.Schedule(userID, msgID, b.settings.DeleteAfter)

	log.Info().
		Str("token", tok.Key).
		Int64("user_id", userID).
		Str("deletion_id", p.ID).
		Time("delete_at", p.FireAt).
		Msg("file delivered")
	return nil
}

func (b *Bot) unsatisfied(ctx context.Context, userID int64) []string {
	missing := b.Gate.Unsatisfied(ctx, userID)
	b.Metrics.RecordGate(len(missing) == 0)
	return missing
}

func (b *Bot) answer(ctx context.Context, q *tgbotapi.CallbackQuery, text string, alert bool) error {
	if err := b.Messenger.AnswerCallback(ctx, q.ID, text, alert); err != nil {
		requestid.Logger(ctx, b.logger).Warn().Err(err).Msg("answer callback failed")
	}
	return nil
}

// joinKeyboard lists one join link per missing channel and a retry button.
func joinKeyboard(missing []string, key string) *telegram.Keyboard {
	kb := &telegram.Keyboard{}
	for _, ch := range missing {
		kb.Row(telegram.URLButton(joinLabel(ch), gate.JoinURL(ch)))
	}
	return kb.Row(telegram.DataButton(msgTryAgain, gate.RetryData(key)))
}

func (b *Bot) sendWelcome(ctx context.Context, userID int64) {
	kb := &telegram.Keyboard{}
	kb.Row(b.settings.WelcomeButtons...)

	var err error
	if b.settings.WelcomeImage != "" {
		_, err = b.Messenger.SendPhoto(ctx, userID, b.settings.WelcomeImage, b.settings.WelcomeCaption, kb)
	} else {
		_, err = b.Messenger.SendText(ctx, userID, b.settings.WelcomeCaption, kb)
	}
	if err != nil {
		requestid.Logger(ctx, b.logger).Error().Err(err).Int64("user_id", userID).Msg("welcome failed")
	}
}
