package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/p-blackswan/filegate/internal/posting"
	"github.com/p-blackswan/filegate/internal/requestid"
)

// handlePostFile publishes the replied-to upload batch.
func (b *Bot) handlePostFile(ctx context.Context, msg *tgbotapi.Message) error {
	ann, err := b.Pipeline.Prepare(ctx, posting.Request{
		Username: username(msg),
		Reply:    itemFromMessage(msg.ReplyToMessage),
	})
	switch {
	case errors.Is(err, posting.ErrNotOperator):
		b.Metrics.RecordPost("unauthorized")
		b.reply(ctx, msg, msgNotAllowed)
		return nil
	case errors.Is(err, posting.ErrNoReply):
		b.Metrics.RecordPost("no_reply")
		b.reply(ctx, msg, msgReplyToMedia)
		return nil
	case errors.Is(err, posting.ErrNoDocument):
		b.Metrics.RecordPost("no_document")
		b.reply(ctx, msg, msgNoDocument)
		return nil
	case err != nil:
		b.Metrics.RecordPost("failed")
		b.reply(ctx, msg, msgFailedToPost)
		return fmt.Errorf("prepare post: %w", err)
	}

	caption := ann.Caption(b.settings.PoweredBy)
	kb := ann.Keyboard(b.Messenger.Username())
	if b.settings.CoverImage != "" {
		_, err = b.Messenger.SendPhoto(ctx, b.settings.AnnounceChatID, b.settings.CoverImage, caption, kb)
	} else {
		_, err = b.Messenger.SendText(ctx, b.settings.AnnounceChatID, caption, kb)
	}
	if err != nil {
		b.Metrics.RecordPost("failed")
		b.reply(ctx, msg, msgFailedToPost)
		return fmt.Errorf("publish announcement: %w", err)
	}

	b.Pipeline.Commit(ann)
	b.Metrics.RecordPost("posted")
	requestid.Logger(ctx, b.logger).Info().
		Str("title", ann.Title).
		Int("links", len(ann.Links)).
		Msg("announcement posted")
	b.reply(ctx, msg, msgPosted)
	return nil
}

// handleStats reports user and token counts to the operator.
func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	if err := b.Pipeline.Authorize(username(msg)); err != nil {
		b.reply(ctx, msg, msgNotAllowed)
		return nil
	}
	users, err := b.Users.CountUsers(ctx)
	if err != nil {
		b.reply(ctx, msg, msgStatsFailed)
		return fmt.Errorf("count users: %w", err)
	}
	toks, err := b.Tokens.Count(ctx)
	if err != nil {
		b.reply(ctx, msg, msgStatsFailed)
		return fmt.Errorf("count tokens: %w", err)
	}
	b.reply(ctx, msg, fmt.Sprintf(msgStatsTemplate, users, toks))
	return nil
}
