// Package repost mirrors posts from a source channel into a target channel,
// each with a "Download" button linking back to the original post.
package repost

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/filegate/internal/event"
	"github.com/p-blackswan/filegate/internal/metrics"
	"github.com/p-blackswan/filegate/internal/requestid"
	"github.com/p-blackswan/filegate/internal/telegram"
)

// Name identifies the repost bot's event source and handler.
const Name = "repost"

const downloadLabel = "Download"

// Sender re-sends captured content.
type Sender interface {
	SendMedia(ctx context.Context, chatID int64, m telegram.Media, kb *telegram.Keyboard) (int, error)
}

// Forwarder handles channel posts for the repost bot.
type Forwarder struct {
	sender  Sender
	source  int64
	target  int64
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a Forwarder from source to target. m may be nil.
func New(sender Sender, source, target int64, m *metrics.Metrics, logger zerolog.Logger) *Forwarder {
	return &Forwarder{
		sender:  sender,
		source:  source,
		target:  target,
		metrics: m,
		logger:  logger.With().Str("component", "repost").Logger(),
	}
}

func (f *Forwarder) Name() string { return Name }

// Handle re-sends channel posts from the source channel. Send failures are
// logged and counted, never retried beyond the transport's own policy.
func (f *Forwarder) Handle(ctx context.Context, ev event.Event) error {
	post := ev.Update.ChannelPost
	if ev.Kind != event.KindChannelPost || post == nil || post.Chat == nil || post.Chat.ID != f.source {
		return nil
	}
	log := requestid.Logger(ctx, f.logger).With().Int("message_id", post.MessageID).Logger()

	m, ok := telegram.MediaFromMessage(post)
	if !ok {
		log.Debug().Msg("unsupported post skipped")
		f.metrics.RecordRepost("other", "skipped")
		return nil
	}

	kb := (&telegram.Keyboard{}).Row(telegram.URLButton(downloadLabel, PostLink(f.source, post.MessageID)))
	if _, err := f.sender.SendMedia(ctx, f.target, m, kb); err != nil {
		log.Error().Err(err).Str("kind", string(m.Kind)).Msg("repost failed")
		f.metrics.RecordRepost(string(m.Kind), "failed")
		return nil
	}

	log.Info().Str("kind", string(m.Kind)).Msg("reposted")
	f.metrics.RecordRepost(string(m.Kind), "sent")
	return nil
}

// PostLink is the t.me/c link of a message in a private channel. The
// channel's "-100" prefix is dropped from the link.
func PostLink(channelID int64, messageID int) string {
	id := strconv.FormatInt(channelID, 10)
	id = strings.TrimPrefix(id, "-100")
	id = strings.TrimPrefix(id, "-")
	return fmt.Sprintf("https://t.me/c/%s/%d", id, messageID)
}
