// Package telegram wraps the Bot API client used by both bots. Every outbound
// call is paced by a shared rate limiter and retried on transient failures.
package telegram

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	perrors "github.com/p-blackswan/filegate/internal/errors"
	"github.com/p-blackswan/filegate/internal/retry"
)

// Default pacing, just under the Bot API's global limit of ~30 messages/s.
const (
	DefaultRPS   = 25
	DefaultBurst = 5
)

// API is the subset of *tgbotapi.BotAPI the client calls.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetMe() (tgbotapi.User, error)
}

// Client sends messages and queries chats on behalf of one bot.
type Client struct {
	api      API
	username string
	limiter  *rate.Limiter
	retry    retry.Config
	logger   zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLimiter shares a rate limiter between clients.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithUsername sets the bot username reported by Username.
func WithUsername(name string) Option {
	return func(c *Client) { c.username = name }
}

// New creates a Client over an already-authenticated API.
func New(api API, opts ...Option) *Client {
	c := &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(DefaultRPS), DefaultBurst),
		retry:   retry.DefaultConfig(),
		logger:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With().Str("component", "telegram").Str("bot", c.username).Logger()
	return c
}

// Dial authenticates token against the Bot API and returns a Client plus the
// underlying bot, which also serves as the update source. An empty endpoint
// selects the public Bot API.
func Dial(token, endpoint string, opts ...Option) (*Client, *tgbotapi.BotAPI, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("telegram: authenticate: %w", perrors.FromTelegram(err))
	}
	opts = append([]Option{WithUsername(bot.Self.UserName)}, opts...)
	return New(bot, opts...), bot, nil
}

// Username returns the bot's username without the leading "@".
func (c *Client) Username() string { return c.username }

// Ping checks that the Bot API accepts this bot's token.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "getMe", func() error {
		_, err := c.api.GetMe()
		return err
	})
}

// SendDocument delivers a stored file by file ID with an HTML caption.
func (c *Client) SendDocument(ctx context.Context, chatID int64, fileID, caption string) (int, error) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileID(fileID))
	doc.Caption = "<b>" + html.EscapeString(caption) + "</b>"
	doc.ParseMode = tgbotapi.ModeHTML
	return c.send(ctx, "sendDocument", doc)
}

// SendText sends a plain text message with an optional inline keyboard.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, kb *Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if !kb.Empty() {
		msg.ReplyMarkup = kb.markup()
	}
	return c.send(ctx, "sendMessage", msg)
}

// SendPhoto sends a photo given as an http(s) URL or a Telegram file ID.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photo, caption string, kb *Keyboard) (int, error) {
	msg := tgbotapi.NewPhoto(chatID, photoFile(photo))
	msg.Caption = caption
	if !kb.Empty() {
		msg.ReplyMarkup = kb.markup()
	}
	return c.send(ctx, "sendPhoto", msg)
}

// SendMedia re-sends a captured message (photo, video, document or text),
// keeping its formatting entities.
func (c *Client) SendMedia(ctx context.Context, chatID int64, m Media, kb *Keyboard) (int, error) {
	var markup interface{}
	if !kb.Empty() {
		markup = kb.markup()
	}

	switch m.Kind {
	case MediaPhoto:
		msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(m.FileID))
		msg.Caption, msg.CaptionEntities, msg.ReplyMarkup = m.Text, m.Entities, markup
		return c.send(ctx, "sendPhoto", msg)
	case MediaVideo:
		msg := tgbotapi.NewVideo(chatID, tgbotapi.FileID(m.FileID))
		msg.Caption, msg.CaptionEntities, msg.ReplyMarkup = m.Text, m.Entities, markup
		return c.send(ctx, "sendVideo", msg)
	case MediaDocument:
		msg := tgbotapi.NewDocument(chatID, tgbotapi.FileID(m.FileID))
		msg.Caption, msg.CaptionEntities, msg.ReplyMarkup = m.Text, m.Entities, markup
		return c.send(ctx, "sendDocument", msg)
	case MediaText:
		msg := tgbotapi.NewMessage(chatID, m.Text)
		msg.Entities, msg.ReplyMarkup = m.Entities, markup
		return c.send(ctx, "sendMessage", msg)
	}
	return 0, fmt.Errorf("telegram: unsupported media kind %q: %w", m.Kind, perrors.ErrInvalidInput)
}

// DeleteMessage removes a message from a chat.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return c.request(ctx, "deleteMessage", tgbotapi.NewDeleteMessage(chatID, messageID))
}

// EditReplyMarkup replaces a message's inline keyboard. An edit that changes
// nothing is not an error.
func (c *Client) EditReplyMarkup(ctx context.Context, chatID int64, messageID int, kb *Keyboard) error {
	markup := tgbotapi.NewInlineKeyboardMarkup()
	if !kb.Empty() {
		markup = kb.markup()
	}
	err := c.request(ctx, "editMessageReplyMarkup", tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, markup))
	if perrors.IsNotModified(err) {
		return nil
	}
	return err
}

// AnswerCallback acknowledges a callback query, optionally as an alert.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	cfg := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cfg = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	return c.request(ctx, "answerCallbackQuery", cfg)
}

// MemberStatus returns the user's membership status in channel. A numeric
// channel is used as a chat ID; anything else is treated as a public username.
func (c *Client) MemberStatus(ctx context.Context, channel string, userID int64) (string, error) {
	cfg := tgbotapi.GetChatMemberConfig{ChatConfigWithUser: tgbotapi.ChatConfigWithUser{UserID: userID}}
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		cfg.ChatID = id
	} else {
		cfg.SuperGroupUsername = "@" + strings.TrimPrefix(channel, "@")
	}

	var status string
	err := c.do(ctx, "getChatMember", func() error {
		member, err := c.api.GetChatMember(cfg)
		if err != nil {
			return err
		}
		status = member.Status
		return nil
	})
	return status, err
}

func (c *Client) send(ctx context.Context, method string, msg tgbotapi.Chattable) (int, error) {
	var id int
	err := c.do(ctx, method, func() error {
		sent, err := c.api.Send(msg)
		if err != nil {
			return err
		}
		id = sent.MessageID
		return nil
	})
	return id, err
}

func (c *Client) request(ctx context.Context, method string, cfg tgbotapi.Chattable) error {
	return c.do(ctx, method, func() error {
		_, err := c.api.Request(cfg)
		return err
	})
}

func (c *Client) do(ctx context.Context, method string, call func() error) error {
	attempt := 0
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		err := perrors.FromTelegram(call())
		if err != nil && attempt < c.retry.MaxAttempts && perrors.IsRetryable(err) {
			c.logger.Warn().Err(err).Str("method", method).Int("attempt", attempt).Msg("retrying bot api call")
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	return nil
}

func photoFile(photo string) tgbotapi.RequestFileData {
	if strings.HasPrefix(photo, "http://") || strings.HasPrefix(photo, "https://") {
		return tgbotapi.FileURL(photo)
	}
	return tgbotapi.FileID(photo)
}
