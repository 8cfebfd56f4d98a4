package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8080"`

	// Bots
	FileBotToken   string `envconfig:"FILE_BOT_TOKEN"`
	RepostBotToken string `envconfig:"REPOST_BOT_TOKEN"` // optional; repost bot is skipped when empty
	APIEndpoint    string `envconfig:"TELEGRAM_API_ENDPOINT"` // e.g. a local Bot API server; empty = api.telegram.org
	PollTimeout    int    `envconfig:"POLL_TIMEOUT" default:"60"`

	// Channels
	ChannelID        int64  `envconfig:"CHANNEL_ID"`        // announcement channel
	SourceChannelID  int64  `envconfig:"SOURCE_CHANNEL_ID"` // repost: watched channel
	TargetChannelID  int64  `envconfig:"TARGET_CHANNEL_ID"` // repost: destination
	RequiredChannels string `envconfig:"REQUIRED_CHANNELS"` // comma-separated usernames gating redemption

	// Operator
	AllowedUsername string `envconfig:"ALLOWED_USERNAME"`

	// Artwork
	CoverImageURL   string `envconfig:"COVER_IMAGE_URL"`
	WelcomeImageURL string `envconfig:"WELCOME_IMAGE_URL"`
	TextsFile       string `envconfig:"TEXTS_FILE"`

	// Storage
	DBPath         string `envconfig:"DB_PATH" default:"file_tokens.db"`
	TokenCacheSize int    `envconfig:"TOKEN_CACHE_SIZE" default:"1024"` // 0 disables the lookup cache

	// Timing
	AutoDeleteAfter time.Duration `envconfig:"AUTO_DELETE_AFTER" default:"600s"`
	MediaGroupTTL   time.Duration `envconfig:"MEDIA_GROUP_TTL" default:"60s"`
	MediaGroupGrace time.Duration `envconfig:"MEDIA_GROUP_GRACE" default:"1s"`

	// Throughput
	MaxConcurrency int     `envconfig:"MAX_CONCURRENCY" default:"4"`
	SendRPS        float64 `envconfig:"SEND_RPS" default:"25"`
	SendBurst      int     `envconfig:"SEND_BURST" default:"5"`
}

// RequiredChannelList returns the parsed list of required channel usernames,
// without any leading "@".
func (c *Config) RequiredChannelList() []string {
	if c.RequiredChannels == "" {
		return nil
	}
	parts := strings.Split(c.RequiredChannels, ",")
	channels := make([]string, 0, len(parts))
	for _, ch := range parts {
		ch = strings.TrimPrefix(strings.TrimSpace(ch), "@")
		if ch != "" {
			channels = append(channels, ch)
		}
	}
	return channels
}

// RepostEnabled returns true if the repost bot is fully configured.
func (c *Config) RepostEnabled() bool {
	return c.RepostBotToken != "" && c.SourceChannelID != 0 && c.TargetChannelID != 0
}

// IsDevelopment reports whether logs should be human-readable.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// Validate reports settings the file bot cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.FileBotToken == "" {
		errs = append(errs, errors.New("FILE_BOT_TOKEN is required"))
	}
	if c.AllowedUsername == "" {
		errs = append(errs, errors.New("ALLOWED_USERNAME is required"))
	}
	if c.ChannelID == 0 {
		errs = append(errs, errors.New("CHANNEL_ID is required"))
	}
	if c.RepostBotToken != "" && (c.SourceChannelID == 0 || c.TargetChannelID == 0) {
		errs = append(errs, errors.New("SOURCE_CHANNEL_ID and TARGET_CHANNEL_ID are required with REPOST_BOT_TOKEN"))
	}
	if c.AutoDeleteAfter <= 0 {
		errs = append(errs, fmt.Errorf("AUTO_DELETE_AFTER must be positive, got %s", c.AutoDeleteAfter))
	}
	if c.MaxConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENCY must be positive, got %d", c.MaxConcurrency))
	}
	return errors.Join(errs...)
}

// Load reads an optional dotenv file (".env" unless paths are given), then
// configuration from environment variables. Variables already set in the
// environment win over dotenv values. Missing dotenv files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}
