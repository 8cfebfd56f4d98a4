package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/p-blackswan/filegate/internal/bot"
	"github.com/p-blackswan/filegate/internal/config"
	"github.com/p-blackswan/filegate/internal/event"
	"github.com/p-blackswan/filegate/internal/gate"
	"github.com/p-blackswan/filegate/internal/health"
	"github.com/p-blackswan/filegate/internal/media"
	"github.com/p-blackswan/filegate/internal/metrics"
	"github.com/p-blackswan/filegate/internal/posting"
	"github.com/p-blackswan/filegate/internal/repost"
	"github.com/p-blackswan/filegate/internal/runtime"
	"github.com/p-blackswan/filegate/internal/scheduler"
	"github.com/p-blackswan/filegate/internal/store"
	"github.com/p-blackswan/filegate/internal/telegram"
	"github.com/p-blackswan/filegate/internal/tokens"
)

const maintenanceInterval = 30 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the file bot and, when configured, the repost bot",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	texts, err := config.LoadTexts(cfg.TextsFile, cfg)
	if err != nil {
		return err
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Int("http_port", cfg.HTTPPort).
		Int("required_channels", len(cfg.RequiredChannelList())).
		Bool("repost_enabled", cfg.RepostEnabled()).
		Msg("starting filegate")

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	db, err := store.New(cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.New()

	// One limiter per bot token: Telegram rate limits are per bot.
	fileClient, fileBot, err := telegram.Dial(cfg.FileBotToken, cfg.APIEndpoint,
		telegram.WithLimiter(rate.NewLimiter(rate.Limit(cfg.SendRPS), cfg.SendBurst)),
		telegram.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	logger.Info().Str("username", fileClient.Username()).Msg("file bot authenticated")

	fileTokens := tokens.NewCachedStore(db, cfg.TokenCacheSize)
	agg := media.NewAggregator(cfg.MediaGroupTTL, media.WithLogger(logger))
	sched := scheduler.New(fileClient, cfg.AutoDeleteAfter, logger, scheduler.WithMetrics(m))
	pipeline := posting.New(cfg.AllowedUsername, agg, fileTokens, logger,
		posting.WithGrace(cfg.MediaGroupGrace),
		posting.WithMetrics(m),
	)

	fileHandler := bot.New(bot.Deps{
		Messenger:  fileClient,
		Tokens:     fileTokens,
		Users:      db,
		Gate:       gate.New(cfg.RequiredChannelList(), fileClient, logger),
		Scheduler:  sched,
		Aggregator: agg,
		Pipeline:   pipeline,
		Metrics:    m,
	}, settingsFrom(cfg, texts), logger)

	rt := runtime.New(runtime.Config{MaxConcurrency: cfg.MaxConcurrency}, logger)
	rt.AddSource(event.NewTelegramSource(bot.Name, fileBot,
		event.TelegramWithLogger(logger),
		event.TelegramWithPollTimeout(cfg.PollTimeout),
		event.TelegramWithAllowedUpdates("message", "callback_query"),
	))
	rt.AddHandler(fileHandler)

	checker := health.NewChecker(logger)
	checker.Register("store", health.PingCheck(db.Ping))
	checker.Register("telegram", health.DegradedCheck(fileClient.Ping))

	if cfg.RepostEnabled() {
		repostClient, repostBot, err := telegram.Dial(cfg.RepostBotToken, cfg.APIEndpoint,
			telegram.WithLimiter(rate.NewLimiter(rate.Limit(cfg.SendRPS), cfg.SendBurst)),
			telegram.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("repost bot: %w", err)
		}
		logger.Info().Str("username", repostClient.Username()).Msg("repost bot authenticated")

		rt.AddSource(event.NewTelegramSource(repost.Name, repostBot,
			event.TelegramWithLogger(logger),
			event.TelegramWithPollTimeout(cfg.PollTimeout),
			event.TelegramWithAllowedUpdates("channel_post"),
		))
		rt.AddHandler(repost.New(repostClient, cfg.SourceChannelID, cfg.TargetChannelID, m, logger))
		checker.Register("telegram_repost", health.DegradedCheck(repostClient.Ping))
	} else {
		logger.Info().Msg("repost bot not configured, skipping")
	}

	// HTTP server for health and metrics
	mux := http.NewServeMux()
	checker.Mount(mux, m.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// WaitGroup for in-flight work
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		agg.Run(ctx, cfg.MediaGroupTTL)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		db.RunMaintenance(ctx, maintenanceInterval)
	}()

	runErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			runErr <- err
		}
	}()

	// Wait for shutdown signal or a fatal runtime error
	var exitErr error
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	case exitErr = <-runErr:
		logger.Error().Err(exitErr).Msg("runtime stopped")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	waitWithTimeout(&wg, 15*time.Second, logger)

	if dropped := sched.Stop(); dropped > 0 {
		logger.Warn().Int("dropped", dropped).Msg("pending deletions discarded on shutdown")
	}

	logger.Info().Msg("filegate stopped")
	return exitErr
}

// settingsFrom maps configuration and texts onto the file bot's settings.
func settingsFrom(cfg *config.Config, texts config.Texts) bot.Settings {
	buttons := make([]telegram.Button, 0, len(texts.Welcome.Buttons))
	for _, b := range texts.Welcome.Buttons {
		buttons = append(buttons, telegram.URLButton(b.Text, b.URL))
	}
	return bot.Settings{
		AnnounceChatID: cfg.ChannelID,
		CoverImage:     cfg.CoverImageURL,
		WelcomeImage:   cfg.WelcomeImageURL,
		WelcomeCaption: texts.Welcome.Caption,
		WelcomeButtons: buttons,
		PoweredBy:      texts.PoweredBy,
		DeleteAfter:    cfg.AutoDeleteAfter,
	}
}

func waitWithTimeout(wg *sync.WaitGroup, timeout time.Duration, logger zerolog.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-time.After(timeout):
		logger.Warn().Msg("forced shutdown after timeout")
	}
}
