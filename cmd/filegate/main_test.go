package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/filegate/internal/config"
	"github.com/p-blackswan/filegate/internal/store"
	"github.com/p-blackswan/filegate/internal/tokens"
)

func seedDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "file_tokens.db")
	db, err := store.New(dbPath, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.Put(ctx, tokens.Token{Key: "file_720P_10", FileID: "BQAD", FileName: "Show.S01E02.720p.mkv"}))
	_, err = db.AddUser(ctx, 1)
	require.NoError(t, err)
	_, err = db.AddUser(ctx, 2)
	require.NoError(t, err)
	return dbPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--env-file=" + filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatsCommand(t *testing.T) {
	t.Setenv("DB_PATH", seedDB(t))
	t.Setenv("LOG_LEVEL", "error")

	out, err := execute(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "users:  2")
	assert.Contains(t, out, "tokens: 1")
	assert.Contains(t, out, "bytes")
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("DB_PATH", seedDB(t))
	t.Setenv("LOG_LEVEL", "error")

	out, err := execute(t, "token", "file_720P_10")
	require.NoError(t, err)
	assert.Contains(t, out, "Show.S01E02.720p.mkv")
	assert.Contains(t, out, "BQAD")

	_, err = execute(t, "token", "file_1080P_11")
	assert.ErrorContains(t, err, "not found")

	_, err = execute(t, "token", "bogus")
	assert.ErrorContains(t, err, "malformed token")
}

func TestSettingsFrom(t *testing.T) {
	cfg := &config.Config{
		ChannelID:        -1001,
		CoverImageURL:    "https://img/cover.jpg",
		WelcomeImageURL:  "https://img/welcome.jpg",
		RequiredChannels: "main,second",
		AutoDeleteAfter:  10 * time.Minute,
	}
	texts := config.DefaultTexts(cfg)

	s := settingsFrom(cfg, texts)
	assert.Equal(t, int64(-1001), s.AnnounceChatID)
	assert.Equal(t, "https://img/cover.jpg", s.CoverImage)
	assert.Equal(t, "second", s.PoweredBy)
	require.Len(t, s.WelcomeButtons, 2)
	assert.Equal(t, "https://t.me/main", s.WelcomeButtons[0].URL)
	assert.Equal(t, cfg.AutoDeleteAfter, s.DeleteAfter)
}
