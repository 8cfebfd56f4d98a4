package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/filegate/internal/event"
	"github.com/p-blackswan/filegate/internal/gate"
	"github.com/p-blackswan/filegate/internal/media"
	"github.com/p-blackswan/filegate/internal/posting"
	"github.com/p-blackswan/filegate/internal/scheduler"
	"github.com/p-blackswan/filegate/internal/telegram"
	"github.com/p-blackswan/filegate/internal/tokens"
)

const (
	operatorID   = 1
	userID       = 500
	announceChat = -100200
)

type sent struct {
	kind   string
	chatID int64
	text   string
	fileID string
	photo  string
	kb     *telegram.Keyboard
	msgID  int
	alert  bool
	cbID   string
}

type fakeMessenger struct {
	mu      sync.Mutex
	calls   []sent
	nextID  int
	failDoc bool
	failPic bool
}

func (f *fakeMessenger) record(s sent) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	s.msgID = 1000 + f.nextID
	f.calls = append(f.calls, s)
	return s.msgID
}

func (f *fakeMessenger) SendDocument(_ context.Context, chatID int64, fileID, caption string) (int, error) {
	if f.failDoc {
		return 0, errors.New("bot was blocked by the user")
	}
	return f.record(sent{kind: "document", chatID: chatID, fileID: fileID, text: caption}), nil
}

func (f *fakeMessenger) SendText(_ context.Context, chatID int64, text string, kb *telegram.Keyboard) (int, error) {
	return f.record(sent{kind: "text", chatID: chatID, text: text, kb: kb}), nil
}

func (f *fakeMessenger) SendPhoto(_ context.Context, chatID int64, photo, caption string, kb *telegram.Keyboard) (int, error) {
	if f.failPic {
		return 0, errors.New("wrong file identifier")
	}
	return f.record(sent{kind: "photo", chatID: chatID, photo: photo, text: caption, kb: kb}), nil
}

func (f *fakeMessenger) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	f.record(sent{kind: "delete", chatID: chatID, msgID: messageID})
	return nil
}

func (f *fakeMessenger) EditReplyMarkup(_ context.Context, chatID int64, messageID int, kb *telegram.Keyboard) error {
	f.record(sent{kind: "edit", chatID: chatID, kb: kb})
	return nil
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	f.record(sent{kind: "answer", cbID: callbackID, text: text, alert: alert})
	return nil
}

func (f *fakeMessenger) Username() string { return "filegate_bot" }

func (f *fakeMessenger) byKind(kind string) []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sent
	for _, c := range f.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

type fakeChecker struct {
	mu       sync.Mutex
	statuses map[string]string
	calls    int
}

func (f *fakeChecker) MemberStatus(_ context.Context, channel string, _ int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if s, ok := f.statuses[channel]; ok {
		return s, nil
	}
	return "", errors.New("chat not found")
}

type nopDeleter struct{}

func (nopDeleter) DeleteMessage(context.Context, int64, int) error { return nil }

// countingStore counts lookups on top of a MemoryStore.
type countingStore struct {
	*tokens.MemoryStore
	mu       sync.Mutex
	lookups  int
	countErr error
}

func (c *countingStore) Count(ctx context.Context) (int, error) {
	if c.countErr != nil {
		return 0, c.countErr
	}
	return c.MemoryStore.Count(ctx)
}

func (c *countingStore) Lookup(ctx context.Context, key string) (tokens.Token, bool, error) {
	c.mu.Lock()
	c.lookups++
	c.mu.Unlock()
	return c.MemoryStore.Lookup(ctx, key)
}

type harness struct {
	bot     *Bot
	msgr    *fakeMessenger
	checker *fakeChecker
	store   *countingStore
	sched   *scheduler.Scheduler
	agg     *media.Aggregator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zerolog.Nop()
	h := &harness{
		msgr:    &fakeMessenger{},
		checker: &fakeChecker{statuses: map[string]string{"main": "member", "second": "administrator"}},
		store:   &countingStore{MemoryStore: tokens.NewMemoryStore()},
		agg:     media.NewAggregator(time.Minute),
	}
	h.sched = scheduler.New(nopDeleter{}, time.Hour, log)
	t.Cleanup(func() { h.sched.Stop() })

	pipe := posting.New("uploader", h.agg, h.store, log, posting.WithSleep(func(context.Context, time.Duration) error { return nil }))
	h.bot = New(Deps{
		Messenger:  h.msgr,
		Tokens:     h.store,
		Users:      h.store,
		Gate:       gate.New([]string{"main", "second"}, h.checker, log),
		Scheduler:  h.sched,
		Aggregator: h.agg,
		Pipeline:   pipe,
	}, Settings{
		AnnounceChatID: announceChat,
		CoverImage:     "https://example.com/cover.jpg",
		WelcomeImage:   "https://example.com/welcome.jpg",
		WelcomeCaption: "👋 Welcome!",
		WelcomeButtons: []telegram.Button{telegram.URLButton("Main Channel", "https://t.me/main")},
		PoweredBy:      "second",
		DeleteAfter:    10 * time.Minute,
	}, log)
	return h
}

func commandMsg(from int64, username, text string) *tgbotapi.Message {
	cmdLen := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		cmdLen = i
	}
	return &tgbotapi.Message{
		MessageID: 77,
		From:      &tgbotapi.User{ID: from, UserName: username},
		Chat:      &tgbotapi.Chat{ID: from, Type: "private"},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}
}

func (h *harness) handle(t *testing.T, upd tgbotapi.Update) {
	t.Helper()
	require.NoError(t, h.bot.Handle(context.Background(), event.NewEvent(Name, upd)))
}

func (h *harness) command(t *testing.T, from int64, username, text string) {
	t.Helper()
	h.handle(t, tgbotapi.Update{Message: commandMsg(from, username, text)})
}

func (h *harness) retry(t *testing.T, data string) {
	t.Helper()
	h.handle(t, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID},
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 55, Chat: &tgbotapi.Chat{ID: userID}},
	}})
}

func (h *harness) seed(t *testing.T, key, fileID, name string) {
	t.Helper()
	require.NoError(t, h.store.Put(context.Background(), tokens.Token{Key: key, FileID: fileID, FileName: name}))
}

func TestName(t *testing.T) {
	assert.Equal(t, "file", newHarness(t).bot.Name())
}

func TestStart_WelcomeRecordsUser(t *testing.T) {
	h := newHarness(t)
	h.command(t, userID, "viewer", "/start")

	photos := h.msgr.byKind("photo")
	require.Len(t, photos, 1)
	assert.Equal(t, int64(userID), photos[0].chatID)
	assert.Equal(t, "https://example.com/welcome.jpg", photos[0].photo)
	assert.Equal(t, "👋 Welcome!", photos[0].text)
	assert.Equal(t, "https://t.me/main", photos[0].kb.Rows[0][0].URL)

	n, _ := h.store.CountUsers(context.Background())
	assert.Equal(t, 1, n)

	h.command(t, userID, "viewer", "/start")
	n, _ = h.store.CountUsers(context.Background())
	assert.Equal(t, 1, n, "user recorded once")
}

func TestStart_UnknownToken(t *testing.T) {
	h := newHarness(t)
	h.command(t, userID, "viewer", "/start file_720P_9")

	texts := h.msgr.byKind("text")
	require.Len(t, texts, 1)
	assert.Equal(t, msgNotAvailable, texts[0].text)
	assert.Empty(t, h.msgr.byKind("document"))
	assert.Zero(t, h.checker.calls, "gate not consulted for unknown tokens")
}

func TestStart_DeliversAndArmsDeletion(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "file_720P_9", "FID", "Show 720p.mkv")

	before := time.Now()
	h.command(t, userID, "viewer", "/start file_720P_9")

	docs := h.msgr.byKind("document")
	require.Len(t, docs, 1)
	assert.Equal(t, int64(userID), docs[0].chatID)
	assert.Equal(t, "FID", docs[0].fileID)
	assert.Equal(t, "Show 720p.mkv", docs[0].text)

	texts := h.msgr.byKind("text")
	require.Len(t, texts, 1)
	assert.Equal(t, "⏳ Auto-deleting this file in 10 minutes.", texts[0].text)

	pending := h.sched.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, docs[0].msgID, pending[0].MessageID)
	assert.Equal(t, int64(userID), pending[0].ChatID)
	assert.WithinDuration(t, before.Add(10*time.Minute), pending[0].FireAt, 5*time.Second)
}

func TestStart_GatedShowsJoinPrompt(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "file_720P_9", "FID", "Show 720p.mkv")
	h.checker.statuses["second"] = "left"

	h.command(t, userID, "viewer", "/start file_720P_9")

	assert.Empty(t, h.msgr.byKind("document"))
	texts := h.msgr.byKind("text")
	require.Len(t, texts, 1)
	assert.Equal(t, msgJoinPrompt, texts[0].text)

	kb := texts[0].kb
	require.Len(t, kb.Rows, 2)
	assert.Equal(t, "https://t.me/second", kb.Rows[0][0].URL)
	assert.Equal(t, "retry:file_720P_9", kb.Rows[1][0].Data)
	assert.Empty(t, h.sched.Pending())
}

func TestStart_FailedMembershipQueryBlocks(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "file_720P_9", "FID", "x.mkv")
	delete(h.checker.statuses, "main")

	h.command(t, userID, "viewer", "/start file_720P_9")
	assert.Empty(t, h.msgr.byKind("document"))
	kb := h.msgr.byKind("text")[0].kb
	assert.Equal(t, "https://t.me/main", kb.Rows[0][0].URL)
}

func TestStart_DeliveryFailure(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "file_720P_9", "FID", "x.mkv")
	h.msgr.failDoc = true

	err := h.bot.Handle(context.Background(), event.NewEvent(Name, tgbotapi.Update{Message: commandMsg(userID, "viewer", "/start file_720P_9")}))
	assert.Error(t, err)

	texts := h.msgr.byKind("text")
	require.Len(t, texts, 1)
	assert.Equal(t, msgCouldNotSend, texts[0].text)
	assert.Empty(t, h.sched.Pending())
}

func TestRetry_MalformedDoesNotTouchStore(t *testing.T) {
	h := newHarness(t)
	h.retry(t, "retry:not-a-token")

	answers := h.msgr.byKind("answer")
	require.Len(t, answers, 1)
	assert.Equal(t, msgInvalidToken, answers[0].text)
	assert.True(t, answers[0].alert)
	assert.Zero(t, h.store.lookups)
	assert.Zero(t, h.checker.calls)
}

func TestRetry_UnknownToken(t *testing.T) {
	h := newHarness(t)
	h.retry(t, "retry:file_720P_1")

	answers := h.msgr.byKind("answer")
	require.Len(t, answers, 1)
	assert.Equal(t, msgNotAvailable, answers[0].text)
	assert.True(t, answers[0].alert)
}

func TestRetry_StillGatedRefreshesPrompt(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "file_720P_1", "FID", "x.mkv")
	h.checker.statuses["main"] = "left"

	h.retry(t, "retry:file_720P_1")
	h.retry(t, "retry:file_720P_1")

	edits := h.msgr.byKind("edit")
	require.Len(t, edits, 2)
	assert.Equal(t, "retry:file_720P_1", edits[0].kb.Rows[1][0].Data)

	answers := h.msgr.byKind("answer")
	require.Len(t, answers, 2)
	assert.Equal(t, msgStillNotJoined, answers[1].text)
	assert.False(t, answers[1].alert)
	assert.Empty(t, h.msgr.byKind("document"))
}

func TestRetry_PassDeliversAndRemovesPrompt(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "file_720P_1", "FID", "x.mkv")

	h.retry(t, "retry:file_720P_1")

	require.Len(t, h.msgr.byKind("document"), 1)
	deletes := h.msgr.byKind("delete")
	require.Len(t, deletes, 1)
	assert.Equal(t, 55, deletes[0].msgID)

	answers := h.msgr.byKind("answer")
	require.Len(t, answers, 1)
	assert.Equal(t, msgSentToDM, answers[0].text)
	assert.Len(t, h.sched.Pending(), 1)
}

func TestMedia_ObservedByAggregator(t *testing.T) {
	h := newHarness(t)
	h.handle(t, tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID:    3,
		MediaGroupID: "album",
		Chat:         &tgbotapi.Chat{ID: operatorID},
		Document:     &tgbotapi.Document{FileID: "D", FileName: "a 720p.mkv"},
	}})
	assert.Equal(t, []string{"album"}, h.agg.Groups())
}

func TestPostFile_NotOperator(t *testing.T) {
	h := newHarness(t)
	msg := commandMsg(userID, "viewer", "/postfile")
	msg.ReplyToMessage = &tgbotapi.Message{MessageID: 3, Document: &tgbotapi.Document{FileID: "D", FileName: "a 720p.mkv"}}
	h.handle(t, tgbotapi.Update{Message: msg})

	assert.Equal(t, msgNotAllowed, h.msgr.byKind("text")[0].text)
	assert.Empty(t, h.msgr.byKind("photo"))
	n, _ := h.store.Count(context.Background())
	assert.Zero(t, n)
}

func TestPostFile_NoReply(t *testing.T) {
	h := newHarness(t)
	h.command(t, operatorID, "uploader", "/postfile")
	assert.Equal(t, msgReplyToMedia, h.msgr.byKind("text")[0].text)
}

func TestPostFile_NoDocument(t *testing.T) {
	h := newHarness(t)
	msg := commandMsg(operatorID, "uploader", "/postfile")
	msg.ReplyToMessage = &tgbotapi.Message{MessageID: 3, Video: &tgbotapi.Video{FileID: "V"}}
	h.handle(t, tgbotapi.Update{Message: msg})
	assert.Equal(t, msgNoDocument, h.msgr.byKind("text")[0].text)
}

func TestPostFile_PublishesAlbum(t *testing.T) {
	h := newHarness(t)
	for i, name := range []string{"Show S02 EP03 720p.mkv", "Show S02 EP03 1080p.mkv"} {
		h.handle(t, tgbotapi.Update{Message: &tgbotapi.Message{
			MessageID:    10 + i,
			MediaGroupID: "album",
			Chat:         &tgbotapi.Chat{ID: operatorID},
			Document:     &tgbotapi.Document{FileID: "D" + name, FileName: name},
		}})
	}

	msg := commandMsg(operatorID, "uploader", "/postfile")
	msg.ReplyToMessage = &tgbotapi.Message{
		MessageID:    10,
		MediaGroupID: "album",
		Document:     &tgbotapi.Document{FileID: "DShow S02 EP03 720p.mkv", FileName: "Show S02 EP03 720p.mkv"},
	}
	h.handle(t, tgbotapi.Update{Message: msg})

	photos := h.msgr.byKind("photo")
	require.Len(t, photos, 1)
	assert.Equal(t, int64(announceChat), photos[0].chatID)
	assert.Equal(t, "https://example.com/cover.jpg", photos[0].photo)
	assert.Contains(t, photos[0].text, "⬡ Show S02 EP03 720p\n")
	assert.Contains(t, photos[0].text, "‣ Season : 02")
	assert.Contains(t, photos[0].text, "‣ Episode : 03")
	assert.Contains(t, photos[0].text, "‣ Quality : Multi")
	assert.Contains(t, photos[0].text, "⬡ Powered By : @second")

	row := photos[0].kb.Rows[0]
	require.Len(t, row, 2)
	assert.Equal(t, "https://t.me/filegate_bot?start=file_1080P_11", row[0].URL)
	assert.Equal(t, "https://t.me/filegate_bot?start=file_720P_10", row[1].URL)

	texts := h.msgr.byKind("text")
	require.Len(t, texts, 1)
	assert.Equal(t, msgPosted, texts[0].text)

	n, _ := h.store.Count(context.Background())
	assert.Equal(t, 2, n)
}

func TestPostFile_AnnouncementFailureIsReported(t *testing.T) {
	h := newHarness(t)
	h.msgr.failPic = true

	msg := commandMsg(operatorID, "uploader", "/postfile")
	msg.ReplyToMessage = &tgbotapi.Message{MessageID: 3, Document: &tgbotapi.Document{FileID: "D", FileName: "a 720p.mkv"}}
	err := h.bot.Handle(context.Background(), event.NewEvent(Name, tgbotapi.Update{Message: msg}))
	assert.Error(t, err)
	assert.Equal(t, msgFailedToPost, h.msgr.byKind("text")[0].text)
}

func TestPostFile_RetryAfterFailedPublishKeepsAlbum(t *testing.T) {
	h := newHarness(t)
	for i, name := range []string{"Show 720p.mkv", "Show 1080p.mkv"} {
		h.handle(t, tgbotapi.Update{Message: &tgbotapi.Message{
			MessageID:    10 + i,
			MediaGroupID: "album",
			Chat:         &tgbotapi.Chat{ID: operatorID},
			Document:     &tgbotapi.Document{FileID: "D" + name, FileName: name},
		}})
	}

	postfile := func() error {
		msg := commandMsg(operatorID, "uploader", "/postfile")
		msg.ReplyToMessage = &tgbotapi.Message{
			MessageID:    10,
			MediaGroupID: "album",
			Document:     &tgbotapi.Document{FileID: "DShow 720p.mkv", FileName: "Show 720p.mkv"},
		}
		return h.bot.Handle(context.Background(), event.NewEvent(Name, tgbotapi.Update{Message: msg}))
	}

	h.msgr.failPic = true
	require.Error(t, postfile())
	assert.Equal(t, []string{"album"}, h.agg.Groups(), "album kept after a failed publish")

	h.msgr.failPic = false
	require.NoError(t, postfile())

	photos := h.msgr.byKind("photo")
	require.Len(t, photos, 1)
	assert.Contains(t, photos[0].text, "‣ Quality : Multi")
	require.Len(t, photos[0].kb.Rows, 1)
	assert.Len(t, photos[0].kb.Rows[0], 2)

	texts := h.msgr.byKind("text")
	require.Len(t, texts, 2)
	assert.Equal(t, msgFailedToPost, texts[0].text)
	assert.Equal(t, msgPosted, texts[1].text)
	assert.Empty(t, h.agg.Groups(), "album released once published")
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "file_720P_1", "F", "x")
	h.command(t, userID, "viewer", "/start")

	h.command(t, userID, "viewer", "/stats")
	h.command(t, operatorID, "uploader", "/stats")

	texts := h.msgr.byKind("text")
	require.Len(t, texts, 2)
	assert.Equal(t, msgNotAllowed, texts[0].text)
	assert.Equal(t, "📊 Users: 1\n📁 Tokens: 1", texts[1].text)
}

func TestStats_CountFailureIsReported(t *testing.T) {
	h := newHarness(t)
	h.store.countErr = errors.New("database is locked")

	msg := commandMsg(operatorID, "uploader", "/stats")
	err := h.bot.Handle(context.Background(), event.NewEvent(Name, tgbotapi.Update{Message: msg}))
	assert.Error(t, err)

	texts := h.msgr.byKind("text")
	require.Len(t, texts, 1)
	assert.Equal(t, msgStatsFailed, texts[0].text)
}

func TestUnknownCommandIgnored(t *testing.T) {
	h := newHarness(t)
	h.command(t, userID, "viewer", "/help")
	assert.Empty(t, h.msgr.calls)
}

func TestAutoDeleteNotice(t *testing.T) {
	assert.Equal(t, "⏳ Auto-deleting this file in 10 minutes.", autoDeleteNotice(600*time.Second))
	assert.Equal(t, "⏳ Auto-deleting this file in 1 minute.", autoDeleteNotice(time.Minute))
	assert.Equal(t, "⏳ Auto-deleting this file in 90 seconds.", autoDeleteNotice(90*time.Second))
}
