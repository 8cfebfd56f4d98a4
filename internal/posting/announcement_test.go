package posting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnouncement_Caption(t *testing.T) {
	ann := Announcement{Title: "Show", Season: "02", Episode: "07", Quality: "Multi", Audio: "N/A"}

	want := "⬡ Show\n" +
		"╭━━━━━━━━━━━━━━━━━━━━━\n" +
		"‣ Season : 02\n" +
		"‣ Episode : 07\n" +
		"‣ Quality : Multi\n" +
		"‣ Audio   : N/A\n" +
		"╰━━━━━━━━━━━━━━━━━━━━━\n" +
		"⬡ Powered By : @animeverse"
	assert.Equal(t, want, ann.Caption("@animeverse"))
	assert.NotContains(t, ann.Caption(""), "Powered By")
}

func TestAnnouncement_KeyboardRows(t *testing.T) {
	ann := Announcement{Links: []Link{
		{"1080P", "file_1080P_1"}, {"2K", "file_2K_2"}, {"480P", "file_480P_3"}, {"720P", "file_720P_4"},
	}}

	kb := ann.Keyboard("filegate_bot")
	require.Len(t, kb.Rows, 2)
	assert.Len(t, kb.Rows[0], 3)
	assert.Len(t, kb.Rows[1], 1)
	assert.Equal(t, "https://t.me/filegate_bot?start=file_1080P_1", kb.Rows[0][0].URL)
	assert.Equal(t, "720P", kb.Rows[1][0].Text)
}

func TestDeepLink(t *testing.T) {
	assert.Equal(t, "https://t.me/bot?start=file_4K_9", DeepLink("@bot", "file_4K_9"))
}
